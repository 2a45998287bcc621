// Package memory provides a mutex-guarded in-memory implementation of
// phonecall.Repository, used by tests and local runs without a database.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jcmexdev/phonecall-sagas/internal/phonecall"
)

// Repository stores transactions and models in two independent maps, keyed
// by the saga identifier. Records are copied on the way in and out so a
// caller mutating its saga never aliases the stored snapshot.
type Repository struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]phonecall.Transaction
	models       map[uuid.UUID]phonecall.PhoneCall
}

func New() *Repository {
	return &Repository{
		transactions: make(map[uuid.UUID]phonecall.Transaction),
		models:       make(map[uuid.UUID]phonecall.PhoneCall),
	}
}

func (r *Repository) SaveTransaction(_ context.Context, tx *phonecall.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[tx.ID] = *tx
	return nil
}

func (r *Repository) SaveModel(_ context.Context, call *phonecall.PhoneCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[call.CorrelationID] = *call
	return nil
}

func (r *Repository) FindTransaction(_ context.Context, id uuid.UUID) (*phonecall.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, phonecall.ErrNotFound)
	}
	return &tx, nil
}

func (r *Repository) FindModel(_ context.Context, id uuid.UUID) (*phonecall.PhoneCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("model for saga %s: %w", id, phonecall.ErrNotFound)
	}
	return &call, nil
}

// Len reports how many transaction records exist; used by tests asserting
// upsert idempotency.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transactions)
}
