package phonecall

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repository lookups when no record exists for
// the identifier. It signals a bad identifier or a saga that was never
// created — a non-retriable condition, distinct from transient storage
// faults which are returned as wrapped driver errors.
var ErrNotFound = errors.New("saga not found")

// Transaction is the persisted projection of a saga instance: the minimal
// durable fact needed to resume after a restart.
type Transaction struct {
	ID    uuid.UUID
	State State
}

// Repository is the port for durable saga storage. The saga depends on this
// abstraction, not on SQLite directly, so the implementation can be swapped
// for an in-memory fake in tests.
//
// Both Save methods are idempotent upserts: insert when no record exists for
// the identifier, overwrite in place otherwise. Transactions and models live
// in independent key spaces correlated by the saga identifier.
type Repository interface {
	SaveTransaction(ctx context.Context, tx *Transaction) error
	SaveModel(ctx context.Context, call *PhoneCall) error

	// FindTransaction and FindModel return ErrNotFound (possibly wrapped)
	// when no record exists for id.
	FindTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	FindModel(ctx context.Context, id uuid.UUID) (*PhoneCall, error)
}
