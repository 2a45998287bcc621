package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/jcmexdev/phonecall-sagas/internal/phonecall"
)

func TestSaveTransactionIsIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	repo := New()
	id := uuid.New()

	tx := &phonecall.Transaction{ID: id, State: phonecall.StateRinging}
	if err := repo.SaveTransaction(ctx, tx); err != nil {
		t.Fatalf("SaveTransaction error: %v", err)
	}
	if err := repo.SaveTransaction(ctx, tx); err != nil {
		t.Fatalf("SaveTransaction (second) error: %v", err)
	}

	if got := repo.Len(); got != 1 {
		t.Fatalf("expected exactly one record, got %d", got)
	}
	found, err := repo.FindTransaction(ctx, id)
	if err != nil {
		t.Fatalf("FindTransaction error: %v", err)
	}
	if found.State != phonecall.StateRinging {
		t.Fatalf("expected state %q, got %q", phonecall.StateRinging, found.State)
	}
}

func TestSaveTransactionOverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	repo := New()
	id := uuid.New()

	for _, state := range []phonecall.State{phonecall.StateOffHook, phonecall.StateRinging, phonecall.StateConnected} {
		if err := repo.SaveTransaction(ctx, &phonecall.Transaction{ID: id, State: state}); err != nil {
			t.Fatalf("SaveTransaction(%q) error: %v", state, err)
		}
	}

	found, err := repo.FindTransaction(ctx, id)
	if err != nil {
		t.Fatalf("FindTransaction error: %v", err)
	}
	if found.State != phonecall.StateConnected {
		t.Fatalf("expected latest state %q, got %q", phonecall.StateConnected, found.State)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected exactly one record, got %d", repo.Len())
	}
}

func TestFindReturnsNotFound(t *testing.T) {
	repo := New()
	id := uuid.New()

	if _, err := repo.FindTransaction(context.Background(), id); !errors.Is(err, phonecall.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.FindModel(context.Background(), id); !errors.Is(err, phonecall.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoredModelDoesNotAliasCaller(t *testing.T) {
	ctx := context.Background()
	repo := New()
	id := uuid.New()

	call := &phonecall.PhoneCall{ID: uuid.New(), CorrelationID: id, Volume: 3}
	if err := repo.SaveModel(ctx, call); err != nil {
		t.Fatalf("SaveModel error: %v", err)
	}

	call.Volume = 9

	found, err := repo.FindModel(ctx, id)
	if err != nil {
		t.Fatalf("FindModel error: %v", err)
	}
	if found.Volume != 3 {
		t.Fatalf("stored model mutated through caller reference: volume %d", found.Volume)
	}
}
