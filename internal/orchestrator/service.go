// Package orchestrator hosts the saga lifecycle behind the trigger
// surfaces: creating instances, rehydrating them by identifier, and firing
// triggers with per-identifier serialization.
package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/jcmexdev/phonecall-sagas/internal/phonecall"
)

// Service is shared by the HTTP handlers and the pub/sub subscriber so that
// triggers arriving from different transports drive the same machine with
// the same locking discipline.
type Service struct {
	repo  phonecall.Repository
	locks *keyedMutex
}

func NewService(repo phonecall.Repository) *Service {
	return &Service{repo: repo, locks: newKeyedMutex()}
}

// StartCall creates a fresh saga and immediately dials the receiver,
// mirroring the "start phone call" operation: the caller gets back an
// instance that is already Ringing.
func (s *Service) StartCall(ctx context.Context, params phonecall.StartCallParams) (*phonecall.Saga, error) {
	saga, err := phonecall.New(ctx, s.repo, params)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(saga.ID())
	defer unlock()

	if err := saga.Dial(ctx, params.ReceiverNumber); err != nil {
		return nil, err
	}
	return saga, nil
}

// Get returns the persisted transaction record and model for a saga.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*phonecall.Transaction, *phonecall.PhoneCall, error) {
	tx, err := s.repo.FindTransaction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	model, err := s.repo.FindModel(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return tx, model, nil
}

// FireTrigger rehydrates the saga and fires a trigger on it, holding the
// identifier's lock for the whole rehydrate/fire/persist sequence. It
// returns the state after the call: the new state on success, the unchanged
// state when the trigger was rejected.
func (s *Service) FireTrigger(ctx context.Context, id uuid.UUID, trigger phonecall.Trigger, args ...any) (phonecall.State, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	saga, err := phonecall.Load(ctx, s.repo, id)
	if err != nil {
		return "", err
	}

	if err := saga.Fire(ctx, trigger, args...); err != nil {
		return saga.State(), err
	}
	return saga.State(), nil
}

// Terminate fires the terminal trigger, destroying the phone.
func (s *Service) Terminate(ctx context.Context, id uuid.UUID) (phonecall.State, error) {
	return s.FireTrigger(ctx, id, phonecall.TriggerPhoneHurled)
}
