// Package phonecall implements the phone call saga: a durable state machine
// representing a single call lifecycle, persisted after every transition so
// an in-flight call survives process restarts and can be resumed by
// identifier.
package phonecall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/phonecall-sagas/internal/statemachine"
)

// State is the closed set of saga states. OffHook is the initial state;
// PhoneDestroyed is terminal — no outgoing edges, every further trigger is
// rejected.
type State string

const (
	StateOffHook        State = "OffHook"
	StateRinging        State = "Ringing"
	StateConnected      State = "Connected"
	StateOnHold         State = "OnHold"
	StatePhoneDestroyed State = "PhoneDestroyed"
)

// InitialState is the state every freshly created saga starts in.
const InitialState = StateOffHook

// Trigger names the events that may drive the saga. The values double as
// wire names on the HTTP and pub/sub trigger surfaces.
type Trigger string

const (
	TriggerDial         Trigger = "dial" // carries the receiver number
	TriggerConnected    Trigger = "connected"
	TriggerLeftMessage  Trigger = "leftMessage"
	TriggerPlacedOnHold Trigger = "placedOnHold"
	TriggerTakenOffHold Trigger = "takenOffHold"
	TriggerPhoneHurled  Trigger = "phoneHurledAgainstWall"
	TriggerMute         Trigger = "mute"
	TriggerUnmute       Trigger = "unmute"
	TriggerSetVolume    Trigger = "setVolume" // carries the volume level
)

var triggers = map[Trigger]struct{}{
	TriggerDial:         {},
	TriggerConnected:    {},
	TriggerLeftMessage:  {},
	TriggerPlacedOnHold: {},
	TriggerTakenOffHold: {},
	TriggerPhoneHurled:  {},
	TriggerMute:         {},
	TriggerUnmute:       {},
	TriggerSetVolume:    {},
}

// ParseTrigger maps a wire name to a Trigger, rejecting names outside the
// closed trigger set.
func ParseTrigger(name string) (Trigger, error) {
	t := Trigger(name)
	if _, ok := triggers[t]; !ok {
		return "", fmt.Errorf("unknown trigger %q", name)
	}
	return t, nil
}

// StartCallParams carries the caller-side fields known at saga creation.
type StartCallParams struct {
	CallerName     string
	CallerNumber   string
	ReceiverName   string
	ReceiverNumber string
}

// Saga is one phone call lifecycle. It owns its PhoneCall model, holds the
// current state inside its machine, and persists through the injected
// repository: the transition record once per state change (via an
// OnTransitioned observer) and the model whenever an action mutates it.
//
// A Saga is logically single-threaded: Fire must not be called concurrently
// on the same instance, and two instances for the same persisted identifier
// must be serialized by the caller (the orchestrator keeps a per-identifier
// lock).
type Saga struct {
	id      uuid.UUID
	model   *PhoneCall
	repo    Repository
	machine *statemachine.Machine[State, Trigger]
}

// New creates a fresh saga: new identifier, initial state, a partial model
// carrying the caller fields. Both the transaction record and the model are
// persisted before New returns, so a concurrent lookup for the new
// identifier never observes a half-created saga.
func New(ctx context.Context, repo Repository, params StartCallParams) (*Saga, error) {
	id := uuid.New()
	s := &Saga{
		id: id,
		model: &PhoneCall{
			ID:            uuid.New(),
			CorrelationID: id,
			CallerName:    params.CallerName,
			CallerNumber:  params.CallerNumber,
			ReceiverName:  params.ReceiverName,
		},
		repo: repo,
	}
	s.machine = s.buildMachine(InitialState)

	if err := repo.SaveTransaction(ctx, s.Transaction()); err != nil {
		return nil, fmt.Errorf("create saga %s: %w", id, err)
	}
	if err := repo.SaveModel(ctx, s.model); err != nil {
		return nil, fmt.Errorf("create saga %s: %w", id, err)
	}
	return s, nil
}

// Load rehydrates a saga from its persisted transaction record and model.
// If either record is missing the load fails with ErrNotFound: a transaction
// without a model (or vice versa) is partial persistence and must surface,
// not be silently defaulted. After Load, Fire behaves identically to a
// freshly created instance.
func Load(ctx context.Context, repo Repository, id uuid.UUID) (*Saga, error) {
	tx, err := repo.FindTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load saga %s: %w", id, err)
	}
	model, err := repo.FindModel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load saga %s: %w", id, err)
	}

	s := &Saga{id: id, model: model, repo: repo}
	s.machine = s.buildMachine(tx.State)
	return s, nil
}

// buildMachine wires the transition table. Creation and rehydration use the
// same table; only the seed state differs.
func (s *Saga) buildMachine(current State) *statemachine.Machine[State, Trigger] {
	m := statemachine.New[State, Trigger](current)

	m.SetTriggerParameters(TriggerDial, 1)
	m.SetTriggerParameters(TriggerSetVolume, 1)

	m.Configure(StateOffHook).
		Permit(TriggerDial, StateRinging).
		OnEntryFrom(TriggerLeftMessage, s.onLeftMessage)

	m.Configure(StateRinging).
		OnEntryFrom(TriggerDial, s.onDialed).
		Permit(TriggerConnected, StateConnected).
		Permit(TriggerPhoneHurled, StatePhoneDestroyed)

	m.Configure(StateConnected).
		OnEntry(s.startCallTimer).
		OnExit(s.stopCallTimer).
		InternalTransition(TriggerMute, s.onMute).
		InternalTransition(TriggerUnmute, s.onUnmute).
		InternalTransition(TriggerSetVolume, s.onSetVolume).
		Permit(TriggerLeftMessage, StateOffHook).
		Permit(TriggerPlacedOnHold, StateOnHold).
		Permit(TriggerPhoneHurled, StatePhoneDestroyed)

	m.Configure(StateOnHold).
		SubstateOf(StateConnected).
		Permit(TriggerTakenOffHold, StateConnected).
		Permit(TriggerPhoneHurled, StatePhoneDestroyed)

	m.OnTransitioned(s.persistTransition)
	return m
}

func (s *Saga) ID() uuid.UUID { return s.id }

// State returns the current machine state.
func (s *Saga) State() State { return s.machine.State() }

// Model returns the domain model owned by this saga.
func (s *Saga) Model() *PhoneCall { return s.model }

// Transaction returns the persisted projection of this instance.
func (s *Saga) Transaction() *Transaction {
	return &Transaction{ID: s.id, State: s.machine.State()}
}

// Fire drives the machine with a named trigger. It is the generic entry
// point used by the HTTP and pub/sub surfaces; the named methods below are
// shorthands over it.
func (s *Saga) Fire(ctx context.Context, trigger Trigger, args ...any) error {
	return s.machine.Fire(ctx, trigger, args...)
}

func (s *Saga) Dial(ctx context.Context, receiver string) error {
	return s.machine.Fire(ctx, TriggerDial, receiver)
}

func (s *Saga) Connected(ctx context.Context) error {
	return s.machine.Fire(ctx, TriggerConnected)
}

func (s *Saga) LeftMessage(ctx context.Context) error {
	return s.machine.Fire(ctx, TriggerLeftMessage)
}

func (s *Saga) Hold(ctx context.Context) error {
	return s.machine.Fire(ctx, TriggerPlacedOnHold)
}

func (s *Saga) Resume(ctx context.Context) error {
	return s.machine.Fire(ctx, TriggerTakenOffHold)
}

// Smash terminates the call the hard way.
func (s *Saga) Smash(ctx context.Context) error {
	return s.machine.Fire(ctx, TriggerPhoneHurled)
}

func (s *Saga) Mute(ctx context.Context) error {
	return s.machine.Fire(ctx, TriggerMute)
}

func (s *Saga) Unmute(ctx context.Context) error {
	return s.machine.Fire(ctx, TriggerUnmute)
}

func (s *Saga) SetVolume(ctx context.Context, volume int) error {
	return s.machine.Fire(ctx, TriggerSetVolume, volume)
}

// persistTransition is the OnTransitioned observer: exactly one transaction
// upsert per state-changing transition, issued before Fire returns. A failed
// save aborts Fire with the storage error but does not revert the in-memory
// state — the durable record is at most one transition behind and is
// repaired by retrying the save, never by rolling the machine back.
func (s *Saga) persistTransition(ctx context.Context, tr statemachine.Transition[State, Trigger]) error {
	slog.InfoContext(ctx, "saga transitioned",
		"saga_id", s.id,
		"from", tr.Source,
		"to", tr.Destination,
		"trigger", tr.Trigger,
	)
	if err := s.repo.SaveTransaction(ctx, s.Transaction()); err != nil {
		return fmt.Errorf("persist transition %s -> %s: %w", tr.Source, tr.Destination, err)
	}
	return nil
}

// onDialed records the receiver carried by the dial trigger and persists the
// model.
func (s *Saga) onDialed(ctx context.Context, tr statemachine.Transition[State, Trigger]) error {
	receiver, ok := tr.Args[0].(string)
	if !ok {
		return &statemachine.ConfigurationError{Reason: fmt.Sprintf(
			"dial parameter must be a string, got %T", tr.Args[0])}
	}
	s.model.ReceiverNumber = receiver
	slog.InfoContext(ctx, "call placed", "saga_id", s.id, "receiver", receiver)
	return s.saveModel(ctx)
}

// onLeftMessage runs when the callee never picked up and the call rolled
// back to OffHook.
func (s *Saga) onLeftMessage(ctx context.Context, _ statemachine.Transition[State, Trigger]) error {
	s.model.IsMissedCall = true
	slog.InfoContext(ctx, "left message", "saga_id", s.id)
	return s.saveModel(ctx)
}

func (s *Saga) startCallTimer(ctx context.Context, _ statemachine.Transition[State, Trigger]) error {
	s.model.CallStartedAt = time.Now().UTC()
	return s.saveModel(ctx)
}

// stopCallTimer closes the current connected segment and accumulates its
// duration, so a call that was held and resumed reports total talk time.
func (s *Saga) stopCallTimer(ctx context.Context, _ statemachine.Transition[State, Trigger]) error {
	if !s.model.CallStartedAt.IsZero() {
		s.model.CallDuration += time.Since(s.model.CallStartedAt)
		s.model.CallStartedAt = time.Time{}
	}
	return s.saveModel(ctx)
}

func (s *Saga) onMute(ctx context.Context, _ statemachine.Transition[State, Trigger]) error {
	s.model.Muted = true
	return s.saveModel(ctx)
}

func (s *Saga) onUnmute(ctx context.Context, _ statemachine.Transition[State, Trigger]) error {
	s.model.Muted = false
	return s.saveModel(ctx)
}

func (s *Saga) onSetVolume(ctx context.Context, tr statemachine.Transition[State, Trigger]) error {
	volume, ok := tr.Args[0].(int)
	if !ok {
		return &statemachine.ConfigurationError{Reason: fmt.Sprintf(
			"setVolume parameter must be an int, got %T", tr.Args[0])}
	}
	s.model.Volume = volume
	return s.saveModel(ctx)
}

func (s *Saga) saveModel(ctx context.Context) error {
	if err := s.repo.SaveModel(ctx, s.model); err != nil {
		return fmt.Errorf("persist model for saga %s: %w", s.id, err)
	}
	return nil
}
