// Package statemachine provides a small generic finite-state machine with a
// fluent configuration API: guarded transitions, parameterized triggers,
// entry/exit actions, internal transitions and substate hierarchies.
//
// The machine knows nothing about persistence or transports. Durable sagas
// are built on top of it by registering an OnTransitioned observer that
// upserts the new state before Fire returns.
//
//	m := statemachine.New[State, Trigger](StateIdle)
//	m.Configure(StateIdle).
//	    Permit(TriggerStart, StateRunning)
//	m.Configure(StateRunning).
//	    OnEntry(startedAction).
//	    Permit(TriggerStop, StateIdle)
//	err := m.Fire(ctx, TriggerStart)
package statemachine

import (
	"context"
	"fmt"
)

// Transition describes a single resolved edge, passed to actions and
// observers. For internal transitions Source equals Destination.
type Transition[S comparable, T comparable] struct {
	Source      S
	Destination S
	Trigger     T
	Args        []any
}

// ActionFunc runs a side effect during a transition. Returning an error
// aborts the Fire call; whether the state mutation has already happened
// depends on where the action is attached (exit actions run before the
// mutation, entry actions and observers after it).
type ActionFunc[S comparable, T comparable] func(ctx context.Context, tr Transition[S, T]) error

// GuardFunc decides whether a guarded edge may be taken. A nil return allows
// the transition; an error blocks it (reported as unpermitted).
type GuardFunc func(args ...any) error

// Machine is a finite-state machine over a closed state set S and trigger
// set T. It holds its current state as a plain field; rehydrated sagas seed
// it with the recovered state instead of the initial one.
//
// A Machine is not safe for concurrent use. Callers that share an instance
// across goroutines (or two instances for the same persisted identifier)
// must serialize access externally, e.g. with a per-identifier mutex.
type Machine[S comparable, T comparable] struct {
	state        S
	configs      map[S]*StateConfig[S, T]
	triggerArity map[T]int
	observers    []ActionFunc[S, T]
}

// New returns a machine positioned at the given state.
func New[S comparable, T comparable](initial S) *Machine[S, T] {
	return &Machine[S, T]{
		state:        initial,
		configs:      make(map[S]*StateConfig[S, T]),
		triggerArity: make(map[T]int),
	}
}

// State returns the current state.
func (m *Machine[S, T]) State() S {
	return m.state
}

// IsInState reports whether the machine is in s directly or in one of its
// substates.
func (m *Machine[S, T]) IsInState(s S) bool {
	for cur, ok := m.state, true; ok; cur, ok = m.superstateOf(cur) {
		if cur == s {
			return true
		}
	}
	return false
}

// Configure declares (or extends) the configuration for a state and returns
// its builder.
func (m *Machine[S, T]) Configure(s S) *StateConfig[S, T] {
	cfg, ok := m.configs[s]
	if !ok {
		cfg = &StateConfig[S, T]{
			machine:  m,
			state:    s,
			edges:    make(map[T]edge[S]),
			internal: make(map[T]ActionFunc[S, T]),
		}
		m.configs[s] = cfg
	}
	return cfg
}

// SetTriggerParameters declares that trigger carries exactly arity
// arguments. Firing it with any other number of arguments is a
// ConfigurationError. Triggers never declared here must be fired with no
// arguments.
func (m *Machine[S, T]) SetTriggerParameters(trigger T, arity int) {
	m.triggerArity[trigger] = arity
}

// OnTransitioned registers an observer invoked after every state-changing
// transition, strictly after the in-memory state mutation and strictly
// before Fire returns, in registration order. Internal transitions do not
// notify observers.
//
// An observer error aborts Fire with that error but does not roll back the
// state mutation: a saga that is ahead of its durable record is recovered by
// retrying the save, never by reverting the machine.
func (m *Machine[S, T]) OnTransitioned(fn ActionFunc[S, T]) {
	m.observers = append(m.observers, fn)
}

// CanFire reports whether Fire would currently accept the trigger, taking
// substate inheritance and guards into account.
func (m *Machine[S, T]) CanFire(trigger T, args ...any) bool {
	for cur, ok := m.state, true; ok; cur, ok = m.superstateOf(cur) {
		cfg := m.configs[cur]
		if cfg == nil {
			continue
		}
		if _, found := cfg.internal[trigger]; found {
			return true
		}
		if e, found := cfg.edges[trigger]; found {
			return e.guard == nil || e.guard(args...) == nil
		}
	}
	return false
}

// Fire resolves the edge for (current state, trigger), walking up the
// superstate chain when the current state has no direct edge.
//
// Unknown edges fail with UnpermittedTriggerError and leave everything
// untouched. Internal transitions run their action only; the state is
// unchanged and observers are not notified. A full transition runs the
// source state's exit actions, mutates the state, runs the destination's
// entry actions (OnEntryFrom actions only when registered for this
// trigger), then notifies every OnTransitioned observer.
//
// Routing is deterministic: for a fixed (state, trigger, args) the resolved
// destination and action sequence are identical on every call.
func (m *Machine[S, T]) Fire(ctx context.Context, trigger T, args ...any) error {
	if want, declared := m.triggerArity[trigger]; declared {
		if want != len(args) {
			return &ConfigurationError{Reason: fmt.Sprintf(
				"trigger %v declared with %d parameter(s), fired with %d", trigger, want, len(args))}
		}
	} else if len(args) > 0 {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"trigger %v takes no parameters, fired with %d", trigger, len(args))}
	}

	for cur, ok := m.state, true; ok; cur, ok = m.superstateOf(cur) {
		cfg := m.configs[cur]
		if cfg == nil {
			continue
		}
		if action, found := cfg.internal[trigger]; found {
			return action(ctx, Transition[S, T]{
				Source:      m.state,
				Destination: m.state,
				Trigger:     trigger,
				Args:        args,
			})
		}
		if e, found := cfg.edges[trigger]; found {
			if e.guard != nil && e.guard(args...) != nil {
				break
			}
			return m.transition(ctx, e.destination, trigger, args)
		}
	}

	return &UnpermittedTriggerError{
		State:   fmt.Sprint(m.state),
		Trigger: fmt.Sprint(trigger),
	}
}

func (m *Machine[S, T]) transition(ctx context.Context, destination S, trigger T, args []any) error {
	tr := Transition[S, T]{
		Source:      m.state,
		Destination: destination,
		Trigger:     trigger,
		Args:        args,
	}

	if cfg := m.configs[m.state]; cfg != nil {
		for _, exit := range cfg.exitActions {
			if err := exit(ctx, tr); err != nil {
				return err
			}
		}
	}

	m.state = destination

	if cfg := m.configs[destination]; cfg != nil {
		for _, entry := range cfg.entryActions {
			if entry.filtered && entry.trigger != trigger {
				continue
			}
			if err := entry.fn(ctx, tr); err != nil {
				return err
			}
		}
	}

	for _, observer := range m.observers {
		if err := observer(ctx, tr); err != nil {
			return err
		}
	}

	return nil
}

// superstateOf returns the configured superstate of s, if any.
func (m *Machine[S, T]) superstateOf(s S) (S, bool) {
	cfg := m.configs[s]
	if cfg == nil || !cfg.hasSuper {
		var zero S
		return zero, false
	}
	return cfg.super, true
}
