package statemachine

import "fmt"

type edge[S comparable] struct {
	destination S
	guard       GuardFunc
}

type entryAction[S comparable, T comparable] struct {
	fn       ActionFunc[S, T]
	trigger  T
	filtered bool
}

// StateConfig is the fluent builder returned by Machine.Configure. All
// methods return the receiver so edges and actions can be chained.
//
// Builder misuse (an ambiguous edge for a (state, trigger) pair, a substate
// cycle) panics with a *ConfigurationError: these are programming defects
// that must surface at configuration time, not be discovered mid-saga.
type StateConfig[S comparable, T comparable] struct {
	machine      *Machine[S, T]
	state        S
	super        S
	hasSuper     bool
	edges        map[T]edge[S]
	internal     map[T]ActionFunc[S, T]
	entryActions []entryAction[S, T]
	exitActions  []ActionFunc[S, T]
}

// Permit declares that trigger moves this state to destination.
func (c *StateConfig[S, T]) Permit(trigger T, destination S) *StateConfig[S, T] {
	return c.PermitIf(trigger, destination, nil)
}

// PermitIf declares a guarded edge: the transition is taken only when guard
// returns nil; otherwise the trigger is reported as unpermitted.
func (c *StateConfig[S, T]) PermitIf(trigger T, destination S, guard GuardFunc) *StateConfig[S, T] {
	c.rejectDuplicate(trigger)
	c.edges[trigger] = edge[S]{destination: destination, guard: guard}
	return c
}

// InternalTransition declares that trigger runs action without leaving this
// state. Observers are not notified and no transition record is persisted by
// saga-level observers; actions may still persist the domain model.
func (c *StateConfig[S, T]) InternalTransition(trigger T, action ActionFunc[S, T]) *StateConfig[S, T] {
	c.rejectDuplicate(trigger)
	c.internal[trigger] = action
	return c
}

// OnEntry registers an action invoked on any transition landing in this
// state, after the state mutation.
func (c *StateConfig[S, T]) OnEntry(fn ActionFunc[S, T]) *StateConfig[S, T] {
	c.entryActions = append(c.entryActions, entryAction[S, T]{fn: fn})
	return c
}

// OnEntryFrom registers an entry action that only runs when this state was
// entered via the given trigger. The trigger's arguments are available on
// the Transition passed to fn.
func (c *StateConfig[S, T]) OnEntryFrom(trigger T, fn ActionFunc[S, T]) *StateConfig[S, T] {
	c.entryActions = append(c.entryActions, entryAction[S, T]{fn: fn, trigger: trigger, filtered: true})
	return c
}

// OnExit registers an action invoked when leaving this state, before the
// state mutation.
func (c *StateConfig[S, T]) OnExit(fn ActionFunc[S, T]) *StateConfig[S, T] {
	c.exitActions = append(c.exitActions, fn)
	return c
}

// SubstateOf declares this state a substate of super: every trigger
// permitted on super (or further up the chain) is inherited in addition to
// this state's own edges. The relation must form a tree; declaring a state
// as its own ancestor panics.
func (c *StateConfig[S, T]) SubstateOf(super S) *StateConfig[S, T] {
	for cur, ok := super, true; ok; cur, ok = c.machine.superstateOf(cur) {
		if cur == c.state {
			panic(&ConfigurationError{Reason: fmt.Sprintf(
				"state %v cannot be declared a substate of its own descendant %v", c.state, super)})
		}
	}
	c.super = super
	c.hasSuper = true
	return c
}

func (c *StateConfig[S, T]) rejectDuplicate(trigger T) {
	if _, ok := c.edges[trigger]; ok {
		panic(&ConfigurationError{Reason: fmt.Sprintf(
			"ambiguous edge: state %v already permits trigger %v", c.state, trigger)})
	}
	if _, ok := c.internal[trigger]; ok {
		panic(&ConfigurationError{Reason: fmt.Sprintf(
			"ambiguous edge: state %v already handles trigger %v internally", c.state, trigger)})
	}
}
