package statemachine

import "fmt"

// UnpermittedTriggerError is returned by Fire when the transition table has
// no edge for the current state and the fired trigger, neither directly nor
// via the superstate chain. The machine state is left untouched.
//
// This is the canonical rejection path: at-least-once transports re-deliver
// triggers, and a duplicate landing on a saga that already moved on must be
// rejected here instead of silently re-executed.
type UnpermittedTriggerError struct {
	State   string
	Trigger string
}

func (e *UnpermittedTriggerError) Error() string {
	return fmt.Sprintf("trigger %q is not permitted in state %q", e.Trigger, e.State)
}

// ConfigurationError signals a programming defect in the machine setup or
// its use: a duplicate edge for a (state, trigger) pair, a state declared as
// its own ancestor, or a trigger fired with the wrong number of arguments.
//
// Configuration-time defects (duplicate edges, substate cycles) are raised
// as panics from the fluent builder; arity mismatches can only be seen at
// Fire time and are returned as an error.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "state machine configuration: " + e.Reason
}
