package billing

import "context"

// StateMachine tracks one invoice's status and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire reports whether the trigger would succeed from the current state
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire executes the trigger, moving to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers configured for the current state
	PermittedTriggers() []Trigger
}
