package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInstanceNotFound is returned when no instance exists for an ID.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrNotAssignee is returned when an actor decides a step assigned
	// to someone else.
	ErrNotAssignee = errors.New("actor is not the step assignee")

	// ErrStepOutOfRange is returned when a decision targets a step
	// other than the instance's current step.
	ErrStepOutOfRange = errors.New("step index is not the current step")

	// ErrSignatureDeclined is returned when the signature provider
	// declines to sign for the actor.
	ErrSignatureDeclined = errors.New("signature declined by provider")
)

// ValidationError reports every failing check of a step evaluation.
// It is recoverable: the instance moves to BLOCKED and the caller may
// correct the input and advance again.
type ValidationError struct {
	StepIndex int
	Checks    []Check
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d validation failed: %d check(s) did not pass", e.StepIndex, len(e.Checks))
}

// Reasons returns the failing checks folded into renderable reasons.
func (e *ValidationError) Reasons() []Reason {
	return ReasonsFromChecks(e.Checks)
}

// IllegalTransitionError reports a transition request that is not
// valid from the instance's current status. The instance is unchanged.
type IllegalTransitionError struct {
	InstanceID int64
	From       Status
	Requested  string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("instance %d: cannot %s from status %s", e.InstanceID, e.Requested, e.From)
}

// StaleInstanceError reports that the stored instance has already
// moved past the version the caller believed it held. The caller
// must reload and retry with current state; nothing is overwritten.
type StaleInstanceError struct {
	InstanceID int64
	Expected   int64
	Actual     int64
}

func (e *StaleInstanceError) Error() string {
	return fmt.Sprintf("instance %d: stale version %d, stored version is %d", e.InstanceID, e.Expected, e.Actual)
}

// SideEffectError reports a failed external collaborator call. The
// instance remains at the step that fired the effect, with the record
// marked FAILED; retry is an explicit, idempotent re-invocation.
type SideEffectError struct {
	InstanceID int64
	StepIndex  int
	Kind       SideEffectKind
	Cause      error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("instance %d step %d: side effect %s failed: %v", e.InstanceID, e.StepIndex, e.Kind, e.Cause)
}

func (e *SideEffectError) Unwrap() error {
	return e.Cause
}
