package workflow

import (
	"context"

	domainwf "github.com/nordstift/foundation-console/internal/domain/workflow"
)

// Engine drives workflow instances through their definitions. Every
// transition is processed to completion before the next is accepted
// for the same instance; concurrent callers are serialized by the
// optimistic version guard (a transition carries the version it
// believes it is advancing from, and loses with StaleInstanceError
// if the stored instance has moved).
type Engine interface {
	// Start creates a new instance of the given kind at step 1 and
	// persists it.
	Start(ctx context.Context, kind domainwf.Kind, initialData map[string]interface{}) (*domainwf.Instance, error)

	// Advance evaluates the current step's guard against the instance
	// data merged with input. On pass the data is merged, the step
	// result is recorded and the step pointer moves; on guard failure
	// the instance becomes BLOCKED and the returned error is a
	// *workflow.ValidationError carrying every failing check. The
	// updated instance is returned alongside the validation error so
	// callers can render both.
	Advance(ctx context.Context, instanceID, expectedVersion int64, input map[string]interface{}) (*domainwf.Instance, error)

	// Reject is the explicit terminal transition, permitted from
	// IN_PROGRESS or BLOCKED only.
	Reject(ctx context.Context, instanceID, expectedVersion int64, actor, reason string) (*domainwf.Instance, error)

	// Retreat steps a BLOCKED instance back to the previous step so
	// earlier answers can be revised.
	Retreat(ctx context.Context, instanceID, expectedVersion int64) (*domainwf.Instance, error)

	// Resume loads a persisted instance exactly as recorded. Side
	// effects already fired are never replayed.
	Resume(ctx context.Context, instanceID int64) (*domainwf.Instance, error)

	// RetrySideEffect re-fires the side effect recorded for
	// (instanceID, stepIndex). Only a FAILED record is re-fired;
	// PENDING and DONE records are returned unchanged, so a second
	// attempt cannot duplicate the action.
	RetrySideEffect(ctx context.Context, instanceID int64, stepIndex int) (*domainwf.SideEffectRecord, error)
}
