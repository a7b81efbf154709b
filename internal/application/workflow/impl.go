package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/nordstift/foundation-console/internal/application/dispatcher"
	"github.com/nordstift/foundation-console/internal/application/port"
	"github.com/nordstift/foundation-console/internal/domain/event"
	domainwf "github.com/nordstift/foundation-console/internal/domain/workflow"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	registry    *Registry
	instances   port.InstanceRepository
	results     port.StepResultRepository
	sideEffects port.SideEffectRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	registry *Registry,
	instances port.InstanceRepository,
	results port.StepResultRepository,
	sideEffects port.SideEffectRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		registry:    registry,
		instances:   instances,
		results:     results,
		sideEffects: sideEffects,
		txManager:   txManager,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start creates a new instance at step 1 and persists it.
func (e *engineImpl) Start(ctx context.Context, kind domainwf.Kind, initialData map[string]interface{}) (*domainwf.Instance, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown workflow kind: %s", kind)
	}

	instance := domainwf.NewInstance(kind, initialData)

	// Building the definition up front rejects instances whose data
	// cannot bind a definition (e.g. a chain missing its assignees)
	// before anything is persisted.
	def, err := e.registry.Definition(kind, instance.Snapshot())
	if err != nil {
		return nil, err
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instances.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}
		if step, ok := def.Step(1); ok && step.SideEffect != domainwf.SideEffectNone {
			return e.fireSideEffect(txCtx, instance, step)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, event.NewEvent(event.TypeWorkflowStarted, instance.ID, map[string]interface{}{
		"kind": kind.String(),
	}))

	return instance, nil
}

// Advance runs the current step's guard and moves the instance.
func (e *engineImpl) Advance(ctx context.Context, instanceID, expectedVersion int64, input map[string]interface{}) (*domainwf.Instance, error) {
	instance, def, err := e.load(ctx, instanceID, expectedVersion)
	if err != nil {
		return nil, err
	}

	if instance.Status.IsTerminal() {
		return nil, &domainwf.IllegalTransitionError{InstanceID: instanceID, From: instance.Status, Requested: "advance"}
	}

	step, ok := def.Step(instance.CurrentStep)
	if !ok {
		return nil, fmt.Errorf("instance %d: step %d out of definition range", instanceID, instance.CurrentStep)
	}
	if step.IsApproval() {
		// Approval steps move on explicit actor decisions only.
		return nil, &domainwf.IllegalTransitionError{InstanceID: instanceID, From: instance.Status, Requested: "advance approval step"}
	}

	checks := step.Guard(domainwf.Merged(instance.Data, input))

	if !domainwf.AllPassed(checks) {
		// Guard failed: input is discarded, the attempt is recorded,
		// and the instance blocks at the same step.
		result := domainwf.StepResult{
			StepIndex: step.Index,
			Outcome:   domainwf.OutcomeFail,
			Reasons:   domainwf.ReasonsFromChecks(checks),
			Timestamp: time.Now(),
		}
		instance.Status = domainwf.StatusBlocked
		instance.AppendResult(result)

		err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := e.results.Append(txCtx, instanceID, &result); err != nil {
				return fmt.Errorf("append step result: %w", err)
			}
			return e.instances.Save(txCtx, instance)
		})
		if err != nil {
			return nil, err
		}

		e.emit(ctx, event.NewEvent(event.TypeStepBlocked, instanceID, map[string]interface{}{
			"step_index": step.Index,
			"step_name":  step.Name,
		}))

		return instance, &domainwf.ValidationError{StepIndex: step.Index, Checks: domainwf.FailedChecks(checks)}
	}

	// Guard passed: merge the input, record the result and move on.
	instance.MergeData(input)
	result := domainwf.StepResult{
		StepIndex: step.Index,
		Outcome:   domainwf.OutcomePass,
		Timestamp: time.Now(),
	}
	instance.AppendResult(result)
	instance.CurrentStep++
	if instance.CurrentStep > def.Len() {
		instance.Status = domainwf.StatusCompleted
	} else {
		instance.Status = domainwf.StatusInProgress
	}

	var fired *domainwf.StepSpec
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.results.Append(txCtx, instanceID, &result); err != nil {
			return fmt.Errorf("append step result: %w", err)
		}
		if err := e.instances.Save(txCtx, instance); err != nil {
			return err
		}
		// Entering the next step fires its declared side effect.
		if next, ok := def.Step(instance.CurrentStep); ok && next.SideEffect != domainwf.SideEffectNone {
			if err := e.fireSideEffect(txCtx, instance, next); err != nil {
				return err
			}
			fired = &next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, event.NewEvent(event.TypeStepPassed, instanceID, map[string]interface{}{
		"step_index": step.Index,
		"step_name":  step.Name,
	}))
	if fired != nil {
		e.emit(ctx, event.NewEvent(event.TypeSideEffectRequested, instanceID, map[string]interface{}{
			"step_index": fired.Index,
			"kind":       string(fired.SideEffect),
		}))
	}
	if instance.Status == domainwf.StatusCompleted {
		e.emit(ctx, event.NewEvent(event.TypeWorkflowCompleted, instanceID, nil))
	}

	return instance, nil
}

// Reject is the explicit terminal transition.
func (e *engineImpl) Reject(ctx context.Context, instanceID, expectedVersion int64, actor, reason string) (*domainwf.Instance, error) {
	instance, _, err := e.load(ctx, instanceID, expectedVersion)
	if err != nil {
		return nil, err
	}

	if instance.Status != domainwf.StatusInProgress && instance.Status != domainwf.StatusBlocked {
		return nil, &domainwf.IllegalTransitionError{InstanceID: instanceID, From: instance.Status, Requested: "reject"}
	}

	result := domainwf.StepResult{
		StepIndex: instance.CurrentStep,
		Outcome:   domainwf.OutcomeFail,
		Reasons:   []domainwf.Reason{{Code: "REJECTED", Message: reason}},
		DecidedBy: actor,
		Timestamp: time.Now(),
	}
	instance.AppendResult(result)
	instance.Status = domainwf.StatusRejected

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.results.Append(txCtx, instanceID, &result); err != nil {
			return fmt.Errorf("append step result: %w", err)
		}
		return e.instances.Save(txCtx, instance)
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, event.NewEvent(event.TypeWorkflowRejected, instanceID, map[string]interface{}{
		"actor":  actor,
		"reason": reason,
	}))

	return instance, nil
}

// Retreat steps a blocked instance back to the previous step.
func (e *engineImpl) Retreat(ctx context.Context, instanceID, expectedVersion int64) (*domainwf.Instance, error) {
	instance, _, err := e.load(ctx, instanceID, expectedVersion)
	if err != nil {
		return nil, err
	}

	if instance.Status != domainwf.StatusBlocked {
		return nil, &domainwf.IllegalTransitionError{InstanceID: instanceID, From: instance.Status, Requested: "retreat"}
	}
	if instance.CurrentStep <= 1 {
		return nil, &domainwf.IllegalTransitionError{InstanceID: instanceID, From: instance.Status, Requested: "retreat past step 1"}
	}

	instance.CurrentStep--
	instance.Status = domainwf.StatusInProgress

	if err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.instances.Save(txCtx, instance)
	}); err != nil {
		return nil, err
	}

	return instance, nil
}

// Resume loads a persisted instance exactly as recorded, with its
// full step history and side effect records attached.
func (e *engineImpl) Resume(ctx context.Context, instanceID int64) (*domainwf.Instance, error) {
	instance, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	history, err := e.results.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load step results: %w", err)
	}
	instance.History = history

	effects, err := e.sideEffects.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load side effects: %w", err)
	}
	instance.SideEffects = effects

	return instance, nil
}

// RetrySideEffect re-fires a failed side effect. The record is keyed
// by (instance, step), so retrying can never duplicate the action:
// PENDING and DONE records are returned untouched.
func (e *engineImpl) RetrySideEffect(ctx context.Context, instanceID int64, stepIndex int) (*domainwf.SideEffectRecord, error) {
	record, err := e.sideEffects.Get(ctx, instanceID, stepIndex)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("instance %d step %d: no side effect recorded", instanceID, stepIndex)
	}

	if record.Status != domainwf.SideEffectFailed {
		return record, nil
	}

	record.Status = domainwf.SideEffectPending
	record.Attempts++
	record.Error = ""
	if err := e.sideEffects.Upsert(ctx, record); err != nil {
		return nil, err
	}

	e.emit(ctx, event.NewEvent(event.TypeSideEffectRequested, instanceID, map[string]interface{}{
		"step_index": stepIndex,
		"kind":       string(record.Kind),
		"retry":      true,
	}))

	return record, nil
}

// load fetches the instance, rebuilds its definition and applies the
// optimistic version guard.
func (e *engineImpl) load(ctx context.Context, instanceID, expectedVersion int64) (*domainwf.Instance, *domainwf.Definition, error) {
	instance, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	if instance.Version != expectedVersion {
		return nil, nil, &domainwf.StaleInstanceError{
			InstanceID: instanceID,
			Expected:   expectedVersion,
			Actual:     instance.Version,
		}
	}

	def, err := e.registry.Definition(instance.Kind, instance.Snapshot())
	if err != nil {
		return nil, nil, err
	}

	return instance, def, nil
}

// fireSideEffect records the PENDING marker for a step's declared
// external action. The actual invocation happens asynchronously; the
// engine never blocks a transition on a collaborator.
func (e *engineImpl) fireSideEffect(ctx context.Context, instance *domainwf.Instance, step domainwf.StepSpec) error {
	record := domainwf.SideEffectRecord{
		InstanceID: instance.ID,
		StepIndex:  step.Index,
		Kind:       step.SideEffect,
		Status:     domainwf.SideEffectPending,
		Attempts:   1,
	}
	if err := e.sideEffects.Upsert(ctx, &record); err != nil {
		return fmt.Errorf("record side effect: %w", err)
	}
	instance.SideEffects = append(instance.SideEffects, record)
	return nil
}

// emit dispatches an event asynchronously if a dispatcher is wired.
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}
