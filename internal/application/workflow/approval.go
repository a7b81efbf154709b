package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nordstift/foundation-console/internal/application/dispatcher"
	"github.com/nordstift/foundation-console/internal/application/port"
	"github.com/nordstift/foundation-console/internal/domain/event"
	domainwf "github.com/nordstift/foundation-console/internal/domain/workflow"
)

// ApprovalChain drives workflows whose steps require explicit actor
// decisions instead of data-shape guards. A single REJECT is
// immediately terminal: later assignees are never consulted, and the
// chain can never reach COMPLETED afterwards. The chain completes iff
// every step was decided APPROVE or SIGN.
type ApprovalChain struct {
	registry    *Registry
	instances   port.InstanceRepository
	results     port.StepResultRepository
	sideEffects port.SideEffectRepository
	signatures  port.SignatureRepository
	signer      port.SignatureProvider
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
}

// ChainOption configures the approval chain
type ChainOption func(*ApprovalChain)

// WithChainDispatcher sets the event dispatcher for emitting events
func WithChainDispatcher(d dispatcher.Dispatcher) ChainOption {
	return func(c *ApprovalChain) {
		c.dispatcher = d
	}
}

// NewApprovalChain creates an approval chain over the same stores the
// generic engine uses.
func NewApprovalChain(
	registry *Registry,
	instances port.InstanceRepository,
	results port.StepResultRepository,
	sideEffects port.SideEffectRepository,
	signatures port.SignatureRepository,
	signer port.SignatureProvider,
	txManager port.TransactionManager,
	opts ...ChainOption,
) *ApprovalChain {
	c := &ApprovalChain{
		registry:    registry,
		instances:   instances,
		results:     results,
		sideEffects: sideEffects,
		signatures:  signatures,
		signer:      signer,
		txManager:   txManager,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Decide records an actor's decision on the instance's current step.
func (c *ApprovalChain) Decide(ctx context.Context, instanceID, expectedVersion int64, stepIndex int, actorID string, decision domainwf.Decision, comment string) (*domainwf.Instance, error) {
	if !decision.IsValid() {
		return nil, fmt.Errorf("unknown decision: %s", decision)
	}

	instance, err := c.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Version != expectedVersion {
		return nil, &domainwf.StaleInstanceError{InstanceID: instanceID, Expected: expectedVersion, Actual: instance.Version}
	}
	if instance.Status.IsTerminal() {
		return nil, &domainwf.IllegalTransitionError{InstanceID: instanceID, From: instance.Status, Requested: "decide"}
	}

	def, err := c.registry.Definition(instance.Kind, instance.Snapshot())
	if err != nil {
		return nil, err
	}

	if stepIndex != instance.CurrentStep {
		return nil, fmt.Errorf("%w: got step %d, current step is %d", domainwf.ErrStepOutOfRange, stepIndex, instance.CurrentStep)
	}
	step, ok := def.Step(stepIndex)
	if !ok {
		return nil, fmt.Errorf("instance %d: step %d out of definition range", instanceID, stepIndex)
	}
	if !step.IsApproval() {
		return nil, &domainwf.IllegalTransitionError{InstanceID: instanceID, From: instance.Status, Requested: "decide guarded step"}
	}
	if step.Assignee != actorID {
		return nil, fmt.Errorf("%w: step %q is assigned to %s", domainwf.ErrNotAssignee, step.Name, step.Assignee)
	}

	switch decision {
	case domainwf.DecisionReject:
		return c.rejectStep(ctx, instance, step, actorID, comment)
	case domainwf.DecisionSign:
		return c.signStep(ctx, instance, def, step, actorID, comment)
	default:
		return c.passStep(ctx, instance, def, step, actorID, comment, nil)
	}
}

// rejectStep makes the chain terminal. Remaining assignees are never
// consulted.
func (c *ApprovalChain) rejectStep(ctx context.Context, instance *domainwf.Instance, step domainwf.StepSpec, actorID, comment string) (*domainwf.Instance, error) {
	result := domainwf.StepResult{
		StepIndex: step.Index,
		Outcome:   domainwf.OutcomeFail,
		Reasons:   []domainwf.Reason{{Code: "REJECTED_BY_ASSIGNEE", Message: comment}},
		DecidedBy: actorID,
		Timestamp: time.Now(),
	}
	instance.AppendResult(result)
	instance.Status = domainwf.StatusRejected

	err := c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := c.results.Append(txCtx, instance.ID, &result); err != nil {
			return fmt.Errorf("append step result: %w", err)
		}
		return c.instances.Save(txCtx, instance)
	})
	if err != nil {
		return nil, err
	}

	c.emit(ctx, event.NewEvent(event.TypeWorkflowRejected, instance.ID, map[string]interface{}{
		"step_index": step.Index,
		"actor":      actorID,
	}))

	return instance, nil
}

// signStep collects the signature before recording the pass. A
// declined signature blocks the step; a provider failure leaves the
// instance untouched so the actor can simply try again.
func (c *ApprovalChain) signStep(ctx context.Context, instance *domainwf.Instance, def *domainwf.Definition, step domainwf.StepSpec, actorID, comment string) (*domainwf.Instance, error) {
	docs, err := c.documentIDs(ctx, instance.ID)
	if err != nil {
		return nil, err
	}

	record, err := c.signer.VerifyAndSign(ctx, actorID, docs)
	if err != nil {
		if errors.Is(err, domainwf.ErrSignatureDeclined) {
			return c.blockStep(ctx, instance, step, actorID, err)
		}
		return nil, &domainwf.SideEffectError{InstanceID: instance.ID, StepIndex: step.Index, Kind: "SIGNATURE", Cause: err}
	}

	record.InstanceID = instance.ID
	record.StepIndex = step.Index
	if record.SignedAt.IsZero() {
		record.SignedAt = time.Now()
	}

	return c.passStep(ctx, instance, def, step, actorID, comment, record)
}

// blockStep records a declined signature and blocks the instance at
// the same step.
func (c *ApprovalChain) blockStep(ctx context.Context, instance *domainwf.Instance, step domainwf.StepSpec, actorID string, cause error) (*domainwf.Instance, error) {
	result := domainwf.StepResult{
		StepIndex: step.Index,
		Outcome:   domainwf.OutcomeFail,
		Reasons:   []domainwf.Reason{{Code: "SIGNATURE_DECLINED", Message: cause.Error()}},
		DecidedBy: actorID,
		Timestamp: time.Now(),
	}
	instance.AppendResult(result)
	instance.Status = domainwf.StatusBlocked

	err := c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := c.results.Append(txCtx, instance.ID, &result); err != nil {
			return fmt.Errorf("append step result: %w", err)
		}
		return c.instances.Save(txCtx, instance)
	})
	if err != nil {
		return nil, err
	}

	return instance, domainwf.ErrSignatureDeclined
}

// passStep records an approve/sign outcome and moves the chain
// forward, firing the next step's side effect on entry.
func (c *ApprovalChain) passStep(ctx context.Context, instance *domainwf.Instance, def *domainwf.Definition, step domainwf.StepSpec, actorID, comment string, signature *domainwf.SignatureRecord) (*domainwf.Instance, error) {
	result := domainwf.StepResult{
		StepIndex: step.Index,
		Outcome:   domainwf.OutcomePass,
		DecidedBy: actorID,
		Timestamp: time.Now(),
	}
	if comment != "" {
		result.Reasons = []domainwf.Reason{{Code: "COMMENT", Message: comment}}
	}
	instance.AppendResult(result)
	instance.CurrentStep++
	if instance.CurrentStep > def.Len() {
		instance.Status = domainwf.StatusCompleted
	} else {
		instance.Status = domainwf.StatusInProgress
	}

	var fired *domainwf.StepSpec
	err := c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := c.results.Append(txCtx, instance.ID, &result); err != nil {
			return fmt.Errorf("append step result: %w", err)
		}
		if signature != nil {
			if err := c.signatures.Append(txCtx, signature); err != nil {
				return fmt.Errorf("append signature: %w", err)
			}
			instance.Signatures = append(instance.Signatures, *signature)
		}
		if err := c.instances.Save(txCtx, instance); err != nil {
			return err
		}
		if next, ok := def.Step(instance.CurrentStep); ok && next.SideEffect != domainwf.SideEffectNone {
			record := domainwf.SideEffectRecord{
				InstanceID: instance.ID,
				StepIndex:  next.Index,
				Kind:       next.SideEffect,
				Status:     domainwf.SideEffectPending,
				Attempts:   1,
			}
			if err := c.sideEffects.Upsert(txCtx, &record); err != nil {
				return fmt.Errorf("record side effect: %w", err)
			}
			instance.SideEffects = append(instance.SideEffects, record)
			fired = &next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.emit(ctx, event.NewEvent(event.TypeStepPassed, instance.ID, map[string]interface{}{
		"step_index": step.Index,
		"step_name":  step.Name,
		"actor":      actorID,
	}))
	if signature != nil {
		c.emit(ctx, event.NewEvent(event.TypeSignatureRecorded, instance.ID, map[string]interface{}{
			"step_index": step.Index,
			"signer_id":  signature.SignerID,
		}))
	}
	if fired != nil {
		c.emit(ctx, event.NewEvent(event.TypeSideEffectRequested, instance.ID, map[string]interface{}{
			"step_index": fired.Index,
			"kind":       string(fired.SideEffect),
		}))
	}
	if instance.Status == domainwf.StatusCompleted {
		c.emit(ctx, event.NewEvent(event.TypeWorkflowCompleted, instance.ID, nil))
	}

	return instance, nil
}

// documentIDs collects the IDs of documents produced by completed
// side effects, so signatures bind to what was generated. The side
// effect store is consulted directly because the worker completes
// records out of band.
func (c *ApprovalChain) documentIDs(ctx context.Context, instanceID int64) ([]string, error) {
	records, err := c.sideEffects.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load side effects: %w", err)
	}
	var ids []string
	for _, se := range records {
		if se.Status == domainwf.SideEffectDone {
			ids = append(ids, se.DocumentIDs...)
		}
	}
	return ids, nil
}

func (c *ApprovalChain) emit(ctx context.Context, evt *event.Event) {
	if c.dispatcher != nil {
		c.dispatcher.DispatchAsync(ctx, evt)
	}
}
