package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowStarted     Type = "workflow.started"
	TypeStepPassed          Type = "workflow.step_passed"
	TypeStepBlocked         Type = "workflow.step_blocked"
	TypeWorkflowCompleted   Type = "workflow.completed"
	TypeWorkflowRejected    Type = "workflow.rejected"
	TypeSideEffectRequested Type = "side_effect.requested"
	TypeSideEffectCompleted Type = "side_effect.completed"
	TypeSideEffectFailed    Type = "side_effect.failed"
	TypeSignatureRecorded   Type = "signature.recorded"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowStarted,
		TypeStepPassed,
		TypeStepBlocked,
		TypeWorkflowCompleted,
		TypeWorkflowRejected,
		TypeSideEffectRequested,
		TypeSideEffectCompleted,
		TypeSideEffectFailed,
		TypeSignatureRecorded:
		return true
	default:
		return false
	}
}
