package workflow

// Status represents the lifecycle state of a workflow instance.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusBlocked    Status = "BLOCKED"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
)

var validStatuses = map[Status]bool{
	StatusInProgress: true,
	StatusBlocked:    true,
	StatusCompleted:  true,
	StatusRejected:   true,
}

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusRejected:  true,
}

// IsTerminal returns true if the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a valid instance status.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Outcome is the result of evaluating one step.
type Outcome string

const (
	OutcomePass Outcome = "PASS"
	OutcomeFail Outcome = "FAIL"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// Decision is an explicit actor decision on an approval step.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionSign    Decision = "SIGN"
	DecisionReject  Decision = "REJECT"
)

var validDecisions = map[Decision]bool{
	DecisionApprove: true,
	DecisionSign:    true,
	DecisionReject:  true,
}

// IsValid returns true if the decision is one of the defined decisions.
func (d Decision) IsValid() bool {
	return validDecisions[d]
}

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}

// Action identifies what an approval step demands of its assignee.
type Action string

const (
	ActionReview  Action = "REVIEW"
	ActionApprove Action = "APPROVE"
	ActionSign    Action = "SIGN"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}
