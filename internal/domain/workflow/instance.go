package workflow

import "time"

// Reason explains one failed check to the caller in a renderable
// form. Callers never receive a bare boolean.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StepResult records the outcome of one step evaluation. Results
// are the audit trail: append-only, never mutated or reordered
// after creation.
type StepResult struct {
	ID        int64     `json:"id"`
	StepIndex int       `json:"step_index"`
	Outcome   Outcome   `json:"outcome"`
	Reasons   []Reason  `json:"reasons,omitempty"`
	DecidedBy string    `json:"decided_by,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SideEffectStatus tracks an external action fired on step entry.
type SideEffectStatus string

const (
	SideEffectPending SideEffectStatus = "PENDING"
	SideEffectDone    SideEffectStatus = "DONE"
	SideEffectFailed  SideEffectStatus = "FAILED"
)

// SideEffectRecord marks one external action keyed by
// (InstanceID, StepIndex). The engine fires the action and records
// PENDING; a later completion event moves it to DONE or FAILED.
// Retrying a FAILED record re-fires the same key, so a second
// attempt cannot duplicate the action.
type SideEffectRecord struct {
	ID          int64            `json:"id"`
	InstanceID  int64            `json:"instance_id"`
	StepIndex   int              `json:"step_index"`
	Kind        SideEffectKind   `json:"kind"`
	Status      SideEffectStatus `json:"status"`
	Attempts    int              `json:"attempts"`
	Error       string           `json:"error,omitempty"`
	DocumentIDs []string         `json:"document_ids,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// SignatureRecord captures one digital signature collected by a
// SIGN decision. Immutable once written: never edited or removed.
type SignatureRecord struct {
	ID         int64     `json:"id"`
	InstanceID int64     `json:"instance_id"`
	StepIndex  int       `json:"step_index"`
	SignerID   string    `json:"signer_id"`
	Method     string    `json:"method"`
	SignedAt   time.Time `json:"signed_at"`
}

// Instance is a live run of a WorkflowDefinition for one business
// entity. It is exclusively owned by the workflow subsystem; callers
// hold only read-only projections. Version implements the optimistic
// concurrency guard: every transition carries the version it believes
// it is advancing from.
type Instance struct {
	ID          int64                  `json:"id"`
	Kind        Kind                   `json:"kind"`
	CurrentStep int                    `json:"current_step"`
	Version     int64                  `json:"version"`
	Status      Status                 `json:"status"`
	Data        map[string]interface{} `json:"data"`
	History     []StepResult           `json:"history"`
	SideEffects []SideEffectRecord     `json:"side_effects,omitempty"`
	Signatures  []SignatureRecord      `json:"signatures,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NewInstance creates an instance at step 1 with the given initial
// data, ready for its first Advance.
func NewInstance(kind Kind, initialData map[string]interface{}) *Instance {
	data := make(map[string]interface{}, len(initialData))
	for k, v := range initialData {
		data[k] = v
	}
	return &Instance{
		Kind:        kind,
		CurrentStep: 1,
		Version:     1,
		Status:      StatusInProgress,
		Data:        data,
	}
}

// Snapshot returns the instance data as a read-only snapshot.
func (i *Instance) Snapshot() Snapshot {
	return Snapshot(i.Data)
}

// MergeData lays input over the instance data in place. Only the
// engine calls this, and only after the step's guard has passed.
func (i *Instance) MergeData(input map[string]interface{}) {
	if i.Data == nil {
		i.Data = make(map[string]interface{}, len(input))
	}
	for k, v := range input {
		i.Data[k] = v
	}
}

// AppendResult appends a step result to the audit trail.
func (i *Instance) AppendResult(r StepResult) {
	i.History = append(i.History, r)
}

// ResultForStep returns the latest result recorded for a step, if any.
func (i *Instance) ResultForStep(index int) (StepResult, bool) {
	for n := len(i.History) - 1; n >= 0; n-- {
		if i.History[n].StepIndex == index {
			return i.History[n], true
		}
	}
	return StepResult{}, false
}

// SideEffectForStep returns the side-effect record for a step, if any.
func (i *Instance) SideEffectForStep(index int) (SideEffectRecord, bool) {
	for _, se := range i.SideEffects {
		if se.StepIndex == index {
			return se, true
		}
	}
	return SideEffectRecord{}, false
}

// ReasonsFromChecks folds failing checks into step-result reasons,
// preserving order.
func ReasonsFromChecks(checks []Check) []Reason {
	var reasons []Reason
	for _, c := range checks {
		if !c.Passed {
			reasons = append(reasons, Reason{Code: c.Code, Message: c.Detail})
		}
	}
	return reasons
}
