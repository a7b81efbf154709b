package workflow

import "fmt"

// Kind identifies one workflow definition.
type Kind string

const (
	KindRegistration     Kind = "registration"
	KindDocumentApproval Kind = "document_approval"
	KindMeetingSignoff   Kind = "meeting_signoff"
)

var validKinds = map[Kind]bool{
	KindRegistration:     true,
	KindDocumentApproval: true,
	KindMeetingSignoff:   true,
}

// IsValid returns true if the kind is one of the defined workflow kinds.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// SideEffectKind names an external action fired on entering a step.
type SideEffectKind string

const (
	SideEffectNone                  SideEffectKind = ""
	SideEffectRegistrationDocuments SideEffectKind = "REGISTRATION_DOCUMENTS"
	SideEffectMeetingMinutes        SideEffectKind = "MEETING_MINUTES"
)

// Guard evaluates a step's entry conditions against a snapshot and
// returns every check it ran. Guards are pure: no I/O, no mutation.
type Guard func(snap Snapshot) []Check

// StepSpec declares one step of a workflow definition. Indexes are
// 1-based and contiguous. Terminal marks the last gated step; once
// it passes the instance completes.
type StepSpec struct {
	Index      int
	Name       string
	Guard      Guard
	SideEffect SideEffectKind
	Terminal   bool

	// Approval steps only. A step with a non-empty Assignee requires
	// an explicit actor decision instead of a data-shape guard.
	Assignee string
	Action   Action
}

// IsApproval returns true if the step requires an explicit actor decision.
func (s StepSpec) IsApproval() bool {
	return s.Assignee != ""
}

// Definition is an immutable ordered template of steps for one
// workflow kind.
type Definition struct {
	kind  Kind
	steps []StepSpec
}

// Kind returns the workflow kind this definition drives.
func (d *Definition) Kind() Kind {
	return d.kind
}

// Len returns the number of steps.
func (d *Definition) Len() int {
	return len(d.steps)
}

// Step returns the spec at the given 1-based index.
func (d *Definition) Step(index int) (StepSpec, bool) {
	if index < 1 || index > len(d.steps) {
		return StepSpec{}, false
	}
	return d.steps[index-1], true
}

// Steps returns a copy of the step specs in order.
func (d *Definition) Steps() []StepSpec {
	return append([]StepSpec{}, d.steps...)
}

// IsApprovalChain returns true if every step is an approval step.
func (d *Definition) IsApprovalChain() bool {
	for _, s := range d.steps {
		if !s.IsApproval() {
			return false
		}
	}
	return len(d.steps) > 0
}

// DefinitionBuilder assembles a Definition step by step. Malformed
// specs are programmer errors and panic at construction, which runs
// once at startup; nothing here can fail at transition time.
type DefinitionBuilder struct {
	kind  Kind
	steps []StepSpec
}

// NewDefinition starts a builder for the given workflow kind.
func NewDefinition(kind Kind) *DefinitionBuilder {
	if !kind.IsValid() {
		panic(fmt.Sprintf("invalid workflow kind: %s", kind))
	}
	return &DefinitionBuilder{kind: kind}
}

// Step appends a guarded step.
func (b *DefinitionBuilder) Step(name string, guard Guard) *DefinitionBuilder {
	b.steps = append(b.steps, StepSpec{
		Index: len(b.steps) + 1,
		Name:  name,
		Guard: guard,
	})
	return b
}

// StepWithSideEffect appends a guarded step that fires an external
// action on passing.
func (b *DefinitionBuilder) StepWithSideEffect(name string, guard Guard, effect SideEffectKind) *DefinitionBuilder {
	b.steps = append(b.steps, StepSpec{
		Index:      len(b.steps) + 1,
		Name:       name,
		Guard:      guard,
		SideEffect: effect,
	})
	return b
}

// ApprovalStep appends a step bound to a specific assignee and action.
func (b *DefinitionBuilder) ApprovalStep(name, assignee string, action Action) *DefinitionBuilder {
	if assignee == "" {
		panic(fmt.Sprintf("approval step %q: assignee is required", name))
	}
	b.steps = append(b.steps, StepSpec{
		Index:    len(b.steps) + 1,
		Name:     name,
		Assignee: assignee,
		Action:   action,
	})
	return b
}

// ApprovalStepWithSideEffect appends an approval step whose entry
// fires an external action.
func (b *DefinitionBuilder) ApprovalStepWithSideEffect(name, assignee string, action Action, effect SideEffectKind) *DefinitionBuilder {
	b.ApprovalStep(name, assignee, action)
	b.steps[len(b.steps)-1].SideEffect = effect
	return b
}

// Build validates the accumulated steps and returns the immutable
// definition. The last step is marked terminal.
func (b *DefinitionBuilder) Build() *Definition {
	if len(b.steps) == 0 {
		panic(fmt.Sprintf("definition %s: at least one step is required", b.kind))
	}

	seen := make(map[string]bool, len(b.steps))
	for i, s := range b.steps {
		if s.Index != i+1 {
			panic(fmt.Sprintf("definition %s: step indexes must be contiguous from 1, got %d at position %d", b.kind, s.Index, i))
		}
		if s.Name == "" {
			panic(fmt.Sprintf("definition %s: step %d has no name", b.kind, s.Index))
		}
		if seen[s.Name] {
			panic(fmt.Sprintf("definition %s: duplicate step name %q", b.kind, s.Name))
		}
		seen[s.Name] = true
		if !s.IsApproval() && s.Guard == nil {
			panic(fmt.Sprintf("definition %s: step %q needs a guard or an assignee", b.kind, s.Name))
		}
	}

	steps := append([]StepSpec{}, b.steps...)
	steps[len(steps)-1].Terminal = true

	return &Definition{kind: b.kind, steps: steps}
}
