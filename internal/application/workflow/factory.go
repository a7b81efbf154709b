package workflow

import (
	"fmt"

	"github.com/nordstift/foundation-console/internal/domain/compliance"
	domainwf "github.com/nordstift/foundation-console/internal/domain/workflow"
)

// Snapshot keys approval-chain factories read to bind assignees.
const (
	KeyReviewerID  = "reviewer_id"
	KeyApproverID  = "approver_id"
	KeySignerID    = "signer_id"
	KeyChairID     = "chair_id"
	KeyAttendeeIDs = "attendee_ids"
)

// RequiredRegistrationDocuments are the document kinds the authority
// submission step demands.
var RequiredRegistrationDocuments = []string{
	"statutes",
	"board_resolution",
	"bank_certificate",
}

// DefinitionFactory builds a definition for one instance. Approval
// chains bind assignees from the instance's initial data; guarded
// workflows ignore the snapshot.
type DefinitionFactory func(snap domainwf.Snapshot) (*domainwf.Definition, error)

// Registry resolves workflow kinds to definition factories.
type Registry struct {
	factories map[domainwf.Kind]DefinitionFactory
}

// NewRegistry builds a registry from kind/factory pairs.
func NewRegistry() *Registry {
	return &Registry{factories: map[domainwf.Kind]DefinitionFactory{
		domainwf.KindRegistration:     RegistrationDefinition,
		domainwf.KindDocumentApproval: DocumentApprovalDefinition,
		domainwf.KindMeetingSignoff:   MeetingSignoffDefinition,
	}}
}

// Definition builds the definition for the kind against the given
// instance snapshot.
func (r *Registry) Definition(kind domainwf.Kind, snap domainwf.Snapshot) (*domainwf.Definition, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("no workflow definition for kind %s", kind)
	}
	return factory(snap)
}

// RegistrationDefinition builds the foundation registration workflow:
// basic info, governance data, the aggregated compliance review, and
// the authority submission whose entry fires document generation.
func RegistrationDefinition(domainwf.Snapshot) (*domainwf.Definition, error) {
	return domainwf.NewDefinition(domainwf.KindRegistration).
		Step("basic_info", compliance.All(
			compliance.NameAvailable,
			compliance.PurposeLength,
		)).
		Step("governance", compliance.All(
			compliance.BoardListed,
			compliance.CapitalDeclared,
			compliance.BalancedLedger,
		)).
		Step("compliance_review", compliance.All(
			compliance.MinimumCapital,
			compliance.BoardSize,
			compliance.PurposeLength,
			compliance.NameAvailable,
		)).
		StepWithSideEffect("authority_submission", submissionGuard, domainwf.SideEffectRegistrationDocuments).
		Build(), nil
}

// submissionGuard demands the generated registration documents and an
// explicit confirmation, reporting every gap together.
func submissionGuard(snap domainwf.Snapshot) []domainwf.Check {
	checks := compliance.DocumentsComplete(RequiredRegistrationDocuments)(snap)
	return append(checks, compliance.SubmissionConfirmed(snap))
}

// DocumentApprovalDefinition builds the three-party document approval
// chain: reviewer review, owner approve, auditor sign. Assignees are
// bound from the instance data at start.
func DocumentApprovalDefinition(snap domainwf.Snapshot) (*domainwf.Definition, error) {
	reviewer := snap.GetString(KeyReviewerID)
	approver := snap.GetString(KeyApproverID)
	signer := snap.GetString(KeySignerID)
	if reviewer == "" || approver == "" || signer == "" {
		return nil, fmt.Errorf("document approval requires %s, %s and %s", KeyReviewerID, KeyApproverID, KeySignerID)
	}

	return domainwf.NewDefinition(domainwf.KindDocumentApproval).
		ApprovalStep("review", reviewer, domainwf.ActionReview).
		ApprovalStep("approve", approver, domainwf.ActionApprove).
		ApprovalStep("sign", signer, domainwf.ActionSign).
		Build(), nil
}

// MeetingSignoffDefinition builds the meeting-minutes sign-off chain:
// the chair approves the minutes, then every required attendee signs.
// Minutes generation fires on entering the first signing step.
func MeetingSignoffDefinition(snap domainwf.Snapshot) (*domainwf.Definition, error) {
	chair := snap.GetString(KeyChairID)
	attendees := snap.GetStringSlice(KeyAttendeeIDs)
	if chair == "" {
		return nil, fmt.Errorf("meeting sign-off requires %s", KeyChairID)
	}
	if len(attendees) == 0 {
		return nil, fmt.Errorf("meeting sign-off requires at least one attendee in %s", KeyAttendeeIDs)
	}

	builder := domainwf.NewDefinition(domainwf.KindMeetingSignoff).
		ApprovalStep("approve_minutes", chair, domainwf.ActionApprove)

	for i, attendee := range attendees {
		name := fmt.Sprintf("sign_minutes_%d", i+1)
		if i == 0 {
			builder.ApprovalStepWithSideEffect(name, attendee, domainwf.ActionSign, domainwf.SideEffectMeetingMinutes)
		} else {
			builder.ApprovalStep(name, attendee, domainwf.ActionSign)
		}
	}

	return builder.Build(), nil
}
