// Package compliance holds the pure step validators gating foundation
// workflows. Every validator evaluates a data snapshot and returns a
// typed check; composite validators run all sub-checks and report every
// failure together, so a user can fix all issues in one pass.
package compliance

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nordstift/foundation-console/internal/domain/workflow"
)

// Regulatory thresholds. These constants are owned here, not by UI copy.
const (
	// MinimumCapitalSEK is the minimum initial capital required to
	// register a foundation.
	MinimumCapitalSEK = 25_000

	// MinimumBoardSize is the smallest permitted board.
	MinimumBoardSize = 3

	// MinimumPurposeLength is the minimum character count of the
	// foundation's purpose description.
	MinimumPurposeLength = 50
)

// Check kinds.
const (
	CheckMinimumCapital      = "minimum_capital"
	CheckBoardSize           = "board_size"
	CheckPurposeLength       = "purpose_length"
	CheckNameAvailable       = "name_available"
	CheckBalancedLedger      = "balanced_ledger"
	CheckDocumentsComplete   = "documents_complete"
	CheckBoardListed         = "board_listed"
	CheckCapitalDeclared     = "capital_declared"
	CheckSubmissionConfirmed = "submission_confirmed"
)

// Snapshot keys the validators read.
const (
	KeyCapitalSEK          = "capital_sek"
	KeyBoardMembers        = "board_members"
	KeyPurpose             = "purpose"
	KeyName                = "name"
	KeyReservedNames       = "reserved_names"
	KeyLedgerDebit         = "ledger_debit_sek"
	KeyLedgerCredit        = "ledger_credit_sek"
	KeyDocumentKinds       = "document_kinds"
	KeySubmissionConfirmed = "submission_confirmed"
)

// MinimumCapital checks the initial capital against the regulatory floor.
func MinimumCapital(snap workflow.Snapshot) workflow.Check {
	capital := snap.GetInt(KeyCapitalSEK)
	if capital >= MinimumCapitalSEK {
		return workflow.Pass(CheckMinimumCapital)
	}
	return workflow.Fail(CheckMinimumCapital, "CAPITAL_BELOW_MINIMUM",
		fmt.Sprintf("initial capital %d SEK is below the %d SEK minimum", capital, MinimumCapitalSEK))
}

// BoardSize checks that the board has at least the minimum number of members.
func BoardSize(snap workflow.Snapshot) workflow.Check {
	members := snap.GetStringSlice(KeyBoardMembers)
	if len(members) >= MinimumBoardSize {
		return workflow.Pass(CheckBoardSize)
	}
	return workflow.Fail(CheckBoardSize, "BOARD_TOO_SMALL",
		fmt.Sprintf("board has %d member(s), at least %d are required", len(members), MinimumBoardSize))
}

// PurposeLength checks the purpose description length in characters,
// not bytes.
func PurposeLength(snap workflow.Snapshot) workflow.Check {
	purpose := strings.TrimSpace(snap.GetString(KeyPurpose))
	if utf8.RuneCountInString(purpose) >= MinimumPurposeLength {
		return workflow.Pass(CheckPurposeLength)
	}
	return workflow.Fail(CheckPurposeLength, "PURPOSE_TOO_SHORT",
		fmt.Sprintf("purpose description is %d characters, at least %d are required",
			utf8.RuneCountInString(purpose), MinimumPurposeLength))
}

// NameAvailable checks the requested name against the reserved-names
// snapshot supplied with the instance data. Comparison is case-insensitive.
func NameAvailable(snap workflow.Snapshot) workflow.Check {
	name := strings.TrimSpace(snap.GetString(KeyName))
	if name == "" {
		return workflow.Fail(CheckNameAvailable, "NAME_MISSING", "foundation name is required")
	}
	for _, reserved := range snap.GetStringSlice(KeyReservedNames) {
		if strings.EqualFold(name, strings.TrimSpace(reserved)) {
			return workflow.Fail(CheckNameAvailable, "NAME_TAKEN",
				fmt.Sprintf("the name %q is already registered", name))
		}
	}
	return workflow.Pass(CheckNameAvailable)
}

// BalancedLedger checks that the opening balance sheet balances:
// total debit equals total credit.
func BalancedLedger(snap workflow.Snapshot) workflow.Check {
	debit := snap.GetInt(KeyLedgerDebit)
	credit := snap.GetInt(KeyLedgerCredit)
	if debit == credit {
		return workflow.Pass(CheckBalancedLedger)
	}
	return workflow.Fail(CheckBalancedLedger, "LEDGER_UNBALANCED",
		fmt.Sprintf("ledger is unbalanced: debit %d SEK, credit %d SEK", debit, credit))
}

// DocumentsComplete checks that every required document kind is present.
func DocumentsComplete(required []string) workflow.Guard {
	return func(snap workflow.Snapshot) []workflow.Check {
		present := make(map[string]bool)
		for _, kind := range snap.GetStringSlice(KeyDocumentKinds) {
			present[kind] = true
		}
		var checks []workflow.Check
		for _, kind := range required {
			if present[kind] {
				checks = append(checks, workflow.Pass(CheckDocumentsComplete))
				continue
			}
			checks = append(checks, workflow.Fail(CheckDocumentsComplete, "DOCUMENT_MISSING",
				fmt.Sprintf("required document %q is missing", kind)))
		}
		return checks
	}
}

// BoardListed checks that at least one board member has been entered.
// The size rule is enforced later by BoardSize; this only gates shape.
func BoardListed(snap workflow.Snapshot) workflow.Check {
	if len(snap.GetStringSlice(KeyBoardMembers)) > 0 {
		return workflow.Pass(CheckBoardListed)
	}
	return workflow.Fail(CheckBoardListed, "BOARD_MISSING", "at least one board member must be entered")
}

// CapitalDeclared checks that an initial capital amount has been
// entered. The regulatory floor is enforced later by MinimumCapital.
func CapitalDeclared(snap workflow.Snapshot) workflow.Check {
	if snap.GetInt(KeyCapitalSEK) > 0 {
		return workflow.Pass(CheckCapitalDeclared)
	}
	return workflow.Fail(CheckCapitalDeclared, "CAPITAL_MISSING", "initial capital must be declared")
}

// SubmissionConfirmed checks that the applicant has confirmed dispatch
// of the registration to the supervisory authority.
func SubmissionConfirmed(snap workflow.Snapshot) workflow.Check {
	if snap.GetBool(KeySubmissionConfirmed) {
		return workflow.Pass(CheckSubmissionConfirmed)
	}
	return workflow.Fail(CheckSubmissionConfirmed, "SUBMISSION_NOT_CONFIRMED",
		"submission to the supervisory authority must be confirmed")
}

// All composes validators into a guard that runs every one of them and
// returns all results. It never short-circuits: a snapshot failing
// three checks yields three failures.
func All(validators ...func(workflow.Snapshot) workflow.Check) workflow.Guard {
	return func(snap workflow.Snapshot) []workflow.Check {
		checks := make([]workflow.Check, 0, len(validators))
		for _, v := range validators {
			checks = append(checks, v(snap))
		}
		return checks
	}
}
