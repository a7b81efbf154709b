package compliance

import (
	"strings"
	"testing"

	"github.com/nordstift/foundation-console/internal/domain/workflow"
)

func TestMinimumCapital(t *testing.T) {
	tests := []struct {
		name     string
		capital  interface{}
		expected bool
	}{
		{"above minimum", 30000, true},
		{"exactly minimum", 25000, true},
		{"below minimum", 10000, false},
		{"zero", 0, false},
		{"missing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := workflow.Snapshot{}
			if tt.capital != nil {
				snap[KeyCapitalSEK] = tt.capital
			}
			check := MinimumCapital(snap)
			if check.Passed != tt.expected {
				t.Errorf("MinimumCapital() passed = %v, want %v (detail: %s)", check.Passed, tt.expected, check.Detail)
			}
			if !check.Passed && check.Code != "CAPITAL_BELOW_MINIMUM" {
				t.Errorf("unexpected code %q", check.Code)
			}
		})
	}
}

func TestBoardSize(t *testing.T) {
	tests := []struct {
		name     string
		members  []string
		expected bool
	}{
		{"three members", []string{"a", "b", "c"}, true},
		{"four members", []string{"a", "b", "c", "d"}, true},
		{"two members", []string{"a", "b"}, false},
		{"no members", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := workflow.Snapshot{KeyBoardMembers: tt.members}
			if check := BoardSize(snap); check.Passed != tt.expected {
				t.Errorf("BoardSize() passed = %v, want %v", check.Passed, tt.expected)
			}
		})
	}
}

func TestPurposeLength(t *testing.T) {
	long := strings.Repeat("fund scientific education in the north ", 3)

	tests := []struct {
		name     string
		purpose  string
		expected bool
	}{
		{"long enough", long, true},
		{"too short", "help people", false},
		{"empty", "", false},
		{"whitespace only", "                                                            ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := workflow.Snapshot{KeyPurpose: tt.purpose}
			if check := PurposeLength(snap); check.Passed != tt.expected {
				t.Errorf("PurposeLength() passed = %v, want %v", check.Passed, tt.expected)
			}
		})
	}
}

func TestPurposeLength_CountsRunesNotBytes(t *testing.T) {
	// 50 multibyte characters, more than 50 bytes but exactly 50 runes.
	purpose := strings.Repeat("å", 50)
	snap := workflow.Snapshot{KeyPurpose: purpose}
	if check := PurposeLength(snap); !check.Passed {
		t.Errorf("PurposeLength() should count characters, not bytes: %s", check.Detail)
	}
}

func TestNameAvailable(t *testing.T) {
	reserved := []string{"Stiftelsen Framtiden", "Nordiska Fonden"}

	tests := []struct {
		name     string
		input    string
		expected bool
		code     string
	}{
		{"available", "Stiftelsen Norden", true, ""},
		{"taken", "Stiftelsen Framtiden", false, "NAME_TAKEN"},
		{"taken case-insensitive", "stiftelsen framtiden", false, "NAME_TAKEN"},
		{"missing", "", false, "NAME_MISSING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := workflow.Snapshot{KeyName: tt.input, KeyReservedNames: reserved}
			check := NameAvailable(snap)
			if check.Passed != tt.expected {
				t.Errorf("NameAvailable() passed = %v, want %v", check.Passed, tt.expected)
			}
			if !check.Passed && check.Code != tt.code {
				t.Errorf("code = %q, want %q", check.Code, tt.code)
			}
		})
	}
}

func TestBalancedLedger(t *testing.T) {
	tests := []struct {
		name     string
		debit    int
		credit   int
		expected bool
	}{
		{"balanced", 50000, 50000, true},
		{"unbalanced", 50000, 45000, false},
		{"both zero", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := workflow.Snapshot{KeyLedgerDebit: tt.debit, KeyLedgerCredit: tt.credit}
			if check := BalancedLedger(snap); check.Passed != tt.expected {
				t.Errorf("BalancedLedger() passed = %v, want %v", check.Passed, tt.expected)
			}
		})
	}
}

func TestDocumentsComplete(t *testing.T) {
	guard := DocumentsComplete([]string{"statutes", "board_resolution", "bank_certificate"})

	snap := workflow.Snapshot{KeyDocumentKinds: []string{"statutes", "bank_certificate"}}
	checks := guard(snap)

	if len(checks) != 3 {
		t.Fatalf("got %d checks, want 3", len(checks))
	}
	failed := workflow.FailedChecks(checks)
	if len(failed) != 1 {
		t.Fatalf("got %d failures, want 1", len(failed))
	}
	if !strings.Contains(failed[0].Detail, "board_resolution") {
		t.Errorf("failure should name the missing document, got %q", failed[0].Detail)
	}
}

func TestAll_AggregatesEveryFailure(t *testing.T) {
	guard := All(MinimumCapital, BoardSize, PurposeLength, NameAvailable)

	// Spec scenario 1: capital 10000 (< 25000), two board members.
	snap := workflow.Snapshot{
		KeyCapitalSEK:   10000,
		KeyBoardMembers: []string{"anna", "bertil"},
		KeyPurpose:      strings.Repeat("support independent research into marine biology ", 2),
		KeyName:         "Stiftelsen Havet",
	}

	checks := guard(snap)
	if len(checks) != 4 {
		t.Fatalf("got %d checks, want 4 (one per validator, never short-circuited)", len(checks))
	}

	failed := workflow.FailedChecks(checks)
	if len(failed) != 2 {
		t.Fatalf("got %d failures, want 2 (capital and board size together)", len(failed))
	}

	codes := map[string]bool{}
	for _, c := range failed {
		codes[c.Code] = true
	}
	if !codes["CAPITAL_BELOW_MINIMUM"] || !codes["BOARD_TOO_SMALL"] {
		t.Errorf("expected capital and board failures, got %v", codes)
	}
}

func TestAll_PassesWhenEverySubCheckPasses(t *testing.T) {
	guard := All(MinimumCapital, BoardSize, PurposeLength, NameAvailable)

	// Spec scenario 2: corrected data.
	snap := workflow.Snapshot{
		KeyCapitalSEK:   30000,
		KeyBoardMembers: []string{"anna", "bertil", "cecilia"},
		KeyPurpose:      strings.Repeat("support independent research into marine biology ", 2),
		KeyName:         "Stiftelsen Havet",
	}

	checks := guard(snap)
	if !workflow.AllPassed(checks) {
		t.Errorf("all checks should pass, failures: %v", workflow.FailedChecks(checks))
	}
}
