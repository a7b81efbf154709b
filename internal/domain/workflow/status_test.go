package workflow

import "testing"

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusInProgress, false},
		{StatusBlocked, false},
		{StatusCompleted, true},
		{StatusRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("Status.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"in progress", StatusInProgress, true},
		{"completed", StatusCompleted, true},
		{"invalid", Status("INVALID"), false},
		{"empty", Status(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.expected {
				t.Errorf("Status.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDecision_IsValid(t *testing.T) {
	tests := []struct {
		decision Decision
		expected bool
	}{
		{DecisionApprove, true},
		{DecisionSign, true},
		{DecisionReject, true},
		{Decision("MAYBE"), false},
		{Decision(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			if got := tt.decision.IsValid(); got != tt.expected {
				t.Errorf("Decision.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}
