package workflow

// Check is the outcome of a single compliance validator. A step may
// run several checks; the step passes iff every check passed, and
// every failing check is reported so the user can correct all issues
// in one pass.
type Check struct {
	Kind   string `json:"kind"`
	Passed bool   `json:"passed"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Pass builds a passing check.
func Pass(kind string) Check {
	return Check{Kind: kind, Passed: true}
}

// Fail builds a failing check with a reason code and human detail.
func Fail(kind, code, detail string) Check {
	return Check{Kind: kind, Passed: false, Code: code, Detail: detail}
}

// AllPassed reports whether every check in the slice passed.
func AllPassed(checks []Check) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// FailedChecks returns only the failing checks, preserving order.
func FailedChecks(checks []Check) []Check {
	var failed []Check
	for _, c := range checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}
