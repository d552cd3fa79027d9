package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/rdeploy/internal/util"
)

// CheckStatus is ordered by severity, so the worst of a set is its maximum.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

var statusNames = [...]string{StatusPass: "pass", StatusWarn: "warn", StatusFail: "fail"}

func (s CheckStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText makes statuses read as "pass", "warn" or "fail" in JSON.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult is one line of the report.
type CheckResult struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Check is a single diagnostic. Category groups checks in the report
// (CONFIG, SSH, DEPENDENCIES, REMOTE).
type Check interface {
	Name() string
	Category() string
	Run(ctx context.Context) CheckResult
}

// RunAll runs checks one after another; the remote ones share a session.
func RunAll(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		r := check.Run(ctx)
		if r.Name == "" {
			r.Name = check.Name()
		}
		r.Category = check.Category()
		results = append(results, r)
	}
	return results
}

// Categories lists result categories in the order they first appear.
func Categories(results []CheckResult) []string {
	var order []string
	seen := make(map[string]bool)
	for _, r := range results {
		if !seen[r.Category] {
			seen[r.Category] = true
			order = append(order, r.Category)
		}
	}
	return order
}

// Tally counts results per status.
type Tally struct {
	Pass, Warn, Fail int
}

func Count(results []CheckResult) Tally {
	var t Tally
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			t.Pass++
		case StatusWarn:
			t.Warn++
		default:
			t.Fail++
		}
	}
	return t
}

// Worst is the most severe status counted, StatusPass for an empty tally.
func (t Tally) Worst() CheckStatus {
	switch {
	case t.Fail > 0:
		return StatusFail
	case t.Warn > 0:
		return StatusWarn
	}
	return StatusPass
}

// Summary is the report's closing line.
func (t Tally) Summary() string {
	issues := t.Warn + t.Fail
	if issues == 0 {
		return "Everything looks good"
	}
	return fmt.Sprintf("%d %s found", issues, util.Pluralize(issues, "issue", "issues"))
}

func pass(msg string) CheckResult {
	return CheckResult{Status: StatusPass, Message: msg}
}

func warn(msg, suggestion string) CheckResult {
	return CheckResult{Status: StatusWarn, Message: msg, Suggestion: suggestion}
}

func fail(msg, suggestion string) CheckResult {
	return CheckResult{Status: StatusFail, Message: msg, Suggestion: suggestion}
}
