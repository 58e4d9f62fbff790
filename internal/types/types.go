package types

import "time"

// CheckStatus is the outcome of a single check cycle
type CheckStatus string

const (
	CheckChanged   CheckStatus = "changed"
	CheckUnchanged CheckStatus = "unchanged"
	CheckFailed    CheckStatus = "failed"
	CheckSkipped   CheckStatus = "skipped"
)

// CheckResult represents the outcome of one resolve-compare-notify-persist cycle.
// Resolved and Previous are empty when absent.
type CheckResult struct {
	CycleID   string        `json:"cycle_id"`
	Status    CheckStatus   `json:"status"`
	Resolved  string        `json:"resolved,omitempty"`
	Previous  string        `json:"previous,omitempty"`
	Changed   bool          `json:"changed"`
	Notified  int           `json:"notified"`
	Persisted bool          `json:"persisted"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// FirstRun reports whether no previous address was known
func (r CheckResult) FirstRun() bool {
	return r.Previous == "" && r.Resolved != ""
}
