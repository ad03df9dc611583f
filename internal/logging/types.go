package logging

import "time"

// #region enforcement-entry
// EnforcementEntry is a single row in the enforcement_log table. One row
// is written per generation, whether or not any rule fired, so the audit
// trail shows both interventions and clean passes.
type EnforcementEntry struct {
	RequestID   string
	SessionID   string
	Language    string
	Message     string
	Obligations string // comma-joined obligation tags, "" when none
	Applied     string // comma-joined fired-rule tags, "" when none
	Backend     string
	Model       string
	CreatedAt   time.Time
}
// #endregion enforcement-entry
