package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-enforcement
// LogEnforcement writes an audit entry to the enforcement_log table.
func LogEnforcement(db *sql.DB, entry EnforcementEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO enforcement_log (request_id, session_id, language, message, obligations, applied, backend, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID,
		nullIfEmpty(entry.SessionID),
		entry.Language,
		entry.Message,
		nullIfEmpty(entry.Obligations),
		nullIfEmpty(entry.Applied),
		nullIfEmpty(entry.Backend),
		nullIfEmpty(entry.Model),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log enforcement: %w", err)
	}
	return nil
}
// #endregion log-enforcement

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
