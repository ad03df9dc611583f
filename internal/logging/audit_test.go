package logging

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE enforcement_log (
		request_id  TEXT NOT NULL,
		session_id  TEXT,
		language    TEXT NOT NULL,
		message     TEXT NOT NULL,
		obligations TEXT,
		applied     TEXT,
		backend     TEXT,
		model       TEXT,
		created_at  TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-enforcement-tests
func TestLogEnforcement_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := EnforcementEntry{
		RequestID:   "req-1",
		SessionID:   "chat:abc",
		Language:    "en",
		Message:     "Should I drop him? There's a rumor about an ACL tear",
		Obligations: "assert-do-not-drop,calibrate-uncertainty",
		Applied:     "safety,boilerplate",
		Backend:     "gemini",
		Model:       "gemini-2.0-flash",
		CreatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogEnforcement(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM enforcement_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var requestID, applied string
	db.QueryRow("SELECT request_id, applied FROM enforcement_log").Scan(&requestID, &applied)
	if requestID != "req-1" {
		t.Errorf("expected request_id 'req-1', got %q", requestID)
	}
	if applied != "safety,boilerplate" {
		t.Errorf("expected applied tags, got %q", applied)
	}
}

func TestLogEnforcement_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	err := LogEnforcement(db, EnforcementEntry{
		RequestID: "req-2",
		Language:  "en",
		Message:   "Who plays tonight?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM enforcement_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogEnforcement_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	err := LogEnforcement(db, EnforcementEntry{
		RequestID: "req-3",
		Language:  "el",
		Message:   "Ποιον να βάλω βασικό;",
		CreatedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sessionID, obligations, applied, backend sql.NullString
	db.QueryRow("SELECT session_id, obligations, applied, backend FROM enforcement_log").Scan(
		&sessionID, &obligations, &applied, &backend,
	)
	if sessionID.Valid {
		t.Error("expected NULL session_id for empty string")
	}
	if obligations.Valid {
		t.Error("expected NULL obligations for empty string")
	}
	if applied.Valid {
		t.Error("expected NULL applied for empty string")
	}
	if backend.Valid {
		t.Error("expected NULL backend for empty string")
	}
}

func TestLogEnforcement_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	err := LogEnforcement(db, EnforcementEntry{RequestID: "req-4", Language: "en", Message: "hi"})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-enforcement-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	if result := nullIfEmpty(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	if result := nullIfEmpty("hello"); result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
