// Package storage provides SQLite-backed audit persistence for observed
// state transitions and ban alerts. The dashboard core never reads this
// data back; it exists for operators and the transitions API.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/takurot/susanoh/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db             *sql.DB
	maxTransitions int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/susanoh/audit.db.
func New(maxTransitions int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "susanoh", "audit.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxTransitions: maxTransitions}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		// trigger is a reserved word in SQLite, hence trigger_source.
		`CREATE TABLE IF NOT EXISTS transitions (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id           TEXT NOT NULL,
			from_state        TEXT NOT NULL,
			to_state          TEXT NOT NULL,
			trigger_source    TEXT NOT NULL,
			triggered_by_rule TEXT,
			evidence_summary  TEXT,
			recorded_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_recorded_at ON transitions(recorded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_user ON transitions(user_id)`,
		`CREATE TABLE IF NOT EXISTS ban_alerts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL,
			from_state  TEXT NOT NULL,
			summary     TEXT,
			recorded_at INTEGER NOT NULL,
			notified    INTEGER DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransition appends one transition and enforces the retention cap.
func (s *Storage) SaveTransition(tr models.TransitionLog) error {
	recordedAt := time.Now().UnixNano()
	if tr.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, tr.Timestamp); err == nil {
			recordedAt = ts.UnixNano()
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO transitions
			(user_id, from_state, to_state, trigger_source, triggered_by_rule, evidence_summary, recorded_at)
		VALUES (?,?,?,?,?,?,?)`,
		tr.UserID, tr.FromState, tr.ToState, tr.Trigger, tr.TriggeredByRule, tr.EvidenceSummary,
		recordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM transitions WHERE id NOT IN (
			SELECT id FROM transitions ORDER BY recorded_at DESC, id DESC LIMIT ?
		)`, s.maxTransitions); err != nil {
		return fmt.Errorf("failed to enforce transition cap: %w", err)
	}

	return tx.Commit()
}

// RecentTransitions returns the newest transitions first, at most limit.
func (s *Storage) RecentTransitions(limit int) ([]models.TransitionLog, error) {
	rows, err := s.db.Query(`
		SELECT user_id, from_state, to_state, trigger_source, triggered_by_rule, evidence_summary, recorded_at
		FROM transitions ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []models.TransitionLog
	for rows.Next() {
		var tr models.TransitionLog
		var recordedAtNano int64
		if err := rows.Scan(
			&tr.UserID, &tr.FromState, &tr.ToState, &tr.Trigger,
			&tr.TriggeredByRule, &tr.EvidenceSummary, &recordedAtNano,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.Timestamp = time.Unix(0, recordedAtNano).UTC().Format(time.RFC3339)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// TransitionsForUser returns one account's transitions, newest first.
func (s *Storage) TransitionsForUser(userID string, limit int) ([]models.TransitionLog, error) {
	rows, err := s.db.Query(`
		SELECT user_id, from_state, to_state, trigger_source, triggered_by_rule, evidence_summary, recorded_at
		FROM transitions WHERE user_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []models.TransitionLog
	for rows.Next() {
		var tr models.TransitionLog
		var recordedAtNano int64
		if err := rows.Scan(
			&tr.UserID, &tr.FromState, &tr.ToState, &tr.Trigger,
			&tr.TriggeredByRule, &tr.EvidenceSummary, &recordedAtNano,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.Timestamp = time.Unix(0, recordedAtNano).UTC().Format(time.RFC3339)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// SaveBanAlert records a ban notification attempt.
func (s *Storage) SaveBanAlert(userID, fromState, summary string, notified bool) error {
	_, err := s.db.Exec(`
		INSERT INTO ban_alerts (user_id, from_state, summary, recorded_at, notified)
		VALUES (?,?,?,?,?)`,
		userID, fromState, summary, time.Now().UnixNano(), boolToInt(notified),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ban alert: %w", err)
	}
	return nil
}

// CountTransitions returns the number of retained transitions.
func (s *Storage) CountTransitions() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transitions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transitions: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
