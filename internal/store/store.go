// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/zetatrack/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for the credential cache and local session history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			score INTEGER NOT NULL,
			duration_s INTEGER,
			user_id TEXT NOT NULL,
			remote_saved INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_problems (
			session_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			latency_ms INTEGER NOT NULL,
			op TEXT NOT NULL,
			PRIMARY KEY (session_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_session_problems_op ON session_problems(op);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Values returns the stored values for keys. Missing keys are absent from the result.
func (s *Store) Values(ctx context.Context, keys ...string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = "?"
		args[i] = k
	}
	query := fmt.Sprintf(`SELECT key, value FROM kv WHERE key IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetValues writes every value in a single transaction.
func (s *Store) SetValues(ctx context.Context, values map[string]string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	for k, v := range values {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO kv (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertSession stores a finalized session and its problems.
func (s *Store) InsertSession(ctx context.Context, session model.Session, userID string, remoteSaved bool) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var duration any
	if session.DetectedDurationSeconds != nil {
		duration = *session.DetectedDurationSeconds
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, score, duration_s, user_id, remote_saved)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.StartedAt.Format(time.RFC3339Nano),
		session.EndedAt.Format(time.RFC3339Nano),
		session.Score,
		duration,
		userID,
		boolToInt(remoteSaved),
	); err != nil {
		return err
	}

	if len(session.Problems) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO session_problems (session_id, idx, question, answer, latency_ms, op)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, p := range session.Problems {
			if _, err = stmt.ExecContext(ctx, session.ID, i, p.Question, p.Answer, p.LatencyMs, string(p.OperationType)); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// MarkRemoteSaved records that a cached session reached the remote store.
func (s *Store) MarkRemoteSaved(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET remote_saved = 1 WHERE id = ?`, id)
	return err
}

// ListSessions returns cached sessions with their problems, newest first.
// A positive last limits the result to that many sessions.
func (s *Store) ListSessions(ctx context.Context, last int) ([]model.StoredSession, error) {
	query := `SELECT id, ended_at, score, user_id, remote_saved FROM sessions ORDER BY ended_at DESC`
	var args []any
	if last > 0 {
		query += ` LIMIT ?`
		args = append(args, last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.StoredSession
	index := map[string]int{}
	for rows.Next() {
		var sess model.StoredSession
		var endedAt string
		var remote int
		if err := rows.Scan(&sess.ID, &endedAt, &sess.Score, &sess.UserID, &remote); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		sess.Timestamp = parsed
		sess.Remote = remote != 0
		index[sess.ID] = len(sessions)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	problems, err := s.listProblems(ctx, sessions)
	if err != nil {
		return nil, err
	}
	for id, list := range problems {
		sessions[index[id]].Problems = list
	}
	return sessions, nil
}

func (s *Store) listProblems(ctx context.Context, sessions []model.StoredSession) (map[string][]model.Problem, error) {
	placeholders := make([]string, len(sessions))
	args := make([]any, len(sessions))
	for i, sess := range sessions {
		placeholders[i] = "?"
		args[i] = sess.ID
	}
	query := fmt.Sprintf(`SELECT session_id, question, answer, latency_ms, op
		FROM session_problems
		WHERE session_id IN (%s)
		ORDER BY session_id, idx`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[string][]model.Problem{}
	for rows.Next() {
		var id, op string
		var p model.Problem
		if err := rows.Scan(&id, &p.Question, &p.Answer, &p.LatencyMs, &op); err != nil {
			return nil, err
		}
		p.OperationType = model.OperationType(op)
		result[id] = append(result[id], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// OperationAggregates sums problems per operation over the most recent sessions.
func (s *Store) OperationAggregates(ctx context.Context, window int) ([]model.OperationAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_sessions AS (
		SELECT id FROM sessions
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT p.op, COUNT(*) AS n, SUM(p.latency_ms) AS latency_sum_ms,
		SUM(CASE WHEN p.answer = ? THEN 1 ELSE 0 END) AS placeholders
	FROM session_problems p
	JOIN recent_sessions r ON r.id = p.session_id
	GROUP BY p.op`

	rows, err := s.db.QueryContext(ctx, query, window, model.UltraFastAnswer)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.OperationAggregate
	for rows.Next() {
		var agg model.OperationAggregate
		var op string
		if err := rows.Scan(&op, &agg.Count, &agg.LatencySumMs, &agg.Placeholders); err != nil {
			return nil, err
		}
		agg.Operation = model.OperationType(op)
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
