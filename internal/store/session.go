package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Session is one recorded sampler run.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	FinalWord string
}

// SessionRepository provides access to recorded sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. StartedAt defaults to now.
func (r *SessionRepository) Create(ctx context.Context, sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, final_word) VALUES (?, ?, ?)`,
		sess.ID, sess.StartedAt, sess.FinalWord,
	)
	return err
}

// End marks a session finished and records the word it ended with.
func (r *SessionRepository) End(ctx context.Context, id string, finalWord string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, final_word = ? WHERE id = ?`,
		at, finalWord, id,
	)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, final_word FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves sessions, most recent first. limit <= 0 returns all.
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*Session, error) {
	query := `SELECT id, started_at, ended_at, final_word FROM sessions ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.StartedAt, &ended, &sess.FinalWord); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}
