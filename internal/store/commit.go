package store

import (
	"context"
	"database/sql"
	"time"
)

// CommitKind distinguishes confirmed letters from word resets in the history.
type CommitKind string

const (
	CommitKindLetter CommitKind = "commit"
	CommitKindReset  CommitKind = "reset"
)

// Commit is one entry of a session's word history.
type Commit struct {
	ID        int64
	SessionID string
	Kind      CommitKind
	Label     string
	Appended  string
	WordAfter string
	CreatedAt time.Time
}

// CommitRepository stores the word history of sessions.
type CommitRepository struct {
	db *sql.DB
}

// Commits returns the commit repository for this store.
func (s *Store) Commits() *CommitRepository {
	return &CommitRepository{db: s.db}
}

// Append records c and sets its ID. CreatedAt defaults to now.
func (r *CommitRepository) Append(ctx context.Context, c *Commit) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Kind == "" {
		c.Kind = CommitKindLetter
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO commits (session_id, kind, label, appended, word_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.SessionID, string(c.Kind), c.Label, c.Appended, c.WordAfter, c.CreatedAt,
	)
	if err != nil {
		return err
	}
	c.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns a session's history in commit order.
func (r *CommitRepository) ListBySession(ctx context.Context, sessionID string) ([]Commit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, kind, label, appended, word_after, created_at
		 FROM commits WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commits []Commit
	for rows.Next() {
		var c Commit
		var kind string
		if err := rows.Scan(&c.ID, &c.SessionID, &kind, &c.Label, &c.Appended, &c.WordAfter, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Kind = CommitKind(kind)
		commits = append(commits, c)
	}
	return commits, rows.Err()
}
