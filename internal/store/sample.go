package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Sample represents a recorded template sample.
type Sample struct {
	ID          int64           `json:"id"`
	TemplateID  string          `json:"template_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SampleRepository provides access to recorded template samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Add appends samples to a template in a single transaction and updates the
// template's sample count. It returns the new count.
func (r *SampleRepository) Add(ctx context.Context, templateID string, samples []json.RawMessage) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sample_index) + 1, 0) FROM template_samples WHERE template_id = ?`,
		templateID,
	).Scan(&next); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO template_samples (template_id, sample_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, data := range samples {
		if _, err := stmt.ExecContext(ctx, templateID, next+i, string(data)); err != nil {
			return 0, err
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM template_samples WHERE template_id = ?`, templateID,
	).Scan(&count); err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE letter_templates SET samples = ?, updated_at = ? WHERE id = ?`,
		count, time.Now(), templateID)
	if err != nil {
		return 0, err
	}
	if err := affectedOne(result); err != nil {
		return 0, err
	}

	return count, tx.Commit()
}

// ListByTemplate retrieves all samples for a template.
func (r *SampleRepository) ListByTemplate(ctx context.Context, templateID string) ([]Sample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, template_id, sample_index, data, created_at
		 FROM template_samples
		 WHERE template_id = ?
		 ORDER BY sample_index`,
		templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.TemplateID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// DeleteByTemplate removes all samples for a template and zeroes its count.
func (r *SampleRepository) DeleteByTemplate(ctx context.Context, templateID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_samples WHERE template_id = ?`, templateID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE letter_templates SET samples = 0, updated_at = ? WHERE id = ?`, time.Now(), templateID); err != nil {
		return err
	}
	return tx.Commit()
}
