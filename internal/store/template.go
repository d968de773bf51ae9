package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// DefaultTolerance is the match tolerance given to templates created without one.
const DefaultTolerance = 1.5

// Template is a landmark template for one letter label.
type Template struct {
	ID        string
	Label     string
	Tolerance float64
	Samples   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Point is one stored landmark coordinate.
type Point struct {
	X, Y, Z float64
}

// TemplateRepository provides CRUD operations for letter templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

const templateColumns = `id, label, tolerance, samples, created_at, updated_at`

// Create inserts a new template. Labels are unique.
func (r *TemplateRepository) Create(ctx context.Context, t *Template) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Tolerance == 0 {
		t.Tolerance = DefaultTolerance
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO letter_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Label, t.Tolerance, t.Samples, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetByID retrieves a template by its ID.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*Template, error) {
	return r.getOne(ctx, `SELECT `+templateColumns+` FROM letter_templates WHERE id = ?`, id)
}

// GetByLabel retrieves the template for a label.
func (r *TemplateRepository) GetByLabel(ctx context.Context, label string) (*Template, error) {
	return r.getOne(ctx, `SELECT `+templateColumns+` FROM letter_templates WHERE label = ?`, label)
}

func (r *TemplateRepository) getOne(ctx context.Context, query string, arg any) (*Template, error) {
	t := &Template{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&t.ID, &t.Label, &t.Tolerance, &t.Samples, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List retrieves all templates ordered by label.
func (r *TemplateRepository) List(ctx context.Context) ([]*Template, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM letter_templates ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		if err := rows.Scan(&t.ID, &t.Label, &t.Tolerance, &t.Samples, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// Update updates label and tolerance of an existing template.
func (r *TemplateRepository) Update(ctx context.Context, t *Template) error {
	t.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx,
		`UPDATE letter_templates SET label = ?, tolerance = ?, updated_at = ? WHERE id = ?`,
		t.Label, t.Tolerance, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// Delete removes a template with its landmarks and samples.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM letter_templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// SetLandmarks replaces the trained landmarks of a template.
func (r *TemplateRepository) SetLandmarks(ctx context.Context, id string, points []Point) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE letter_templates SET updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
	}
	if err := affectedOne(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_landmarks WHERE template_id = ?`, id); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO template_landmarks (template_id, landmark_index, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range points {
		if _, err := stmt.ExecContext(ctx, id, i, p.X, p.Y, p.Z); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Landmarks returns the trained landmarks of a template in index order.
// An untrained template has none.
func (r *TemplateRepository) Landmarks(ctx context.Context, id string) ([]Point, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT x, y, z FROM template_landmarks WHERE template_id = ? ORDER BY landmark_index`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
