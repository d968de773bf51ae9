package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Binding runs a plugin action when a letter is committed.
// An empty Label matches every committed letter.
type Binding struct {
	ID         string
	Label      string
	PluginName string
	ActionName string
	Config     json.RawMessage
	Enabled    bool
	CreatedAt  time.Time
}

// BindingRepository provides CRUD operations for commit bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, label, plugin_name, action_name, config, enabled, created_at`

// Create inserts a new binding.
func (r *BindingRepository) Create(ctx context.Context, b *Binding) error {
	b.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Label, b.PluginName, b.ActionName, string(configOrEmpty(b.Config)), b.Enabled, b.CreatedAt,
	)
	return err
}

// GetByID retrieves a binding by its ID.
func (r *BindingRepository) GetByID(ctx context.Context, id string) (*Binding, error) {
	b, err := scanBinding(r.db.QueryRowContext(ctx,
		`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List retrieves all bindings, oldest first.
func (r *BindingRepository) List(ctx context.Context) ([]*Binding, error) {
	return r.query(ctx, `SELECT `+bindingColumns+` FROM bindings ORDER BY created_at, id`)
}

// ListForLabel retrieves the enabled bindings that apply to label, including
// the catch-all ones.
func (r *BindingRepository) ListForLabel(ctx context.Context, label string) ([]*Binding, error) {
	return r.query(ctx,
		`SELECT `+bindingColumns+` FROM bindings
		 WHERE enabled = 1 AND (label = '' OR label = ?)
		 ORDER BY created_at, id`,
		label,
	)
}

func (r *BindingRepository) query(ctx context.Context, query string, args ...any) ([]*Binding, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// Update updates an existing binding.
func (r *BindingRepository) Update(ctx context.Context, b *Binding) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bindings SET label = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		b.Label, b.PluginName, b.ActionName, string(configOrEmpty(b.Config)), b.Enabled, b.ID,
	)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

func scanBinding(row scanner) (*Binding, error) {
	b := &Binding{}
	var config string
	var enabled int
	if err := row.Scan(&b.ID, &b.Label, &b.PluginName, &b.ActionName, &config, &enabled, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Config = json.RawMessage(config)
	b.Enabled = enabled != 0
	return b, nil
}

func configOrEmpty(config json.RawMessage) json.RawMessage {
	if len(config) == 0 {
		return json.RawMessage("{}")
	}
	return config
}
