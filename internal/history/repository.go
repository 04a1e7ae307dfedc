// Package history keeps a log of hub activity transitions in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// List limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// timeFormat sorts lexically in UTC.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrInvalidEntry is returned by Create for entries without a hub.
var ErrInvalidEntry = errors.New("history: invalid entry")

// Entry is one recorded change of a hub's current activity.
type Entry struct {
	ID               string    `json:"id"`
	Hub              string    `json:"hub"`
	PreviousActivity string    `json:"previous_activity"`
	CurrentActivity  string    `json:"current_activity"`
	CurrentSlug      string    `json:"current_slug"`
	CurrentLabel     string    `json:"current_label,omitempty"`
	Off              bool      `json:"off"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Repository stores and lists transitions.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, hub string, limit int) ([]Entry, error)
}

// SQLiteRepository implements Repository on the activity_transitions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts e, filling ID and OccurredAt when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.Hub == "" {
		return fmt.Errorf("%w: hub is required", ErrInvalidEntry)
	}
	if e.ID == "" {
		e.ID = "trn-" + uuid.NewString()[:8]
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	e.OccurredAt = e.OccurredAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_transitions
		 (id, hub, previous_activity, current_activity, current_slug, current_label, off, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Hub, e.PreviousActivity, e.CurrentActivity, e.CurrentSlug, e.CurrentLabel,
		e.Off, e.OccurredAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

// ClampLimit coerces a requested page size to [1, MaxLimit], with
// DefaultLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// List returns the most recent transitions of hub, newest first.
func (r *SQLiteRepository) List(ctx context.Context, hub string, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, hub, previous_activity, current_activity, current_slug, current_label, off, occurred_at
		 FROM activity_transitions
		 WHERE hub = ?
		 ORDER BY occurred_at DESC, rowid DESC
		 LIMIT ?`,
		hub, ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &e.Hub, &e.PreviousActivity, &e.CurrentActivity,
			&e.CurrentSlug, &e.CurrentLabel, &e.Off, &at); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		if e.OccurredAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parsing occurred_at %q: %w", at, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return entries, nil
}
