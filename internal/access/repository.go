package access

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines the persistence interface for access codes.
// The Ledger is the only caller; it owns the live state and writes
// through on every mutation.
type Repository interface {
	List(ctx context.Context) ([]Code, error)
	Create(ctx context.Context, c *Code) error
	Update(ctx context.Context, c *Code) error
}

// SQLiteRepository stores access codes in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new access code repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all codes, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Code, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, code, note, created_by, created_at, expires_at, used_at, expired
		 FROM access_codes ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying access codes: %w", err)
	}
	defer rows.Close()

	var codes []Code
	for rows.Next() {
		var c Code
		var note, usedAt sql.NullString
		var createdAt, expiresAt string

		if err := rows.Scan(&c.ID, &c.DeviceID, &c.Code, &note, &c.CreatedBy,
			&createdAt, &expiresAt, &usedAt, &c.Expired); err != nil {
			return nil, fmt.Errorf("scanning access code: %w", err)
		}

		if note.Valid {
			c.Note = note.String
		}
		if c.CreatedAt, err = parseCodeTimestamp(createdAt); err != nil {
			return nil, err
		}
		if c.ExpiresAt, err = parseCodeTimestamp(expiresAt); err != nil {
			return nil, err
		}
		if usedAt.Valid {
			t, err := parseCodeTimestamp(usedAt.String)
			if err != nil {
				return nil, err
			}
			c.UsedAt = &t
		}

		codes = append(codes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access codes: %w", err)
	}
	return codes, nil
}

// Create inserts a new access code.
func (r *SQLiteRepository) Create(ctx context.Context, c *Code) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_codes (id, device_id, code, note, created_by, created_at, expires_at, used_at, expired)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DeviceID, c.Code,
		nullableString(c.Note), c.CreatedBy,
		c.CreatedAt.Format(time.RFC3339),
		c.ExpiresAt.Format(time.RFC3339),
		nullableTime(c.UsedAt), c.Expired,
	)
	if err != nil {
		return fmt.Errorf("inserting access code: %w", err)
	}
	return nil
}

// Update persists lifecycle changes (used_at, expired).
// Returns ErrCodeNotFound if the ID does not exist.
func (r *SQLiteRepository) Update(ctx context.Context, c *Code) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE access_codes SET used_at = ?, expired = ? WHERE id = ?",
		nullableTime(c.UsedAt), c.Expired, c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating access code: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrCodeNotFound
	}
	return nil
}

func parseCodeTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing access code timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullableString returns nil for empty strings. Used for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableTime returns nil for a nil pointer, or the RFC3339 string otherwise.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
