package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Repository defines the persistence interface for devices.
// The Registry is the only caller; it holds the authoritative state and
// writes through on every mutation.
type Repository interface {
	List(ctx context.Context) ([]Device, error)
	GetByID(ctx context.Context, id string) (*Device, error)
	Create(ctx context.Context, d *Device) error
	Update(ctx context.Context, d *Device) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository stores devices in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = "id, name, variant, online, locked, door_open, battery_pct, temp_c, alerts, last_seen_at, created_at, updated_at"

// List returns all devices ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+deviceColumns+" FROM devices ORDER BY created_at, id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// GetByID returns a single device.
// Returns ErrDeviceNotFound if the ID does not exist.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id = ?", id,
	)

	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Create inserts a new device.
// Returns ErrDeviceExists if the ID is already taken.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	alerts, err := marshalAlerts(d.Alerts)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, string(d.Variant),
		d.Online, d.Locked, d.DoorOpen,
		d.BatteryPct, nullableFloat(d.TempC), alerts,
		d.LastSeenAt.Format(time.RFC3339),
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update persists the full mutable state of a device.
// Returns ErrDeviceNotFound if the ID does not exist.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	alerts, err := marshalAlerts(d.Alerts)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices
		 SET name = ?, variant = ?, online = ?, locked = ?, door_open = ?,
		     battery_pct = ?, temp_c = ?, alerts = ?, last_seen_at = ?, updated_at = ?
		 WHERE id = ?`,
		d.Name, string(d.Variant),
		d.Online, d.Locked, d.DoorOpen,
		d.BatteryPct, nullableFloat(d.TempC), alerts,
		d.LastSeenAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device. Access codes cascade via the schema.
// Returns ErrDeviceNotFound if the ID does not exist.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanDevice.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice reads one device row.
func scanDevice(s scanner) (*Device, error) {
	var d Device
	var variant, alertsJSON string
	var tempC sql.NullFloat64
	var lastSeenAt, createdAt, updatedAt string

	err := s.Scan(&d.ID, &d.Name, &variant,
		&d.Online, &d.Locked, &d.DoorOpen,
		&d.BatteryPct, &tempC, &alertsJSON,
		&lastSeenAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.Variant = Variant(variant)
	if tempC.Valid {
		t := tempC.Float64
		d.TempC = &t
	}

	if alertsJSON != "" {
		if err := json.Unmarshal([]byte(alertsJSON), &d.Alerts); err != nil {
			return nil, fmt.Errorf("parsing device alerts: %w", err)
		}
	}

	if d.LastSeenAt, err = parseTimestamp(lastSeenAt); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}

	return &d, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing device timestamp %q: %w", s, err)
	}
	return t, nil
}

// marshalAlerts encodes the alert set as a JSON array, never null.
func marshalAlerts(alerts []string) (string, error) {
	if alerts == nil {
		alerts = []string{}
	}
	b, err := json.Marshal(alerts)
	if err != nil {
		return "", fmt.Errorf("marshalling device alerts: %w", err)
	}
	return string(b), nil
}

// nullableFloat returns nil for a nil pointer, or the value otherwise.
// Used for nullable REAL columns in SQLite.
func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
