package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"isucondition/internal/condition"
)

// Timestamps are stored as unix nanoseconds so ordering is numeric.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS devices (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id  TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	character  TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS conditions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id  TEXT NOT NULL,
	ts         INTEGER NOT NULL,
	is_sitting INTEGER NOT NULL,
	condition  TEXT NOT NULL,
	message    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS conditions_device_ts_idx ON conditions (device_id, ts);
CREATE TABLE IF NOT EXISTS alerts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id    TEXT NOT NULL,
	condition_ts INTEGER NOT NULL,
	severity     TEXT NOT NULL,
	channels     TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	UNIQUE (device_id, condition_ts)
);`

// SQLiteStore implements Repository on an embedded SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" keeps everything in process.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database.sqlite_path is required")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: SQLite serialises writers and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// UpsertDevice registers a device or updates its name and character.
func (s *SQLiteStore) UpsertDevice(ctx context.Context, device Device) error {
	now := s.now().UnixNano()
	_, err := s.db.ExecContext(ctx, `INSERT INTO devices (device_id, name, character, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE
		SET name = excluded.name, character = excluded.character, updated_at = excluded.updated_at`,
		device.DeviceID, device.Name, device.Character, now, now)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// GetDevice loads a device by its external id.
func (s *SQLiteStore) GetDevice(ctx context.Context, deviceID string) (Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, device_id, name, character, created_at, updated_at
		FROM devices WHERE device_id = ?`, deviceID)
	device, err := scanSQLiteDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	if err != nil {
		return Device{}, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

// ListDevices lists every device ordered by character.
func (s *SQLiteStore) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, device_id, name, character, created_at, updated_at
		FROM devices ORDER BY character, id`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		device, err := scanSQLiteDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// InsertConditions stores a batch of records in a single transaction.
func (s *SQLiteStore) InsertConditions(ctx context.Context, deviceID string, records []condition.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert conditions: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO conditions (device_id, ts, is_sitting, condition, message)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert conditions: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, deviceID, rec.Timestamp.UnixNano(), rec.IsSitting, rec.Condition, rec.Message); err != nil {
			return fmt.Errorf("insert conditions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert conditions: %w", err)
	}
	return nil
}

// ListConditions returns a device's history ordered by ascending timestamp.
func (s *SQLiteStore) ListConditions(ctx context.Context, deviceID string) ([]condition.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, ts, is_sitting, condition, message
		FROM conditions WHERE device_id = ? ORDER BY ts ASC, id ASC`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}
	return collectSQLiteConditions(rows)
}

// ListConditionsBefore returns the windowed history ordered by descending timestamp.
func (s *SQLiteStore) ListConditionsBefore(ctx context.Context, deviceID string, end time.Time, start *time.Time) ([]condition.Record, error) {
	var startNano sql.NullInt64
	if start != nil {
		startNano = sql.NullInt64{Int64: start.UnixNano(), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, ts, is_sitting, condition, message
		FROM conditions
		WHERE device_id = ? AND ts < ? AND (? IS NULL OR ts >= ?)
		ORDER BY ts DESC, id DESC`, deviceID, end.UnixNano(), startNano, startNano)
	if err != nil {
		return nil, fmt.Errorf("list conditions before: %w", err)
	}
	return collectSQLiteConditions(rows)
}

// InsertAlert persists an alert emission unless one exists for the same condition.
func (s *SQLiteStore) InsertAlert(ctx context.Context, alert AlertRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO alerts (device_id, condition_ts, severity, channels, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (device_id, condition_ts) DO NOTHING`,
		alert.DeviceID, alert.ConditionTS.UnixNano(), alert.Severity.String(), strings.Join(alert.Channels, ","), s.now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return n > 0, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *SQLiteStore) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, device_id, condition_ts, severity, channels, created_at
		FROM alerts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var (
			rec       AlertRecord
			tsNano    int64
			severity  string
			channels  string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &tsNano, &severity, &channels, &createdAt); err != nil {
			return nil, err
		}
		if rec.Severity, err = condition.ParseSeverity(severity); err != nil {
			return nil, fmt.Errorf("parse alert severity: %w", err)
		}
		rec.ConditionTS = time.Unix(0, tsNano)
		rec.CreatedAt = time.Unix(0, createdAt)
		if channels != "" {
			rec.Channels = strings.Split(channels, ",")
		}
		alerts = append(alerts, rec)
	}
	return alerts, rows.Err()
}

// DeleteAlertsBefore deletes historical alerts.
func (s *SQLiteStore) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE created_at < ?`, olderThan.UnixNano()); err != nil {
		return fmt.Errorf("delete alerts before: %w", err)
	}
	return nil
}

// DeleteAlert removes the alert record of one condition.
func (s *SQLiteStore) DeleteAlert(ctx context.Context, deviceID string, conditionTS time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE device_id = ? AND condition_ts = ?`, deviceID, conditionTS.UnixNano()); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDevice(row sqliteScanner) (Device, error) {
	var (
		device    Device
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&device.ID, &device.DeviceID, &device.Name, &device.Character, &createdAt, &updatedAt); err != nil {
		return Device{}, err
	}
	device.CreatedAt = time.Unix(0, createdAt)
	device.UpdatedAt = time.Unix(0, updatedAt)
	return device, nil
}

func collectSQLiteConditions(rows *sql.Rows) ([]condition.Record, error) {
	defer rows.Close()

	records := make([]condition.Record, 0)
	for rows.Next() {
		var (
			rec    condition.Record
			tsNano int64
		)
		if err := rows.Scan(&rec.DeviceID, &tsNano, &rec.IsSitting, &rec.Condition, &rec.Message); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, tsNano)
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ Repository = (*SQLiteStore)(nil)
