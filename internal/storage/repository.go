package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"isucondition/internal/condition"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrDeviceNotFound indicates an unknown device id.
	ErrDeviceNotFound = errors.New("storage: device not found")
)

const (
	schemaSQL = `
    CREATE TABLE IF NOT EXISTS devices (
        id         BIGSERIAL PRIMARY KEY,
        device_id  TEXT NOT NULL UNIQUE,
        name       TEXT NOT NULL,
        character  TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE TABLE IF NOT EXISTS conditions (
        id         BIGSERIAL PRIMARY KEY,
        device_id  TEXT NOT NULL,
        ts         TIMESTAMPTZ NOT NULL,
        is_sitting BOOLEAN NOT NULL,
        condition  TEXT NOT NULL,
        message    TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS conditions_device_ts_idx ON conditions (device_id, ts);
    CREATE TABLE IF NOT EXISTS alerts (
        id           BIGSERIAL PRIMARY KEY,
        device_id    TEXT NOT NULL,
        condition_ts TIMESTAMPTZ NOT NULL,
        severity     TEXT NOT NULL,
        channels     TEXT[] NOT NULL,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        UNIQUE (device_id, condition_ts)
    );`

	upsertDeviceSQL = `INSERT INTO devices (device_id, name, character)
    VALUES ($1,$2,$3)
    ON CONFLICT (device_id) DO UPDATE
    SET name       = EXCLUDED.name,
        character  = EXCLUDED.character,
        updated_at = now();`

	deviceColumns = `id, device_id, name, character, created_at, updated_at`

	getDeviceSQL   = `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1;`
	listDevicesSQL = `SELECT ` + deviceColumns + ` FROM devices ORDER BY character, id;`

	insertConditionSQL = `INSERT INTO conditions (device_id, ts, is_sitting, condition, message)
    VALUES ($1,$2,$3,$4,$5);`

	conditionColumns = `device_id, ts, is_sitting, condition, message`

	listConditionsSQL = `SELECT ` + conditionColumns + `
    FROM conditions
    WHERE device_id = $1
    ORDER BY ts ASC, id ASC;`

	listConditionsBeforeSQL = `SELECT ` + conditionColumns + `
    FROM conditions
    WHERE device_id = $1
      AND ts < $2
      AND ($3::timestamptz IS NULL OR ts >= $3)
    ORDER BY ts DESC, id DESC;`

	insertAlertSQL = `INSERT INTO alerts (device_id, condition_ts, severity, channels)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (device_id, condition_ts) DO NOTHING;`

	listRecentAlertsSQL = `SELECT
        id,
        device_id,
        condition_ts,
        severity,
        channels,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	deleteAlertSQL = `DELETE FROM alerts WHERE device_id = $1 AND condition_ts = $2;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// DeviceStore defines operations for device registration.
type DeviceStore interface {
	UpsertDevice(ctx context.Context, device Device) error
	GetDevice(ctx context.Context, deviceID string) (Device, error)
	ListDevices(ctx context.Context) ([]Device, error)
}

// ConditionStore defines operations for condition history.
type ConditionStore interface {
	InsertConditions(ctx context.Context, deviceID string, records []condition.Record) error
	// ListConditions returns the full history of a device, oldest first.
	ListConditions(ctx context.Context, deviceID string) ([]condition.Record, error)
	// ListConditionsBefore returns records with start <= ts < end, newest first.
	ListConditionsBefore(ctx context.Context, deviceID string, end time.Time, start *time.Time) ([]condition.Record, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	// InsertAlert records an alert and reports false when it was already recorded.
	InsertAlert(ctx context.Context, alert AlertRecord) (bool, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
	// DeleteAlert removes the record of one condition so it can alert again.
	DeleteAlert(ctx context.Context, deviceID string, conditionTS time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Repository is the full storage surface used by the application.
type Repository interface {
	DeviceStore
	ConditionStore
	AlertStore
	Close()
}

// Store implements Repository on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock is dropped with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertDevice registers a device or updates its name and character.
func (s *Store) UpsertDevice(ctx context.Context, device Device) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, upsertDeviceSQL, device.DeviceID, device.Name, device.Character); err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// GetDevice loads a device by its external id.
func (s *Store) GetDevice(ctx context.Context, deviceID string) (Device, error) {
	pool, err := s.getPool()
	if err != nil {
		return Device{}, err
	}
	device, err := scanDevice(pool.QueryRow(ctx, getDeviceSQL, deviceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	if err != nil {
		return Device{}, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

// ListDevices lists every device ordered by character.
func (s *Store) ListDevices(ctx context.Context) ([]Device, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDevicesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list devices: %w", queryErr)
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		device, scanErr := scanDevice(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		devices = append(devices, device)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return devices, nil
}

// InsertConditions stores a batch of records in a single transaction.
func (s *Store) InsertConditions(ctx context.Context, deviceID string, records []condition.Record) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert conditions: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertConditionSQL, deviceID, rec.Timestamp, rec.IsSitting, rec.Condition, rec.Message)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert conditions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert conditions: %w", err)
	}
	return nil
}

// ListConditions returns a device's history ordered by ascending timestamp.
func (s *Store) ListConditions(ctx context.Context, deviceID string) ([]condition.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listConditionsSQL, deviceID)
	if queryErr != nil {
		return nil, fmt.Errorf("list conditions: %w", queryErr)
	}
	return collectConditions(rows)
}

// ListConditionsBefore returns the windowed history ordered by descending timestamp.
func (s *Store) ListConditionsBefore(ctx context.Context, deviceID string, end time.Time, start *time.Time) ([]condition.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listConditionsBeforeSQL, deviceID, end, start)
	if queryErr != nil {
		return nil, fmt.Errorf("list conditions before: %w", queryErr)
	}
	return collectConditions(rows)
}

// InsertAlert persists an alert emission unless one exists for the same condition.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, insertAlertSQL,
		alert.DeviceID,
		alert.ConditionTS,
		alert.Severity.String(),
		alert.Channels,
	)
	if execErr != nil {
		return false, fmt.Errorf("insert alert: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var rec AlertRecord
		var severity string
		if err := rows.Scan(
			&rec.ID,
			&rec.DeviceID,
			&rec.ConditionTS,
			&severity,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if rec.Severity, err = condition.ParseSeverity(severity); err != nil {
			return nil, fmt.Errorf("parse alert severity: %w", err)
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

// DeleteAlert removes the alert record of one condition.
func (s *Store) DeleteAlert(ctx context.Context, deviceID string, conditionTS time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertSQL, deviceID, conditionTS); execErr != nil {
		return fmt.Errorf("delete alert: %w", execErr)
	}
	return nil
}

func scanDevice(row pgx.Row) (Device, error) {
	var device Device
	err := row.Scan(
		&device.ID,
		&device.DeviceID,
		&device.Name,
		&device.Character,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	return device, err
}

func collectConditions(rows pgx.Rows) ([]condition.Record, error) {
	defer rows.Close()

	records := make([]condition.Record, 0)
	for rows.Next() {
		var rec condition.Record
		if err := rows.Scan(
			&rec.DeviceID,
			&rec.Timestamp,
			&rec.IsSitting,
			&rec.Condition,
			&rec.Message,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

var (
	_ Repository     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
