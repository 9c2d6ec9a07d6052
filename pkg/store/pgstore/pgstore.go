// Package pgstore implements store.Store over a direct Postgres connection to
// the backend database.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/towet/wastemanagement/pkg/model"
	"github.com/towet/wastemanagement/pkg/store"
)

// Config holds the connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN returns the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// PGStore implements store.Store.
type PGStore struct {
	db *sqlx.DB
}

var _ store.Store = &PGStore{}

// New connects to Postgres and verifies the connection.
func New(cfg Config) (*PGStore, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PGStore{db: db}, nil
}

// NewFromDB wraps an existing connection.
func NewFromDB(db *sqlx.DB) *PGStore {
	return &PGStore{db: db}
}

// Close the database connection.
func (s *PGStore) Close() error {
	return s.db.Close()
}

// GetSettings reads the singleton settings row.
func (s *PGStore) GetSettings(ctx context.Context) (model.Settings, error) {
	var row struct {
		COMPort        sql.NullString `db:"com_port"`
		TargetDeviceID sql.NullString `db:"target_device_id"`
	}

	err := s.db.GetContext(ctx, &row, "SELECT com_port, target_device_id FROM system_settings WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{}, store.ErrNotFound
	}
	if err != nil {
		return model.Settings{}, wrap("get settings", err)
	}

	return model.Settings{
		COMPort:        row.COMPort.String,
		TargetDeviceID: row.TargetDeviceID.String,
	}, nil
}

// UpdateDeviceReading sets the fill level of a device and marks it online.
func (s *PGStore) UpdateDeviceReading(ctx context.Context, deviceID string, fillLevel int, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE devices SET fill_level = $1, status = $2, updated_at = $3 WHERE device_id = $4",
		fillLevel, string(model.StatusOnline), at.UTC(), deviceID)
	return wrap("update device", err)
}

// GetDeviceName returns the display name of a device.
func (s *PGStore) GetDeviceName(ctx context.Context, deviceID string) (string, error) {
	var name string
	err := s.db.GetContext(ctx, &name, "SELECT name FROM devices WHERE device_id = $1", deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return name, wrap("get device name", err)
}

// ListUserIDs returns the ids of all registered users.
func (s *PGStore) ListUserIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM user_profiles")
	if err != nil {
		return nil, wrap("list users", err)
	}
	return ids, nil
}

type notificationRow struct {
	UserID   string `db:"user_id"`
	DeviceID string `db:"device_id"`
	Type     string `db:"type"`
	Title    string `db:"title"`
	Message  string `db:"message"`
}

// InsertNotifications inserts all notifications in one multi-row INSERT.
func (s *PGStore) InsertNotifications(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	rows := make([]notificationRow, 0, len(notifications))
	for _, n := range notifications {
		rows = append(rows, notificationRow{
			UserID:   n.UserID,
			DeviceID: n.DeviceID,
			Type:     string(n.Type),
			Title:    n.Title,
			Message:  n.Message,
		})
	}

	_, err := s.db.NamedExecContext(ctx,
		"INSERT INTO notifications (user_id, device_id, type, title, message) VALUES (:user_id, :device_id, :type, :title, :message)",
		rows)
	return wrap("insert notifications", err)
}

// wrap adds the operation and, for server errors, the Postgres error code.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %s (%s): %w", op, pqErr.Code.Name(), pqErr.Code, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
