// Package sqlitestore implements the store and the reading journal on SQLite.
// It backs the bridge on a bench without the hosted backend and keeps the
// local journal of accepted readings.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // include driver

	"github.com/towet/wastemanagement/pkg/model"
	"github.com/towet/wastemanagement/pkg/store"
)

// SQLiteStore implements store.Store and store.Journal.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sqlx.DB
}

// pragmas are applied by the driver to every new connection. Setting them
// with Exec would only reach the one connection in the pool that ran it.
var pragmas = []string{
	"foreign_keys(1)",     // turn on foreign keys
	"cache_size(-20000)",  // cache size in kibibytes, approx 20Mb
	"journal_mode(WAL)",   // turn on write-ahead journaling mode
	"secure_delete(0)",    // we do not need to overwrite deleted data with zeroes
	"synchronous(NORMAL)", // this is the appropriate setting for WAL
	"temp_store(MEMORY)",  // store any temporary tables and indices in memory
	"busy_timeout(5000)",  // wait for the journal reader in another process
}

// errors
var (
	ErrListCancelled = errors.New("list cancelled")
)

var (
	_ store.Store   = &SQLiteStore{}
	_ store.Journal = &SQLiteStore{}
)

// New SQLite storage backend.
func New(dbSpec string) (*SQLiteStore, error) {
	db, err := openDB(dbSpec)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{
		db: db,
	}, nil
}

// Close the SQLiteStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// openDB opens a database. If it does not exist it is created and the schema is
// populated.  If it is memory based the schema is always created.
func openDB(dbSpec string) (*sqlx.DB, error) {
	inMemory := strings.Contains(dbSpec, ":memory:")

	dbNeedsCreation := true
	if !inMemory {
		_, err := os.Stat(dbSpec)
		dbNeedsCreation = os.IsNotExist(err)
	}

	db, err := sqlx.Open("sqlite", withPragmas(dbSpec))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if dbNeedsCreation {
		err := createSchema(db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("unable to create schema: %w", err)
		}
		slog.Info("created database", "dbSpec", dbSpec)
	}

	return db, nil
}

// GetSettings reads the singleton settings row.
func (s *SQLiteStore) GetSettings(ctx context.Context) (model.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row struct {
		COMPort        sql.NullString `db:"com_port"`
		TargetDeviceID sql.NullString `db:"target_device_id"`
	}

	err := s.db.GetContext(ctx, &row, "SELECT com_port, target_device_id FROM system_settings WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{}, store.ErrNotFound
	}
	if err != nil {
		return model.Settings{}, err
	}

	return model.Settings{
		COMPort:        row.COMPort.String,
		TargetDeviceID: row.TargetDeviceID.String,
	}, nil
}

// PutSettings replaces the singleton settings row.
func (s *SQLiteStore) PutSettings(ctx context.Context, settings model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO system_settings (id, com_port, target_device_id) VALUES (1, :com_port, :target_device_id)
		ON CONFLICT(id) DO UPDATE SET com_port = excluded.com_port, target_device_id = excluded.target_device_id`, settings)
	return err
}

// UpdateDeviceReading sets the fill level of a device and marks it online.
// Updating a device that does not exist is not an error.
func (s *SQLiteStore) UpdateDeviceReading(ctx context.Context, deviceID string, fillLevel int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE devices SET fill_level = ?, status = ?, updated_at = ? WHERE device_id = ?",
		fillLevel, string(model.StatusOnline), at.UnixMilli(), deviceID)
	return err
}

// GetDeviceName returns the display name of a device.
func (s *SQLiteStore) GetDeviceName(ctx context.Context, deviceID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name string
	err := s.db.GetContext(ctx, &name, "SELECT name FROM devices WHERE device_id = ?", deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return name, err
}

type deviceRow struct {
	DeviceID     string `db:"device_id"`
	Name         string `db:"name"`
	Location     string `db:"location"`
	Status       string `db:"status"`
	FillLevel    int    `db:"fill_level"`
	BatteryLevel int    `db:"battery_level"`
	UpdatedAt    int64  `db:"updated_at"`
}

// GetDevice returns a device.
func (s *SQLiteStore) GetDevice(ctx context.Context, deviceID string) (model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row deviceRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM devices WHERE device_id = ?", deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Device{}, store.ErrNotFound
	}
	if err != nil {
		return model.Device{}, err
	}
	return row.device(), nil
}

// ListDevices returns all devices ordered by id.
func (s *SQLiteStore) ListDevices(ctx context.Context) ([]model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []deviceRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM devices ORDER BY device_id")
	if err != nil {
		return nil, err
	}

	devices := make([]model.Device, 0, len(rows))
	for _, row := range rows {
		devices = append(devices, row.device())
	}
	return devices, nil
}

func (r deviceRow) device() model.Device {
	return model.Device{
		DeviceID:     r.DeviceID,
		Name:         r.Name,
		Location:     r.Location,
		Status:       model.DeviceStatus(r.Status),
		FillLevel:    r.FillLevel,
		BatteryLevel: r.BatteryLevel,
		UpdatedAt:    time.UnixMilli(r.UpdatedAt),
	}
}

// PutDevice inserts or replaces a device.
func (s *SQLiteStore) PutDevice(ctx context.Context, d model.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Status == "" {
		d.Status = model.StatusOffline
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO devices (device_id, name, location, status, fill_level, battery_level, updated_at)
		VALUES (:device_id, :name, :location, :status, :fill_level, :battery_level, :updated_at)`,
		deviceRow{
			DeviceID:     d.DeviceID,
			Name:         d.Name,
			Location:     d.Location,
			Status:       string(d.Status),
			FillLevel:    d.FillLevel,
			BatteryLevel: d.BatteryLevel,
			UpdatedAt:    d.UpdatedAt.UnixMilli(),
		})
	return err
}

// PutUser inserts or replaces a user profile.
func (s *SQLiteStore) PutUser(ctx context.Context, u model.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := string(u.Role)
	if role == "" {
		role = string(model.RoleUser)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO user_profiles (id, email, full_name, role) VALUES (?, ?, ?, ?)",
		u.ID, u.Email, u.FullName, role)
	return err
}

// ListUserIDs returns the ids of all registered users.
func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM user_profiles ORDER BY id")
	return ids, err
}

type notificationRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	DeviceID  string `db:"device_id"`
	Type      string `db:"type"`
	Title     string `db:"title"`
	Message   string `db:"message"`
	Read      bool   `db:"read"`
	CreatedAt int64  `db:"created_at"`
}

// InsertNotifications inserts all notifications in a single statement.
func (s *SQLiteStore) InsertNotifications(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	rows := make([]notificationRow, 0, len(notifications))
	for _, n := range notifications {
		row := notificationRow{
			ID:        n.ID,
			UserID:    n.UserID,
			DeviceID:  n.DeviceID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: now,
		}
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if !n.CreatedAt.IsZero() {
			row.CreatedAt = n.CreatedAt.UnixMilli()
		}
		rows = append(rows, row)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (id, user_id, device_id, type, title, message, read, created_at)
		VALUES (:id, :user_id, :device_id, :type, :title, :message, :read, :created_at)`, rows)
	return err
}

// ListNotifications returns the notifications of a user, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM notifications WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}

	notifications := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		notifications = append(notifications, model.Notification{
			ID:        r.ID,
			UserID:    r.UserID,
			DeviceID:  r.DeviceID,
			Type:      model.NotificationType(r.Type),
			Title:     r.Title,
			Message:   r.Message,
			Read:      r.Read,
			CreatedAt: time.UnixMilli(r.CreatedAt),
		})
	}
	return notifications, nil
}

// Log appends a reading to the journal.
func (s *SQLiteStore) Log(reading model.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExec("INSERT INTO readings (ts,device,fill_level) VALUES(:ts, :device, :fill_level)", reading)
	return err
}

// List streams journal entries in [since, until) newest first onto readingChan
// and closes it when done.
func (s *SQLiteStore) List(ctx context.Context, readingChan chan model.Reading, since, until time.Time, device ...string) error {
	defer close(readingChan)

	// before we perform query, make sure the context has not been cancelled
	select {
	case <-ctx.Done():
		return ErrListCancelled
	default:
		// continue
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sqlx.Rows
	var err error

	if len(device) == 0 {
		rows, err = s.db.QueryxContext(ctx, "SELECT * FROM readings WHERE ts >= ? AND ts < ? ORDER BY ts DESC", since.UnixMilli(), until.UnixMilli())
	} else {
		rows, err = s.db.QueryxContext(ctx, "SELECT * FROM readings WHERE ts >= ? AND ts < ? AND device = ? ORDER BY ts DESC", since.UnixMilli(), until.UnixMilli(), device[0])
	}

	if err != nil {
		return err
	}

	defer rows.Close()

	var reading model.Reading

	for rows.Next() {
		err := rows.StructScan(&reading)
		if err != nil {
			slog.Error("error scanning rows", "since", since, "until", until, "err", err)
			return err
		}

		select {
		case <-ctx.Done():
			slog.Info("list cancelled")
			return ErrListCancelled
		case readingChan <- reading:
		}
	}

	return rows.Err()
}

// withPragmas adds the pragmas to dbSpec as _pragma query parameters.
func withPragmas(dbSpec string) string {
	params := url.Values{}
	for _, pragma := range pragmas {
		params.Add("_pragma", pragma)
	}

	sep := "?"
	if strings.Contains(dbSpec, "?") {
		sep = "&"
	}
	return dbSpec + sep + params.Encode()
}
