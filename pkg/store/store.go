// Package store contains the storage interface definitions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/towet/wastemanagement/pkg/model"
)

// ErrNotFound is returned when a point read matches no row.
var ErrNotFound = errors.New("not found")

// Store is the backend the bridge reads settings from and writes readings
// and notifications to.
type Store interface {
	GetSettings(ctx context.Context) (model.Settings, error)
	UpdateDeviceReading(ctx context.Context, deviceID string, fillLevel int, at time.Time) error
	GetDeviceName(ctx context.Context, deviceID string) (string, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	InsertNotifications(ctx context.Context, notifications []model.Notification) error
	Close() error
}

// Journal is a local append-only record of accepted readings.
type Journal interface {
	Log(reading model.Reading) error
	List(ctx context.Context, readingChan chan model.Reading, since, until time.Time, device ...string) error
	Close() error
}
