package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/towet/wastemanagement/pkg/model"
)

// ErrNoRecipients is returned when there are no users to notify.
var ErrNoRecipients = errors.New("no registered users")

// notification content
const (
	Title           = "Dustbin Almost Full"
	messageTemplate = "Device \"%s\" has reached %d%% capacity. Please schedule a pickup."
)

// Directory is the part of the store a burst needs.
type Directory interface {
	GetDeviceName(ctx context.Context, deviceID string) (string, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	InsertNotifications(ctx context.Context, notifications []model.Notification) error
}

// Notifier sends a notification burst when a device crosses the threshold.
type Notifier struct {
	dir    Directory
	logger *slog.Logger
}

// NewNotifier creates a Notifier. A nil logger means slog.Default().
func NewNotifier(dir Directory, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{dir: dir, logger: logger}
}

// Check feeds level into tracker and sends a burst if it crossed the
// threshold. Failures are logged and the burst is abandoned; the tracker is
// updated either way. Returns whether a burst was attempted.
func (n *Notifier) Check(ctx context.Context, tracker *Tracker, deviceID string, level int) bool {
	if !tracker.Observe(deviceID, level) {
		return false
	}

	n.logger.Info("device crossed threshold, sending notifications", "device", deviceID, "fill_level", level, "threshold", tracker.Threshold())

	count, err := n.Burst(ctx, deviceID, level)
	if err != nil {
		n.logger.Error("notification burst failed", "device", deviceID, "fill_level", level, "err", err)
		return true
	}

	n.logger.Info("created notifications", "device", deviceID, "count", count)
	return true
}

// Burst creates one alert notification per registered user in a single
// insert and returns how many were sent.
func (n *Notifier) Burst(ctx context.Context, deviceID string, level int) (int, error) {
	name, err := n.dir.GetDeviceName(ctx, deviceID)
	if err != nil {
		return 0, fmt.Errorf("could not fetch device details: %w", err)
	}

	userIDs, err := n.dir.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not fetch users: %w", err)
	}
	if len(userIDs) == 0 {
		return 0, ErrNoRecipients
	}

	notifications := BuildBurst(deviceID, name, level, userIDs)
	if err := n.dir.InsertNotifications(ctx, notifications); err != nil {
		return 0, fmt.Errorf("failed to create notifications: %w", err)
	}
	return len(notifications), nil
}

// BuildBurst returns one alert notification per user for deviceID.
func BuildBurst(deviceID, deviceName string, level int, userIDs []string) []model.Notification {
	message := Message(deviceName, level)

	notifications := make([]model.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		notifications = append(notifications, model.Notification{
			UserID:   id,
			DeviceID: deviceID,
			Type:     model.NotificationAlert,
			Title:    Title,
			Message:  message,
		})
	}
	return notifications
}

// Message is the body of the alert for a device at level.
func Message(deviceName string, level int) string {
	return fmt.Sprintf(messageTemplate, deviceName, level)
}
