// Package supabasestore implements store.Store over the PostgREST API of a
// hosted Supabase project.
package supabasestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/towet/wastemanagement/pkg/model"
	"github.com/towet/wastemanagement/pkg/store"
)

const restPrefix = "/rest/v1/"

// APIError is the error body PostgREST returns.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %s (status %d, code %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("supabase: %s (status %d)", e.Message, e.StatusCode)
}

// SupabaseStore implements store.Store.
type SupabaseStore struct {
	client *resty.Client
}

var _ store.Store = &SupabaseStore{}

// New creates a store for the project at baseURL authenticated with key.
func New(baseURL, key string, timeout time.Duration) *SupabaseStore {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("apikey", key).
		SetAuthToken(key).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &SupabaseStore{client: client}
}

// Close releases idle connections.
func (s *SupabaseStore) Close() error {
	s.client.GetClient().CloseIdleConnections()
	return nil
}

func (s *SupabaseStore) request(ctx context.Context) *resty.Request {
	return s.client.R().SetContext(ctx).SetError(&APIError{})
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}

	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr.Message == "" {
		apiErr = &APIError{Message: strings.TrimSpace(resp.String())}
	}
	apiErr.StatusCode = resp.StatusCode()
	return apiErr
}

// GetSettings reads the singleton settings row.
func (s *SupabaseStore) GetSettings(ctx context.Context) (model.Settings, error) {
	var rows []struct {
		COMPort        *string `json:"com_port"`
		TargetDeviceID *string `json:"target_device_id"`
	}

	err := check(s.request(ctx).
		SetQueryParams(map[string]string{
			"select": "com_port,target_device_id",
			"id":     "eq.1",
		}).
		SetResult(&rows).
		Get(restPrefix + "system_settings"))
	if err != nil {
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if len(rows) == 0 {
		return model.Settings{}, store.ErrNotFound
	}

	var settings model.Settings
	if rows[0].COMPort != nil {
		settings.COMPort = *rows[0].COMPort
	}
	if rows[0].TargetDeviceID != nil {
		settings.TargetDeviceID = *rows[0].TargetDeviceID
	}
	return settings, nil
}

// UpdateDeviceReading sets the fill level of a device and marks it online.
func (s *SupabaseStore) UpdateDeviceReading(ctx context.Context, deviceID string, fillLevel int, at time.Time) error {
	err := check(s.request(ctx).
		SetQueryParam("device_id", "eq."+deviceID).
		SetHeader("Prefer", "return=minimal").
		SetBody(map[string]any{
			"fill_level": fillLevel,
			"status":     model.StatusOnline,
			"updated_at": at.UTC().Format(time.RFC3339Nano),
		}).
		Patch(restPrefix + "devices"))
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	return nil
}

// GetDeviceName returns the display name of a device.
func (s *SupabaseStore) GetDeviceName(ctx context.Context, deviceID string) (string, error) {
	var rows []struct {
		Name string `json:"name"`
	}

	err := check(s.request(ctx).
		SetQueryParams(map[string]string{
			"select":    "name",
			"device_id": "eq." + deviceID,
		}).
		SetResult(&rows).
		Get(restPrefix + "devices"))
	if err != nil {
		return "", fmt.Errorf("get device name: %w", err)
	}
	if len(rows) == 0 {
		return "", store.ErrNotFound
	}
	return rows[0].Name, nil
}

// ListUserIDs returns the ids of all registered users.
func (s *SupabaseStore) ListUserIDs(ctx context.Context) ([]string, error) {
	var rows []struct {
		ID string `json:"id"`
	}

	err := check(s.request(ctx).
		SetQueryParam("select", "id").
		SetResult(&rows).
		Get(restPrefix + "user_profiles"))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

type notificationRow struct {
	UserID   string                 `json:"user_id"`
	DeviceID string                 `json:"device_id"`
	Type     model.NotificationType `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
}

// InsertNotifications inserts all notifications in a single request.
func (s *SupabaseStore) InsertNotifications(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	rows := make([]notificationRow, 0, len(notifications))
	for _, n := range notifications {
		rows = append(rows, notificationRow{
			UserID:   n.UserID,
			DeviceID: n.DeviceID,
			Type:     n.Type,
			Title:    n.Title,
			Message:  n.Message,
		})
	}

	err := check(s.request(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(rows).
		Post(restPrefix + "notifications"))
	if err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}
