package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towet/wastemanagement/pkg/model"
)

type fakeDirectory struct {
	names     map[string]string
	users     []string
	nameErr   error
	usersErr  error
	insertErr error

	inserts [][]model.Notification
}

func (f *fakeDirectory) GetDeviceName(_ context.Context, deviceID string) (string, error) {
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return f.names[deviceID], nil
}

func (f *fakeDirectory) ListUserIDs(context.Context) ([]string, error) {
	return f.users, f.usersErr
}

func (f *fakeDirectory) InsertNotifications(_ context.Context, n []model.Notification) error {
	f.inserts = append(f.inserts, n)
	return f.insertErr
}

func newFake() *fakeDirectory {
	return &fakeDirectory{
		names: map[string]string{"bin-1": "Canteen"},
		users: []string{"u1", "u2", "u3"},
	}
}

func TestBurst(t *testing.T) {
	dir := newFake()
	n := NewNotifier(dir, nil)

	count, err := n.Burst(context.Background(), "bin-1", 95)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.Len(t, dir.inserts, 1)
	batch := dir.inserts[0]
	require.Len(t, batch, 3)

	for i, notification := range batch {
		assert.Equal(t, dir.users[i], notification.UserID)
		assert.Equal(t, "bin-1", notification.DeviceID)
		assert.Equal(t, model.NotificationAlert, notification.Type)
		assert.Equal(t, Title, notification.Title)
		assert.Contains(t, notification.Message, "Canteen")
		assert.Contains(t, notification.Message, "95")
	}
	assert.Equal(t, `Device "Canteen" has reached 95% capacity. Please schedule a pickup.`, batch[0].Message)
}

func TestBurstAbortsOnLookupFailure(t *testing.T) {
	dir := newFake()
	dir.nameErr = errors.New("boom")

	_, err := NewNotifier(dir, nil).Burst(context.Background(), "bin-1", 95)
	require.Error(t, err)
	assert.Empty(t, dir.inserts)

	dir = newFake()
	dir.usersErr = errors.New("boom")

	_, err = NewNotifier(dir, nil).Burst(context.Background(), "bin-1", 95)
	require.Error(t, err)
	assert.Empty(t, dir.inserts)
}

func TestBurstNoUsers(t *testing.T) {
	dir := newFake()
	dir.users = nil

	_, err := NewNotifier(dir, nil).Burst(context.Background(), "bin-1", 95)
	require.ErrorIs(t, err, ErrNoRecipients)
	assert.Empty(t, dir.inserts)
}

func TestBurstInsertFailure(t *testing.T) {
	dir := newFake()
	dir.insertErr = errors.New("insert failed")

	count, err := NewNotifier(dir, nil).Burst(context.Background(), "bin-1", 95)
	require.Error(t, err)
	assert.Zero(t, count)
	assert.Len(t, dir.inserts, 1)
}

func TestCheckSequence(t *testing.T) {
	dir := newFake()
	n := NewNotifier(dir, nil)
	tr := NewTracker(DefaultThreshold)

	for _, level := range []int{0, 50, 95, 97, 80, 93} {
		n.Check(context.Background(), tr, "bin-1", level)
	}

	require.Len(t, dir.inserts, 2)
	assert.Contains(t, dir.inserts[0][0].Message, "95%")
	assert.Contains(t, dir.inserts[1][0].Message, "93%")
}

func TestCheckUpdatesTrackerWhenBurstFails(t *testing.T) {
	dir := newFake()
	dir.nameErr = errors.New("boom")
	n := NewNotifier(dir, nil)
	tr := NewTracker(DefaultThreshold)

	assert.True(t, n.Check(context.Background(), tr, "bin-1", 95))

	last, _ := tr.Last("bin-1")
	assert.Equal(t, 95, last)

	// still above threshold, so no retry of the failed burst
	dir.nameErr = nil
	assert.False(t, n.Check(context.Background(), tr, "bin-1", 96))
	assert.Empty(t, dir.inserts)
}
