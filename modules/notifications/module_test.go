package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/example/chat-sync-client/events"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

func TestModule_CollectsNotifications(t *testing.T) {
	m := NewModule(DefaultConfig(), &mockLogger{})
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	ctx := context.Background()

	stamped := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, m.handleNotification(ctx, events.NotificationEvent{Payload: json.RawMessage(`{"title":"first"}`), Timestamp: stamped}, nil))
	require.NoError(t, m.handleNotification(ctx, events.NotificationEvent{Payload: json.RawMessage(`{"title":"second"}`)}, nil))

	resp, err := m.recent(ctx, RecentRequest{}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, resp.Count)
	assert.JSONEq(t, `{"title":"second"}`, string(resp.Notifications[0].Payload))
	assert.Equal(t, fixed, resp.Notifications[0].ReceivedAt)
	assert.Equal(t, stamped, resp.Notifications[1].ReceivedAt)

	status := m.Health(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, 2, status.Details["stored"])

	require.NoError(t, m.handleCredentialChanged(ctx, events.CredentialChangedEvent{MemberID: "m-alice", Authenticated: true}, nil))
	assert.Equal(t, 2, m.Inbox().Len())
	require.NoError(t, m.handleCredentialChanged(ctx, events.CredentialChangedEvent{Authenticated: false}, nil))
	assert.Equal(t, 0, m.Inbox().Len())
}

func TestServices_RecentAndClear(t *testing.T) {
	m := NewModule(Config{Capacity: 2}, &mockLogger{})
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, m.handleNotification(ctx, events.NotificationEvent{Payload: json.RawMessage(`"` + title + `"`)}, nil))
	}

	tests := []struct {
		name    string
		req     RecentRequest
		want    int
		wantErr bool
	}{
		{name: "default", req: RecentRequest{}, want: 2},
		{name: "limited", req: RecentRequest{Limit: 1}, want: 1},
		{name: "negative", req: RecentRequest{Limit: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := m.recent(ctx, tt.req, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("recent() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if resp.Count != tt.want {
				t.Errorf("recent().Count = %v, want %v", resp.Count, tt.want)
			}
		})
	}

	cleared, err := m.clear(ctx, ClearRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared.Cleared)

	resp, err := m.recent(ctx, RecentRequest{}, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Notifications)
}
