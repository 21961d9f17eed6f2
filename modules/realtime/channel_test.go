package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/example/chat-sync-client/modules/backend"
	"github.com/example/chat-sync-client/modules/backend/backendtest"
	"github.com/example/chat-sync-client/modules/credentials"
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

// statusRecorder collects status signals from a channel.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []domain.ConnectionStatus
}

func (r *statusRecorder) record(change StatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, change.Status)
}

func (r *statusRecorder) count(status domain.ConnectionStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.statuses {
		if s == status {
			n++
		}
	}
	return n
}

const waitFor = 3 * time.Second
const tick = 10 * time.Millisecond

func startBackend(t *testing.T) *backendtest.Server {
	t.Helper()
	server, err := backendtest.Start(backendtest.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func aliceCredential(t *testing.T, server *backendtest.Server) domain.Credential {
	t.Helper()
	token, err := server.IssueToken("m-alice", "alice")
	require.NoError(t, err)
	return domain.Credential{Token: token, MemberID: "m-alice"}
}

func testConfig(name, rawURL string) Config {
	cfg := DefaultConfig(name, rawURL)
	cfg.HandshakeTimeout = time.Second
	cfg.BaseRetryDelay = 20 * time.Millisecond
	cfg.MaxRetryDelay = 100 * time.Millisecond
	return cfg
}

func TestChannel_RefusesIncompleteCredential(t *testing.T) {
	server := startBackend(t)
	channel := NewChannel(testConfig(ChannelMessaging, server.SocketURL(backendtest.ChannelMessaging)), &mockLogger{})
	defer channel.Close()

	tests := []struct {
		name string
		cred domain.Credential
	}{
		{name: "empty", cred: domain.Credential{}},
		{name: "token only", cred: domain.Credential{Token: "t"}},
		{name: "member only", cred: domain.Credential{MemberID: "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := channel.Connect(context.Background(), tt.cred)
			assert.ErrorIs(t, err, ErrIncompleteCredential)
		})
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, server.Hub().Accepted())
	assert.Equal(t, domain.StatusDisconnected, channel.Status())
}

func TestChannel_ReceiveAndEmit(t *testing.T) {
	server := startBackend(t)
	server.SetRooms("group", backend.RawRoom{ID: "g1", Name: "General", Members: []backend.RawMember{{ID: "m-alice"}}})

	channel := NewChannel(testConfig(ChannelMessaging, server.SocketURL(backendtest.ChannelMessaging)), &mockLogger{})
	defer channel.Close()

	received := make(chan json.RawMessage, 4)
	channel.Subscribe(backend.EventReceiveMessage, func(data json.RawMessage) {
		received <- data
	})

	require.ErrorIs(t, channel.Emit(backend.EventSendMessage, backend.SendMessagePayload{}), ErrNotConnected)

	require.NoError(t, channel.Connect(context.Background(), aliceCredential(t, server)))
	assert.Equal(t, domain.StatusConnected, channel.Status())
	require.Eventually(t, func() bool { return server.Hub().ClientCount() == 1 }, waitFor, tick)

	require.NoError(t, channel.Emit(backend.EventSendMessage, backend.SendMessagePayload{
		RoomID:      "g1",
		Content:     "hello",
		SenderName:  "alice",
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		ClientMsgID: "c-1",
	}))

	select {
	case data := <-received:
		var raw backend.RawMessage
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, "hello", raw.Content)
		assert.Equal(t, "c-1", raw.ClientMsgID)
		assert.Equal(t, backend.FlexID("m-alice"), raw.SenderID)
	case <-time.After(waitFor):
		t.Fatal("receiveMessage was not delivered")
	}

	sent := server.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "g1", sent[0].RoomID)
}

func TestChannel_ConnectTearsDownPrevious(t *testing.T) {
	server := startBackend(t)
	channel := NewChannel(testConfig(ChannelNotification, server.SocketURL(backendtest.ChannelNotification)), &mockLogger{})
	defer channel.Close()

	var mu sync.Mutex
	deliveries := 0
	channel.Subscribe(backend.EventNotification, func(json.RawMessage) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	})
	recorder := &statusRecorder{}
	channel.OnStatus(recorder.record)

	cred := aliceCredential(t, server)
	require.NoError(t, channel.Connect(context.Background(), cred))
	require.NoError(t, channel.Connect(context.Background(), cred))

	require.Eventually(t, func() bool {
		return server.Hub().Accepted() == 2 && server.Hub().ClientCount() == 1
	}, waitFor, tick)
	assert.Equal(t, 1, recorder.count(domain.StatusDisconnected))
	assert.Equal(t, 2, recorder.count(domain.StatusConnected))

	require.NoError(t, server.Push("m-alice", backendtest.ChannelNotification, backend.EventNotification, map[string]string{"title": "hi"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deliveries == 1
	}, waitFor, tick)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, deliveries)
	mu.Unlock()
}

func TestChannel_RejectedHandshake(t *testing.T) {
	server := startBackend(t)
	cfg := testConfig(ChannelMessaging, server.SocketURL(backendtest.ChannelMessaging))
	cfg.MaxReconnects = 3
	channel := NewChannel(cfg, &mockLogger{})
	defer channel.Close()

	recorder := &statusRecorder{}
	channel.OnStatus(recorder.record)

	err := channel.Connect(context.Background(), domain.Credential{Token: "forged", MemberID: "m-alice"})
	assert.ErrorIs(t, err, ErrRejected)

	// Longer than three backoff rounds at the test delays.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, recorder.count(domain.StatusError))
	assert.Equal(t, 0, recorder.count(domain.StatusReconnecting))
	assert.Equal(t, domain.StatusError, channel.Status())
	assert.Equal(t, 0, server.Hub().Accepted())

	token, err := server.IssueToken("m-bob", "bob")
	require.NoError(t, err)
	err = channel.Connect(context.Background(), domain.Credential{Token: token, MemberID: "m-alice"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestChannel_ReconnectsAfterDrop(t *testing.T) {
	server := startBackend(t)
	channel := NewChannel(testConfig(ChannelMessaging, server.SocketURL(backendtest.ChannelMessaging)), &mockLogger{})
	defer channel.Close()

	recorder := &statusRecorder{}
	channel.OnStatus(recorder.record)

	require.NoError(t, channel.Connect(context.Background(), aliceCredential(t, server)))
	require.Eventually(t, func() bool { return server.Hub().ClientCount() == 1 }, waitFor, tick)

	server.DropConnections()

	require.Eventually(t, func() bool {
		return server.Hub().Accepted() == 2 && channel.Status() == domain.StatusConnected
	}, waitFor, tick)
	assert.GreaterOrEqual(t, recorder.count(domain.StatusDisconnected), 1)
	assert.GreaterOrEqual(t, recorder.count(domain.StatusReconnecting), 1)
}

func TestChannel_RetryDelay(t *testing.T) {
	channel := NewChannel(Config{
		Name:           "test",
		BaseRetryDelay: time.Second,
		MaxRetryDelay:  5 * time.Second,
	}, &mockLogger{})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 5 * time.Second},
		{attempt: 10, want: 5 * time.Second},
	}

	for _, tt := range tests {
		if got := channel.retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestManager_FollowsCredentialStore(t *testing.T) {
	server := startBackend(t)
	manager := NewManager(ManagerConfig{
		Notification: testConfig(ChannelNotification, server.SocketURL(backendtest.ChannelNotification)),
		Messaging:    testConfig(ChannelMessaging, server.SocketURL(backendtest.ChannelMessaging)),
	}, &mockLogger{})
	defer manager.Close()

	store := credentials.NewService(nil)
	manager.Follow(context.Background(), store)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, server.Hub().Accepted())

	require.NoError(t, store.Set(aliceCredential(t, server)))
	require.Eventually(t, func() bool { return server.Hub().ClientCount() == 2 }, waitFor, tick)
	assert.Equal(t, domain.StatusConnected, manager.Notification().Status())
	assert.Equal(t, domain.StatusConnected, manager.Messaging().Status())

	require.NoError(t, store.Clear())
	require.Eventually(t, func() bool { return server.Hub().ClientCount() == 0 }, waitFor, tick)
	assert.Equal(t, domain.StatusDisconnected, manager.Notification().Status())
	assert.Equal(t, domain.StatusDisconnected, manager.Messaging().Status())
}
