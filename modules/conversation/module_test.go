package conversation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/example/chat-sync-client/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_SelectsInitialRoomAndAppliesPushes(t *testing.T) {
	history := newFakeHistory()
	history.set("g1", textMessage("1", "g1", "welcome"))
	creds := aliceCreds()

	m := NewModule(Config{Kind: domain.KindGroup, FetchTimeout: time.Second, InitialRoomID: "g1"}, Deps{
		History: history,
		Creds:   creds,
		Peers:   fakePeers{},
		Emitter: &fakeEmitter{},
		Capture: &fakeCapture{},
	}, &mockLogger{})

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop(context.Background())

	require.Eventually(t, func() bool {
		state, _ := m.View().Controller().State()
		return state == domain.RoomReady
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, m.View().Timeline().Len())

	push := json.RawMessage(`{"id":"2","room_id":"g1","sender":"bob","content":"hi","timestamp":"2024-05-01T10:00:00Z"}`)
	require.NoError(t, m.handleMessageReceived(context.Background(), events.MessageReceivedEvent{Payload: push}, nil))
	require.NoError(t, m.handleMessageReceived(context.Background(), events.MessageReceivedEvent{Payload: json.RawMessage(`nope`)}, nil))
	assert.Equal(t, 2, m.View().Timeline().Len())

	require.NoError(t, m.handleConnectionStatus(context.Background(), events.ConnectionStatusEvent{Channel: "messaging", Status: "connected"}, nil))
	status := m.Health(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "connected", status.Details["messaging"])
	assert.Equal(t, "group", status.Details["default"])
	group, ok := status.Details["group"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "g1", group["room_id"])
	assert.Equal(t, 2, group["messages"])

	require.NoError(t, m.handleCredentialChanged(context.Background(), events.CredentialChangedEvent{Authenticated: false}, nil))
	state, roomID := m.View().Controller().State()
	assert.Equal(t, domain.RoomIdle, state)
	assert.Empty(t, roomID)
	assert.Equal(t, 0, m.View().Timeline().Len())

	require.NoError(t, m.handleCredentialChanged(context.Background(), events.CredentialChangedEvent{MemberID: "m-alice", Authenticated: true}, nil))
	require.Eventually(t, func() bool {
		state, roomID := m.View().Controller().State()
		return state == domain.RoomReady && roomID == "g1"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, history.callCount("g1"))
}

func TestModule_RoutesPushesPerKind(t *testing.T) {
	history := newFakeHistory()
	history.set("g1", textMessage("1", "g1", "group"))
	history.set("p1", textMessage("2", "p1", "private"))
	history.errs["d1"] = errNoMic

	m := NewModule(Config{Kind: domain.KindGroup, FetchTimeout: time.Second}, Deps{
		History: history,
		Creds:   aliceCreds(),
		Peers:   fakePeers{},
		Emitter: &fakeEmitter{},
		Capture: &fakeCapture{},
	}, &mockLogger{})
	ctx := context.Background()
	assert.Equal(t, domain.Kinds(), m.Kinds())

	group, _ := m.ViewOf(domain.KindGroup)
	private, _ := m.ViewOf(domain.KindPrivate)
	dept, _ := m.ViewOf(domain.KindDepartment)
	require.NoError(t, group.SelectRoom(ctx, "g1"))
	require.NoError(t, private.SelectRoom(ctx, "p1"))

	push := json.RawMessage(`{"id":"3","room_id":"p1","sender":"bob","content":"psst","timestamp":"2024-05-01T10:00:00Z"}`)
	require.NoError(t, m.handleMessageReceived(ctx, events.MessageReceivedEvent{Payload: push}, nil))
	assert.Equal(t, 2, private.Timeline().Len())
	assert.Equal(t, 1, group.Timeline().Len())

	status := m.Health(ctx)
	assert.True(t, status.Healthy)

	require.Error(t, dept.SelectRoom(ctx, "d1"))
	status = m.Health(ctx)
	assert.False(t, status.Healthy)
	assert.Equal(t, "room load failed", status.Message)
	detail, ok := status.Details["department"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(domain.RoomFailed), detail["state"])
	assert.NotEmpty(t, detail["error"])
}
