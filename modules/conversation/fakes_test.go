package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/example/chat-sync-client/modules/backend"
	"github.com/go-monolith/mono/pkg/types"
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

type fakeCreds struct {
	mu   sync.Mutex
	cred domain.Credential
	name string
}

func (f *fakeCreds) Get() (domain.Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred, f.cred.Complete()
}

func (f *fakeCreds) Identity() domain.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.Identity{MemberID: f.cred.MemberID, Name: f.name}
}

func aliceCreds() *fakeCreds {
	return &fakeCreds{cred: domain.Credential{Token: "token", MemberID: "m-alice"}, name: "alice"}
}

// fakeHistory serves fixed histories. A delay ignores the context to
// simulate a hung request.
type fakeHistory struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
	delays   map[string]time.Duration
	errs     map[string]error
	calls    map[string]int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		messages: make(map[string][]domain.Message),
		delays:   make(map[string]time.Duration),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeHistory) History(_ context.Context, _ string, roomID string, _ domain.Identity) ([]domain.Message, error) {
	f.mu.Lock()
	f.calls[roomID]++
	delay := f.delays[roomID]
	err := f.errs[roomID]
	messages := append([]domain.Message(nil), f.messages[roomID]...)
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return messages, err
}

func (f *fakeHistory) set(roomID string, messages ...domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[roomID] = messages
}

func (f *fakeHistory) setDelay(roomID string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[roomID] = d
}

func (f *fakeHistory) callCount(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[roomID]
}

type fakePeers map[string]string

func (f fakePeers) RoomForPeer(peerID string) (string, bool) {
	roomID, ok := f[peerID]
	return roomID, ok
}

type emitted struct {
	event   string
	payload backend.SendMessagePayload
}

type fakeEmitter struct {
	mu   sync.Mutex
	sent []emitted
	err  error
}

func (f *fakeEmitter) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p, _ := payload.(backend.SendMessagePayload)
	f.sent = append(f.sent, emitted{event: event, payload: p})
	return nil
}

var errNoMic = errors.New("no microphone")

type fakeCapture struct {
	recording bool
	aborted   int
	discarded []string
}

func (f *fakeCapture) AttachImage(_ context.Context, name, contentType string, _ []byte) (domain.ImageRef, error) {
	return domain.ImageRef{Handle: "blob:" + name, ContentType: contentType}, nil
}

func (f *fakeCapture) StartRecording(_ context.Context) error {
	f.recording = true
	return nil
}

func (f *fakeCapture) StopRecording(_ context.Context) (domain.VoiceRef, error) {
	if !f.recording {
		return domain.VoiceRef{}, errNoMic
	}
	f.recording = false
	return domain.VoiceRef{Handle: "blob:voice", DurationSeconds: 0}, nil
}

func (f *fakeCapture) Discard(handle string) error {
	f.discarded = append(f.discarded, handle)
	return nil
}

func (f *fakeCapture) AbortRecording() {
	f.aborted++
	f.recording = false
}
