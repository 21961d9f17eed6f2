package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/example/chat-sync-client/modules/backend"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// ErrEmptyMessage is returned when sending blank text.
var ErrEmptyMessage = errors.New("conversation: message is empty")

// Emitter sends events on the messaging channel.
type Emitter interface {
	Emit(event string, payload any) error
}

// Capture stages local media for the active conversation.
type Capture interface {
	AttachImage(ctx context.Context, name, contentType string, data []byte) (domain.ImageRef, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (domain.VoiceRef, error)
	AbortRecording()
	Discard(handle string) error
}

// ViewConfig selects what a View shows.
type ViewConfig struct {
	Kind         domain.Kind
	FetchTimeout time.Duration
}

// Inviter sends invitations to join a conversation type.
type Inviter interface {
	SendInvitation(ctx context.Context, token, email, kind string) error
}

// Deps are the collaborators of a View. Inviter is only used by the module's
// invite service and may be nil.
type Deps struct {
	History HistoryFetcher
	Creds   CredentialSource
	Peers   PeerResolver
	Emitter Emitter
	Capture Capture
	Inviter Inviter
}

// View is one conversation screen of a given kind: the active room
// controller, its timeline and the send path.
type View struct {
	config     ViewConfig
	deps       Deps
	timeline   *Timeline
	controller *Controller
	logger     types.Logger
	now        func() time.Time
}

// NewView creates an idle view.
func NewView(config ViewConfig, deps Deps, logger types.Logger) *View {
	timeline := NewTimeline()
	return &View{
		config:     config,
		deps:       deps,
		timeline:   timeline,
		controller: NewController(deps.History, deps.Creds, deps.Peers, timeline, config.FetchTimeout, logger),
		logger:     logger.With("kind", config.Kind),
		now:        time.Now,
	}
}

// Kind returns the conversation kind.
func (v *View) Kind() domain.Kind {
	return v.config.Kind
}

// Timeline returns the message timeline.
func (v *View) Timeline() *Timeline {
	return v.timeline
}

// Controller returns the active room controller.
func (v *View) Controller() *Controller {
	return v.controller
}

// SelectRoom makes roomID active.
func (v *View) SelectRoom(ctx context.Context, roomID string) error {
	return v.controller.SelectRoom(ctx, roomID)
}

// SelectPeer makes the private room shared with peerID active.
func (v *View) SelectPeer(ctx context.Context, peerID string) error {
	return v.controller.SelectPeer(ctx, peerID)
}

// SendText appends an own message at once and emits it. If the emit fails
// the message is removed again.
func (v *View) SendText(_ context.Context, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, ErrEmptyMessage
	}

	msg, err := v.ownMessage(domain.TextBody(content))
	if err != nil {
		return domain.Message{}, err
	}
	v.timeline.Append(msg)

	payload := backend.SendMessagePayload{
		RoomID:      msg.RoomID,
		Content:     content,
		SenderName:  msg.SenderName,
		Timestamp:   msg.SentAt.UTC().Format(time.RFC3339Nano),
		ClientMsgID: msg.ClientID,
	}
	if err := v.deps.Emitter.Emit(backend.EventSendMessage, payload); err != nil {
		v.timeline.Remove(msg.ClientID)
		v.logger.Warn("Failed to send message", "room_id", msg.RoomID, "error", err)
		return domain.Message{}, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}

// AttachImage stages an image and appends it as an own message. Nothing is
// uploaded.
func (v *View) AttachImage(ctx context.Context, name, contentType string, data []byte) (domain.Message, error) {
	if _, active := v.activeRoom(); !active {
		return domain.Message{}, ErrNoActiveRoom
	}
	ref, err := v.deps.Capture.AttachImage(ctx, name, contentType, data)
	if err != nil {
		return domain.Message{}, err
	}
	msg, err := v.ownMessage(domain.ImageBody(ref))
	if err != nil {
		v.discard(ref.Handle)
		return domain.Message{}, err
	}
	v.timeline.Append(msg)
	return msg, nil
}

// StartRecording starts a voice capture session.
func (v *View) StartRecording(ctx context.Context) error {
	if _, active := v.activeRoom(); !active {
		return ErrNoActiveRoom
	}
	return v.deps.Capture.StartRecording(ctx)
}

// StopRecording finishes the capture session and appends the voice note as
// an own message. Without an active room the session is aborted and nothing
// is staged.
func (v *View) StopRecording(ctx context.Context) (domain.Message, error) {
	if _, active := v.activeRoom(); !active {
		v.deps.Capture.AbortRecording()
		return domain.Message{}, ErrNoActiveRoom
	}
	ref, err := v.deps.Capture.StopRecording(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	msg, err := v.ownMessage(domain.VoiceBody(ref))
	if err != nil {
		v.discard(ref.Handle)
		return domain.Message{}, err
	}
	v.timeline.Append(msg)
	return msg, nil
}

// AbortRecording drops the capture session without staging anything.
func (v *View) AbortRecording() {
	v.deps.Capture.AbortRecording()
}

// HandlePush applies a receiveMessage payload. It reports whether the
// timeline changed.
func (v *View) HandlePush(data json.RawMessage) (bool, error) {
	msg, err := backend.DecodeMessage(data, v.deps.Creds.Identity())
	if err != nil {
		return false, fmt.Errorf("failed to decode message: %w", err)
	}
	return v.timeline.Append(msg), nil
}

// Close aborts any capture session and deselects the room.
func (v *View) Close() {
	if v.deps.Capture != nil {
		v.deps.Capture.AbortRecording()
	}
	v.controller.Deselect()
}

// discard drops staged media that never made it into the timeline.
func (v *View) discard(handle string) {
	if err := v.deps.Capture.Discard(handle); err != nil {
		v.logger.Warn("Failed to discard staged media", "handle", handle, "error", err)
	}
}

func (v *View) activeRoom() (string, bool) {
	_, roomID := v.controller.State()
	return roomID, roomID != ""
}

func (v *View) ownMessage(body domain.Body) (domain.Message, error) {
	roomID, active := v.activeRoom()
	if !active {
		return domain.Message{}, ErrNoActiveRoom
	}
	if _, ok := v.deps.Creds.Get(); !ok {
		return domain.Message{}, ErrUnauthenticated
	}
	self := v.deps.Creds.Identity()
	name := self.Name
	if name == "" {
		name = self.MemberID
	}

	clientID := uuid.NewString()
	return domain.Message{
		ID:         clientID,
		ClientID:   clientID,
		RoomID:     roomID,
		SenderID:   self.MemberID,
		SenderName: name,
		Body:       body,
		SentAt:     v.now(),
		IsOwn:      true,
	}, nil
}
