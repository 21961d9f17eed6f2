package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ErrInvitationsUnavailable is returned by invite when no inviter is wired.
var ErrInvitationsUnavailable = errors.New("conversation: invitations unavailable")

// RegisterServices registers request-reply services in the service container.
// The framework prefixes names with "services.conversation.".
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "select-room", json.Unmarshal, json.Marshal, m.selectRoom,
	); err != nil {
		return fmt.Errorf("failed to register select-room service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "select-peer", json.Unmarshal, json.Marshal, m.selectPeer,
	); err != nil {
		return fmt.Errorf("failed to register select-peer service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "send-text", json.Unmarshal, json.Marshal, m.sendText,
	); err != nil {
		return fmt.Errorf("failed to register send-text service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "attach-image", json.Unmarshal, json.Marshal, m.attachImage,
	); err != nil {
		return fmt.Errorf("failed to register attach-image service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "start-recording", json.Unmarshal, json.Marshal, m.startRecording,
	); err != nil {
		return fmt.Errorf("failed to register start-recording service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "stop-recording", json.Unmarshal, json.Marshal, m.stopRecording,
	); err != nil {
		return fmt.Errorf("failed to register stop-recording service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "cancel-recording", json.Unmarshal, json.Marshal, m.cancelRecording,
	); err != nil {
		return fmt.Errorf("failed to register cancel-recording service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "invite", json.Unmarshal, json.Marshal, m.invite,
	); err != nil {
		return fmt.Errorf("failed to register invite service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "timeline", json.Unmarshal, json.Marshal, m.timeline,
	); err != nil {
		return fmt.Errorf("failed to register timeline service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "retry", json.Unmarshal, json.Marshal, m.retry,
	); err != nil {
		return fmt.Errorf("failed to register retry service: %w", err)
	}

	m.logger.Info("Registered services",
		"services", "services.conversation.{select-room,select-peer,send-text,attach-image,start-recording,stop-recording,cancel-recording,invite,timeline,retry}",
		"kinds", m.kinds)
	return nil
}

// viewFor resolves the view a request addresses.
func (m *Module) viewFor(kind string) (*View, error) {
	if kind == "" {
		return m.View(), nil
	}
	k, err := domain.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	v, ok := m.views[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKindNotHosted, k)
	}
	return v, nil
}

func (m *Module) selectRoom(ctx context.Context, req SelectRoomRequest, _ *mono.Msg) (TimelineResponse, error) {
	if req.RoomID == "" {
		return TimelineResponse{}, fmt.Errorf("room_id is required")
	}
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return TimelineResponse{}, err
	}
	if err := v.SelectRoom(ctx, req.RoomID); err != nil {
		return TimelineResponse{}, err
	}
	return snapshot(v), nil
}

func (m *Module) selectPeer(ctx context.Context, req SelectPeerRequest, _ *mono.Msg) (TimelineResponse, error) {
	if req.PeerID == "" {
		return TimelineResponse{}, fmt.Errorf("peer_id is required")
	}
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return TimelineResponse{}, err
	}
	if err := v.SelectPeer(ctx, req.PeerID); err != nil {
		return TimelineResponse{}, err
	}
	return snapshot(v), nil
}

func (m *Module) sendText(ctx context.Context, req SendTextRequest, _ *mono.Msg) (MessageResponse, error) {
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return MessageResponse{}, err
	}
	msg, err := v.SendText(ctx, req.Content)
	if err != nil {
		return MessageResponse{}, err
	}
	return toMessageResponse(msg), nil
}

func (m *Module) attachImage(ctx context.Context, req AttachImageRequest, _ *mono.Msg) (MessageResponse, error) {
	if req.Name == "" {
		return MessageResponse{}, fmt.Errorf("name is required")
	}
	if len(req.Data) == 0 {
		return MessageResponse{}, fmt.Errorf("data is required")
	}
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return MessageResponse{}, err
	}
	msg, err := v.AttachImage(ctx, req.Name, req.ContentType, req.Data)
	if err != nil {
		return MessageResponse{}, err
	}
	return toMessageResponse(msg), nil
}

func (m *Module) startRecording(ctx context.Context, req RecordingRequest, _ *mono.Msg) (RecordingResponse, error) {
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return RecordingResponse{}, err
	}
	if err := v.StartRecording(ctx); err != nil {
		return RecordingResponse{}, err
	}
	_, roomID := v.Controller().State()
	return RecordingResponse{Kind: v.Kind(), RoomID: roomID, Recording: true}, nil
}

func (m *Module) stopRecording(ctx context.Context, req RecordingRequest, _ *mono.Msg) (MessageResponse, error) {
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return MessageResponse{}, err
	}
	msg, err := v.StopRecording(ctx)
	if err != nil {
		return MessageResponse{}, err
	}
	return toMessageResponse(msg), nil
}

func (m *Module) cancelRecording(_ context.Context, req RecordingRequest, _ *mono.Msg) (RecordingResponse, error) {
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return RecordingResponse{}, err
	}
	v.AbortRecording()
	_, roomID := v.Controller().State()
	return RecordingResponse{Kind: v.Kind(), RoomID: roomID}, nil
}

func (m *Module) invite(ctx context.Context, req InviteRequest, _ *mono.Msg) (InviteResponse, error) {
	if req.Email == "" {
		return InviteResponse{}, fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return InviteResponse{}, fmt.Errorf("invalid email: %w", err)
	}
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return InviteResponse{}, err
	}
	if m.deps.Inviter == nil {
		return InviteResponse{}, ErrInvitationsUnavailable
	}
	cred, ok := m.deps.Creds.Get()
	if !ok {
		return InviteResponse{}, ErrUnauthenticated
	}
	if err := m.deps.Inviter.SendInvitation(ctx, cred.Token, req.Email, string(v.Kind())); err != nil {
		return InviteResponse{}, err
	}
	m.logger.Info("Invitation sent", "kind", v.Kind(), "email", req.Email)
	return InviteResponse{Kind: v.Kind(), Email: req.Email, Sent: true}, nil
}

func (m *Module) timeline(_ context.Context, req TimelineRequest, _ *mono.Msg) (TimelineResponse, error) {
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return TimelineResponse{}, err
	}
	return snapshot(v), nil
}

func (m *Module) retry(ctx context.Context, req RetryRequest, _ *mono.Msg) (TimelineResponse, error) {
	v, err := m.viewFor(req.Kind)
	if err != nil {
		return TimelineResponse{}, err
	}
	if err := v.Controller().Retry(ctx); err != nil {
		return TimelineResponse{}, err
	}
	return snapshot(v), nil
}

func snapshot(v *View) TimelineResponse {
	state, roomID := v.Controller().State()
	messages := v.Timeline().Messages()

	resp := TimelineResponse{
		Kind:     v.Kind(),
		State:    state,
		RoomID:   roomID,
		Messages: make([]MessageResponse, 0, len(messages)),
	}
	if err := v.Controller().Err(); err != nil {
		resp.Error = err.Error()
	}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, toMessageResponse(msg))
	}
	return resp
}
