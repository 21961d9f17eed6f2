package conversation

import (
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
)

// Every request addresses a view by kind. An empty kind means the default view.

// SelectRoomRequest is the request for selecting a room.
type SelectRoomRequest struct {
	Kind   string `json:"kind,omitempty"`
	RoomID string `json:"room_id"`
}

// SelectPeerRequest is the request for selecting a peer's private room.
type SelectPeerRequest struct {
	Kind   string `json:"kind,omitempty"`
	PeerID string `json:"peer_id"`
}

// SendTextRequest is the request for sending a text message.
type SendTextRequest struct {
	Kind    string `json:"kind,omitempty"`
	Content string `json:"content"`
}

// AttachImageRequest is the request for attaching an image. Data is base64
// encoded on the wire.
type AttachImageRequest struct {
	Kind        string `json:"kind,omitempty"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// RecordingRequest is the request for starting, stopping or cancelling a
// voice recording.
type RecordingRequest struct {
	Kind string `json:"kind,omitempty"`
}

// RecordingResponse reports a started or cancelled recording.
type RecordingResponse struct {
	Kind      domain.Kind `json:"kind"`
	RoomID    string      `json:"room_id"`
	Recording bool        `json:"recording"`
}

// InviteRequest is the request for inviting someone to a conversation type.
type InviteRequest struct {
	Kind  string `json:"kind,omitempty"`
	Email string `json:"email"`
}

// InviteResponse confirms a sent invitation.
type InviteResponse struct {
	Kind  domain.Kind `json:"kind"`
	Email string      `json:"email"`
	Sent  bool        `json:"sent"`
}

// TimelineRequest is the request for reading the timeline.
type TimelineRequest struct {
	Kind string `json:"kind,omitempty"`
}

// RetryRequest is the request for retrying a failed load.
type RetryRequest struct {
	Kind string `json:"kind,omitempty"`
}

// MessageResponse is a message in responses.
type MessageResponse struct {
	ID         string           `json:"id"`
	ClientID   string           `json:"client_id,omitempty"`
	RoomID     string           `json:"room_id"`
	SenderID   string           `json:"sender_id,omitempty"`
	SenderName string           `json:"sender_name"`
	Kind       domain.BodyKind  `json:"kind"`
	Text       string           `json:"text,omitempty"`
	Image      *domain.ImageRef `json:"image,omitempty"`
	Voice      *domain.VoiceRef `json:"voice,omitempty"`
	SentAt     time.Time        `json:"sent_at"`
	IsOwn      bool             `json:"is_own"`
}

// TimelineResponse is the state of the view.
type TimelineResponse struct {
	Kind     domain.Kind       `json:"kind"`
	State    domain.RoomState  `json:"state"`
	RoomID   string            `json:"room_id,omitempty"`
	Error    string            `json:"error,omitempty"`
	Messages []MessageResponse `json:"messages"`
}

func toMessageResponse(msg domain.Message) MessageResponse {
	resp := MessageResponse{
		ID:         msg.ID,
		ClientID:   msg.ClientID,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Kind:       msg.Body.Kind(),
		SentAt:     msg.SentAt,
		IsOwn:      msg.IsOwn,
	}
	if text, ok := msg.Body.Text(); ok {
		resp.Text = text
	}
	if ref, ok := msg.Body.Image(); ok {
		resp.Image = &ref
	}
	if ref, ok := msg.Body.Voice(); ok {
		resp.Voice = &ref
	}
	return resp
}
