package backend

import (
	"bytes"
	"encoding/json"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
)

// Push and emit event names of the realtime contract.
const (
	EventNotification   = "notification"
	EventReceiveMessage = "receiveMessage"
	EventGroupUpdated   = "groupUpdated"
	EventRoomUpdated    = "roomUpdated"
	EventSendMessage    = "sendMessage"
)

// unknownSender is shown when a raw message carries no usable sender name.
const unknownSender = "Unknown"

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	UsrID string `json:"usrId"`
}

// LoginResponse is the body returned by POST /login.
type LoginResponse struct {
	Token  string `json:"token"`
	Member struct {
		ID      FlexID `json:"id"`
		UsrName string `json:"usr_name,omitempty"`
	} `json:"member"`
}

// InvitationRequest is the body of POST /invitations/send.
type InvitationRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

// Response is the envelope every REST endpoint wraps its data in.
type Response[T any] struct {
	Status  json.RawMessage `json:"status,omitempty"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// SendMessagePayload is emitted as sendMessage on the messaging channel.
type SendMessagePayload struct {
	RoomID      string `json:"roomId"`
	Content     string `json:"content"`
	SenderName  string `json:"sender_name"`
	Timestamp   string `json:"timestamp"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
}

// FlexID accepts identifiers encoded as either JSON strings or numbers.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// Sender is the sender field of a raw message. The backend sends either a
// plain name or an object carrying usr_name or username.
type Sender struct {
	ID   string
	Name string
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Sender) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = Sender{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &s.Name)
	}

	var obj struct {
		ID       FlexID `json:"id"`
		UsrName  string `json:"usr_name"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.ID = string(obj.ID)
	s.Name = obj.UsrName
	if s.Name == "" {
		s.Name = obj.Username
	}
	return nil
}

// DisplayName returns the sender name or "Unknown".
func (s Sender) DisplayName() string {
	if s.Name == "" {
		return unknownSender
	}
	return s.Name
}

// RawMember is a room member as sent by the backend.
type RawMember struct {
	ID       FlexID  `json:"id"`
	UsrName  string  `json:"usr_name"`
	FullName string  `json:"full_name,omitempty"`
	IsOnline bool    `json:"isOnline,omitempty"`
	LastSeen *string `json:"lastSeen,omitempty"`
}

// Member converts the raw member into the domain shape.
func (m RawMember) Member() domain.Member {
	name := m.UsrName
	if name == "" {
		name = m.FullName
	}
	status := "offline"
	if m.IsOnline {
		status = "online"
	}
	member := domain.Member{
		ID:           string(m.ID),
		Name:         name,
		OnlineStatus: status,
	}
	if m.LastSeen != nil {
		member.LastSeenTime = parseTime(*m.LastSeen)
	}
	return member
}

// RawRoom is a room as listed by GET /rooms/{kind}.
type RawRoom struct {
	ID          FlexID      `json:"id"`
	Name        string      `json:"name"`
	RoomType    string      `json:"roomType,omitempty"`
	Members     []RawMember `json:"members"`
	LastMessage *string     `json:"lastMessage,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
}

// Room converts the raw room into the domain shape.
func (r RawRoom) Room(kind domain.Kind) domain.Room {
	room := domain.Room{
		ID:               string(r.ID),
		DisplayName:      r.Name,
		Kind:             kind,
		Members:          make([]domain.Member, 0, len(r.Members)),
		LastMessage:      r.LastMessage,
		LastActivityTime: parseTime(r.Timestamp),
	}
	for _, m := range r.Members {
		room.Members = append(room.Members, m.Member())
	}
	return room
}

// RawRoomPatch is the partial room carried by groupUpdated and roomUpdated.
type RawRoomPatch struct {
	ID          FlexID       `json:"id"`
	Name        *string      `json:"name,omitempty"`
	Members     *[]RawMember `json:"members,omitempty"`
	LastMessage *string      `json:"lastMessage,omitempty"`
	Timestamp   *string      `json:"timestamp,omitempty"`
}

// DecodeRoomPatch parses a room metadata push.
func DecodeRoomPatch(data []byte) (domain.RoomPatch, error) {
	var raw RawRoomPatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.RoomPatch{}, err
	}
	patch := domain.RoomPatch{
		ID:          string(raw.ID),
		DisplayName: raw.Name,
		LastMessage: raw.LastMessage,
	}
	if raw.Members != nil {
		members := make([]domain.Member, 0, len(*raw.Members))
		for _, m := range *raw.Members {
			members = append(members, m.Member())
		}
		patch.Members = &members
	}
	if raw.Timestamp != nil {
		patch.LastActivityTime = parseTime(*raw.Timestamp)
	}
	return patch, nil
}

// RawMessage is a message as returned by the history endpoint or pushed as
// receiveMessage.
type RawMessage struct {
	ID            FlexID `json:"id"`
	RoomID        FlexID `json:"room_id,omitempty"`
	Sender        Sender `json:"sender"`
	SenderID      FlexID `json:"sender_id,omitempty"`
	Content       string `json:"content,omitempty"`
	Timestamp     string `json:"timestamp"`
	Type          string `json:"type,omitempty"`
	Media         string `json:"media,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
	VoiceURL      string `json:"voiceUrl,omitempty"`
	VoiceDuration int    `json:"voiceDuration,omitempty"`
	ClientMsgID   string `json:"client_msg_id,omitempty"`
}

// Message resolves the raw shape into the canonical message. roomID is used
// when the payload does not name its room. IsOwn is derived from self.
func (m RawMessage) Message(roomID string, self domain.Identity) domain.Message {
	if m.RoomID != "" {
		roomID = string(m.RoomID)
	}
	senderID := string(m.SenderID)
	if senderID == "" {
		senderID = m.Sender.ID
	}
	name := m.Sender.DisplayName()

	sentAt := time.Time{}
	if t := parseTime(m.Timestamp); t != nil {
		sentAt = *t
	}

	return domain.Message{
		ID:         string(m.ID),
		ClientID:   m.ClientMsgID,
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: name,
		Body:       m.body(),
		SentAt:     sentAt,
		IsOwn:      self.Owns(senderID, name),
	}
}

func (m RawMessage) body() domain.Body {
	switch {
	case m.Type == "voice" || m.VoiceURL != "":
		return domain.VoiceBody(domain.VoiceRef{Handle: m.VoiceURL, DurationSeconds: m.VoiceDuration})
	case m.Type == "image" || m.Media != "" || m.ImageURL != "":
		handle := m.ImageURL
		if handle == "" {
			handle = m.Media
		}
		return domain.ImageBody(domain.ImageRef{Handle: handle})
	default:
		return domain.TextBody(m.Content)
	}
}

// DecodeMessage parses a receiveMessage push.
func DecodeMessage(data []byte, self domain.Identity) (domain.Message, error) {
	var raw RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Message{}, err
	}
	return raw.Message("", self), nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}
