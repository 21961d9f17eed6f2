package chat

import (
	"errors"
	"time"
)

// Kind identifies a conversation context.
type Kind string

const (
	KindDepartment Kind = "department"
	KindPrivate    Kind = "private"
	KindGroup      Kind = "group"
)

// Kinds returns every conversation kind in display order.
func Kinds() []Kind {
	return []Kind{KindDepartment, KindPrivate, KindGroup}
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDepartment, KindPrivate, KindGroup:
		return Kind(s), nil
	}
	return "", errors.New("unknown conversation kind: " + s)
}

// Credential is the auth token plus the member identifier it belongs to.
type Credential struct {
	Token    string `json:"token"`
	MemberID string `json:"member_id"`
}

// Complete reports whether both fields are present. An incomplete credential
// means the client is unauthenticated.
func (c Credential) Complete() bool {
	return c.Token != "" && c.MemberID != ""
}

// Member is a participant of a room.
type Member struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	OnlineStatus string     `json:"online_status,omitempty"`
	LastSeenTime *time.Time `json:"last_seen_time,omitempty"`
}

// Room is the unified department/private/group conversation container.
type Room struct {
	ID               string     `json:"id"`
	DisplayName      string     `json:"display_name"`
	Kind             Kind       `json:"kind"`
	Members          []Member   `json:"members"`
	LastMessage      *string    `json:"last_message,omitempty"`
	LastActivityTime *time.Time `json:"last_activity_time,omitempty"`
}

// HasMember reports whether memberID belongs to the room.
func (r Room) HasMember(memberID string) bool {
	for _, m := range r.Members {
		if m.ID == memberID {
			return true
		}
	}
	return false
}

// RoomPatch carries the subset of room fields present in a metadata push.
// Nil fields are left untouched by Apply.
type RoomPatch struct {
	ID               string     `json:"id"`
	DisplayName      *string    `json:"display_name,omitempty"`
	Members          *[]Member  `json:"members,omitempty"`
	LastMessage      *string    `json:"last_message,omitempty"`
	LastActivityTime *time.Time `json:"last_activity_time,omitempty"`
}

// Apply shallow-merges the patch into a copy of r.
func (p RoomPatch) Apply(r Room) Room {
	if p.DisplayName != nil {
		r.DisplayName = *p.DisplayName
	}
	if p.Members != nil {
		r.Members = append([]Member(nil), (*p.Members)...)
	}
	if p.LastMessage != nil {
		msg := *p.LastMessage
		r.LastMessage = &msg
	}
	if p.LastActivityTime != nil {
		t := *p.LastActivityTime
		r.LastActivityTime = &t
	}
	return r
}

// ConnectionStatus is the status signal surfaced by a realtime channel.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusReconnecting ConnectionStatus = "reconnecting"
)

// RoomState is the state of the active room controller.
type RoomState string

const (
	RoomIdle    RoomState = "idle"
	RoomLoading RoomState = "loading"
	RoomReady   RoomState = "ready"
	RoomFailed  RoomState = "failed"
)
