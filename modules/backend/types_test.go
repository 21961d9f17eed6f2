package backend

import (
	"encoding/json"
	"testing"

	domain "github.com/example/chat-sync-client/domain/chat"
)

func TestSender_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantID   string
		wantName string
	}{
		{
			name:     "plain string",
			input:    `"alice"`,
			wantName: "alice",
		},
		{
			name:     "object with usr_name",
			input:    `{"id": 7, "usr_name": "bob", "username": "robert"}`,
			wantID:   "7",
			wantName: "bob",
		},
		{
			name:     "object with username only",
			input:    `{"id": "m-3", "username": "carol"}`,
			wantID:   "m-3",
			wantName: "carol",
		},
		{
			name:     "object without a name",
			input:    `{"id": "m-4"}`,
			wantID:   "m-4",
			wantName: "Unknown",
		},
		{
			name:     "null",
			input:    `null`,
			wantName: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Sender
			if err := json.Unmarshal([]byte(tt.input), &s); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if s.ID != tt.wantID {
				t.Errorf("Sender.ID = %q, want %q", s.ID, tt.wantID)
			}
			if s.DisplayName() != tt.wantName {
				t.Errorf("DisplayName() = %q, want %q", s.DisplayName(), tt.wantName)
			}
		})
	}
}

func TestRawMessage_Message(t *testing.T) {
	self := domain.Identity{MemberID: "m-alice", Name: "alice"}

	tests := []struct {
		name     string
		input    string
		wantKind domain.BodyKind
		wantOwn  bool
		wantRoom string
	}{
		{
			name:     "text from self by name",
			input:    `{"id": 1, "sender": "alice", "content": "hi", "timestamp": "2024-05-01T10:00:00Z"}`,
			wantKind: domain.BodyText,
			wantOwn:  true,
			wantRoom: "r1",
		},
		{
			name:     "text from other with object sender",
			input:    `{"id": "x", "sender": {"usr_name": "bob"}, "content": "yo", "timestamp": "2024-05-01T10:00:00Z"}`,
			wantKind: domain.BodyText,
			wantRoom: "r1",
		},
		{
			name:     "push with media is an image",
			input:    `{"id": "p", "room_id": "r2", "sender": "bob", "sender_id": "m-bob", "media": "https://cdn/x.png", "timestamp": "2024-05-01T10:00:00Z"}`,
			wantKind: domain.BodyImage,
			wantRoom: "r2",
		},
		{
			name:     "own by sender id",
			input:    `{"id": "p", "room_id": "r2", "sender": "Alice A.", "sender_id": "m-alice", "content": "x", "timestamp": "2024-05-01T10:00:00Z"}`,
			wantKind: domain.BodyText,
			wantOwn:  true,
			wantRoom: "r2",
		},
		{
			name:     "voice note",
			input:    `{"id": 9, "sender": "bob", "type": "voice", "voiceUrl": "https://cdn/v.wav", "voiceDuration": 4, "timestamp": "2024-05-01T10:00:00Z"}`,
			wantKind: domain.BodyVoice,
			wantRoom: "r1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw RawMessage
			if err := json.Unmarshal([]byte(tt.input), &raw); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			msg := raw.Message("r1", self)

			if msg.Body.Kind() != tt.wantKind {
				t.Errorf("Body.Kind() = %q, want %q", msg.Body.Kind(), tt.wantKind)
			}
			if msg.IsOwn != tt.wantOwn {
				t.Errorf("IsOwn = %v, want %v", msg.IsOwn, tt.wantOwn)
			}
			if msg.RoomID != tt.wantRoom {
				t.Errorf("RoomID = %q, want %q", msg.RoomID, tt.wantRoom)
			}
			if msg.SentAt.IsZero() {
				t.Error("SentAt should not be zero")
			}
		})
	}
}

func TestDecodeRoomPatch(t *testing.T) {
	patch, err := DecodeRoomPatch([]byte(`{"id": 42, "name": "Ops", "lastMessage": "deploy done"}`))
	if err != nil {
		t.Fatalf("DecodeRoomPatch() error = %v", err)
	}
	if patch.ID != "42" {
		t.Errorf("patch.ID = %q, want %q", patch.ID, "42")
	}
	if patch.DisplayName == nil || *patch.DisplayName != "Ops" {
		t.Errorf("patch.DisplayName = %v, want Ops", patch.DisplayName)
	}
	if patch.Members != nil {
		t.Error("patch.Members should be nil when absent")
	}

	room := domain.Room{ID: "42", DisplayName: "Old", Members: []domain.Member{{ID: "m1"}}}
	merged := patch.Apply(room)
	if merged.DisplayName != "Ops" {
		t.Errorf("merged.DisplayName = %q, want %q", merged.DisplayName, "Ops")
	}
	if len(merged.Members) != 1 {
		t.Errorf("merged.Members length = %d, want 1", len(merged.Members))
	}
	if merged.LastMessage == nil || *merged.LastMessage != "deploy done" {
		t.Errorf("merged.LastMessage = %v, want deploy done", merged.LastMessage)
	}
}
