package chat

import (
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "department", want: KindDepartment},
		{in: "private", want: KindPrivate},
		{in: "group", want: KindGroup},
		{in: "channel", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoomPatch_Apply(t *testing.T) {
	last := "old"
	room := Room{
		ID:          "g1",
		DisplayName: "Engineering",
		Kind:        KindGroup,
		Members:     []Member{{ID: "m-alice"}},
		LastMessage: &last,
	}

	name := "Platform"
	msg := "shipped"
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	members := []Member{{ID: "m-alice"}, {ID: "m-bob"}}

	got := RoomPatch{ID: "g1", DisplayName: &name, LastMessage: &msg, LastActivityTime: &now, Members: &members}.Apply(room)
	if got.DisplayName != "Platform" {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, "Platform")
	}
	if *got.LastMessage != "shipped" {
		t.Errorf("LastMessage = %q, want %q", *got.LastMessage, "shipped")
	}
	if !got.LastActivityTime.Equal(now) {
		t.Errorf("LastActivityTime = %v, want %v", got.LastActivityTime, now)
	}
	if len(got.Members) != 2 || !got.HasMember("m-bob") {
		t.Errorf("Members = %v, want alice and bob", got.Members)
	}
	if *room.LastMessage != "old" || room.DisplayName != "Engineering" {
		t.Errorf("Apply() modified the original room")
	}

	untouched := RoomPatch{ID: "g1"}.Apply(room)
	if untouched.DisplayName != "Engineering" || len(untouched.Members) != 1 || *untouched.LastMessage != "old" {
		t.Errorf("empty patch changed the room: %+v", untouched)
	}
}

func TestCredential_Complete(t *testing.T) {
	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{name: "both", cred: Credential{Token: "t", MemberID: "m"}, want: true},
		{name: "token only", cred: Credential{Token: "t"}, want: false},
		{name: "member only", cred: Credential{MemberID: "m"}, want: false},
		{name: "empty", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}
