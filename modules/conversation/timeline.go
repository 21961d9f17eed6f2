package conversation

import (
	"sync"

	domain "github.com/example/chat-sync-client/domain/chat"
)

// Timeline is the ordered message list of the active room. It only ever
// holds messages of the room it was last reset to.
type Timeline struct {
	mu       sync.RWMutex
	roomID   string
	messages []domain.Message
}

// NewTimeline creates an empty timeline bound to no room.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Reset empties the timeline and binds it to roomID.
func (t *Timeline) Reset(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roomID = roomID
	t.messages = nil
}

// RoomID returns the room the timeline is bound to.
func (t *Timeline) RoomID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.roomID
}

// ReplaceAll swaps in a fetched history. It is a no-op when roomID is not the
// bound room.
func (t *Timeline) ReplaceAll(roomID string, messages []domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if roomID == "" || roomID != t.roomID {
		return false
	}
	t.messages = append([]domain.Message(nil), messages...)
	return true
}

// Append adds msg after the tail. Messages of other rooms and ids already
// present are dropped. A message carrying the client id of an entry already
// present replaces that entry in place.
func (t *Timeline) Append(msg domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.roomID == "" || msg.RoomID != t.roomID {
		return false
	}

	if msg.ClientID != "" {
		for i := range t.messages {
			if t.messages[i].ClientID == msg.ClientID {
				t.messages[i] = msg
				return true
			}
		}
	}
	if msg.ID != "" {
		for _, m := range t.messages {
			if m.ID == msg.ID {
				return false
			}
		}
	}
	t.messages = append(t.messages, msg)
	return true
}

// Remove drops the entry with clientID.
func (t *Timeline) Remove(clientID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.messages {
		if t.messages[i].ClientID == clientID {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Messages returns a copy of the timeline.
func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.Message(nil), t.messages...)
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
