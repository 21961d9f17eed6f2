package notifications

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of notifications kept when none is configured.
const DefaultCapacity = 50

// Notification is one payload received on the notification channel.
type Notification struct {
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Inbox keeps the most recent notifications, oldest first. It is safe for
// concurrent use.
type Inbox struct {
	mu       sync.RWMutex
	capacity int
	items    []Notification
	total    int
}

// NewInbox creates an inbox holding at most capacity notifications.
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Inbox{capacity: capacity}
}

// Add stores a payload, evicting the oldest entry when full.
func (b *Inbox) Add(payload json.RawMessage, at time.Time) Notification {
	n := Notification{
		ID:         uuid.NewString(),
		Payload:    append(json.RawMessage(nil), payload...),
		ReceivedAt: at,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == b.capacity {
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
	}
	b.items = append(b.items, n)
	b.total++
	return n
}

// Recent returns up to limit notifications, newest first. A non-positive
// limit returns all of them.
func (b *Inbox) Recent(limit int) []Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > len(b.items) {
		limit = len(b.items)
	}
	out := make([]Notification, 0, limit)
	for i := len(b.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.items[i])
	}
	return out
}

// Len returns the number of stored notifications.
func (b *Inbox) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Total returns how many notifications were ever added.
func (b *Inbox) Total() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// Clear drops every stored notification.
func (b *Inbox) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}
