package events

import (
	"encoding/json"
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// CredentialChangedEvent is emitted when the credential store is set or cleared.
type CredentialChangedEvent struct {
	MemberID      string    `json:"member_id"`
	Authenticated bool      `json:"authenticated"`
	Timestamp     time.Time `json:"timestamp"`
}

// ConnectionStatusEvent is emitted when a realtime channel changes status.
type ConnectionStatusEvent struct {
	Channel   string    `json:"channel"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationEvent carries an arbitrary payload from the notification channel.
type NotificationEvent struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// MessageReceivedEvent carries a raw receiveMessage push.
type MessageReceivedEvent struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// RoomUpdatedEvent carries a raw roomUpdated/groupUpdated push.
type RoomUpdatedEvent struct {
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event definitions for the client domain.
var (
	CredentialChangedV1 = helper.EventDefinition[CredentialChangedEvent](
		"client",
		"CredentialChanged",
		"v1",
	)

	ConnectionStatusV1 = helper.EventDefinition[ConnectionStatusEvent](
		"client",
		"ConnectionStatus",
		"v1",
	)

	NotificationV1 = helper.EventDefinition[NotificationEvent](
		"client",
		"Notification",
		"v1",
	)

	MessageReceivedV1 = helper.EventDefinition[MessageReceivedEvent](
		"client",
		"MessageReceived",
		"v1",
	)

	RoomUpdatedV1 = helper.EventDefinition[RoomUpdatedEvent](
		"client",
		"RoomUpdated",
		"v1",
	)
)
