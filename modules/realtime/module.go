package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/chat-sync-client/events"
	"github.com/example/chat-sync-client/modules/backend"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module connects the realtime channels and republishes their push events
// on the EventBus.
type Module struct {
	manager  *Manager
	creds    CredentialSource
	eventBus mono.EventBus
	logger   types.Logger
	unsubs   []func()
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new realtime module.
func NewModule(config ManagerConfig, logger types.Logger) *Module {
	return &Module{
		manager: NewManager(config, logger),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "realtime"
}

// SetCredentials sets the credential store the channels follow (called from main.go).
func (m *Module) SetCredentials(source CredentialSource) {
	m.creds = source
}

// Manager returns the channel manager.
func (m *Module) Manager() *Manager {
	return m.manager
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.ConnectionStatusV1.ToBase(),
		events.NotificationV1.ToBase(),
		events.MessageReceivedV1.ToBase(),
		events.RoomUpdatedV1.ToBase(),
	}
}

// Start wires push events to the EventBus and connects with the current credential.
func (m *Module) Start(_ context.Context) error {
	if m.creds == nil {
		return fmt.Errorf("credential source dependency not set")
	}

	notification := m.manager.Notification()
	messaging := m.manager.Messaging()

	m.unsubs = append(m.unsubs,
		notification.OnStatus(m.publishStatus),
		messaging.OnStatus(m.publishStatus),
		notification.Subscribe(backend.EventNotification, m.publishNotification),
		messaging.Subscribe(backend.EventReceiveMessage, m.publishMessage),
		messaging.Subscribe(backend.EventGroupUpdated, m.publishRoomUpdate(backend.EventGroupUpdated)),
		messaging.Subscribe(backend.EventRoomUpdated, m.publishRoomUpdate(backend.EventRoomUpdated)),
	)

	m.manager.Follow(context.Background(), m.creds)

	m.logger.Info("Realtime module started")
	return nil
}

// Stop closes both channels.
func (m *Module) Stop(_ context.Context) error {
	err := m.manager.Close()
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.logger.Info("Realtime module stopped")
	return err
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			ChannelNotification: string(m.manager.Notification().Status()),
			ChannelMessaging:    string(m.manager.Messaging().Status()),
		},
	}
}

func (m *Module) publishStatus(change StatusChange) {
	if m.eventBus == nil {
		return
	}
	event := events.ConnectionStatusEvent{
		Channel:   change.Channel,
		Status:    string(change.Status),
		Reason:    change.Reason,
		Timestamp: time.Now(),
	}
	if err := events.ConnectionStatusV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish ConnectionStatus event", "error", err)
	}
}

func (m *Module) publishNotification(data json.RawMessage) {
	if m.eventBus == nil {
		return
	}
	event := events.NotificationEvent{Payload: data, Timestamp: time.Now()}
	if err := events.NotificationV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish Notification event", "error", err)
	}
}

func (m *Module) publishMessage(data json.RawMessage) {
	if m.eventBus == nil {
		return
	}
	event := events.MessageReceivedEvent{Payload: data, Timestamp: time.Now()}
	if err := events.MessageReceivedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish MessageReceived event", "error", err)
	}
}

func (m *Module) publishRoomUpdate(source string) Handler {
	return func(data json.RawMessage) {
		if m.eventBus == nil {
			return
		}
		event := events.RoomUpdatedEvent{Source: source, Payload: data, Timestamp: time.Now()}
		if err := events.RoomUpdatedV1.Publish(m.eventBus, event, nil); err != nil {
			m.logger.Warn("Failed to publish RoomUpdated event", "error", err)
		}
	}
}
