package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/example/chat-sync-client/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Config configures the notifications module.
type Config struct {
	Capacity int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity}
}

// Module collects notification pushes for the signed-in member.
type Module struct {
	inbox  *Inbox
	logger types.Logger
	now    func() time.Time
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule creates a new notifications module.
func NewModule(config Config, logger types.Logger) *Module {
	return &Module{
		inbox:  NewInbox(config.Capacity),
		logger: logger,
		now:    time.Now,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "notifications"
}

// Inbox returns the notification inbox.
func (m *Module) Inbox() *Inbox {
	return m.inbox
}

// RegisterEventConsumers registers handlers for notifications and credential changes.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.NotificationV1, m.handleNotification, m); err != nil {
		return fmt.Errorf("failed to register Notification consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.CredentialChangedV1, m.handleCredentialChanged, m); err != nil {
		return fmt.Errorf("failed to register CredentialChanged consumer: %w", err)
	}
	m.logger.Info("Registered event consumers", "events", []string{"Notification.v1", "CredentialChanged.v1"})
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Notifications module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Notifications module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"stored":   m.inbox.Len(),
			"received": m.inbox.Total(),
		},
	}
}

func (m *Module) handleNotification(_ context.Context, event events.NotificationEvent, _ *mono.Msg) error {
	at := event.Timestamp
	if at.IsZero() {
		at = m.now()
	}
	n := m.inbox.Add(event.Payload, at)
	m.logger.Info("Notification received", "id", n.ID, "bytes", len(n.Payload))
	return nil
}

// handleCredentialChanged drops the previous member's notifications.
func (m *Module) handleCredentialChanged(_ context.Context, event events.CredentialChangedEvent, _ *mono.Msg) error {
	if !event.Authenticated {
		m.inbox.Clear()
	}
	return nil
}
