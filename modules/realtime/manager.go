package realtime

import (
	"context"
	"errors"
	"sync"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
)

// Channel names.
const (
	ChannelNotification = "notification"
	ChannelMessaging    = "messaging"
)

// CredentialSource is the part of the credential store the manager follows.
type CredentialSource interface {
	Get() (domain.Credential, bool)
	Subscribe(fn func(domain.Credential)) (cancel func())
}

// ManagerConfig configures both channels.
type ManagerConfig struct {
	Notification Config
	Messaging    Config
}

// DefaultManagerConfig returns channel configs for the given URLs.
func DefaultManagerConfig(notificationURL, messagingURL string) ManagerConfig {
	return ManagerConfig{
		Notification: DefaultConfig(ChannelNotification, notificationURL),
		Messaging:    DefaultConfig(ChannelMessaging, messagingURL),
	}
}

// Manager owns the notification and messaging channels and keeps them in
// step with the credential store.
type Manager struct {
	notification *Channel
	messaging    *Channel
	logger       types.Logger

	mu     sync.Mutex
	cancel func()
}

// NewManager creates a Manager with both channels disconnected.
func NewManager(config ManagerConfig, logger types.Logger) *Manager {
	return &Manager{
		notification: NewChannel(config.Notification, logger),
		messaging:    NewChannel(config.Messaging, logger),
		logger:       logger,
	}
}

// Notification returns the notification channel.
func (m *Manager) Notification() *Channel {
	return m.notification
}

// Messaging returns the messaging channel.
func (m *Manager) Messaging() *Channel {
	return m.messaging
}

// Apply reconnects both channels with cred, or closes them when cred is
// incomplete.
func (m *Manager) Apply(ctx context.Context, cred domain.Credential) error {
	if !cred.Complete() {
		m.closeChannels()
		return ErrIncompleteCredential
	}
	return errors.Join(
		m.notification.Connect(ctx, cred),
		m.messaging.Connect(ctx, cred),
	)
}

// Follow applies the current credential and every later change. It replaces
// any previous Follow.
func (m *Manager) Follow(ctx context.Context, source CredentialSource) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = source.Subscribe(func(cred domain.Credential) {
		m.apply(ctx, cred)
	})
	m.mu.Unlock()

	if cred, ok := source.Get(); ok {
		m.apply(ctx, cred)
	} else {
		m.logger.Info("No credential, realtime channels stay closed")
	}
}

func (m *Manager) apply(ctx context.Context, cred domain.Credential) {
	err := m.Apply(ctx, cred)
	switch {
	case errors.Is(err, ErrIncompleteCredential):
		m.logger.Info("Credential cleared, realtime channels closed")
	case err != nil:
		m.logger.Warn("Realtime connect failed, retrying in background", "error", err)
	}
}

// Close stops following the credential store and closes both channels.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
	return m.closeChannels()
}

func (m *Manager) closeChannels() error {
	return errors.Join(m.notification.Close(), m.messaging.Close())
}
