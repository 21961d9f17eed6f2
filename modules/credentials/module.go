package credentials

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/example/chat-sync-client/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/gorm"
)

// Config configures credential persistence.
type Config struct {
	DBPath  string // empty keeps the credential in memory only
	Profile string
}

// Module owns the credential store and its SQLite persistence.
type Module struct {
	config   Config
	service  *Service
	db       *gorm.DB
	eventBus mono.EventBus
	auth     Authenticator
	logger   types.Logger
	cancel   func()
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule creates a new credentials module.
func NewModule(config Config, logger types.Logger) *Module {
	return &Module{
		config:  config,
		service: NewService(nil),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "credentials"
}

// Service returns the credential store.
func (m *Module) Service() *Service {
	return m.service
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.CredentialChangedV1.ToBase(),
	}
}

// Start opens the database and restores the stored credential.
func (m *Module) Start(_ context.Context) error {
	if m.config.DBPath != "" {
		db, err := OpenDB(m.config.DBPath)
		if err != nil {
			return err
		}
		m.db = db
		m.service.store = NewRepository(db, m.config.Profile)
	}

	m.cancel = m.service.Subscribe(m.publishChange)

	if err := m.service.Restore(); err != nil {
		return fmt.Errorf("failed to restore credential: %w", err)
	}

	_, authenticated := m.service.Get()
	m.logger.Info("Credentials module started",
		"profile", m.config.Profile,
		"authenticated", authenticated)
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
	m.logger.Info("Credentials module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	cred, authenticated := m.service.Get()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"authenticated": authenticated,
			"member_id":     cred.MemberID,
		},
	}
}

func (m *Module) publishChange(cred domain.Credential) {
	if m.eventBus == nil {
		return
	}
	event := events.CredentialChangedEvent{
		MemberID:      cred.MemberID,
		Authenticated: cred.Complete(),
		Timestamp:     time.Now(),
	}
	if err := events.CredentialChangedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish CredentialChanged event", "error", err)
	}
}
