package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/example/chat-sync-client/events"
	"github.com/example/chat-sync-client/modules/backend"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Config configures the directory module.
type Config struct {
	DepartmentID   string
	DepartmentName string
}

// DefaultConfig returns the default department room.
func DefaultConfig() Config {
	return Config{
		DepartmentID:   "department",
		DepartmentName: "Department",
	}
}

// Module keeps the directory loaded for the current credential and applies
// room metadata pushes.
type Module struct {
	config    Config
	directory *Directory
	lister    RoomLister
	logger    types.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule creates a new directory module.
func NewModule(config Config, creds CredentialSource, lister RoomLister, logger types.Logger) *Module {
	return &Module{
		config:    config,
		directory: New(creds, logger),
		lister:    lister,
		logger:    logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "directory"
}

// Directory returns the room directory.
func (m *Module) Directory() *Directory {
	return m.directory
}

// RegisterEventConsumers registers handlers for room pushes and credential changes.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomUpdatedV1, m.handleRoomUpdated, m); err != nil {
		return fmt.Errorf("failed to register RoomUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.CredentialChangedV1, m.handleCredentialChanged, m); err != nil {
		return fmt.Errorf("failed to register CredentialChanged consumer: %w", err)
	}
	m.logger.Info("Registered event consumers", "events", []string{"RoomUpdated.v1", "CredentialChanged.v1"})
	return nil
}

// Start registers the sources and loads every kind in the background.
func (m *Module) Start(_ context.Context) error {
	m.directory.Register(domain.KindDepartment, DepartmentSource(m.config.DepartmentID, m.config.DepartmentName))
	m.directory.Register(domain.KindPrivate, NewRESTSource(m.lister, domain.KindPrivate))
	m.directory.Register(domain.KindGroup, NewRESTSource(m.lister, domain.KindGroup))

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.reload()

	m.logger.Info("Directory module started")
	return nil
}

// Stop cancels loads in flight.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("Directory module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	details := make(map[string]any)
	for _, kind := range m.directory.Kinds() {
		details[string(kind)] = len(m.directory.Rooms(kind))
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

func (m *Module) handleRoomUpdated(_ context.Context, event events.RoomUpdatedEvent, _ *mono.Msg) error {
	patch, err := backend.DecodeRoomPatch(event.Payload)
	if err != nil {
		m.logger.Error("Failed to decode room update", "source", event.Source, "error", err)
		return nil // Don't retry on decode errors
	}
	if !m.directory.ApplyUpdate(patch) {
		m.logger.Debug("Room update for unknown room ignored", "room_id", patch.ID)
	}
	return nil
}

func (m *Module) handleCredentialChanged(_ context.Context, event events.CredentialChangedEvent, _ *mono.Msg) error {
	m.directory.Reset()
	if event.Authenticated {
		m.reload()
	}
	return nil
}

func (m *Module) reload() {
	if m.ctx == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for _, kind := range m.directory.Kinds() {
			if _, err := m.directory.LoadRooms(m.ctx, kind); errors.Is(err, ErrUnauthenticated) {
				m.logger.Info("Not authenticated, directory stays empty")
				return
			}
		}
	}()
}
