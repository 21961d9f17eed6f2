package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/example/chat-sync-client/events"
	"github.com/example/chat-sync-client/modules/realtime"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// ErrKindNotHosted is returned when addressing a view the module does not host.
var ErrKindNotHosted = errors.New("conversation: kind not hosted")

// Config configures the conversation module.
type Config struct {
	Kind          domain.Kind   // default view; InitialRoomID applies to it
	Kinds         []domain.Kind // hosted views, all kinds when empty
	FetchTimeout  time.Duration
	InitialRoomID string
}

// DefaultConfig hosts every kind with group as the default view.
func DefaultConfig() Config {
	return Config{
		Kind:         domain.KindGroup,
		FetchTimeout: DefaultFetchTimeout,
	}
}

// Module hosts one conversation view per kind and feeds them realtime pushes.
type Module struct {
	config Config
	deps   Deps
	kinds  []domain.Kind
	views  map[domain.Kind]*View
	logger types.Logger

	mu        sync.RWMutex
	messaging string

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

// NewModule creates a new conversation module.
func NewModule(config Config, deps Deps, logger types.Logger) *Module {
	kinds := config.Kinds
	if len(kinds) == 0 {
		kinds = domain.Kinds()
	}
	if config.Kind == "" {
		config.Kind = kinds[0]
	}

	m := &Module{
		config:    config,
		deps:      deps,
		views:     make(map[domain.Kind]*View),
		logger:    logger,
		messaging: string(domain.StatusDisconnected),
	}
	for _, kind := range append(append([]domain.Kind(nil), kinds...), config.Kind) {
		if _, ok := m.views[kind]; ok {
			continue
		}
		m.kinds = append(m.kinds, kind)
		m.views[kind] = NewView(ViewConfig{Kind: kind, FetchTimeout: config.FetchTimeout}, deps, logger)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "conversation"
}

// View returns the default conversation view.
func (m *Module) View() *View {
	return m.views[m.config.Kind]
}

// ViewOf returns the view of kind.
func (m *Module) ViewOf(kind domain.Kind) (*View, bool) {
	v, ok := m.views[kind]
	return v, ok
}

// Kinds returns the hosted kinds.
func (m *Module) Kinds() []domain.Kind {
	return append([]domain.Kind(nil), m.kinds...)
}

// RegisterEventConsumers registers handlers for pushes, status and credential changes.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.MessageReceivedV1, m.handleMessageReceived, m); err != nil {
		return fmt.Errorf("failed to register MessageReceived consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.ConnectionStatusV1, m.handleConnectionStatus, m); err != nil {
		return fmt.Errorf("failed to register ConnectionStatus consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.CredentialChangedV1, m.handleCredentialChanged, m); err != nil {
		return fmt.Errorf("failed to register CredentialChanged consumer: %w", err)
	}
	m.logger.Info("Registered event consumers",
		"events", []string{"MessageReceived.v1", "ConnectionStatus.v1", "CredentialChanged.v1"})
	return nil
}

// Start selects the initial room, if configured.
func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	if m.config.InitialRoomID != "" {
		m.selectInBackground(m.View(), m.config.InitialRoomID)
	}
	m.logger.Info("Conversation module started", "kinds", m.kinds, "default", m.config.Kind)
	return nil
}

// Stop aborts capture and cancels fetches in flight.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	for _, kind := range m.kinds {
		m.views[kind].Close()
	}
	m.logger.Info("Conversation module stopped")
	return nil
}

// Health returns the health status. It is unhealthy while any view failed to
// load its room.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	m.mu.RLock()
	messaging := m.messaging
	m.mu.RUnlock()

	healthy := true
	details := map[string]any{
		"default":   string(m.config.Kind),
		"messaging": messaging,
	}
	for _, kind := range m.kinds {
		v := m.views[kind]
		state, roomID := v.Controller().State()
		view := map[string]any{
			"state":    string(state),
			"room_id":  roomID,
			"messages": v.Timeline().Len(),
		}
		if err := v.Controller().Err(); err != nil {
			view["error"] = err.Error()
		}
		if state == domain.RoomFailed {
			healthy = false
		}
		details[string(kind)] = view
	}

	message := "operational"
	if !healthy {
		message = "room load failed"
	}
	return mono.HealthStatus{
		Healthy: healthy,
		Message: message,
		Details: details,
	}
}

func (m *Module) handleMessageReceived(_ context.Context, event events.MessageReceivedEvent, _ *mono.Msg) error {
	for _, kind := range m.kinds {
		appended, err := m.views[kind].HandlePush(event.Payload)
		if err != nil {
			m.logger.Error("Dropping malformed receiveMessage", "error", err)
			return nil // Don't retry on decode errors
		}
		if appended {
			m.logger.Debug("Message appended", "kind", kind, "room_id", m.views[kind].Timeline().RoomID())
		}
	}
	return nil
}

func (m *Module) handleConnectionStatus(_ context.Context, event events.ConnectionStatusEvent, _ *mono.Msg) error {
	if event.Channel != realtime.ChannelMessaging {
		return nil
	}
	m.mu.Lock()
	m.messaging = event.Status
	m.mu.Unlock()
	return nil
}

func (m *Module) handleCredentialChanged(_ context.Context, event events.CredentialChangedEvent, _ *mono.Msg) error {
	for _, kind := range m.kinds {
		v := m.views[kind]
		_, roomID := v.Controller().State()
		if !event.Authenticated {
			v.Close()
			continue
		}
		if roomID == "" && kind == m.config.Kind {
			roomID = m.config.InitialRoomID
		}
		if roomID != "" {
			m.selectInBackground(v, roomID)
		}
	}
	return nil
}

func (m *Module) selectInBackground(v *View, roomID string) {
	if m.ctx == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := v.SelectRoom(m.ctx, roomID)
		if err != nil && !errors.Is(err, ErrStaleFetch) {
			m.logger.Warn("Room selection failed", "kind", v.Kind(), "room_id", roomID, "error", err)
		}
	}()
}
