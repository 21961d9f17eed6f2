package capture

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

// Config configures the capture module.
type Config struct {
	Bucket   string
	Recorder RecorderConfig
}

// DefaultConfig returns the attachments bucket and default PCM format.
func DefaultConfig() Config {
	return Config{
		Bucket:   "attachments",
		Recorder: DefaultRecorderConfig(),
	}
}

// Module stages attachments in the storage plugin and owns the recorder.
type Module struct {
	config   Config
	storage  *fsjetstream.PluginModule
	pipeline *Pipeline
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new capture module recording from mic.
func NewModule(config Config, mic Microphone, logger types.Logger) *Module {
	return &Module{
		config:   config,
		pipeline: NewPipeline(NewRecorder(mic, config.Recorder, logger), logger),
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "capture"
}

// Pipeline returns the capture pipeline.
func (m *Module) Pipeline() *Pipeline {
	return m.pipeline
}

// SetPlugin receives the storage plugin from the framework.
// This is called before Start() when the module implements UsePluginModule.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	storage, ok := plugin.(*fsjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for storage",
			"alias", alias,
			"expected", "*fsjetstream.PluginModule")
		return
	}
	m.storage = storage
	m.logger.Info("Received storage plugin", "alias", alias)
}

// Start opens the attachments bucket.
func (m *Module) Start(_ context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}

	bucket := m.storage.Bucket(m.config.Bucket)
	if bucket == nil {
		return fmt.Errorf("bucket '%s' not found in storage plugin", m.config.Bucket)
	}
	store, err := NewAttachmentStore(bucket)
	if err != nil {
		return err
	}
	m.pipeline.Attach(store)

	m.logger.Info("Capture module started", "bucket", m.config.Bucket)
	return nil
}

// Stop aborts any recording and revokes every staged attachment.
func (m *Module) Stop(_ context.Context) error {
	m.pipeline.AbortRecording()
	if store := m.pipeline.Store(); store != nil {
		if err := store.RevokeAll(); err != nil {
			m.logger.Warn("Failed to revoke attachments", "error", err)
		}
	}
	m.logger.Info("Capture module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	staged := 0
	if store := m.pipeline.Store(); store != nil {
		staged = len(store.Handles())
	}
	return mono.HealthStatus{
		Healthy: m.pipeline.Store() != nil,
		Message: "operational",
		Details: map[string]any{
			"recording":   m.pipeline.Recorder().Active(),
			"attachments": staged,
		},
	}
}
