package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
)

var (
	// ErrNotAnImage is returned when an attachment is not an image.
	ErrNotAnImage = errors.New("capture: only image files are accepted")
	// ErrNotReady is returned before the attachment store is available.
	ErrNotReady = errors.New("capture: attachment store not ready")
)

// ValidateImage resolves the content type of an image attachment. An empty
// contentType is sniffed from data.
func ValidateImage(contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotAnImage, contentType)
	}
	return contentType, nil
}

// Pipeline turns local images and recordings into staged media references.
type Pipeline struct {
	recorder *Recorder
	logger   types.Logger

	mu    sync.RWMutex
	store *AttachmentStore
}

// NewPipeline creates a pipeline. Staging fails with ErrNotReady until a
// store is attached.
func NewPipeline(recorder *Recorder, logger types.Logger) *Pipeline {
	return &Pipeline{recorder: recorder, logger: logger}
}

// Attach sets the attachment store.
func (p *Pipeline) Attach(store *AttachmentStore) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store = store
}

// Store returns the attachment store, or nil before Attach.
func (p *Pipeline) Store() *AttachmentStore {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store
}

// Recorder returns the voice recorder.
func (p *Pipeline) Recorder() *Recorder {
	return p.recorder
}

// AttachImage validates and stages an image. Nothing leaves the process.
func (p *Pipeline) AttachImage(ctx context.Context, name, contentType string, data []byte) (domain.ImageRef, error) {
	contentType, err := ValidateImage(contentType, data)
	if err != nil {
		p.logger.Warn("Rejected attachment", "name", name, "error", err)
		return domain.ImageRef{}, err
	}
	store := p.Store()
	if store == nil {
		return domain.ImageRef{}, ErrNotReady
	}
	handle, err := store.Put(ctx, name, contentType, data)
	if err != nil {
		return domain.ImageRef{}, err
	}
	return domain.ImageRef{Handle: handle, ContentType: contentType}, nil
}

// StartRecording opens a capture session.
func (p *Pipeline) StartRecording(ctx context.Context) error {
	return p.recorder.Start(ctx)
}

// StopRecording closes the capture session and stages the audio.
func (p *Pipeline) StopRecording(ctx context.Context) (domain.VoiceRef, error) {
	rec, err := p.recorder.Stop(ctx)
	if err != nil {
		return domain.VoiceRef{}, err
	}
	store := p.Store()
	if store == nil {
		return domain.VoiceRef{}, ErrNotReady
	}
	handle, err := store.Put(ctx, "voice.wav", rec.ContentType, rec.Data)
	if err != nil {
		return domain.VoiceRef{}, err
	}
	return domain.VoiceRef{Handle: handle, DurationSeconds: rec.Seconds}, nil
}

// Discard revokes a staged handle.
func (p *Pipeline) Discard(handle string) error {
	store := p.Store()
	if store == nil {
		return ErrNotReady
	}
	return store.Revoke(handle)
}

// AbortRecording drops an open capture session.
func (p *Pipeline) AbortRecording() {
	p.recorder.Abort()
}
