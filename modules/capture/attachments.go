package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	nanoid "github.com/jaevor/go-nanoid"
)

// HandlePrefix marks a session-scoped attachment handle.
const HandlePrefix = "blob:"

// ErrUnknownHandle is returned for handles this store did not issue or has revoked.
var ErrUnknownHandle = errors.New("capture: unknown attachment handle")

// AttachmentStore keeps staged media in an object storage bucket and hands
// out opaque blob: handles for it.
type AttachmentStore struct {
	bucket fsjetstream.FileStoragePort
	newID  func() string

	mu      sync.Mutex
	handles map[string]string // handle -> content type
}

// NewAttachmentStore creates a store on bucket.
func NewAttachmentStore(bucket fsjetstream.FileStoragePort) (*AttachmentStore, error) {
	newID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &AttachmentStore{
		bucket:  bucket,
		newID:   newID,
		handles: make(map[string]string),
	}, nil
}

// Put stages data and returns its handle.
func (s *AttachmentStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	id := s.newID()
	_, err := s.bucket.Put(ctx, id, data,
		fsjetstream.WithHeaders(map[string]string{
			"Content-Type": contentType,
			"File-Name":    name,
			"Staged-At":    time.Now().Format(time.RFC3339),
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}

	handle := HandlePrefix + id
	s.mu.Lock()
	s.handles[handle] = contentType
	s.mu.Unlock()
	return handle, nil
}

// Get returns the staged data and content type of handle.
func (s *AttachmentStore) Get(handle string) ([]byte, string, error) {
	id, contentType, err := s.lookup(handle)
	if err != nil {
		return nil, "", err
	}
	data, err := s.bucket.Get(id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", handle, err)
	}
	return data, contentType, nil
}

// Revoke deletes the staged data of handle.
func (s *AttachmentStore) Revoke(handle string) error {
	id, _, err := s.lookup(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.handles, handle)
	s.mu.Unlock()

	if err := s.bucket.Delete(id); err != nil {
		return fmt.Errorf("failed to revoke %s: %w", handle, err)
	}
	return nil
}

// RevokeAll deletes everything this store staged.
func (s *AttachmentStore) RevokeAll() error {
	var errs []error
	for _, handle := range s.Handles() {
		if err := s.Revoke(handle); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handles returns the live handles in sorted order.
func (s *AttachmentStore) Handles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]string, 0, len(s.handles))
	for h := range s.handles {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

func (s *AttachmentStore) lookup(handle string) (id, contentType string, err error) {
	id, ok := strings.CutPrefix(handle, HandlePrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	s.mu.Lock()
	contentType, known := s.handles[handle]
	s.mu.Unlock()
	if !known {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	return id, contentType, nil
}
