package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnauthenticated is returned when loading without a credential.
	ErrUnauthenticated = errors.New("directory: not authenticated")
	// ErrUnknownKind is returned when no source is registered for a kind.
	ErrUnknownKind = errors.New("directory: no source for kind")
)

// CredentialSource provides the current credential.
type CredentialSource interface {
	Get() (domain.Credential, bool)
}

// Directory holds the room lists per kind and answers membership queries.
type Directory struct {
	creds  CredentialSource
	logger types.Logger
	group  singleflight.Group

	mu      sync.RWMutex
	sources map[domain.Kind]Source
	rooms   map[domain.Kind][]domain.Room
	epoch   uint64
}

// New creates an empty directory.
func New(creds CredentialSource, logger types.Logger) *Directory {
	return &Directory{
		creds:   creds,
		logger:  logger,
		sources: make(map[domain.Kind]Source),
		rooms:   make(map[domain.Kind][]domain.Room),
	}
}

// Register sets the source for kind.
func (d *Directory) Register(kind domain.Kind, source Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[kind] = source
}

// LoadRooms fetches the rooms of kind and stores them. Without a credential
// nothing is requested. On failure the kind is left empty. Concurrent loads
// of one kind share a single request.
func (d *Directory) LoadRooms(ctx context.Context, kind domain.Kind) ([]domain.Room, error) {
	cred, ok := d.creds.Get()
	if !ok {
		return nil, ErrUnauthenticated
	}

	d.mu.RLock()
	source, found := d.sources[kind]
	epoch := d.epoch
	d.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	// Keyed by epoch so a load started under a previous credential is never shared.
	key := fmt.Sprintf("%d/%s", epoch, kind)
	v, err, shared := d.group.Do(key, func() (any, error) {
		return source.Rooms(ctx, cred.Token)
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.epoch != epoch {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		delete(d.rooms, kind)
		d.logger.Warn("Failed to load rooms", "kind", kind, "error", err)
		return nil, err
	}

	rooms := v.([]domain.Room)
	d.rooms[kind] = append([]domain.Room(nil), rooms...)
	d.logger.Debug("Rooms loaded", "kind", kind, "count", len(rooms), "shared", shared)
	return append([]domain.Room(nil), rooms...), nil
}

// Rooms returns the loaded rooms of kind.
func (d *Directory) Rooms(kind domain.Kind) []domain.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Room(nil), d.rooms[kind]...)
}

// Room looks a room up by id across all kinds.
func (d *Directory) Room(roomID string) (domain.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, rooms := range d.rooms {
		for _, r := range rooms {
			if r.ID == roomID {
				return r, true
			}
		}
	}
	return domain.Room{}, false
}

// ApplyUpdate merges patch into the room with the same id. It reports
// whether such a room was loaded.
func (d *Directory) ApplyUpdate(patch domain.RoomPatch) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	applied := false
	for _, rooms := range d.rooms {
		for i := range rooms {
			if rooms[i].ID == patch.ID {
				rooms[i] = patch.Apply(rooms[i])
				applied = true
			}
		}
	}
	return applied
}

// Peers returns every member of the private rooms once, excluding the local
// member, in order of first appearance.
func (d *Directory) Peers() []domain.Member {
	self := ""
	if cred, ok := d.creds.Get(); ok {
		self = cred.MemberID
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]bool)
	peers := make([]domain.Member, 0)
	for _, r := range d.rooms[domain.KindPrivate] {
		for _, m := range r.Members {
			if m.ID == self || seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			peers = append(peers, m)
		}
	}
	return peers
}

// RoomForPeer returns the private room peerID belongs to.
func (d *Directory) RoomForPeer(peerID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.rooms[domain.KindPrivate] {
		if r.HasMember(peerID) {
			return r.ID, true
		}
	}
	return "", false
}

// Reset drops every loaded room. Loads in flight are discarded.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms = make(map[domain.Kind][]domain.Room)
	d.epoch++
}

// Kinds returns the kinds with a registered source.
func (d *Directory) Kinds() []domain.Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kinds := make([]domain.Kind, 0, len(d.sources))
	for _, k := range domain.Kinds() {
		if _, ok := d.sources[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
