package directory

import (
	"context"

	domain "github.com/example/chat-sync-client/domain/chat"
)

// Source lists the rooms of one kind.
type Source interface {
	Rooms(ctx context.Context, token string) ([]domain.Room, error)
}

// RoomLister is the backend call a RESTSource delegates to.
type RoomLister interface {
	ListRooms(ctx context.Context, token string, kind domain.Kind) ([]domain.Room, error)
}

// RESTSource lists rooms through GET /rooms/{kind}.
type RESTSource struct {
	client RoomLister
	kind   domain.Kind
}

// NewRESTSource creates a source for kind.
func NewRESTSource(client RoomLister, kind domain.Kind) *RESTSource {
	return &RESTSource{client: client, kind: kind}
}

// Rooms fetches the room list.
func (s *RESTSource) Rooms(ctx context.Context, token string) ([]domain.Room, error) {
	return s.client.ListRooms(ctx, token, s.kind)
}

// StaticSource serves a fixed room list. The department kind uses it for
// its implicit single room.
type StaticSource struct {
	rooms []domain.Room
}

// NewStaticSource creates a source returning rooms.
func NewStaticSource(rooms ...domain.Room) *StaticSource {
	return &StaticSource{rooms: rooms}
}

// DepartmentSource returns the single department room.
func DepartmentSource(id, name string) *StaticSource {
	return NewStaticSource(domain.Room{
		ID:          id,
		DisplayName: name,
		Kind:        domain.KindDepartment,
	})
}

// Rooms returns a copy of the configured rooms.
func (s *StaticSource) Rooms(_ context.Context, _ string) ([]domain.Room, error) {
	return append([]domain.Room(nil), s.rooms...), nil
}
