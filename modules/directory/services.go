package directory

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "rooms", json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register rooms service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "peers", json.Unmarshal, json.Marshal, m.listPeers,
	); err != nil {
		return fmt.Errorf("failed to register peers service: %w", err)
	}

	m.logger.Info("Registered services", "services", "services.directory.{rooms,peers}")
	return nil
}

// listRooms serves the cached rooms, loading them when nothing is cached or
// a refresh is requested.
func (m *Module) listRooms(ctx context.Context, req ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return ListRoomsResponse{}, err
	}

	rooms := m.directory.Rooms(kind)
	if req.Refresh || len(rooms) == 0 {
		rooms, err = m.directory.LoadRooms(ctx, kind)
		if err != nil {
			return ListRoomsResponse{}, err
		}
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}

	return ListRoomsResponse{
		Kind:  kind,
		Rooms: rooms,
		Total: len(rooms),
	}, nil
}

func (m *Module) listPeers(_ context.Context, _ ListPeersRequest, _ *mono.Msg) (ListPeersResponse, error) {
	members := m.directory.Peers()
	peers := make([]PeerResponse, 0, len(members))
	for _, member := range members {
		roomID, _ := m.directory.RoomForPeer(member.ID)
		peers = append(peers, PeerResponse{Member: member, RoomID: roomID})
	}
	return ListPeersResponse{
		Peers: peers,
		Total: len(peers),
	}, nil
}
