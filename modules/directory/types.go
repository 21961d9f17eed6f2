package directory

import domain "github.com/example/chat-sync-client/domain/chat"

// ListRoomsRequest is the request for listing rooms of a kind.
type ListRoomsRequest struct {
	Kind    string `json:"kind"`
	Refresh bool   `json:"refresh,omitempty"`
}

// ListRoomsResponse is the response for listing rooms.
type ListRoomsResponse struct {
	Kind  domain.Kind   `json:"kind"`
	Rooms []domain.Room `json:"rooms"`
	Total int           `json:"total"`
}

// ListPeersRequest is the request for listing peers.
type ListPeersRequest struct{}

// PeerResponse is a peer with the private room shared with it.
type PeerResponse struct {
	domain.Member
	RoomID string `json:"room_id"`
}

// ListPeersResponse is the response for listing peers.
type ListPeersResponse struct {
	Peers []PeerResponse `json:"peers"`
	Total int            `json:"total"`
}
