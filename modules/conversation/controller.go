package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
)

var (
	// ErrUnauthenticated is returned when fetching or sending without a credential.
	ErrUnauthenticated = errors.New("conversation: not authenticated")
	// ErrPeerNotFound is returned when no private room contains the peer.
	ErrPeerNotFound = errors.New("conversation: no room for peer")
	// ErrStaleFetch is returned when a newer selection superseded a fetch.
	ErrStaleFetch = errors.New("conversation: fetch superseded by a newer selection")
	// ErrFetchTimeout is returned when a history fetch exceeds the fetch timeout.
	ErrFetchTimeout = errors.New("conversation: history fetch timed out")
	// ErrNoActiveRoom is returned when an operation needs a selected room.
	ErrNoActiveRoom = errors.New("conversation: no active room")
)

// DefaultFetchTimeout bounds a history fetch when no timeout is configured.
const DefaultFetchTimeout = 15 * time.Second

// HistoryFetcher loads the message history of a room.
type HistoryFetcher interface {
	History(ctx context.Context, token, roomID string, self domain.Identity) ([]domain.Message, error)
}

// CredentialSource provides the current credential and identity.
type CredentialSource interface {
	Get() (domain.Credential, bool)
	Identity() domain.Identity
}

// PeerResolver finds the private room shared with a peer.
type PeerResolver interface {
	RoomForPeer(peerID string) (string, bool)
}

// Controller tracks which room is active and loads its history. Every
// selection bumps a generation counter; a fetch resolving under an older
// generation is discarded.
type Controller struct {
	history      HistoryFetcher
	creds        CredentialSource
	peers        PeerResolver
	timeline     *Timeline
	fetchTimeout time.Duration
	logger       types.Logger

	mu         sync.Mutex
	state      domain.RoomState
	roomID     string
	generation uint64
	lastErr    error
}

// NewController creates an idle controller writing to timeline.
func NewController(history HistoryFetcher, creds CredentialSource, peers PeerResolver, timeline *Timeline, fetchTimeout time.Duration, logger types.Logger) *Controller {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Controller{
		history:      history,
		creds:        creds,
		peers:        peers,
		timeline:     timeline,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		state:        domain.RoomIdle,
	}
}

// State returns the current state and active room id.
func (c *Controller) State() (domain.RoomState, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.roomID
}

// Err returns the error that moved the controller to Failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SelectRoom makes roomID active, clears the timeline and fetches the
// history. Selecting the active room again fetches again.
func (c *Controller) SelectRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return ErrNoActiveRoom
	}
	gen := c.begin(roomID, true)
	return c.fetch(ctx, gen, roomID)
}

// SelectPeer resolves the private room shared with peerID and selects it.
// With no such room the controller goes Idle with an empty timeline.
func (c *Controller) SelectPeer(ctx context.Context, peerID string) error {
	roomID, ok := c.peers.RoomForPeer(peerID)
	if !ok {
		c.Deselect()
		c.logger.Warn("No private room for peer", "peer_id", peerID)
		return fmt.Errorf("%w: %s", ErrPeerNotFound, peerID)
	}
	return c.SelectRoom(ctx, roomID)
}

// Deselect returns to Idle and discards fetches in flight.
func (c *Controller) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.state = domain.RoomIdle
	c.roomID = ""
	c.lastErr = nil
	c.timeline.Reset("")
}

// Retry fetches the active room's history again after a failure.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	roomID := c.roomID
	state := c.state
	c.mu.Unlock()

	if roomID == "" {
		return ErrNoActiveRoom
	}
	if state != domain.RoomFailed {
		return fmt.Errorf("conversation: retry in state %s", state)
	}
	gen := c.begin(roomID, false)
	return c.fetch(ctx, gen, roomID)
}

func (c *Controller) begin(roomID string, reset bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.state = domain.RoomLoading
	c.roomID = roomID
	c.lastErr = nil
	if reset {
		c.timeline.Reset(roomID)
	}
	return c.generation
}

type fetchResult struct {
	messages []domain.Message
	err      error
}

func (c *Controller) fetch(ctx context.Context, gen uint64, roomID string) error {
	cred, ok := c.creds.Get()
	if !ok {
		return c.resolve(gen, roomID, nil, ErrUnauthenticated)
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		messages, err := c.history.History(ctx, cred.Token, roomID, c.creds.Identity())
		done <- fetchResult{messages: messages, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if errors.Is(res.err, context.DeadlineExceeded) {
		res.err = fmt.Errorf("%w after %v", ErrFetchTimeout, c.fetchTimeout)
	}
	return c.resolve(gen, roomID, res.messages, res.err)
}

func (c *Controller) resolve(gen uint64, roomID string, messages []domain.Message, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug("Discarding stale history", "room_id", roomID)
		return ErrStaleFetch
	}
	if err != nil {
		c.state = domain.RoomFailed
		c.lastErr = err
		c.logger.Warn("Failed to load history", "room_id", roomID, "error", err)
		return err
	}

	c.timeline.ReplaceAll(roomID, messages)
	c.state = domain.RoomReady
	c.logger.Debug("History loaded", "room_id", roomID, "count", len(messages))
	return nil
}
