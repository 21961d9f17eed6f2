package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

var (
	// ErrUnauthenticated is returned when an authenticated call has no token.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInvitationsDisabled is returned when invitations are switched off.
	ErrInvitationsDisabled = errors.New("invitations are disabled")
	// ErrTransport is returned when the request could not be completed.
	ErrTransport = errors.New("request failed")
)

// Error is a non-OK REST response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// IsFetchError reports whether err is a non-OK REST response.
func IsFetchError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Config configures the REST client.
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	InvitationsEnabled bool
	// RequestsPerSecond throttles outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:3005",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

// Client calls the chat REST API.
type Client struct {
	config  Config
	limiter *rate.Limiter
	logger  types.Logger
}

// NewClient creates a new Client.
func NewClient(config Config, logger types.Logger) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &Client{
		config:  config,
		limiter: rate.NewLimiter(limit, config.Burst),
		logger:  logger,
	}
}

// Login exchanges a user id for a credential.
func (c *Client) Login(ctx context.Context, usrID string) (domain.Credential, error) {
	if usrID == "" {
		return domain.Credential{}, fmt.Errorf("user id is required")
	}

	agent := fiber.Post(c.config.BaseURL + "/login").JSON(LoginRequest{UsrID: usrID})
	var resp LoginResponse
	if err := c.do(ctx, agent, &resp); err != nil {
		return domain.Credential{}, fmt.Errorf("failed to login: %w", err)
	}

	cred := domain.Credential{Token: resp.Token, MemberID: string(resp.Member.ID)}
	if !cred.Complete() {
		return domain.Credential{}, fmt.Errorf("failed to login: response is missing token or member id")
	}
	c.logger.Info("Logged in", "memberID", cred.MemberID)
	return cred, nil
}

// ListRooms fetches the rooms of one kind.
func (c *Client) ListRooms(ctx context.Context, token string, kind domain.Kind) ([]domain.Room, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	agent := fiber.Get(c.config.BaseURL + "/rooms/" + url.PathEscape(string(kind)))
	var resp Response[[]RawRoom]
	if err := c.do(ctx, authorize(agent, token), &resp); err != nil {
		return nil, fmt.Errorf("failed to list %s rooms: %w", kind, err)
	}

	rooms := make([]domain.Room, 0, len(resp.Data))
	for _, raw := range resp.Data {
		rooms = append(rooms, raw.Room(kind))
	}
	return rooms, nil
}

// History fetches the message history of a room, oldest first.
func (c *Client) History(ctx context.Context, token, roomID string, self domain.Identity) ([]domain.Message, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	agent := fiber.Get(c.config.BaseURL + "/rooms/" + url.PathEscape(roomID) + "/messages")
	var resp Response[[]RawMessage]
	if err := c.do(ctx, authorize(agent, token), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(resp.Data))
	for _, raw := range resp.Data {
		messages = append(messages, raw.Message(roomID, self))
	}
	return messages, nil
}

// SendInvitation invites an email address to the given conversation type.
func (c *Client) SendInvitation(ctx context.Context, token, email, kind string) error {
	if !c.config.InvitationsEnabled {
		return ErrInvitationsDisabled
	}
	if token == "" {
		return ErrUnauthenticated
	}

	agent := fiber.Post(c.config.BaseURL + "/invitations/send").
		JSON(InvitationRequest{Email: email, Type: kind})
	var resp Response[json.RawMessage]
	if err := c.do(ctx, authorize(agent, token), &resp); err != nil {
		return fmt.Errorf("failed to send invitation: %w", err)
	}
	return nil
}

func authorize(agent *fiber.Agent, token string) *fiber.Agent {
	return agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
}

// do sends the request and decodes a 2xx JSON body into out. The agent is
// released on every path.
func (c *Client) do(ctx context.Context, agent *fiber.Agent, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		fiber.ReleaseAgent(agent)
		return err
	}

	timeout := c.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	agent.Timeout(timeout)

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrTransport, errors.Join(errs...))
	}

	if code < 200 || code > 299 {
		apiErr := &Error{StatusCode: code}
		var resp Response[json.RawMessage]
		if json.Unmarshal(body, &resp) == nil {
			apiErr.Message = resp.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
