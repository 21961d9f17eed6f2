// Package backendtest runs an in-process chat backend implementing the REST
// and realtime contract the client consumes.
package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/example/chat-sync-client/modules/backend"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Realtime channel names and their websocket paths.
const (
	ChannelMessaging    = "messaging"
	ChannelNotification = "notification"

	messagingPath    = "/socket"
	notificationPath = "/notifications"
)

// User is an account the backend accepts at /login.
type User struct {
	UsrID    string
	MemberID string
	Name     string
}

// WireMessage is a stored message in the backend's wire format. Sender is
// either a string or an object, as the real backend sends both.
type WireMessage struct {
	ID          string `json:"id"`
	RoomID      string `json:"room_id"`
	Sender      any    `json:"sender"`
	SenderID    string `json:"sender_id,omitempty"`
	Content     string `json:"content,omitempty"`
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type,omitempty"`
	Media       string `json:"media,omitempty"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
}

// Config configures the backend.
type Config struct {
	Secret       string
	Users        []User
	EchoClientID bool // echo client_msg_id back in receiveMessage
}

// DefaultConfig returns a backend with three users.
func DefaultConfig() Config {
	return Config{
		Secret: "backendtest-secret",
		Users: []User{
			{UsrID: "1001", MemberID: "m-alice", Name: "alice"},
			{UsrID: "1002", MemberID: "m-bob", Name: "bob"},
			{UsrID: "1003", MemberID: "m-carol", Name: "carol"},
		},
		EchoClientID: true,
	}
}

type storedRoom struct {
	kind string
	room backend.RawRoom
}

type tokenClaims struct {
	UserName string `json:"usr_name"`
	jwt.RegisteredClaims
}

// Server is the in-process backend.
type Server struct {
	config    Config
	app       *fiber.App
	hub       *Hub
	cancelHub context.CancelFunc
	addr      string

	mu           sync.Mutex
	rooms        []storedRoom
	history      map[string][]WireMessage
	delays       map[string]time.Duration
	failHistory  map[string]int
	failRooms    map[string]int
	historyCalls map[string]int
	sent         []backend.SendMessagePayload
	invitations  []backend.InvitationRequest
}

// NewServer creates a backend and starts its hub.
func NewServer(config Config) *Server {
	if config.Secret == "" {
		config.Secret = DefaultConfig().Secret
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:       config,
		hub:          NewHub(),
		cancelHub:    cancel,
		history:      make(map[string][]WireMessage),
		delays:       make(map[string]time.Duration),
		failHistory:  make(map[string]int),
		failRooms:    make(map[string]int),
		historyCalls: make(map[string]int),
	}
	go s.hub.Run(ctx)

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())
	s.setupRoutes()
	return s
}

// Start creates a backend listening on a random loopback port.
func Start(config Config) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	s := NewServer(config)
	s.addr = ln.Addr().String()
	go func() {
		if err := s.app.Listener(ln); err != nil {
			log.Printf("[backendtest] HTTP server error: %v", err)
		}
	}()
	return s, nil
}

// Serve serves on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.addr = ln.Addr().String()
	return s.app.Listener(ln)
}

// Close closes every realtime connection, then shuts down the HTTP server.
func (s *Server) Close() error {
	s.cancelHub()
	s.hub.Wait()
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// URL returns the REST base URL.
func (s *Server) URL() string {
	return "http://" + s.addr
}

// SocketURL returns the websocket URL of a channel.
func (s *Server) SocketURL(channel string) string {
	if channel == ChannelNotification {
		return "ws://" + s.addr + notificationPath
	}
	return "ws://" + s.addr + messagingPath
}

// Hub returns the realtime hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// IssueToken signs a token for memberID carrying the user's name.
func (s *Server) IssueToken(memberID, name string) (string, error) {
	claims := tokenClaims{
		UserName: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
}

// SetRooms replaces the rooms of a kind.
func (s *Server) SetRooms(kind string, rooms ...backend.RawRoom) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rooms[:0]
	for _, r := range s.rooms {
		if r.kind != kind {
			kept = append(kept, r)
		}
	}
	for _, r := range rooms {
		kept = append(kept, storedRoom{kind: kind, room: r})
	}
	s.rooms = kept
}

// AddMessages appends messages to a room's history.
func (s *Server) AddMessages(roomID string, messages ...WireMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[roomID] = append(s.history[roomID], messages...)
}

// SetHistoryDelay delays history responses for a room.
func (s *Server) SetHistoryDelay(roomID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[roomID] = d
}

// FailHistory makes history requests for a room answer with status.
func (s *Server) FailHistory(roomID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failHistory[roomID] = status
}

// FailRooms makes room listing for a kind answer with status.
func (s *Server) FailRooms(kind string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRooms[kind] = status
}

// HistoryCalls returns how many history requests a room received.
func (s *Server) HistoryCalls(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyCalls[roomID]
}

// Sent returns every sendMessage the backend received.
func (s *Server) Sent() []backend.SendMessagePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.SendMessagePayload(nil), s.sent...)
}

// Invitations returns every invitation the backend received.
func (s *Server) Invitations() []backend.InvitationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.InvitationRequest(nil), s.invitations...)
}

// Push sends an event to every connection of memberID on channel.
func (s *Server) Push(memberID, channel, event string, data any) error {
	return s.hub.Send(memberID, channel, event, data)
}

// DropConnections closes every realtime connection.
func (s *Server) DropConnections() {
	s.hub.DropAll()
}

func (s *Server) setupRoutes() {
	s.app.Post("/login", s.login)
	s.app.Get("/rooms/:id/messages", s.requireAuth, s.roomMessages)
	s.app.Get("/rooms/:kind", s.requireAuth, s.listRooms)
	s.app.Post("/invitations/send", s.requireAuth, s.sendInvitation)

	s.app.Use(messagingPath, s.requireAuth, s.requireUpgrade)
	s.app.Get(messagingPath, websocket.New(s.handleSocket(ChannelMessaging)))
	s.app.Use(notificationPath, s.requireAuth, s.requireUpgrade)
	s.app.Get(notificationPath, websocket.New(s.handleSocket(ChannelNotification)))
}

func (s *Server) login(c *fiber.Ctx) error {
	var req backend.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return reply(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	for _, u := range s.config.Users {
		if u.UsrID != req.UsrID {
			continue
		}
		token, err := s.IssueToken(u.MemberID, u.Name)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"token":  token,
			"member": fiber.Map{"id": u.MemberID, "usr_name": u.Name},
		})
	}
	return reply(c, fiber.StatusUnauthorized, "unknown user", nil)
}

func (s *Server) listRooms(c *fiber.Ctx) error {
	kind := c.Params("kind")
	memberID, _ := c.Locals("memberID").(string)

	s.mu.Lock()
	status := s.failRooms[kind]
	rooms := make([]backend.RawRoom, 0)
	for _, r := range s.rooms {
		if r.kind == kind && hasMember(r.room, memberID) {
			rooms = append(rooms, r.room)
		}
	}
	s.mu.Unlock()

	if status != 0 {
		return reply(c, status, "failed to fetch rooms", nil)
	}
	return reply(c, fiber.StatusOK, "rooms fetched", rooms)
}

func (s *Server) roomMessages(c *fiber.Ctx) error {
	roomID := c.Params("id")

	s.mu.Lock()
	s.historyCalls[roomID]++
	delay := s.delays[roomID]
	status := s.failHistory[roomID]
	messages := append([]WireMessage{}, s.history[roomID]...)
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		return reply(c, status, "failed to fetch messages", nil)
	}
	return reply(c, fiber.StatusOK, "messages fetched", messages)
}

func (s *Server) sendInvitation(c *fiber.Ctx) error {
	var req backend.InvitationRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return reply(c, fiber.StatusBadRequest, "email is required", nil)
	}
	s.mu.Lock()
	s.invitations = append(s.invitations, req)
	s.mu.Unlock()
	return reply(c, fiber.StatusOK, "invitation sent", nil)
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return reply(c, fiber.StatusUnauthorized, "missing bearer token", nil)
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return reply(c, fiber.StatusUnauthorized, "invalid token", nil)
	}

	c.Locals("memberID", claims.Subject)
	c.Locals("userName", claims.UserName)
	return c.Next()
}

// requireUpgrade rejects plain HTTP and member ids that do not match the token.
func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	memberID, _ := c.Locals("memberID").(string)
	if c.Query("memberId") != memberID {
		return reply(c, fiber.StatusForbidden, "member id does not match token", nil)
	}
	return c.Next()
}

func (s *Server) handleSocket(channel string) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		memberID, _ := c.Locals("memberID").(string)
		userName, _ := c.Locals("userName").(string)

		client := &Client{
			ID:       uuid.New().String(),
			MemberID: memberID,
			Channel:  channel,
			Conn:     c,
		}
		s.hub.Register(client)
		defer s.hub.Unregister(client)

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Printf("[backendtest] Invalid frame from %s: %v", memberID, err)
				continue
			}
			if channel == ChannelMessaging && env.Event == backend.EventSendMessage {
				s.handleSendMessage(memberID, userName, env.Data)
			}
		}
	}
}

func (s *Server) handleSendMessage(memberID, userName string, data json.RawMessage) {
	var payload backend.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("[backendtest] Invalid sendMessage from %s: %v", memberID, err)
		return
	}

	sender := payload.SenderName
	if sender == "" {
		sender = userName
	}
	msg := WireMessage{
		ID:        uuid.New().String(),
		RoomID:    payload.RoomID,
		Sender:    sender,
		SenderID:  memberID,
		Content:   payload.Content,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if s.config.EchoClientID {
		msg.ClientMsgID = payload.ClientMsgID
	}

	s.mu.Lock()
	s.sent = append(s.sent, payload)
	s.history[payload.RoomID] = append(s.history[payload.RoomID], msg)
	var recipients []string
	for _, r := range s.rooms {
		if string(r.room.ID) != payload.RoomID {
			continue
		}
		for _, m := range r.room.Members {
			recipients = append(recipients, string(m.ID))
		}
	}
	s.mu.Unlock()

	for _, member := range recipients {
		if err := s.hub.Send(member, ChannelMessaging, backend.EventReceiveMessage, msg); err != nil {
			log.Printf("[backendtest] Failed to queue message for %s: %v", member, err)
		}
	}
}

func hasMember(room backend.RawRoom, memberID string) bool {
	for _, m := range room.Members {
		if string(m.ID) == memberID {
			return true
		}
	}
	return false
}

func reply(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  status >= 200 && status < 300,
		"message": message,
		"data":    data,
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return reply(c, code, message, nil)
}
