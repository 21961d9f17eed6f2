// Command mock-backend serves the chat REST and realtime contract locally so
// the client can run without the real backend.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/example/chat-sync-client/modules/backend"
	"github.com/example/chat-sync-client/modules/backend/backendtest"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	port := getEnvInt("MOCK_BACKEND_PORT", 3005)
	secret := getEnv("MOCK_BACKEND_SECRET", backendtest.DefaultConfig().Secret)
	shutdownTimeout := getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	config := backendtest.DefaultConfig()
	config.Secret = secret
	server := backendtest.NewServer(config)
	seed(server)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		log.Fatalf("Failed to listen on port %d: %v", port, err)
	}

	go func() {
		if err := server.Serve(ln); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Println("=== Mock Chat Backend ===")
	log.Printf("REST: http://localhost:%d", port)
	log.Printf("Messaging: ws://localhost:%d/socket", port)
	log.Printf("Notification: ws://localhost:%d/notifications", port)
	for _, u := range config.Users {
		log.Printf("  user %s -> %s (%s)", u.UsrID, u.Name, u.MemberID)
	}
	log.Println("Press Ctrl+C to shutdown")

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mock-backend": func(ctx context.Context) error {
				log.Println("Shutting down mock backend...")
				return server.Close()
			},
		},
	)

	exitCode := <-wait
	log.Printf("Mock backend exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// seed loads a small directory: one group shared by everyone and a private
// room between each pair of users.
func seed(server *backendtest.Server) {
	alice := backend.RawMember{ID: "m-alice", UsrName: "alice", FullName: "Alice", IsOnline: true}
	bob := backend.RawMember{ID: "m-bob", UsrName: "bob", FullName: "Bob"}
	carol := backend.RawMember{ID: "m-carol", UsrName: "carol", FullName: "Carol"}

	server.SetRooms("group", backend.RawRoom{
		ID:       "g1",
		Name:     "Engineering",
		RoomType: "group",
		Members:  []backend.RawMember{alice, bob, carol},
	})
	server.SetRooms("private",
		backend.RawRoom{ID: "p1", Name: "alice & bob", RoomType: "private", Members: []backend.RawMember{alice, bob}},
		backend.RawRoom{ID: "p2", Name: "alice & carol", RoomType: "private", Members: []backend.RawMember{alice, carol}},
		backend.RawRoom{ID: "p3", Name: "bob & carol", RoomType: "private", Members: []backend.RawMember{bob, carol}},
	)

	now := time.Now().UTC()
	server.AddMessages("g1",
		backendtest.WireMessage{
			ID:        "seed-1",
			RoomID:    "g1",
			Sender:    map[string]any{"id": "m-bob", "usr_name": "bob"},
			SenderID:  "m-bob",
			Content:   "Welcome to Engineering",
			Timestamp: now.Add(-time.Hour).Format(time.RFC3339),
		},
		backendtest.WireMessage{
			ID:        "seed-2",
			RoomID:    "g1",
			Sender:    "carol",
			Content:   "Standup in ten minutes",
			Timestamp: now.Add(-10 * time.Minute).Format(time.RFC3339),
		},
	)
	server.AddMessages("p1", backendtest.WireMessage{
		ID:        "seed-3",
		RoomID:    "p1",
		Sender:    "bob",
		SenderID:  "m-bob",
		Content:   "Got a minute?",
		Timestamp: now.Add(-5 * time.Minute).Format(time.RFC3339),
	})
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
