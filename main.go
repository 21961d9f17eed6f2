package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/example/chat-sync-client/modules/backend"
	"github.com/example/chat-sync-client/modules/capture"
	"github.com/example/chat-sync-client/modules/conversation"
	"github.com/example/chat-sync-client/modules/credentials"
	"github.com/example/chat-sync-client/modules/directory"
	"github.com/example/chat-sync-client/modules/notifications"
	"github.com/example/chat-sync-client/modules/realtime"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

func main() {
	// Load configuration from environment
	apiURL := getEnv("CHAT_API_URL", "http://localhost:3005")
	messagingURL := getEnv("CHAT_MESSAGING_URL", "ws://localhost:3005/socket")
	notificationURL := getEnv("CHAT_NOTIFICATION_URL", "ws://localhost:3005/notifications")
	userID := getEnv("CHAT_USER_ID", "")
	profile := getEnv("CHAT_PROFILE", "default")
	dbPath := getEnv("CHAT_DB_PATH", "chat-client.db")
	kindName := getEnv("CHAT_KIND", string(domain.KindGroup))
	notificationCapacity := getEnvInt("CHAT_NOTIFICATION_CAPACITY", notifications.DefaultCapacity)
	roomID := getEnv("CHAT_ROOM_ID", "")
	fetchTimeout := getEnvDuration("CHAT_FETCH_TIMEOUT", conversation.DefaultFetchTimeout)
	httpTimeout := getEnvDuration("CHAT_HTTP_TIMEOUT", 10*time.Second)
	requestRate := getEnvFloat("CHAT_REQUESTS_PER_SECOND", backend.DefaultConfig().RequestsPerSecond)
	maxReconnects := getEnvInt("CHAT_MAX_RECONNECTS", 5)
	recorderCmd := getEnv("CHAT_RECORDER_CMD", "")
	invitations := getEnvBool("CHAT_INVITATIONS_ENABLED", false)
	natsPort := getEnvInt("NATS_PORT", 4222)
	shutdownTimeout := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	kind, err := domain.ParseKind(kindName)
	if err != nil {
		log.Fatalf("Invalid CHAT_KIND: %v", err)
	}

	log.Println("=== Chat Sync Client ===")
	log.Printf("API: %s", apiURL)
	log.Printf("Messaging: %s", messagingURL)
	log.Printf("Notification: %s", notificationURL)
	log.Printf("Profile: %s (db %s)", profile, dbPath)
	log.Printf("Conversation: default %s %s", kind, roomID)

	// Create mono application with embedded NATS for the EventBus and attachments
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithNATSPort(natsPort),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Attachments live in memory and never outlive the session
	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        "attachments",
				Description: "Session-scoped media attachments",
				MaxBytes:    64 * 1024 * 1024,
				Storage:     fsjetstream.MemoryStorage,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	logger := app.Logger()
	client := backend.NewClient(backend.Config{
		BaseURL:            apiURL,
		Timeout:            httpTimeout,
		InvitationsEnabled: invitations,
		RequestsPerSecond:  requestRate,
		Burst:              backend.DefaultConfig().Burst,
	}, logger)

	credentialsModule := credentials.NewModule(credentials.Config{DBPath: dbPath, Profile: profile}, logger)
	credentialsModule.SetAuthenticator(client)
	creds := credentialsModule.Service()

	realtimeConfig := realtime.DefaultManagerConfig(notificationURL, messagingURL)
	realtimeConfig.Notification.MaxReconnects = maxReconnects
	realtimeConfig.Messaging.MaxReconnects = maxReconnects
	realtimeModule := realtime.NewModule(realtimeConfig, logger)
	realtimeModule.SetCredentials(creds)

	directoryModule := directory.NewModule(directory.DefaultConfig(), creds, client, logger)
	notificationsModule := notifications.NewModule(notifications.Config{Capacity: notificationCapacity}, logger)
	captureModule := capture.NewModule(capture.DefaultConfig(), capture.NewCommandMicrophone(recorderCmd), logger)

	conversationConfig := conversation.DefaultConfig()
	conversationConfig.Kind = kind
	conversationConfig.FetchTimeout = fetchTimeout
	conversationConfig.InitialRoomID = roomID
	conversationModule := conversation.NewModule(conversationConfig, conversation.Deps{
		History: client,
		Creds:   creds,
		Peers:   directoryModule.Directory(),
		Emitter: realtimeModule.Manager().Messaging(),
		Capture: captureModule.Pipeline(),
		Inviter: client,
	}, logger)

	app.Register(credentialsModule)
	app.Register(realtimeModule)
	app.Register(directoryModule)
	app.Register(notificationsModule)
	app.Register(captureModule)
	app.Register(conversationModule)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	if _, ok := creds.Get(); !ok {
		if userID == "" {
			log.Println("No stored credential and CHAT_USER_ID not set, staying signed out")
		} else if _, err := credentialsModule.Login(ctx, userID); err != nil {
			log.Printf("Login failed: %v", err)
		}
	}

	log.Println("=== Application Started ===")
	log.Printf("NATS available at nats://localhost:%d", natsPort)
	log.Println("Services:")
	log.Println("  services.credentials.login              - Sign in with a user id")
	log.Println("  services.credentials.logout             - Sign out and drop loaded state")
	log.Println("  services.credentials.whoami             - Current identity")
	log.Println("  services.conversation.select-room       - Select a room and load its history")
	log.Println("  services.conversation.select-peer       - Open the private room shared with a peer")
	log.Println("  services.conversation.send-text         - Send a text message to the active room")
	log.Println("  services.conversation.attach-image      - Stage an image in the active room")
	log.Println("  services.conversation.start-recording   - Start a voice note")
	log.Println("  services.conversation.stop-recording    - Finish the voice note and stage it")
	log.Println("  services.conversation.cancel-recording  - Drop the voice note")
	log.Println("  services.conversation.invite            - Invite an email address (CHAT_INVITATIONS_ENABLED)")
	log.Println("  services.conversation.timeline          - Current state and messages")
	log.Println("  services.conversation.retry             - Retry a failed history load")
	log.Println("  services.directory.rooms                - Rooms of a kind")
	log.Println("  services.directory.peers                - Members of the private rooms")
	log.Println("  services.notifications.recent           - Recent notification pushes")
	log.Println("  services.notifications.clear            - Drop stored notifications")
	log.Printf("Conversation services take an optional \"kind\" (%v), default %s", conversationModule.Kinds(), kind)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")

	// Setup graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
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

// getEnvFloat returns environment variable as float64 or default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Printf("Warning: invalid float value for %s: %s, using default: %g", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}
