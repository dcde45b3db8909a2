package main

import (
	"context"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/chat-relay-demo/config"
	"github.com/example/chat-relay-demo/modules/activity"
	"github.com/example/chat-relay-demo/modules/api"
	"github.com/example/chat-relay-demo/modules/broadcast"
	"github.com/example/chat-relay-demo/modules/chat"
	"github.com/example/chat-relay-demo/modules/wsserver"
)

func main() {
	log.Println("=== Chat Relay - Fiber WebSocket + EventBus Activity ===")

	cfg := config.Load()

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	broadcastModule := broadcast.NewModule(app.Logger().WithModule("broadcast"))
	chatModule, err := chat.NewModule(broadcastModule.GetHub(), app.Logger().WithModule("chat"))
	if err != nil {
		log.Fatalf("Failed to create chat module: %v", err)
	}
	activityModule := activity.NewModule()
	apiModule := api.NewModule(cfg, app.Logger().WithModule("api"))

	// The hub and the relay are shared in-process and are not exposed via
	// ServiceContainer, so they are injected here.
	sessions := wsserver.NewHandlers(
		chatModule.Relay(),
		broadcastModule.GetHub(),
		wsserver.SettingsFromConfig(cfg),
		app.Logger().WithModule("wsserver"),
	)
	apiModule.SetHub(broadcastModule.GetHub())
	apiModule.SetSessionHandlers(sessions)

	// Register modules with the framework.
	// - chat: relay core (ServiceProviderModule + EventEmitterModule)
	// - broadcast: outbound hub the relay delivers through
	// - activity: room counters (EventConsumerModule + ServiceProviderModule)
	// - api: Driving adapter (Fiber HTTP/WebSocket server, depends on chat and activity)
	app.Register(chatModule)
	app.Register(broadcastModule)
	app.Register(activityModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
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

func printStartupInfo(cfg *config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Fan-out: chat relay -> broadcast hub -> per-socket write pumps")
	log.Println("  - Event Bus: chat activity -> activity module counters")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                     - Health check")
	log.Println("  GET    /api/v1/rooms               - List active rooms")
	log.Println("  GET    /api/v1/rooms/:id           - Get room details")
	log.Println("  GET    /api/v1/rooms/:id/history   - Get message history (?limit=N)")
	log.Println("  GET    /api/v1/rooms/:id/members   - Get room members")
	log.Println("  GET    /api/v1/rooms/:id/stats     - Get room activity")
	log.Println("  GET    /api/v1/stats               - Get activity summary")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Printf("  Connect with: ws://localhost:%s/ws?name=yourname&room=General", cfg.Port)
	log.Println("  Events: joinRoom, chatMessage, typing, fileUpload, audioMessage,")
	log.Println("          editMessage, deleteMessage, pinMessage, seenMessage, addReaction")
	if cfg.StaticDir != "" {
		log.Printf("Static files: %s", cfg.StaticDir)
	}
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
