package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-core/auth"
	"chat-core/internal"
	"chat-core/moderation"
	"chat-core/observability"
	"chat-core/repositories"
	"chat-core/runtime"
	"chat-core/runtime/workers"
	"chat-core/services"
	"chat-core/ws"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Collaborators
	verifier := auth.NewVerifier(config.JwtSecret, config.JwtIssuer)
	channelRepository := repositories.NewChannelRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log)

	var moderator *moderation.Moderator
	if config.CensoredWordsPath != nil {
		words, err := moderation.LoadWordsFile(*config.CensoredWordsPath)
		if err != nil {
			return fmt.Errorf("censored words loading failed: %w", err)
		}
		if moderator, err = moderation.NewModerator(words, '*'); err != nil {
			return fmt.Errorf("moderator build failed: %w", err)
		}
		log.Info(fmt.Sprintf("%d censored words loaded", len(words)))
	}

	// 4. Coordination core
	stats := observability.NewStats()
	registry := runtime.NewRegistry()
	membership := runtime.NewMembershipIndex(channelRepository, log)
	presence := runtime.NewPresenceTracker(registry, membership, config.TypingTTL, log)
	router := runtime.NewRouter(log, registry, membership, channelRepository,
		messageRepository, moderator, stats, config.MaxContentLength)
	lifecycle := runtime.NewLifecycle(log, verifier, registry, membership, presence,
		messageRepository, stats, config.RecentMessagesLimit)
	chatService := services.NewChatService(lifecycle, router, presence, registry, membership)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervised workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewTypingReaper(presence, config.TypingSweepInterval, log))
	go sup.Run(ctx)

	if config.DebugPort != nil {
		internal.StartDebugServer(db, *config.DebugPort, stats.Snapshot, log)
	}

	// 7. Websocket server
	handler := ws.NewHandler(log, chatService, ws.HandlerConfig{
		HandshakeTimeout: config.HandshakeTimeout,
		SendBufferSize:   config.ConnectionBufferSize,
		RateLimitEvents:  config.RateLimitEvents,
		RateLimitBurst:   config.RateLimitBurst,
	})
	mux := http.NewServeMux()
	mux.Handle("/ws", handler)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
