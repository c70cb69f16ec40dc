package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"roomcast/httpapi"
	"roomcast/moderation"
	"roomcast/projection"
	"roomcast/protocol"
	"roomcast/repositories"
	"roomcast/runtime"
	"roomcast/runtime/workers"
	"roomcast/search"
	ws "roomcast/websocket"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

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
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, using environment variables")
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := loggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB log + Bluge index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge index...")
		_ = indexWriter.Close()
	}()

	// 3. Broadcast core
	messageRepository := repositories.NewMessageRepository(db, log)
	messageIndex := search.NewMessageIndex(indexWriter, log)
	activity := projection.NewActivity()
	registry := runtime.NewRegistry()
	presence := runtime.NewPresence()

	var moderator *moderation.Moderator
	if config.EnableModeration {
		moderator, err = loadModerator(config, log)
		if err != nil {
			return err
		}
	}

	broadcaster := runtime.NewBroadcaster(log, registry, messageRepository, moderator,
		messageIndex, activity)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	supervisor.Add(workers.NewTelemetryWorker(log, func() (int, int, int) {
		connections, rooms := registry.Stats()
		return connections, rooms, presence.TotalActive()
	}, config.TelemetryInterval))
	go supervisor.Run(ctx)

	// 6. HTTP surface: websocket endpoint + dashboard read API
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("Upgrade failed", "error", err)
			return
		}
		conn := ws.NewConn(uuid.NewString(), socket, config.ConnectionBufferSize, log)
		session := protocol.NewSession(conn, registry, presence, broadcaster,
			messageRepository, config.HistoryLimit, log)
		conn.Start(ctx, session)
	})
	httpapi.NewServer(log, messageRepository, presence, registry.Stats,
		activity, messageIndex, config.HistoryLimit).Register(mux)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", "error", err)
	}
	supervisor.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// loadModerator builds the censored-word automaton from the embedded wordlists.
func loadModerator(config Config, log *slog.Logger) (*moderation.Moderator, error) {
	maskRune, err := config.MaskRune()
	if err != nil {
		return nil, err
	}
	blacklist, err := moderation.LoadBlacklist()
	if err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("%d censored wordlists loaded [%s]",
		len(blacklist.Languages), strings.Join(blacklist.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(blacklist.Words)))
	return moderation.NewModerator(blacklist.Words, maskRune)
}

func loggerFromString(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}
