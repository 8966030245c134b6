package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-chat/internal/auth"
	"channel-chat/internal/config"
	"channel-chat/internal/database"
	"channel-chat/internal/handlers"
	"channel-chat/internal/registry"
	"channel-chat/internal/relay"
	"channel-chat/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize the channel store
	var store database.ChannelStore
	if cfg.Database.URL != "" {
		pg, err := database.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database: %v", err)
		}
		store = pg
	} else {
		logger.Info("No DATABASE_URL set, using in-memory channel store")
		store = database.NewMemoryStore()
	}
	defer store.Close()

	// Initialize core services
	reg := registry.New(store)
	rly := relay.New(reg, cfg.Relay.EchoToSender)
	verifier := auth.NewVerifier(cfg.JWT.Secret)

	// Initialize handlers
	channelHandlers := handlers.NewChannelHandlers(reg, verifier)
	wsHandlers := handlers.NewWebSocketHandlers(verifier, rly)
	pollingHandlers := handlers.NewPollingHandlers(verifier, rly)

	router := handlers.NewRouter(channelHandlers, wsHandlers, pollingHandlers)

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout must outlast a long-poll wait.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("Server started on %s", cfg.Server.Addr)
	logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Addr)
	logger.Info("Polling fallback:   http://localhost%s/poll", cfg.Server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
}
