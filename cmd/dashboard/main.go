// Package main is the entry point for the conversation dashboard server.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/config"
	"github.com/capitalize-ai/conversation-dashboard/internal/dashboard"
	"github.com/capitalize-ai/conversation-dashboard/internal/fetch"
	"github.com/capitalize-ai/conversation-dashboard/internal/handler"
	"github.com/capitalize-ai/conversation-dashboard/internal/middleware"
	natsclient "github.com/capitalize-ai/conversation-dashboard/internal/nats"
	"github.com/capitalize-ai/conversation-dashboard/internal/notify"
	"github.com/capitalize-ai/conversation-dashboard/internal/realtime"
	"github.com/capitalize-ai/conversation-dashboard/pkg/logger"
	"github.com/capitalize-ai/conversation-dashboard/pkg/tracing"
)

// source is a push channel feeding the realtime bridge.
type source interface {
	Run(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.ForEnvironment(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting dashboard server",
		zap.String("backend", cfg.BackendURL),
		zap.String("transport", cfg.RealtimeTransport),
	)

	// Initialize tracing if enabled
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "conversation-dashboard", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Backend client with a freshness window that follows the push channel
	client, err := fetch.NewClient(fetch.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.FetchTimeout,
	}, log)
	if err != nil {
		log.Fatal("failed to create backend client", zap.Error(err))
	}
	fetcher := fetch.NewCachedClient(client, cfg.CacheTTLRealtime, cfg.CacheTTLPolling)

	// Dashboard state and render fan-out
	hub := notify.NewHub()
	convSync := dashboard.NewConversationSync(fetcher, dashboard.Options{
		ConversationPageSize: cfg.ConversationsPageSize,
		MessagePageSize:      cfg.MessagesPageSize,
		Render:               hub.Publish,
	}, log)
	defer convSync.Close()

	bridge := realtime.NewBridge(convSync, cfg.PollInterval, log)
	defer bridge.Close()

	// Poll until a push channel reports connected.
	if err := bridge.OnDisconnected(ctx); err != nil {
		log.Warn("failed to start fallback polling", zap.Error(err))
	}

	src, closeSource, err := newSource(cfg, bridge, log)
	if err != nil {
		log.Fatal("failed to set up realtime transport", zap.Error(err))
	}
	defer closeSource()

	// Initial load. Failures are shown in the view and retried by the user.
	if err := convSync.RefreshStates(ctx); err != nil {
		log.Warn("initial state fetch failed", zap.Error(err))
	}
	if _, err := convSync.LoadNextConversationPage(ctx); err != nil {
		log.Warn("initial conversation load failed", zap.Error(err))
	}

	if src != nil {
		go func() {
			if err := src.Run(ctx); err != nil {
				log.Error("realtime source stopped", zap.Error(err))
			}
		}()
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(convSync.Ready, bridge.Connected, hub.Subscribers)
	dashboardHandler := handler.NewDashboardHandler(convSync, log)
	streamHandler := handler.NewStreamHandler(hub, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stream", streamHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Get("/view", dashboardHandler.View)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/load-more", dashboardHandler.LoadMoreConversations)
				r.Post("/reload", dashboardHandler.Reload)

				r.Route("/{id}", func(r chi.Router) {
					r.Post("/select", dashboardHandler.Select)
					r.Post("/messages/load-more", dashboardHandler.LoadMoreMessages)
				})
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Stop the push source and end open streams so Shutdown does not wait on them.
	stop()
	hub.Close()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// newSource builds the configured push channel. It returns a nil source for
// the "none" transport, leaving the bridge in polling mode.
func newSource(cfg *config.Config, bridge *realtime.Bridge, log *logger.Logger) (source, func(), error) {
	switch cfg.RealtimeTransport {
	case config.TransportWebSocket:
		src, err := realtime.NewWebSocketSource(realtime.WebSocketConfig{
			URL: cfg.RealtimeWSURL,
		}, bridge, log)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil

	case config.TransportNATS:
		lifecycle := context.Background()
		client, err := natsclient.Connect(natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     "conversation-dashboard",
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
			OnDisconnect: func(error) {
				if err := bridge.OnDisconnected(lifecycle); err != nil {
					log.Warn("failed to switch to polling", zap.Error(err))
				}
			},
			OnReconnect: func() {
				if err := bridge.OnConnected(lifecycle); err != nil {
					log.Warn("failed to enable realtime", zap.Error(err))
				}
			},
		}, log)
		if err != nil {
			return nil, nil, err
		}
		src := realtime.NewNATSSource(client, realtime.NATSConfig{
			Subject: cfg.NATSSubject,
			Stream:  cfg.NATSStream,
		}, bridge, log)
		return src, client.Close, nil

	default:
		log.Info("realtime transport disabled, polling only")
		return nil, func() {}, nil
	}
}
