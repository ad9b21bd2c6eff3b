package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	dhhttp "github.com/swiftdrop/deliveryhub/internal/adapter/http"
	dhnats "github.com/swiftdrop/deliveryhub/internal/adapter/nats"
	dhotel "github.com/swiftdrop/deliveryhub/internal/adapter/otel"
	"github.com/swiftdrop/deliveryhub/internal/adapter/postgres"
	"github.com/swiftdrop/deliveryhub/internal/adapter/ristretto"
	"github.com/swiftdrop/deliveryhub/internal/adapter/ws"
	"github.com/swiftdrop/deliveryhub/internal/config"
	"github.com/swiftdrop/deliveryhub/internal/middleware"
	"github.com/swiftdrop/deliveryhub/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Telemetry ---
	if cfg.Otel.Enabled {
		shutdown, err := dhotel.Init(ctx, cfg.Logging.Service, cfg.Otel.Endpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	var metrics *dhotel.Metrics
	if cfg.Otel.Enabled {
		metrics, err = dhotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := dhnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	listCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer listCache.Close()

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	authSvc := service.NewAuthService(store, &cfg.Auth)
	histSvc := service.NewHistoryService(store)
	delSvc := service.NewDeliveryService(store, listCache, queue, hub, histSvc, metrics, cfg.Cache.ListTTL)

	handlers := dhhttp.NewHandlers(authSvc, delSvc, histSvc, cfg.Uploads)

	// --- HTTP ---

	r := chi.NewRouter()

	r.Use(dhhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(dhhttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	if cfg.Otel.Enabled {
		r.Use(dhotel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(middleware.Auth(authSvc))

	r.Get("/health", healthHandler(pool, queue))

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		a := middleware.AgentFromContext(req.Context())
		if a == nil {
			http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
			return
		}
		hub.HandleWS(w, req, a.ID)
	})

	// Uploaded agent photos.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(cfg.Uploads.Dir))))

	dhhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// healthHandler reports liveness of the service and its dependencies.
func healthHandler(pool *pgxpool.Pool, queue *dhnats.Queue) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		NATS     string `json:"nats"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Postgres: "ok", NATS: "ok"}
		code := http.StatusOK

		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			status.Status = "degraded"
			status.Postgres = "unreachable"
			code = http.StatusServiceUnavailable
		}
		if !queue.IsConnected() {
			status.Status = "degraded"
			status.NATS = "disconnected"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
