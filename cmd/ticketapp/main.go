package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketapp/internal/auth"
	"ticketapp/internal/config"
	"ticketapp/internal/httpapi"
	"ticketapp/internal/kvstore"
	"ticketapp/internal/kvstore/file"
	"ticketapp/internal/kvstore/memory"
	"ticketapp/internal/kvstore/postgres"
	"ticketapp/internal/session"
	ticketkv "ticketapp/internal/store/kv"
	"ticketapp/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("ticketapp", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	backend, cleanup, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer cleanup()

	tickets := ticketkv.NewStore(backend)
	sessions := session.NewStore(backend)
	authService, err := auth.NewService(sessions)
	if err != nil {
		log.Fatalf("auth setup: %v", err)
	}

	handler := httpapi.NewHandler(tickets, sessions, authService)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	})

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(handler.Routes())), "ticketapp")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("ticketapp listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// openBackend picks the KV backend: postgres when DB_DSN is set, a JSON file
// when DATA_FILE is set, process memory otherwise.
func openBackend(cfg config.Config) (kvstore.KV, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		backend, err := postgres.NewStore(context.Background(), pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return backend, pool.Close, nil
	case cfg.DataFile != "":
		return file.NewStore(cfg.DataFile), func() {}, nil
	default:
		log.Printf("no DB_DSN or DATA_FILE configured, data will not survive restarts")
		return memory.NewStore(), func() {}, nil
	}
}
