package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"semaphore/gradebook/internal/config"
	"semaphore/gradebook/internal/db"
	"semaphore/gradebook/internal/gradebook"
	internalgrpc "semaphore/gradebook/internal/grpc"
	internalhttp "semaphore/gradebook/internal/http"
	"semaphore/gradebook/internal/jobs"
	"semaphore/gradebook/internal/metrics"
	"semaphore/gradebook/internal/repository"
	"semaphore/gradebook/internal/session"
)

type storage interface {
	repository.Repository
	Ping(ctx context.Context) error
}

func main() {
	// a missing .env file is normal outside local development
	_ = godotenv.Load()
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gradebook stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	service := gradebook.NewService(store, logger)
	admin := cfg.BootstrapAdmin
	created, err := service.Bootstrap(ctx, admin.GivenName, admin.FamilyName, admin.Secret)
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap admin created", "given_name", admin.GivenName, "family_name", admin.FamilyName)
	}

	sessionStore, closeSessions, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()
	sessions, err := session.NewManager(sessionStore, cfg.SessionSecret, cfg.SessionCookieName, cfg.SessionTTL)
	if err != nil {
		return err
	}
	if sweeper, ok := sessionStore.(jobs.Sweeper); ok {
		jobs.StartSessionSweepJob(ctx, cfg.SessionSweepInterval, sweeper, logger)
	}

	server := internalhttp.NewServer(cfg, service, sessions, metrics.New(prometheus.DefaultRegisterer), logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gradebook listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.GRPCAddr != "" {
		grpcServer, healthServer, err := internalgrpc.NewServer(cfg.ServiceAuthToken)
		if err != nil {
			return err
		}
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		jobs.StartHealthProbeJob(ctx, cfg.HealthProbeInterval, store, internalgrpc.HealthReporter(healthServer), logger)
		go func() {
			logger.Info("gradebook grpc listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(listener); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
		defer grpcServer.GracefulStop()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, func(), error) {
	if cfg.UsesMemoryStorage() {
		logger.Warn("using in-memory storage; data is lost on restart")
		return repository.NewMemory(), func() {}, nil
	}

	if cfg.MigrateOnStart {
		version, err := db.Migrate(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database migrated", "version", version)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connection failed: %w", err)
	}
	return repository.NewStore(pool), pool.Close, nil
}

func openSessionStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("session store: memory")
		return session.NewMemoryStore(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info("session store: redis", "addr", cfg.RedisAddr)
	return session.NewRedisStore(client), func() { _ = client.Close() }, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}
