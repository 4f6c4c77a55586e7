// Copyright 2026 The Kubernaut Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/config"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/observability/httpmetrics"
	"github.com/kubernaut/kubernaut/internal/observability/logger"
	"github.com/kubernaut/kubernaut/internal/observability/metrics"
	"github.com/kubernaut/kubernaut/internal/observability/tracing"
	"github.com/kubernaut/kubernaut/internal/store/memory"
	"github.com/kubernaut/kubernaut/internal/store/postgres"
	"github.com/kubernaut/kubernaut/internal/team"
	transportHTTP "github.com/kubernaut/kubernaut/internal/transport/http"
)

// store is what the services need from a storage backend.
type store interface {
	identity.Store
	team.Repository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTelBridge:  cfg.Observability.OTELEnabled,
	})

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting kubernaut authorization service",
		logger.Component("server"),
		slog.String("version", cfg.Observability.ServiceVersion),
		slog.String("driver", cfg.Database.Driver),
	)

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer tracer.Shutdown(context.Background())

	httpMetrics := httpmetrics.New(cfg.Observability.ServiceVersion)
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled:        true,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Registerer:     httpMetrics.Registerer(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	defer meter.Shutdown(context.Background())
	authzMetrics, err := authz.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to register authz metrics: %w", err)
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	auditLogger := audit.NewSlogLogger()
	authzService := authz.NewService(st, auditLogger, authz.WithMetrics(authzMetrics))
	identityService := identity.NewService(st, authzService, auditLogger)
	teamService := team.NewService(st, authzService, auditLogger)

	handler := transportHTTP.NewHandler(
		identityService,
		authzService,
		teamService,
		httpMetrics,
		transportHTTP.AuthConfig{
			SigningSecret: []byte(cfg.Auth.SigningSecret),
			Issuer:        cfg.Auth.Issuer,
			Audience:      cfg.Auth.Audience,
			Provider:      cfg.Auth.Provider,
		},
	)
	rateLimiter := transportHTTP.NewRateLimiter(ctx, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      transportHTTP.NewRouter(handler, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", logger.Component("server"), logger.Operation("listen"), slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		slog.Warn("using in-memory store; state is lost on restart")
		return memory.New(), func() {}, nil
	}

	db, err := connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		slog.Info("database schema applied")
	}
	return postgres.NewStore(db), db.Close, nil
}

func connect(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database", slog.String("host", cfg.Database.Host))
	return db, nil
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
