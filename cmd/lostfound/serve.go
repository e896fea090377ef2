package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/lostfound/internal/config"
	"github.com/totegamma/lostfound/internal/domain"
	"github.com/totegamma/lostfound/internal/infra/artifact"
	"github.com/totegamma/lostfound/internal/infra/database"
	"github.com/totegamma/lostfound/internal/infra/gateway"
	"github.com/totegamma/lostfound/internal/infra/pointer"
	"github.com/totegamma/lostfound/internal/infra/registry"
	"github.com/totegamma/lostfound/internal/infra/repository"
	"github.com/totegamma/lostfound/internal/infra/telemetry"
	"github.com/totegamma/lostfound/internal/present/rest"
	"github.com/totegamma/lostfound/internal/present/rest/middleware"
	"github.com/totegamma/lostfound/internal/service"
	"github.com/totegamma/lostfound/internal/usecase"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownTrace, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:  cfg.Server.EnableTrace,
		Endpoint: cfg.Server.TraceEndpoint,
		Version:  version,
	})
	if err != nil {
		return err
	}
	defer shutdownTrace(context.Background())

	offices := cfg.DomainOffices()
	names := make([]string, len(offices))
	for i, o := range offices {
		names[i] = o.Name
	}

	store := artifact.New(cfg.Server.DataDir, cfg.Server.AssetBaseURL)
	repo := repository.NewItemRepository(names, store.RegistryPath, registry.Options{
		CorruptPolicy: domain.ParseCorruptPolicy(cfg.Server.CorruptPolicy),
		FileLock:      cfg.Server.FileLock,
	})

	for _, name := range names {
		n, err := repo.Check(ctx, name)
		if err != nil {
			slog.Error(
				"registry failed verification",
				slog.String("office", name),
				slog.String("error", err.Error()),
				slog.String("module", "main"),
			)
			continue
		}
		slog.Info("registry loaded", slog.String("office", name), slog.Int("records", n), slog.String("module", "main"))
	}

	var opts []usecase.Option

	switch {
	case cfg.Server.MemcachedAddr != "":
		opts = append(opts, usecase.WithLookupCache(gateway.NewMemcacheLookupCache(database.NewMemcached(cfg.Server.MemcachedAddr))))
	case !cfg.Server.FileLock:
		opts = append(opts, usecase.WithLookupCache(gateway.NewLocalLookupCache()))
	}

	if cfg.Server.PostgresDsn != "" {
		db, err := database.OpenMirror(cfg.Server.PostgresDsn)
		if err != nil {
			return err
		}
		opts = append(opts, usecase.WithMirror(repository.NewMirrorRepository(db)))
	}

	var subscriber rest.Subscriber
	if cfg.Server.RedisAddr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Server.RedisAddr, "", cfg.Server.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		signalService := service.NewSignalService(rdb)
		opts = append(opts, usecase.WithEvents(signalService))
		subscriber = signalService
	}

	item := usecase.NewItemUsecase(
		repo,
		pointer.NewEmitter(cfg.Server.QRSize),
		store,
		offices,
		cfg.Server.PublicBaseURL,
		opts...,
	)
	auth := middleware.NewAuthMiddleware(service.NewAuthService(offices), cfg.Server.DefaultOffice)
	handler := rest.NewHandler(version, offices, cfg.Server.DataDir, item, auth, subscriber)

	e := echo.New()
	e.HideBanner = true
	if cfg.Server.EnableTrace {
		e.Use(otelecho.Middleware(telemetry.ServiceName))
	}
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	handler.RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", cfg.Server.Listen), slog.String("module", "main"))
		errCh <- e.Start(cfg.Server.Listen)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
