package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/config"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/domain/ingest"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/domain/pipeline"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/db"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "aorta-server",
		Short:        "Imaging ingestion and analysis tracking server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(spacingCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise backends")
	}
	defer a.Close()

	e := newServer(cfg, a, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with all routes registered.
func newServer(cfg *config.Config, a *app, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPut},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadMaxSize))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	checks := []db.Check{{Name: "storage", Run: func(ctx context.Context) error {
		_, err := a.dest.Exists(ctx)
		return err
	}}}
	if a.pool != nil {
		checks = append(checks, db.PoolCheck(a.pool))
	}
	e.GET("/health", db.HealthHandler(checks...))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		// The analysis workers report every step; they are not throttled.
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Path(), "/change_status")
		},
	}))

	pipeline.NewHandler(a.tracker).RegisterRoutes(apiV1)
	ingest.NewHandler(a.ingest).RegisterRoutes(apiV1)
	return e
}
