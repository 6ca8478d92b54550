package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/api"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/config"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/events"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/events/subscribers"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/fog"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/mapstore"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/monitoring"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/preview"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/retry"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/settings"
)

// healthService is the service name reported alongside the overall status
const healthService = "fogpreview.HTTPAPI"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", -1, "HTTP port (-1 to use config default)")
	host := flag.String("host", "", "HTTP host (empty to use config default)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error) (empty to use config default)")
	dataDir := flag.String("data-dir", "", "Directory for map documents (empty to use config default)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	cfg := config.Get()

	if *port == -1 {
		*port = cfg.Server.HTTP.Port
	}
	if *host == "" {
		*host = cfg.Server.HTTP.Host
	}
	if *logLevel == "" {
		*logLevel = cfg.Server.HTTP.LogLevel
	}
	if *dataDir == "" {
		*dataDir = cfg.Storage.DataDir
	}

	setupLogging(*logLevel, cfg.Server.HTTP.LogFormat)

	config.WatchConfig(func(next *config.Config, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("Config reload rejected, keeping previous values")
			return
		}
		zerolog.SetGlobalLevel(parseLevel(next.Server.HTTP.LogLevel))
		log.Info().Str("log_level", next.Server.HTTP.LogLevel).Msg("Config reloaded")
	})

	logger := log.Logger

	store, err := newStore(cfg.Storage, *dataDir, logger)
	if err != nil {
		log.Fatal().Err(err).Str("data_dir", *dataDir).Msg("Failed to open map store")
	}

	bus := events.NewEventBus(logger)
	settingsService := settings.NewService(store, logger)
	coordinator := preview.NewCoordinator(logger,
		preview.WithSettingsSyncer(settingsService),
		preview.WithPublisher(bus),
	)
	bus.Subscribe(subscribers.NewLoggerSubscriber("event_logger", logger, zerolog.DebugLevel))
	bus.Subscribe(preview.NewRefreshSubscriber(coordinator))

	engine := fog.NewEngine(store, fogConfig(cfg.Fog), logger,
		fog.WithPublisher(bus),
		fog.WithSaveGuard(coordinator),
	)

	var metrics api.MetricsSource
	if cfg.Monitoring.Enabled {
		monitor := monitoring.NewMonitor(monitoring.Config{
			Interval:       cfg.Monitoring.Interval,
			AlertThreshold: cfg.Monitoring.GoroutineAlertThreshold,
			AlertCooldown:  monitoring.DefaultConfig().AlertCooldown,
		}, store, logger)
		monitor.Start()
		defer monitor.Stop()
		metrics = monitor
	}

	server := api.NewServer(engine, coordinator, store, settingsService, metrics, api.Options{
		CORSOrigins: cfg.Server.HTTP.CORSOrigins,
		Compression: cfg.Server.HTTP.Compression,
		VersionFile: cfg.Version.File,
	}, logger)
	addr := fmt.Sprintf("%s:%d", *host, *port)
	httpServer := server.HTTPServer(addr, cfg.Server.HTTP.ReadTimeout, cfg.Server.HTTP.WriteTimeout)

	var (
		grpcServer   *grpc.Server
		healthServer *health.Server
	)
	if cfg.Server.Health.Enabled {
		lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", *host, cfg.Server.Health.Port))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to listen for health checks")
		}
		grpcServer = grpc.NewServer()
		healthServer = health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

		go func() {
			log.Info().Str("address", lis.Addr().String()).Msg("Health server listening")
			if err := grpcServer.Serve(lis); err != nil {
				log.Error().Err(err).Msg("Health server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", addr).
			Str("data_dir", *dataDir).
			Str("config_file", config.ConfigFilePath()).
			Msg("Fog preview server listening")
		serveErr <- httpServer.ListenAndServe()
	}()
	setHealth(healthServer, grpc_health_v1.HealthCheckResponse_SERVING)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	}

	setHealth(healthServer, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	time.Sleep(cfg.Server.HTTP.GracefulShutdownDelay)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.WriteTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown did not complete cleanly")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	log.Info().Msg("Server shutdown complete")
}

func newStore(storage config.StorageConfig, dataDir string, logger zerolog.Logger) (mapstore.Store, error) {
	if dataDir == "" {
		log.Warn().Msg("No data directory configured, map documents are kept in memory only")
		return mapstore.NewMemoryStore(logger), nil
	}
	return mapstore.NewFileStore(mapstore.FileStoreConfig{
		Dir:         dataDir,
		ReadPolicy:  retry.ConstantPolicy(storage.ReadAttempts, storage.ReadBackoff),
		WritePolicy: retry.LinearPolicy(storage.WriteAttempts, storage.WriteBackoff),
	}, logger)
}

func fogConfig(c config.FogConfig) fog.Config {
	return fog.Config{
		DefaultRadius: c.DefaultRadius,
		HideTolerance: c.HideTolerance,
		Compaction: fog.CompactionConfig{
			Threshold:      c.CompactionThreshold,
			DedupTolerance: c.DedupTolerance,
			MaxAreas:       c.MaxAreas,
		},
	}
}

func setHealth(s *health.Server, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	if s == nil {
		return
	}
	s.SetServingStatus("", status)
	s.SetServingStatus(healthService, status)
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func setupLogging(level, format string) {
	zerolog.SetGlobalLevel(parseLevel(level))

	if format == "json" || os.Getenv("APP_ENV") == "production" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})
}
