package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"voyago/internal/api"
	"voyago/internal/config"
	"voyago/internal/coupon"
	"voyago/internal/database"
	"voyago/internal/domain"
	"voyago/internal/events"
	"voyago/internal/export"
	"voyago/internal/google"
	"voyago/internal/ledger"
	"voyago/internal/logging"
	"voyago/internal/metrics"
	"voyago/internal/models"
	"voyago/internal/repository"
	"voyago/internal/service"
	"voyago/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, logCloser, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	logger.Info().
		Str("app", cfg.App.Name).
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("starting booking engine")

	if err := prepareDirectories(cfg); err != nil {
		return err
	}

	resources, err := loadResources(logger)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()
	db.SetResources(resources)
	logger.Info().Int("resources", len(resources)).Str("path", cfg.Database.Path).Msg("database ready")

	// Redis опционален: без него блокировки живут в памяти процесса.
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, redisClient); err != nil {
			logger.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("redis unreachable, in-memory locks only")
			redisClient = nil
		} else {
			defer repository.Close(redisClient)
			logger.Info().Str("address", cfg.Redis.Address).Msg("redis connected")
		}
	}

	lockTTL := time.Duration(cfg.Booking.LockTTLSeconds) * time.Second
	var locks domain.LockRepository = repository.NewMemoryLockRepository(lockTTL)
	if redisClient != nil {
		locks = repository.NewFailoverLockRepository(
			repository.NewRedisLockRepository(redisClient, lockTTL),
			repository.NewMemoryLockRepository(lockTTL),
			logger,
		)
	}

	led := ledger.New(db, db, locks, cfg.Booking.LockRetries, logger)
	couponEngine := coupon.NewEngine(db, logger)

	eventBus := events.NewEventBus()
	subscribeEventLogging(eventBus, logger)

	var syncWorker domain.SyncWorker
	sheetsWorker, err := initSheetsWorker(ctx, cfg, db, redisClient, logger)
	if err != nil {
		return err
	}
	if sheetsWorker != nil {
		syncWorker = sheetsWorker
		go sheetsWorker.Start(ctx)
	}

	bookingSvc := service.NewBookingService(db, db, led, couponEngine, eventBus, syncWorker, cfg.Booking.MaxBookingDays, logger)
	groupSvc := service.NewGroupService(db, eventBus, logger)
	exporter := export.NewExporter(db, db, cfg.Exports.Path, logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}

	if cfg.Backup.Enabled {
		backupSvc := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backupSvc.Start(ctx)
	}

	srv := api.NewHTTPServer(cfg.API, db, led, couponEngine, db, bookingSvc, groupSvc, exporter, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}

	logger.Info().Msg("booking engine stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config %s: %w", configPath, err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logger, closer, nil
}

// loadResources читает каталог ресурсов из yaml и проверяет его консистентность.
func loadResources(logger *zerolog.Logger) ([]models.Resource, error) {
	path := os.Getenv("RESOURCES_PATH")
	if path == "" {
		path = "configs/resources.yaml"
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resources %s: %w", path, err)
	}

	var catalog struct {
		Resources []models.Resource `yaml:"resources"`
	}
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse resources %s: %w", path, err)
	}
	if len(catalog.Resources) == 0 {
		return nil, errors.New("resource catalog is empty")
	}
	if err := config.ValidateResources(catalog.Resources); err != nil {
		return nil, fmt.Errorf("invalid resource catalog: %w", err)
	}

	logger.Info().Str("path", path).Int("count", len(catalog.Resources)).Msg("resource catalog loaded")
	return catalog.Resources, nil
}

func prepareDirectories(cfg *config.Config) error {
	dirs := []string{filepath.Dir(cfg.Database.Path)}
	if cfg.Exports.Path != "" {
		dirs = append(dirs, cfg.Exports.Path)
	}
	if cfg.Backup.Enabled && cfg.Backup.StoragePath != "" {
		dirs = append(dirs, cfg.Backup.StoragePath)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// initSheetsWorker подключает зеркало в Google Sheets, если оно настроено.
func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) (*worker.SheetsWorker, error) {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadsheetID == "" {
		logger.Info().Msg("google sheets mirror disabled")
		return nil, nil
	}

	sheets, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("init sheets service: %w", err)
	}
	if err := sheets.TestConnection(ctx); err != nil {
		if email, emailErr := sheets.GetServiceAccountEmail(cfg.Google.CredentialsFile); emailErr == nil {
			logger.Error().Str("service_account", email).Msg("share the spreadsheet with the service account")
		}
		return nil, fmt.Errorf("sheets connection check: %w", err)
	}

	logger.Info().Str("spreadsheet", cfg.Google.BookingsSpreadsheetID).Msg("google sheets mirror enabled")
	return worker.NewSheetsWorker(db, sheets, redisClient, worker.RetryPolicy{}, logger), nil
}

func subscribeEventLogging(bus *events.EventBus, logger *zerolog.Logger) {
	bookingEvents := []string{
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingCancelled,
		events.EventBookingRejected,
		events.EventBookingCompleted,
		events.EventTourEnded,
	}
	for _, eventType := range bookingEvents {
		bus.Subscribe(eventType, func(event *events.Event) error {
			var payload events.BookingEventPayload
			if err := json.Unmarshal(event.Payload, &payload); err != nil {
				return err
			}
			logger.Info().
				Str("event", event.Type).
				Int64("booking_id", payload.BookingID).
				Int64("resource_id", payload.ResourceID).
				Str("status", payload.Status).
				Msg("booking event")
			return nil
		})
	}
	for _, eventType := range []string{events.EventMemberApproved, events.EventMemberRejected} {
		bus.Subscribe(eventType, func(event *events.Event) error {
			var payload events.MembershipEventPayload
			if err := json.Unmarshal(event.Payload, &payload); err != nil {
				return err
			}
			logger.Info().
				Str("event", event.Type).
				Int64("tour_id", payload.TourID).
				Int64("user_id", payload.UserID).
				Str("status", payload.Status).
				Msg("membership event")
			return nil
		})
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	if port == 0 {
		port = 9090
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server failed")
	}
}
