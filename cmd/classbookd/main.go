package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"classbook/internal/api"
	"classbook/internal/auth"
	"classbook/internal/config"
	"classbook/internal/database"
	"classbook/internal/metrics"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Str("service", "classbookd").Logger()

	if err := config.LoadEnv(); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(os.Getenv("CLASSBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal().Err(err).Msg("invalid server config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]api.Pinger{}
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		checks["redis"] = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	perSecond, burst := cfg.RateLimit()
	srv := api.NewServer(db, auth.NewIssuer(cfg.Server.JWTSecret, cfg.Server.JWTIssuer, cfg.TokenTTL()), &logger, api.Options{
		RateLimit:         rate.Limit(perSecond),
		RateBurst:         burst,
		ClassroomCacheTTL: cfg.ClassroomCacheTTL(),
		Metrics:           cfg.Monitoring.PrometheusEnabled,
		Checks:            checks,
	})

	if cfg.Seed.ClassroomsPath != "" {
		watcher := &config.SeedWatcher{
			Path:     cfg.Seed.ClassroomsPath,
			Interval: cfg.SeedWatchInterval(),
			OnUpdate: func(seed *config.ClassroomsConfig) {
				if err := db.SyncClassrooms(ctx, seed.Models()); err != nil {
					logger.Error().Err(err).Msg("failed to apply classrooms seed")
					return
				}
				srv.InvalidateClassrooms()
				logger.Info().Int("classrooms", len(seed.Classrooms)).Msg("classrooms seed applied")
			},
			OnError: func(err error) {
				logger.Error().Err(err).Msg("classrooms seed reload failed")
			},
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to load classrooms seed")
		}
	}

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, cfg.Backup.Path,
			time.Duration(cfg.Backup.IntervalHours)*time.Hour, cfg.Backup.RetentionDays, &logger)
		go backups.Start(ctx)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.Server.Addr).Msg("classbook API started")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("http server error")
	}
	logger.Info().Msg("classbook API stopped")
}
