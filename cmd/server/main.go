// Package main - точка входа HTTP-сервера EduPulse.
//
// Сервер собирает три подсистемы платформы обучения:
// - прогресс и завершение курсов (optimistic locking поверх PostgreSQL)
// - грейдинг тестов с лимитом попыток
// - realtime-рассылку событий по комнатам курсов (in-process + Redis bridge)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edupulse/edupulse/config"
	"github.com/edupulse/edupulse/internal/application/command"
	"github.com/edupulse/edupulse/internal/application/eventhandler"
	"github.com/edupulse/edupulse/internal/application/query"
	"github.com/edupulse/edupulse/internal/domain/course"
	"github.com/edupulse/edupulse/internal/domain/shared"
	"github.com/edupulse/edupulse/internal/infrastructure/messaging"
	"github.com/edupulse/edupulse/internal/infrastructure/persistence/postgres"
	redisstore "github.com/edupulse/edupulse/internal/infrastructure/persistence/redis"
	httpapi "github.com/edupulse/edupulse/internal/interface/http"
	"github.com/edupulse/edupulse/pkg/clock"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ══════════════════════════════════════════════════════════════════════
	// КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ══════════════════════════════════════════════════════════════════════

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting edupulse server",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ══════════════════════════════════════════════════════════════════════
	// POSTGRESQL
	// ══════════════════════════════════════════════════════════════════════

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pg, err := postgres.NewConnectionFromURL(connectCtx, cfg.Database.URL, postgres.PoolSettings{
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MinIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Database.RunMigrations {
		if err := postgres.NewMigrator(pg).Migrate(connectCtx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	var courseRepo course.Repository = postgres.NewCourseRepository(pg)
	enrollmentRepo := postgres.NewEnrollmentRepository(pg)
	assessmentRepo := postgres.NewAssessmentRepository(pg)
	notificationRepo := postgres.NewNotificationRepository(pg)

	// ══════════════════════════════════════════════════════════════════════
	// КОМНАТЫ: РЕЕСТР, ШИНА, REDIS BRIDGE
	// ══════════════════════════════════════════════════════════════════════

	registry := messaging.NewRegistry(logger)
	defer registry.Close()

	roomBus, err := messaging.NewRoomBus(messaging.RoomBusConfig{
		Registry:       registry,
		WorkerPoolSize: cfg.Rooms.WorkerPoolSize,
		Logger:         logger,
		EnableMetrics:  true,
	})
	if err != nil {
		return fmt.Errorf("create room bus: %w", err)
	}

	var bus shared.EventBus = roomBus
	var redisCache *redisstore.Cache
	var presence httpapi.Presence

	if !cfg.Redis.Disabled {
		redisCache, err = redisstore.NewCache(redisstore.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()

		bridge, err := messaging.NewRedisBridge(messaging.RedisBridgeConfig{
			Client:      redisCache.Client(),
			LocalBus:    roomBus,
			Registry:    registry,
			ChannelName: cfg.Redis.RoomsChannel,
			InstanceID:  cfg.App.InstanceID,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("create redis bridge: %w", err)
		}
		defer bridge.Close()

		bus = bridge
		presence = redisstore.NewPresenceTracker(redisCache)
		courseRepo = redisstore.NewCachedCourseRepository(courseRepo, redisCache, logger)
		logger.Info("redis bridge enabled", "channel", cfg.Redis.RoomsChannel)
	} else {
		defer roomBus.Close()
		logger.Warn("redis disabled, running single-instance fan-out")
	}

	// ══════════════════════════════════════════════════════════════════════
	// ОБРАБОТЧИКИ СОБЫТИЙ (долговечные уведомления)
	// ══════════════════════════════════════════════════════════════════════

	clk := clock.NewSystem()

	gradedHandler := eventhandler.NewOnSubmissionGradedHandler(notificationRepo, clk, logger)
	if err := bus.Subscribe(shared.EventSubmissionGraded, gradedHandler.Handle); err != nil {
		return fmt.Errorf("subscribe graded handler: %w", err)
	}

	progressHandler := eventhandler.NewOnProgressUpdatedHandler(notificationRepo, clk, logger)
	if err := bus.Subscribe(shared.EventProgressUpdate, progressHandler.Handle); err != nil {
		return fmt.Errorf("subscribe progress handler: %w", err)
	}

	// ══════════════════════════════════════════════════════════════════════
	// КОМАНДЫ И ЗАПРОСЫ
	// ══════════════════════════════════════════════════════════════════════

	deps := httpapi.Dependencies{
		EnrollStudentHandler:        command.NewEnrollStudentHandler(enrollmentRepo, courseRepo, notificationRepo, clk, logger),
		UpdateLessonProgressHandler: command.NewUpdateLessonProgressHandler(enrollmentRepo, courseRepo, bus, clk, logger),
		SubmitAssessmentHandler:     command.NewSubmitAssessmentHandler(assessmentRepo, bus, clk, logger),

		GetMyCoursesHandler:     query.NewGetMyCoursesHandler(enrollmentRepo, courseRepo),
		GetCourseStatsHandler:   query.NewGetCourseStatsHandler(enrollmentRepo, courseRepo),
		GetMySubmissionsHandler: query.NewGetMySubmissionsHandler(assessmentRepo),

		Registry:  registry,
		Publisher: bus,
		Presence:  presence,

		CourseRepo:       courseRepo,
		NotificationRepo: notificationRepo,

		Clock:         clk,
		Logger:        logger,
		HealthChecker: &healthChecker{pg: pg, redis: redisCache},
	}

	// ══════════════════════════════════════════════════════════════════════
	// HTTP-СЕРВЕР И GRACEFUL SHUTDOWN
	// ══════════════════════════════════════════════════════════════════════

	server := httpapi.NewServer(httpapi.Config{
		Host:             cfg.HTTP.Host,
		Port:             cfg.HTTP.Port,
		ReadTimeout:      cfg.HTTP.ReadTimeout,
		WriteTimeout:     cfg.HTTP.WriteTimeout,
		IdleTimeout:      cfg.HTTP.IdleTimeout,
		EnableCORS:       cfg.HTTP.EnableCORS,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		StreamBufferSize: cfg.Rooms.StreamBufferSize,
		StreamHeartbeat:  cfg.Rooms.StreamHeartbeat,
	}, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildLogger настраивает slog: JSON в production, текст в разработке.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("app", cfg.App.Name)
}

// healthChecker реализует handlers.HealthChecker.
type healthChecker struct {
	pg    *postgres.Connection
	redis *redisstore.Cache
}

func (h *healthChecker) CheckPostgres(ctx context.Context) error {
	return h.pg.Ping(ctx)
}

func (h *healthChecker) CheckRedis(ctx context.Context) error {
	if h.redis == nil {
		return nil
	}
	return h.redis.Ping(ctx)
}
