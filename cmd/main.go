package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kosench/go-link-shortener/internal/cache"
	"github.com/Kosench/go-link-shortener/internal/config"
	"github.com/Kosench/go-link-shortener/internal/database"
	"github.com/Kosench/go-link-shortener/internal/events"
	"github.com/Kosench/go-link-shortener/internal/handler"
	"github.com/Kosench/go-link-shortener/internal/jobs"
	"github.com/Kosench/go-link-shortener/internal/logger"
	"github.com/Kosench/go-link-shortener/internal/repository"
	"github.com/Kosench/go-link-shortener/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("link shortener stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	store, db, dialect, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// Подключаемся к Redis
	var (
		linkCache cache.Cache
		scheduler *jobs.Scheduler
	)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			CacheTTL:     cfg.Redis.CacheTTL,
			Namespace:    cfg.Redis.Namespace,
		})
		if err != nil {
			// Продолжаем без кэша
			log.Warn("failed to connect to Redis, running without cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			log.Info("connected to Redis", zap.String("host", cfg.Redis.Host))

			cached := repository.NewCachedLinkRepository(store, redisClient, log)
			store = cached
			linkCache = redisClient

			scheduler = jobs.NewScheduler(cached, cfg.App.WarmupLimit, log)
			if err := scheduler.ScheduleWarmup(cfg.App.WarmupSchedule); err != nil {
				return err
			}
			go scheduler.RunWarmup()
			scheduler.Start()
		}
	}

	clicks, closeClicks, err := newClickRecorder(cfg, store, log)
	if err != nil {
		return err
	}
	defer closeClicks()

	allocator := service.NewAllocator(store, log, service.WithMaxAttempts(cfg.App.MaxRetries))
	resolver := service.NewResolver(store, clicks)
	linkService := service.NewLinkService(store, allocator, resolver, cfg.GetBaseURL(), log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	info := handler.SystemInfo{
		DatabaseDriver: cfg.Database.Driver,
		ClickMode:      cfg.App.ClickMode,
	}
	if db != nil {
		info.DatabaseVersion = func(ctx context.Context) (string, error) {
			return database.GetVersion(ctx, db, dialect)
		}
	}

	router := handler.NewRouter(handler.RouterConfig{
		Links:          handler.NewLinkHandler(linkService, log),
		System:         handler.NewSystemHandler(linkService, linkCache, info),
		Logger:         log,
		AllowedOrigins: cfg.GetAllowedOrigins(),
	})

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("base_url", cfg.GetBaseURL()),
			zap.String("database", cfg.Database.Driver),
			zap.String("click_mode", cfg.App.ClickMode),
			zap.Bool("cache", linkCache != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Сначала перестаем принимать запросы, потом дожидаемся кликов
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			log.Warn("scheduler did not stop in time", zap.Error(err))
		}
	}

	if err := clicks.Shutdown(ctx); err != nil {
		log.Warn("pending clicks were dropped", zap.Error(err))
	}

	log.Info("server gracefully stopped")
	return nil
}

// openStore выбирает хранилище по database.driver и применяет миграции
func openStore(cfg *config.Config, log *zap.Logger) (repository.LinkRepository, *sql.DB, database.Dialect, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("using in-memory store, links are lost on restart")
		return repository.NewMemoryLinkRepository(), nil, "", nil
	}

	dsn := cfg.Database.DSN
	if cfg.Database.Driver == "postgres" && dsn == "" {
		dsn = cfg.PostgresDSN()
	}

	db, dialect, err := database.Open(database.Options{
		Driver:       cfg.Database.Driver,
		DSN:          dsn,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, nil, "", err
	}

	log.Info("connected to database", zap.String("driver", cfg.Database.Driver), zap.String("dialect", string(dialect)))
	return repository.NewSQLLinkRepository(db, dialect), db, dialect, nil
}

// newClickRecorder возвращает recorder и функцию освобождения его ресурсов
func newClickRecorder(cfg *config.Config, store repository.LinkRepository, log *zap.Logger) (service.ClickRecorder, func(), error) {
	if cfg.App.ClickMode != config.ClickModeAMQP {
		return service.NewAsyncClickRecorder(store, cfg.App.ClickTimeout, log), func() {}, nil
	}

	conn, err := amqp091.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if _, err := events.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}

	log.Info("publishing clicks to RabbitMQ", zap.String("queue", cfg.RabbitMQ.Queue))
	closeFn := func() {
		ch.Close()
		conn.Close()
	}
	return events.NewPublisher(ch, cfg.RabbitMQ.Queue, cfg.App.ClickTimeout, log), closeFn, nil
}
