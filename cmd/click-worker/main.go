package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kosench/go-link-shortener/internal/config"
	"github.com/Kosench/go-link-shortener/internal/database"
	"github.com/Kosench/go-link-shortener/internal/events"
	"github.com/Kosench/go-link-shortener/internal/logger"
	"github.com/Kosench/go-link-shortener/internal/repository"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// click-worker читает события кликов из RabbitMQ и увеличивает счетчики в базе
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

	if err := run(cfg, log.Named("click_worker")); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("click worker stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.Database.Driver == "memory" {
		return errors.New("click worker needs a shared database, memory driver is not supported")
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
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer db.Close()

	conn, err := amqp091.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	defer ch.Close()

	q, err := events.DeclareQueue(ch, cfg.RabbitMQ.Queue)
	if err != nil {
		return err
	}

	if err := ch.Qos(cfg.RabbitMQ.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("waiting for click events", zap.String("queue", q.Name), zap.Int("prefetch", cfg.RabbitMQ.Prefetch))

	consumer := events.NewConsumer(repository.NewSQLLinkRepository(db, dialect), log)
	return consumer.Run(ctx, deliveries)
}
