package events

import (
	"context"
	"errors"

	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ClickStore - хранилище, которое умеет атомарно увеличивать счетчик
type ClickStore interface {
	IncrementClicks(ctx context.Context, id int64) error
}

type Consumer struct {
	store ClickStore
	log   *zap.Logger
}

func NewConsumer(store ClickStore, log *zap.Logger) *Consumer {
	return &Consumer{
		store: store,
		log:   log.Named("click_consumer"),
	}
}

// Handle применяет одно сообщение и подтверждает его.
// Битые сообщения отбрасываются, ошибки хранилища возвращают сообщение в очередь.
func (c *Consumer) Handle(ctx context.Context, d amqp091.Delivery) {
	event, err := decodeClickEvent(d.Body)
	if err != nil {
		c.log.Error("malformed click event, rejecting", zap.Error(err))
		c.settle(d.Reject(false))
		return
	}

	err = c.store.IncrementClicks(ctx, event.LinkID)
	switch {
	case err == nil:
		c.settle(d.Ack(false))
	case errors.Is(err, apperrors.ErrLinkNotFound):
		// Ссылку удалили после клика
		c.log.Debug("click for deleted link", zap.Int64("link_id", event.LinkID))
		c.settle(d.Ack(false))
	default:
		c.log.Error("failed to record click, requeueing",
			zap.Int64("link_id", event.LinkID),
			zap.String("short_code", event.ShortCode),
			zap.Error(err),
		)
		c.settle(d.Nack(false, true))
	}
}

// Run обрабатывает сообщения до отмены ctx или закрытия канала
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp091.Delivery) error {
	c.log.Info("click consumer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				c.log.Warn("delivery channel closed")
				return nil
			}
			c.Handle(ctx, d)
		}
	}
}

func (c *Consumer) settle(err error) {
	if err != nil {
		c.log.Error("failed to acknowledge delivery", zap.Error(err))
	}
}
