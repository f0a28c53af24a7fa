package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Kosench/go-link-shortener/internal/model"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel - часть *amqp091.Channel, нужная для публикации
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// DeclareQueue объявляет durable очередь кликов
func DeclareQueue(ch *amqp091.Channel, name string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare queue %q: %w", name, err)
	}
	return q, nil
}

// Publisher отправляет клики в RabbitMQ вместо прямого инкремента.
// Счетчик обновляет click-worker.
type Publisher struct {
	ch      Channel
	queue   string
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewPublisher(ch Channel, queue string, timeout time.Duration, log *zap.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		ch:      ch,
		queue:   queue,
		timeout: timeout,
		now:     time.Now,
		log:     log.Named("click_publisher"),
	}
}

func (p *Publisher) Record(link *model.Link) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.log.Warn("click dropped after shutdown", zap.String("short_code", link.ShortCode))
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	event := NewClickEvent(link, p.now())
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil {
			p.log.Error("failed to publish click event",
				zap.Int64("link_id", event.LinkID),
				zap.String("short_code", event.ShortCode),
				zap.Error(err),
			)
		}
	}()
}

func (p *Publisher) Publish(ctx context.Context, event ClickEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode click event: %w", err)
	}

	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    event.ClickedAt,
		Body:         body,
	})
}

// Shutdown ждет публикации уже принятых кликов
func (p *Publisher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
