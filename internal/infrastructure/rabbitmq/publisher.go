package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
)

const (
	dialAttempts = 5
	baseBackoff  = 500 * time.Millisecond
)

// Publisher sends lifecycle events to a durable topic exchange. The routing key
// is "<aggregate>.<event>", e.g. "donation.accepted".
type Publisher struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects with exponential backoff and declares the exchange.
func Dial(ctx context.Context, url, exchange string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{url: url, exchange: exchange, logger: logger}
	if err := p.connect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			wait := baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		conn, err := amqp.Dial(p.url)
		if err != nil {
			lastErr = err
			p.logger.Warn("amqp dial failed", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			lastErr = err
			continue
		}
		if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
		}

		p.conn, p.ch = conn, ch
		p.logger.Info("connected to amqp broker", zap.String("exchange", p.exchange))
		return nil
	}
	return fmt.Errorf("amqp: giving up after %d attempts: %w", dialAttempts, lastErr)
}

// Publish sends one event. A closed channel triggers a single reconnect.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.CreatedAt,
		Type:         event.RoutingKey(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(ctx); err != nil {
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, event.RoutingKey(), false, false, msg); err != nil {
		if !p.ch.IsClosed() {
			return err
		}
		if err := p.connect(ctx); err != nil {
			return err
		}
		return p.ch.PublishWithContext(ctx, p.exchange, event.RoutingKey(), false, false, msg)
	}
	return nil
}

// Ping reports whether the broker connection is open.
func (p *Publisher) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
	return err
}
