package rabbit

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/events"
	"github.com/yourorg/dm-service/internal/metrics"
)

// Publisher hands message-created events to the broker. Publish is
// best-effort: the recipient already got the live push, so a broker outage
// here is logged and swallowed rather than surfaced to the sender.
//
// The connection is established lazily on first use and reused. There is no
// reconnect loop on this side; the consumer owns its own connection and a
// publisher outage lasting the process lifetime is an operational incident.
type Publisher struct {
	cfg config.RabbitConfig
	log *zap.SugaredLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(cfg config.RabbitConfig, log *zap.SugaredLogger) *Publisher {
	return &Publisher{cfg: cfg, log: log}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	p.closeLocked()

	conn, err := amqp.Dial(p.cfg.URL())
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, p.cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	p.conn = conn
	p.ch = ch
	return ch, nil
}

// Publish serializes the event and enqueues it durably. Errors are logged,
// never returned.
func (p *Publisher) Publish(ctx context.Context, ev events.MessageCreated) {
	body, err := ev.Marshal()
	if err != nil {
		metrics.PublishFailures.Inc()
		p.log.Errorw("marshal message-created event", "message_id", ev.MessageID, "err", err)
		return
	}

	ch, err := p.channel()
	if err != nil {
		metrics.PublishFailures.Inc()
		p.log.Errorw("rabbitmq unavailable, event dropped at publish layer",
			"message_id", ev.MessageID, "err", err)
		return
	}

	err = ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		metrics.PublishFailures.Inc()
		p.log.Errorw("publish message-created event", "message_id", ev.MessageID, "err", err)
		return
	}
	metrics.EventsPublished.Inc()
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
