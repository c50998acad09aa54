package rabbit

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/events"
	"github.com/yourorg/dm-service/internal/metrics"
)

// Persister is the idempotent write path the consumer drives.
type Persister interface {
	Persist(ctx context.Context, ev events.MessageCreated) error
}

// Consumer drains the durable queue and persists every event it can decode.
// It cycles between disconnected and connected forever: dial failures back off
// exponentially, a dead connection or channel restarts the cycle, and the only
// way out is context cancellation.
type Consumer struct {
	cfg config.RabbitConfig
	svc Persister
	log *zap.SugaredLogger

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(cfg config.RabbitConfig, svc Persister, log *zap.SugaredLogger) *Consumer {
	return &Consumer{cfg: cfg, svc: svc, log: log}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	defer c.teardown()

	for ctx.Err() == nil {
		if err := c.connect(ctx); err != nil {
			return // only on cancellation
		}
		c.consume(ctx)
	}
}

// connect dials and declares until it succeeds or ctx is done. Backoff starts
// at the configured initial delay, doubles, and is capped at the maximum.
func (c *Consumer) connect(ctx context.Context) error {
	c.teardown()

	delay := c.cfg.ReconnectInitial()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := amqp.Dial(c.cfg.URL())
		if err == nil {
			var ch *amqp.Channel
			if ch, err = conn.Channel(); err == nil {
				if err = declareTopology(ch, c.cfg); err == nil {
					err = ch.Qos(c.cfg.Prefetch, 0, false)
				}
			}
			if err == nil {
				c.conn = conn
				c.ch = ch
				c.log.Infow("connected to rabbitmq", "host", c.cfg.Host, "port", c.cfg.Port)
				return nil
			}
			_ = conn.Close()
		}

		c.log.Warnw("rabbitmq connection attempt failed, retrying",
			"delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = nextDelay(delay, c.cfg.ReconnectMax())
	}
}

func nextDelay(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}

// consume registers the delivery handler and runs until the connection or
// channel dies or ctx is cancelled.
func (c *Consumer) consume(ctx context.Context) {
	deliveries, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		c.log.Warnw("register consumer failed, reconnecting", "err", err)
		return
	}

	connClosed := c.conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := c.ch.NotifyClose(make(chan *amqp.Error, 1))
	liveness := time.NewTicker(time.Second)
	defer liveness.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-connClosed:
			c.log.Warnw("rabbitmq connection closed, reconnecting", "err", err)
			return
		case err := <-chClosed:
			c.log.Warnw("rabbitmq channel closed, reconnecting", "err", err)
			return
		case <-liveness.C:
			if c.conn.IsClosed() || c.ch.IsClosed() {
				c.log.Warnw("rabbitmq connection/channel no longer open, reconnecting")
				return
			}
		case d, ok := <-deliveries:
			if !ok {
				c.log.Warnw("delivery channel closed, reconnecting")
				return
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery implements the ack discipline: poison and empty payloads are
// acked away, persistence failures are nacked back for redelivery, everything
// else is persisted once and acked.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	metrics.EventsConsumed.Inc()

	var ev events.MessageCreated
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		metrics.PoisonEvents.Inc()
		c.log.Errorw("malformed event payload, ack and drop", "err", err)
		c.ack(d)
		return
	}
	if ev.MessageID == "" {
		c.log.Warnw("event without message id, ack and drop")
		c.ack(d)
		return
	}

	if err := c.svc.Persist(ctx, ev); err != nil {
		metrics.EventsRequeued.Inc()
		c.log.Errorw("persist failed, nack with requeue", "message_id", ev.MessageID, "err", err)
		if err := d.Nack(false, true); err != nil {
			c.log.Warnw("nack failed", "err", err)
		}
		return
	}
	c.ack(d)
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.log.Warnw("ack failed", "err", err)
	}
}

func (c *Consumer) teardown() {
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
