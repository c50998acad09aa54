package rabbit

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/events"
)

type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, _ bool) error { return nil }

type fakePersister struct {
	err    error
	events []events.MessageCreated
}

func (f *fakePersister) Persist(_ context.Context, ev events.MessageCreated) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func newTestConsumer(p Persister) *Consumer {
	cfg := config.RabbitConfig{Queue: "q", Exchange: "x", RoutingKey: "k"}
	return NewConsumer(cfg, p, zap.NewNop().Sugar())
}

func delivery(body []byte) (amqp.Delivery, *fakeAcknowledger) {
	ack := &fakeAcknowledger{}
	return amqp.Delivery{Acknowledger: ack, Body: body}, ack
}

func TestHandleDelivery_ValidEventIsPersistedAndAcked(t *testing.T) {
	req := require.New(t)
	p := &fakePersister{}
	c := newTestConsumer(p)

	ev := events.MessageCreated{
		MessageID:    "m1",
		FromUserID:   "alice",
		FromUserName: "Alice",
		ToUserID:     "bob",
		Content:      "hi",
		SentAtUTC:    time.Date(2026, 1, 18, 16, 26, 0, 0, time.UTC),
	}
	body, err := ev.Marshal()
	req.NoError(err)

	d, ack := delivery(body)
	c.handleDelivery(context.Background(), d)

	req.True(ack.acked)
	req.False(ack.nacked)
	req.Len(p.events, 1)
	// lossless round-trip through the wire format
	got := p.events[0]
	req.True(ev.SentAtUTC.Equal(got.SentAtUTC))
	got.SentAtUTC = ev.SentAtUTC
	req.Equal(ev, got)
}

func TestHandleDelivery_MalformedPayloadAckedAndDropped(t *testing.T) {
	req := require.New(t)
	p := &fakePersister{}
	c := newTestConsumer(p)

	d, ack := delivery([]byte("{not json"))
	c.handleDelivery(context.Background(), d)

	req.True(ack.acked, "poison message must leave the queue")
	req.False(ack.nacked)
	req.Empty(p.events)
}

func TestHandleDelivery_EmptyEventAckedAndDropped(t *testing.T) {
	req := require.New(t)
	p := &fakePersister{}
	c := newTestConsumer(p)

	d, ack := delivery([]byte(`{}`))
	c.handleDelivery(context.Background(), d)

	req.True(ack.acked)
	req.Empty(p.events)
}

func TestHandleDelivery_PersistFailureNackedWithRequeue(t *testing.T) {
	req := require.New(t)
	p := &fakePersister{err: errors.New("storage down")}
	c := newTestConsumer(p)

	d, ack := delivery([]byte(`{"messageId":"m1","fromUserId":"a","toUserId":"b","content":"x","sentAtUtc":"2026-01-18T16:26:00Z"}`))
	c.handleDelivery(context.Background(), d)

	req.False(ack.acked)
	req.True(ack.nacked)
	req.True(ack.requeue, "transient failures must requeue for redelivery")
}

func TestNextDelay_DoublesAndCaps(t *testing.T) {
	req := require.New(t)
	max := 10 * time.Second

	d := 2 * time.Second
	d = nextDelay(d, max)
	req.Equal(4*time.Second, d)
	d = nextDelay(d, max)
	req.Equal(8*time.Second, d)
	d = nextDelay(d, max)
	req.Equal(10*time.Second, d)
	d = nextDelay(d, max)
	req.Equal(10*time.Second, d)
}

func TestConnect_StopsOnCancellation(t *testing.T) {
	// unroutable host: dial keeps failing, cancellation must win promptly
	cfg := config.RabbitConfig{
		Host: "127.0.0.1", Port: 1,
		ReconnectInitialSeconds: 1, ReconnectMaxSeconds: 1,
	}
	c := NewConsumer(cfg, &fakePersister{}, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop on cancellation")
	}
}
