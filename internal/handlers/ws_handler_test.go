package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/auth"
	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/hub"
	"github.com/yourorg/dm-service/internal/presence"
	"github.com/yourorg/dm-service/internal/rabbit"
)

func newTestWSHandler(h *hub.Hub, tr *presence.Tracker) *WSHandler {
	log := zap.NewNop().Sugar()
	// unroutable broker: publish failures are swallowed by the publisher
	pub := rabbit.NewPublisher(config.RabbitConfig{Host: "127.0.0.1", Port: 1}, log)
	cfg := &config.Config{}
	cfg.App.JWTSecret = "secret"
	return NewWSHandler(h, tr, pub, cfg, log)
}

func drainOne(t *testing.T, c *hub.Client) Envelope {
	t.Helper()
	select {
	case b := <-c.Outbox():
		var env Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env
	default:
		t.Fatal("expected a queued frame")
		return Envelope{}
	}
}

func TestSendMessage_FansOutToAllRecipientConnections(t *testing.T) {
	req := require.New(t)
	h := hub.New()
	tr := presence.NewTracker()
	wsh := newTestWSHandler(h, tr)

	sender := hub.NewClient(nil, "alice")
	c2 := hub.NewClient(nil, "bob")
	c3 := hub.NewClient(nil, "bob")
	h.Register(sender)
	h.Register(c2)
	h.Register(c3)

	claims := &auth.Claims{UserID: "alice", UserName: "Alice"}
	wsh.sendMessage(sender, claims, json.RawMessage(`{"toUserId":"bob","content":"hi"}`))

	for _, c := range []*hub.Client{c2, c3} {
		env := drainOne(t, c)
		req.Equal("receive_message", env.Type)
		var push receiveMessagePush
		req.NoError(json.Unmarshal(env.Payload, &push))
		req.Equal("alice", push.SenderID)
		req.Equal("Alice", push.SenderName)
		req.Equal("hi", push.Text)
		req.WithinDuration(time.Now().UTC(), push.SentAtUTC, 5*time.Second)
	}

	// the sender gets nothing back on success
	select {
	case <-sender.Outbox():
		t.Fatal("sender should not receive a frame")
	default:
	}
}

func TestSendMessage_NoLiveRecipientIsNotAnError(t *testing.T) {
	h := hub.New()
	wsh := newTestWSHandler(h, presence.NewTracker())

	sender := hub.NewClient(nil, "alice")
	h.Register(sender)

	claims := &auth.Claims{UserID: "alice", UserName: "Alice"}
	wsh.sendMessage(sender, claims, json.RawMessage(`{"toUserId":"offline-bob","content":"hi"}`))

	select {
	case <-sender.Outbox():
		t.Fatal("offline recipient must not surface an error to the sender")
	default:
	}
}

func TestSendMessage_InvalidPayloadRejected(t *testing.T) {
	req := require.New(t)
	h := hub.New()
	wsh := newTestWSHandler(h, presence.NewTracker())

	sender := hub.NewClient(nil, "alice")
	h.Register(sender)
	claims := &auth.Claims{UserID: "alice", UserName: "Alice"}

	wsh.sendMessage(sender, claims, json.RawMessage(`{"toUserId":"","content":""}`))

	env := drainOne(t, sender)
	req.Equal("error", env.Type)
}
