package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/auth"
	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/events"
	"github.com/yourorg/dm-service/internal/hub"
	"github.com/yourorg/dm-service/internal/metrics"
	"github.com/yourorg/dm-service/internal/presence"
	"github.com/yourorg/dm-service/internal/rabbit"
)

// Envelope is the ws wire format, both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type sendMessagePayload struct {
	ToUserID string `json:"toUserId"`
	Content  string `json:"content"`
}

type receiveMessagePush struct {
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	SentAtUTC  time.Time `json:"sentAtUtc"`
}

type presencePush struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type WSHandler struct {
	hub      *hub.Hub
	presence *presence.Tracker
	pub      *rabbit.Publisher
	cfg      *config.Config
	log      *zap.SugaredLogger
}

func NewWSHandler(h *hub.Hub, tr *presence.Tracker, pub *rabbit.Publisher, cfg *config.Config, log *zap.SugaredLogger) *WSHandler {
	return &WSHandler{hub: h, presence: tr, pub: pub, cfg: cfg, log: log}
}

// Handle runs one session: authenticate, register, relay until the socket
// closes for any reason, then deregister.
func (h *WSHandler) Handle() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		claims, err := auth.ParseAndValidateToken(h.cfg.App.JWTSecret, conn.Query("token"))
		if err != nil {
			h.log.Debugw("ws session rejected", "err", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"error":"unauthorized"}}`))
			_ = conn.Close()
			return
		}

		client := hub.NewClient(conn, claims.UserID)
		h.hub.Register(client)
		h.presence.Connect(claims.UserID, client.ConnID, claims.UserName)
		metrics.OnlineConnections.Inc()
		h.hub.Broadcast(outbound{
			Type:    "user_online",
			Payload: presencePush{UserID: claims.UserID, UserName: claims.UserName},
		}, client.ConnID)
		h.log.Infow("ws session opened", "user_id", claims.UserID, "conn_id", client.ConnID)

		go client.WritePump(h.cfg.PingInterval, h.cfg.WriteDeadline)
		h.readLoop(conn, client, claims)

		// any close path lands here: client disconnect, transport error,
		// server shutdown
		h.hub.Unregister(client)
		h.presence.Disconnect(claims.UserID, client.ConnID)
		metrics.OnlineConnections.Dec()
		client.Close()
		if !h.presence.IsOnline(claims.UserID) {
			h.hub.Broadcast(outbound{
				Type:    "user_offline",
				Payload: presencePush{UserID: claims.UserID},
			}, "")
		}
		h.log.Infow("ws session closed", "user_id", claims.UserID, "conn_id", client.ConnID)
	}
}

func (h *WSHandler) readLoop(conn *websocket.Conn, client *hub.Client, claims *auth.Claims) {
	conn.SetReadLimit(h.cfg.WS.MaxMessageSizeBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.ReadDeadline))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case "send_message":
			h.sendMessage(client, claims, env.Payload)
		case "get_online_users":
			client.Queue(mustJSON(outbound{Type: "online_users", Payload: h.presence.ListOnline()}))
		default:
			// unknown types are ignored
		}
	}
}

// sendMessage fixes the message identity and timestamp, relays to the
// recipient's live connections, then hands the event to the publisher. The
// two paths are independent: zero live recipients is fine (persistence still
// proceeds), and a publish failure is logged inside the publisher, never
// surfaced to the sender.
func (h *WSHandler) sendMessage(client *hub.Client, claims *auth.Claims, payload json.RawMessage) {
	var req sendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.ToUserID == "" || req.Content == "" {
		client.Queue(mustJSON(outbound{Type: "error", Payload: errorPayload("invalid send_message payload")}))
		return
	}

	ev := events.MessageCreated{
		MessageID:    uuid.NewString(),
		FromUserID:   claims.UserID,
		FromUserName: claims.UserName,
		ToUserID:     req.ToUserID,
		Content:      req.Content,
		SentAtUTC:    time.Now().UTC(),
	}

	delivered := h.hub.SendToUser(req.ToUserID, outbound{
		Type: "receive_message",
		Payload: receiveMessagePush{
			SenderID:   ev.FromUserID,
			SenderName: ev.FromUserName,
			Text:       ev.Content,
			SentAtUTC:  ev.SentAtUTC,
		},
	})
	h.log.Debugw("live relay", "message_id", ev.MessageID, "to", req.ToUserID, "connections", delivered)

	h.pub.Publish(context.Background(), ev)
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func errorPayload(msg string) map[string]string {
	return map[string]string{"error": msg}
}
