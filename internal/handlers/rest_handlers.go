package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/middleware"
	"github.com/yourorg/dm-service/internal/models"
	"github.com/yourorg/dm-service/internal/presence"
	"github.com/yourorg/dm-service/internal/service"
)

type RestHandler struct {
	svc      *service.MessageService
	presence *presence.Tracker
	log      *zap.SugaredLogger
}

func NewRestHandler(svc *service.MessageService, tr *presence.Tracker, log *zap.SugaredLogger) *RestHandler {
	return &RestHandler{svc: svc, presence: tr, log: log}
}

type chatMessageDTO struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
	IsMine     bool   `json:"isMine"`
}

// GetHistory returns the two-party conversation between the caller and
// :targetUserId, oldest first.
func (h *RestHandler) GetHistory(c *fiber.Ctx) error {
	me, _ := c.Locals(middleware.LocalUserID).(string)
	target := c.Params("targetUserId")
	if me == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	if target == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "target user id required"})
	}

	msgs, err := h.svc.ConversationHistory(c.Context(), me, target)
	if err != nil {
		h.log.Errorw("conversation history", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(toDTOs(msgs, me))
}

func toDTOs(msgs []*models.ChatMessage, me string) []chatMessageDTO {
	out := make([]chatMessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatMessageDTO{
			ID:         m.MessageID,
			SenderID:   m.FromUserID,
			SenderName: m.FromUserName,
			Text:       m.Content,
			Timestamp:  m.SentAt.UTC().Format(time.RFC3339),
			IsMine:     m.FromUserID == me,
		})
	}
	return out
}

// GetOnlineUsers returns the presence snapshot.
func (h *RestHandler) GetOnlineUsers(c *fiber.Ctx) error {
	return c.JSON(h.presence.ListOnline())
}
