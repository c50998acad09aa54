package events

import (
	"encoding/json"
	"time"

	"github.com/yourorg/dm-service/internal/models"
)

// MessageCreated is the broker payload for a newly created direct message.
// Field names are part of the wire contract; timestamps travel as RFC 3339 UTC.
type MessageCreated struct {
	MessageID    string    `json:"messageId"`
	FromUserID   string    `json:"fromUserId"`
	FromUserName string    `json:"fromUserName"`
	ToUserID     string    `json:"toUserId"`
	Content      string    `json:"content"`
	SentAtUTC    time.Time `json:"sentAtUtc"`
}

func (e MessageCreated) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ToModel maps the event verbatim onto the stored record.
func (e MessageCreated) ToModel() *models.ChatMessage {
	return &models.ChatMessage{
		MessageID:    e.MessageID,
		FromUserID:   e.FromUserID,
		FromUserName: e.FromUserName,
		ToUserID:     e.ToUserID,
		Content:      e.Content,
		SentAt:       e.SentAtUTC.UTC(),
	}
}
