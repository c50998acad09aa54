package models

import "time"

// ChatMessage is the durable record for a direct message. MessageID is
// generated at send time by the gateway, never by storage; a unique index on
// message_id keeps redelivered events from producing a second record.
type ChatMessage struct {
	MessageID    string    `bson:"message_id" json:"id"`
	FromUserID   string    `bson:"from_user_id" json:"senderId"`
	FromUserName string    `bson:"from_user_name" json:"senderName"`
	ToUserID     string    `bson:"to_user_id" json:"-"`
	Content      string    `bson:"content" json:"text"`
	SentAt       time.Time `bson:"sent_at" json:"sentAtUtc"`
}
