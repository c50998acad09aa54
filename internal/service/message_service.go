package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/apperr"
	"github.com/yourorg/dm-service/internal/events"
	"github.com/yourorg/dm-service/internal/metrics"
	"github.com/yourorg/dm-service/internal/models"
	"github.com/yourorg/dm-service/internal/repository"
)

// MessageService is the idempotent write path. A message with a given id is
// stored at most once no matter how many times its event is delivered.
type MessageService struct {
	repo repository.MessageRepository
	log  *zap.SugaredLogger
}

func NewMessageService(repo repository.MessageRepository, log *zap.SugaredLogger) *MessageService {
	return &MessageService{repo: repo, log: log}
}

// Persist stores the event's message unless a record with the same id already
// exists. The existence check and the insert are deliberately not atomic: a
// concurrent consumer racing on the same redelivered event at worst hits the
// unique index, which is also treated as success.
func (s *MessageService) Persist(ctx context.Context, ev events.MessageCreated) error {
	exists, err := s.repo.Exists(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if exists {
		metrics.DuplicateEvents.Inc()
		s.log.Debugw("message already persisted, skipping", "message_id", ev.MessageID)
		return nil
	}

	if err := s.repo.Insert(ctx, ev.ToModel()); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			metrics.DuplicateEvents.Inc()
			return nil
		}
		return err
	}
	metrics.MessagesPersisted.Inc()
	return nil
}

// ConversationHistory returns the two-party history, oldest first.
func (s *MessageService) ConversationHistory(ctx context.Context, userA, userB string) ([]*models.ChatMessage, error) {
	return s.repo.GetConversation(ctx, userA, userB)
}
