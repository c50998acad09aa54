package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/apperr"
	"github.com/yourorg/dm-service/internal/events"
	"github.com/yourorg/dm-service/internal/models"
)

type fakeRepo struct {
	byID      map[string]*models.ChatMessage
	existsErr error
	insertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[string]*models.ChatMessage)}
}

func (f *fakeRepo) Exists(_ context.Context, messageID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.byID[messageID]
	return ok, nil
}

func (f *fakeRepo) Insert(_ context.Context, m *models.ChatMessage) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.byID[m.MessageID]; ok {
		return apperr.ErrAlreadyExists
	}
	f.byID[m.MessageID] = m
	return nil
}

func (f *fakeRepo) GetConversation(_ context.Context, userA, userB string) ([]*models.ChatMessage, error) {
	var out []*models.ChatMessage
	for _, m := range f.byID {
		if (m.FromUserID == userA && m.ToUserID == userB) || (m.FromUserID == userB && m.ToUserID == userA) {
			out = append(out, m)
		}
	}
	return out, nil
}

func testEvent(id string) events.MessageCreated {
	return events.MessageCreated{
		MessageID:    id,
		FromUserID:   "alice",
		FromUserName: "Alice",
		ToUserID:     "bob",
		Content:      "hi",
		SentAtUTC:    time.Date(2026, 1, 18, 16, 26, 0, 0, time.UTC),
	}
}

func TestPersist_StoresOnce(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc := NewMessageService(repo, zap.NewNop().Sugar())

	req.NoError(svc.Persist(context.Background(), testEvent("m1")))
	req.Len(repo.byID, 1)

	m := repo.byID["m1"]
	req.Equal("alice", m.FromUserID)
	req.Equal("hi", m.Content)
	req.Equal(time.UTC, m.SentAt.Location())
}

func TestPersist_RedeliveryIsNoop(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc := NewMessageService(repo, zap.NewNop().Sugar())

	req.NoError(svc.Persist(context.Background(), testEvent("m1")))

	// redelivery with different field values: first write wins
	dup := testEvent("m1")
	dup.Content = "changed"
	req.NoError(svc.Persist(context.Background(), dup))

	req.Len(repo.byID, 1)
	req.Equal("hi", repo.byID["m1"].Content)
}

func TestPersist_DuplicateKeyRaceIsSuccess(t *testing.T) {
	repo := newFakeRepo()
	svc := NewMessageService(repo, zap.NewNop().Sugar())

	// simulate a concurrent consumer winning between the exists check and
	// the insert
	repo.insertErr = apperr.ErrAlreadyExists
	require.NoError(t, svc.Persist(context.Background(), testEvent("m1")))
}

func TestPersist_StorageErrorPropagates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewMessageService(repo, zap.NewNop().Sugar())

	storageErr := errors.New("connection refused")
	repo.insertErr = storageErr
	require.ErrorIs(t, svc.Persist(context.Background(), testEvent("m1")), storageErr)

	repo.insertErr = nil
	repo.existsErr = storageErr
	require.ErrorIs(t, svc.Persist(context.Background(), testEvent("m2")), storageErr)
}

func TestConversationHistory(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	svc := NewMessageService(repo, zap.NewNop().Sugar())

	req.NoError(svc.Persist(context.Background(), testEvent("m1")))
	other := testEvent("m2")
	other.ToUserID = "carol"
	req.NoError(svc.Persist(context.Background(), other))

	msgs, err := svc.ConversationHistory(context.Background(), "alice", "bob")
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("m1", msgs[0].MessageID)
}
