package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/dm-service/internal/apperr"
	"github.com/yourorg/dm-service/internal/models"
)

type MessageRepository interface {
	Exists(ctx context.Context, messageID string) (bool, error)
	Insert(ctx context.Context, m *models.ChatMessage) error
	GetConversation(ctx context.Context, userA, userB string) ([]*models.ChatMessage, error)
}

type mongoMessageRepo struct {
	coll *mongo.Collection
}

func NewMongoMessageRepository(coll *mongo.Collection) MessageRepository {
	return &mongoMessageRepo{coll: coll}
}

// EnsureIndexes declares the unique message_id index plus the conversation
// lookup index. Safe to call on every startup.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "from_user_id", Value: 1},
				{Key: "to_user_id", Value: 1},
				{Key: "sent_at", Value: 1},
			},
		},
	})
	return err
}

func (r *mongoMessageRepo) Exists(ctx context.Context, messageID string) (bool, error) {
	err := r.coll.FindOne(ctx, bson.M{"message_id": messageID},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// Insert writes the record; a duplicate-key conflict on message_id is mapped
// to apperr.ErrAlreadyExists so callers can treat it as success.
func (r *mongoMessageRepo) Insert(ctx context.Context, m *models.ChatMessage) error {
	_, err := r.coll.InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *mongoMessageRepo) GetConversation(ctx context.Context, userA, userB string) ([]*models.ChatMessage, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"from_user_id": userA, "to_user_id": userB},
		bson.M{"from_user_id": userB, "to_user_id": userA},
	}}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.ChatMessage
	for cur.Next(ctx) {
		var m models.ChatMessage
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}
