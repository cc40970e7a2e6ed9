package repository

import (
	"context"
	"errors"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	messageCollection   = "messages"
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MessageRepository message store
type MessageRepository interface {
	// Insert 寫入一筆聊天訊息
	Insert(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	// SoftDelete flag deleted, replace text with the tombstone and drop the file
	SoftDelete(ctx context.Context, id string) (*domain.Message, error)
	MarkRead(ctx context.Context, id string) (*domain.Message, error)
	// FindLastMessage newest message of a chat, nil when the chat is empty
	FindLastMessage(ctx context.Context, chatKey string) (*domain.Message, error)
	// FindHistory newest q.Limit messages before q.Before, returned oldest first
	FindHistory(ctx context.Context, chatKey string, q domain.HistoryQuery) ([]domain.Message, error)
	EnsureIndexes(ctx context.Context) error
}

type messageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll: db.Collection(messageCollection),
	}
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "chat_key", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "_id", Value: 1},
		},
	})
	return err
}

func (r *messageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, id string) (*domain.Message, error) {
	update := bson.M{
		"$set":   bson.M{"is_deleted": true, "message": domain.TombstoneText},
		"$unset": bson.M{"file": "", "reply_to": ""},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *messageRepository) MarkRead(ctx context.Context, id string) (*domain.Message, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"read": true}})
}

func (r *messageRepository) findOneAndUpdate(ctx context.Context, id string, update bson.M) (*domain.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg domain.Message
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindLastMessage(ctx context.Context, chatKey string) (*domain.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"chat_key": chatKey}, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindHistory(ctx context.Context, chatKey string, q domain.HistoryQuery) ([]domain.Message, error) {
	filter := bson.M{"chat_key": chatKey}
	if q.Before > 0 {
		filter["created_at"] = bson.M{"$lt": q.Before}
	}

	// 先倒序取最新的 limit 筆，再反轉成時間升序
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(ClampLimit(q.Limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := []domain.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ClampLimit history page size within [1, maxHistoryLimit], 0 means default
func ClampLimit(limit int64) int64 {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}
