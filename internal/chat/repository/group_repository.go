package repository

import (
	"context"
	"errors"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GroupRepository read side of the group store
type GroupRepository interface {
	FindByID(ctx context.Context, groupID string) (*domain.Group, error)
	FindGroupIDsByMember(ctx context.Context, username string) ([]string, error)
}

type groupRepository struct {
	groupsColl *mongo.Collection
}

// NewMongoGroupRepository create new mongo group repository
func NewMongoGroupRepository(db *mongo.Database) GroupRepository {
	return &groupRepository{
		groupsColl: db.Collection(domain.GroupCollection),
	}
}

// FindByID find group by id
func (r *groupRepository) FindByID(ctx context.Context, groupID string) (*domain.Group, error) {
	var group domain.Group
	err := r.groupsColl.FindOne(ctx, bson.M{"_id": groupID}).Decode(&group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// FindGroupIDsByMember ids of every group username belongs to
func (r *groupRepository) FindGroupIDsByMember(ctx context.Context, username string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1})
	cur, err := r.groupsColl.Find(ctx, bson.M{"members": username}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
