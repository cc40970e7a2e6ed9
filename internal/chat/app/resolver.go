package app

import (
	"context"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
)

// RoomResolver maps destinations and users to topics.
// Group membership is read once per join; changes apply on the next join.
type RoomResolver struct {
	groups repository.GroupRepository
}

// NewRoomResolver create RoomResolver
func NewRoomResolver(groups repository.GroupRepository) *RoomResolver {
	return &RoomResolver{groups: groups}
}

// ResolveTarget topic a message is delivered to
func (r *RoomResolver) ResolveTarget(dest domain.Destination) domain.Topic {
	return dest.Topic()
}

// GroupRoomsFor ids of the groups username belongs to
func (r *RoomResolver) GroupRoomsFor(ctx context.Context, username string) ([]string, error) {
	if r.groups == nil {
		return nil, nil
	}
	return r.groups.FindGroupIDsByMember(ctx, username)
}

// TopicsFor user topic plus one topic per group; on lookup failure the user topic is still returned
func (r *RoomResolver) TopicsFor(ctx context.Context, username string) ([]domain.Topic, error) {
	topics := []domain.Topic{domain.UserTopic(username)}

	groupIDs, err := r.GroupRoomsFor(ctx, username)
	if err != nil {
		return topics, err
	}
	for _, id := range groupIDs {
		topics = append(topics, domain.GroupTopic(id))
	}
	return topics, nil
}
