package repository

import (
	"context"
	"encoding/json"
	"strings"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	topicChannelPrefix = "chat:topic:"
	broadcastChannel   = "chat:broadcast"
)

// redisEnvelope what travels over a redis channel
type redisEnvelope struct {
	Exclude []string        `json:"exclude,omitempty"`
	Frame   json.RawMessage `json:"frame"`
}

// RedisTopicBroker publishes through redis so every relay process delivers to its own
// connections; local subscriptions live in the wrapped broker.
type RedisTopicBroker struct {
	client *redis.Client
	local  domain.Broker
}

// NewRedisTopicBroker create RedisTopicBroker
func NewRedisTopicBroker(client *redis.Client, local domain.Broker) *RedisTopicBroker {
	return &RedisTopicBroker{
		client: client,
		local:  local,
	}
}

// Subscribe local subscription
func (r *RedisTopicBroker) Subscribe(conn domain.Connection, topics ...domain.Topic) {
	r.local.Subscribe(conn, topics...)
}

// UnsubscribeAll local unsubscribe
func (r *RedisTopicBroker) UnsubscribeAll(connID string) {
	r.local.UnsubscribeAll(connID)
}

// Publish 將 frame 發布到 topic 對應的 channel
func (r *RedisTopicBroker) Publish(ctx context.Context, topic domain.Topic, frame []byte, exclude ...string) error {
	return r.publish(ctx, topicChannelPrefix+string(topic), frame, exclude)
}

// Broadcast publish to every relay process
func (r *RedisTopicBroker) Broadcast(ctx context.Context, frame []byte) error {
	return r.publish(ctx, broadcastChannel, frame, nil)
}

func (r *RedisTopicBroker) publish(ctx context.Context, channel string, frame []byte, exclude []string) error {
	data, err := json.Marshal(redisEnvelope{Exclude: exclude, Frame: frame})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Run 訂閱所有 topic channel 並轉交本地 broker, blocks until ctx is done.
// One subscription keeps redis' per-connection ordering.
func (r *RedisTopicBroker) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, topicChannelPrefix+"*", broadcastChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(ctx, m.Channel, m.Payload)
		case <-ctx.Done():
			logger.Log.Info("redis topic subscription closed")
			return nil
		}
	}
}

func (r *RedisTopicBroker) dispatch(ctx context.Context, channel, payload string) {
	var env redisEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		logger.Log.Error("redis topic payload unreadable", zap.String("channel", channel), zap.Error(err))
		return
	}

	if channel == broadcastChannel {
		_ = r.local.Broadcast(ctx, env.Frame)
		return
	}
	topic := domain.Topic(strings.TrimPrefix(channel, topicChannelPrefix))
	_ = r.local.Publish(ctx, topic, env.Frame, env.Exclude...)
}
