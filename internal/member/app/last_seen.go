package app

import (
	"context"
	"encoding/json"
	"time"

	"realtime_chat_service/internal/member/domain"
	"realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// LastSeenPublisher queue last-seen jobs on rabbitmq for the presence worker
type LastSeenPublisher struct {
	rabbit database.RabbitRepo
	queue  string
}

// NewLastSeenPublisher create LastSeenPublisher
func NewLastSeenPublisher(rabbit database.RabbitRepo, queue string) *LastSeenPublisher {
	return &LastSeenPublisher{rabbit: rabbit, queue: queue}
}

// RecordLastSeen publish a persistent job
func (p *LastSeenPublisher) RecordLastSeen(_ context.Context, username string, at time.Time) error {
	body, err := json.Marshal(domain.LastSeen{Username: username, At: at})
	if err != nil {
		return err
	}
	return p.rabbit.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    at,
		Body:         body,
	})
}

// DirectRecorder write last seen straight to postgres when no queue is configured
type DirectRecorder struct {
	repo repository.MemberRepository
}

// NewDirectRecorder create DirectRecorder
func NewDirectRecorder(repo repository.MemberRepository) *DirectRecorder {
	return &DirectRecorder{repo: repo}
}

// RecordLastSeen upsert the row
func (d *DirectRecorder) RecordLastSeen(ctx context.Context, username string, at time.Time) error {
	return d.repo.UpdateLastSeen(ctx, username, at)
}

// DeliverySource subset of *amqp.Channel used by the consumer
type DeliverySource interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// LastSeenConsumer drain the last-seen queue into postgres
type LastSeenConsumer struct {
	source DeliverySource
	queue  string
	repo   repository.MemberRepository
}

// NewLastSeenConsumer create LastSeenConsumer
func NewLastSeenConsumer(source DeliverySource, queue string, repo repository.MemberRepository) *LastSeenConsumer {
	return &LastSeenConsumer{source: source, queue: queue, repo: repo}
}

// Run consume until ctx is done or the channel closes
func (c *LastSeenConsumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(c.queue, "presence_worker", false, false, false, false, nil)
	if err != nil {
		return err
	}

	logger.Log.Info("consuming last seen jobs", zap.String("queue", c.queue))
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		case <-ctx.Done():
			return nil
		}
	}
}

// handle ack on success, drop unreadable jobs, requeue on store errors
func (c *LastSeenConsumer) handle(ctx context.Context, d amqp.Delivery) {
	var job domain.LastSeen
	if err := json.Unmarshal(d.Body, &job); err != nil || job.Username == "" {
		logger.Log.Warn("last seen job unreadable, dropping", zap.ByteString("body", d.Body))
		_ = d.Nack(false, false)
		return
	}

	if err := c.repo.UpdateLastSeen(ctx, job.Username, job.At); err != nil {
		logger.Log.Error("update last seen failed", zap.String("username", job.Username), zap.Error(err))
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	logger.Log.Debug("last seen updated", zap.String("username", job.Username), zap.Time("at", job.At))
	_ = d.Ack(false)
}
