package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"realtime_chat_service/internal/member/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetNewNop()
}

func TestLastSeenPublisher_RecordLastSeen(t *testing.T) {
	rabbit := new(MockRabbitRepo)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rabbit.On("Publish", "", "presence.last_seen", false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
		var job domain.LastSeen
		if err := json.Unmarshal(p.Body, &job); err != nil {
			return false
		}
		return job.Username == "alice" && job.At.Equal(at) &&
			p.DeliveryMode == amqp.Persistent && p.ContentType == "application/json"
	})).Return(nil)

	err := NewLastSeenPublisher(rabbit, "presence.last_seen").RecordLastSeen(context.Background(), "alice", at)
	assert.NoError(t, err)
	rabbit.AssertExpectations(t)
}

func TestDirectRecorder(t *testing.T) {
	ctx := context.Background()
	repo := new(MockMemberRepo)
	at := time.Now()
	repo.On("UpdateLastSeen", ctx, "alice", at).Return(nil)

	assert.NoError(t, NewDirectRecorder(repo).RecordLastSeen(ctx, "alice", at))
	repo.AssertExpectations(t)
}

func delivery(ack *MockAcknowledger, body []byte, redelivered bool) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body, Redelivered: redelivered}
}

func TestLastSeenConsumer_Handle(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	good, _ := json.Marshal(domain.LastSeen{Username: "alice", At: at})

	t.Run("ack on success", func(t *testing.T) {
		repo := new(MockMemberRepo)
		ack := new(MockAcknowledger)
		repo.On("UpdateLastSeen", mock.Anything, "alice", mock.MatchedBy(at.Equal)).Return(nil)
		ack.On("Ack", uint64(1), false).Return(nil)

		NewLastSeenConsumer(nil, "q", repo).handle(context.Background(), delivery(ack, good, false))
		repo.AssertExpectations(t)
		ack.AssertExpectations(t)
	})

	t.Run("drop unreadable job", func(t *testing.T) {
		repo := new(MockMemberRepo)
		ack := new(MockAcknowledger)
		ack.On("Nack", uint64(1), false, false).Return(nil)

		NewLastSeenConsumer(nil, "q", repo).handle(context.Background(), delivery(ack, []byte("{"), false))
		repo.AssertNotCalled(t, "UpdateLastSeen", mock.Anything, mock.Anything, mock.Anything)
		ack.AssertExpectations(t)
	})

	t.Run("requeue once on store error", func(t *testing.T) {
		repo := new(MockMemberRepo)
		ack := new(MockAcknowledger)
		repo.On("UpdateLastSeen", mock.Anything, "alice", mock.Anything).Return(errors.New("db down"))
		ack.On("Nack", uint64(1), false, true).Return(nil).Once()
		ack.On("Nack", uint64(1), false, false).Return(nil).Once()

		c := NewLastSeenConsumer(nil, "q", repo)
		c.handle(context.Background(), delivery(ack, good, false))
		c.handle(context.Background(), delivery(ack, good, true))
		ack.AssertExpectations(t)
	})
}

func TestLastSeenConsumer_Run(t *testing.T) {
	at := time.Now().UTC()
	body, _ := json.Marshal(domain.LastSeen{Username: "bob", At: at})

	src := &fakeSource{deliveries: make(chan amqp.Delivery, 1)}
	repo := new(MockMemberRepo)
	ack := new(MockAcknowledger)
	repo.On("UpdateLastSeen", mock.Anything, "bob", mock.Anything).Return(nil)
	ack.On("Ack", uint64(1), false).Return(nil)

	src.deliveries <- delivery(ack, body, false)
	close(src.deliveries)

	require.NoError(t, NewLastSeenConsumer(src, "q", repo).Run(context.Background()))
	repo.AssertExpectations(t)
	ack.AssertExpectations(t)
}

func TestLastSeenConsumer_RunConsumeError(t *testing.T) {
	src := &fakeSource{err: errors.New("channel closed")}
	assert.Error(t, NewLastSeenConsumer(src, "q", new(MockMemberRepo)).Run(context.Background()))
}
