package app

import (
	"context"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/mock"
)

// MockMemberRepo Mock MemberRepository
type MockMemberRepo struct {
	mock.Mock
}

// EnsureSchema mock
func (m *MockMemberRepo) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// UpdateLastSeen mock
func (m *MockMemberRepo) UpdateLastSeen(ctx context.Context, username string, at time.Time) error {
	args := m.Called(ctx, username, at)
	return args.Error(0)
}

// MockRabbitRepo Mock database.RabbitRepo
type MockRabbitRepo struct {
	mock.Mock
}

// Publish mock
func (m *MockRabbitRepo) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

// MockAcknowledger records how a delivery was settled
type MockAcknowledger struct {
	mock.Mock
}

// Ack mock
func (m *MockAcknowledger) Ack(tag uint64, multiple bool) error {
	return m.Called(tag, multiple).Error(0)
}

// Nack mock
func (m *MockAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	return m.Called(tag, multiple, requeue).Error(0)
}

// Reject mock
func (m *MockAcknowledger) Reject(tag uint64, requeue bool) error {
	return m.Called(tag, requeue).Error(0)
}

// fakeSource hands out a prepared delivery channel
type fakeSource struct {
	deliveries chan amqp.Delivery
	err        error
}

func (f *fakeSource) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, f.err
}
