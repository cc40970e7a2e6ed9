package domain

import "context"

// Connection one live duplex channel
type Connection interface {
	ID() string
	// Send queue a frame; false when the connection is gone or dropped as a slow consumer
	Send(frame []byte) bool
}

// Broker topic fan-out. Subscribe with no topics only registers the connection for broadcasts.
type Broker interface {
	Subscribe(conn Connection, topics ...Topic)
	UnsubscribeAll(connID string)
	Publish(ctx context.Context, topic Topic, frame []byte, exclude ...string) error
	Broadcast(ctx context.Context, frame []byte) error
}
