package app

import (
	"context"
	"sync"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg"
)

// TopicHub in-process topic fan-out
type TopicHub struct {
	mu     sync.RWMutex
	conns  map[string]*hubEntry
	topics map[domain.Topic]map[string]domain.Connection
}

type hubEntry struct {
	conn   domain.Connection
	topics map[domain.Topic]struct{}
}

// NewTopicHub create TopicHub
func NewTopicHub() *TopicHub {
	return &TopicHub{
		conns:  make(map[string]*hubEntry),
		topics: make(map[domain.Topic]map[string]domain.Connection),
	}
}

// Subscribe register conn and add it to topics
func (h *TopicHub) Subscribe(conn domain.Connection, topics ...domain.Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.conns[conn.ID()]
	if !ok {
		e = &hubEntry{conn: conn, topics: make(map[domain.Topic]struct{})}
		h.conns[conn.ID()] = e
	}

	for _, t := range topics {
		e.topics[t] = struct{}{}
		subs, ok := h.topics[t]
		if !ok {
			subs = make(map[string]domain.Connection)
			h.topics[t] = subs
		}
		subs[conn.ID()] = conn
	}
}

// UnsubscribeAll drop conn from every topic and from broadcasts
func (h *TopicHub) UnsubscribeAll(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.conns[connID]
	if !ok {
		return
	}
	for t := range e.topics {
		subs := h.topics[t]
		delete(subs, connID)
		if len(subs) == 0 {
			delete(h.topics, t)
		}
	}
	delete(h.conns, connID)
}

// Publish send frame to every subscriber of topic except the excluded connection ids.
// An empty topic is a silent no-op.
func (h *TopicHub) Publish(_ context.Context, topic domain.Topic, frame []byte, exclude ...string) error {
	h.mu.RLock()
	subs := h.topics[topic]
	targets := make([]domain.Connection, 0, len(subs))
	for id, c := range subs {
		if !pkg.Contains(exclude, id) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Send(frame)
	}
	return nil
}

// Broadcast send frame to every registered connection
func (h *TopicHub) Broadcast(_ context.Context, frame []byte) error {
	h.mu.RLock()
	targets := make([]domain.Connection, 0, len(h.conns))
	for _, e := range h.conns {
		targets = append(targets, e.conn)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Send(frame)
	}
	return nil
}

// Subscribers number of connections on topic
func (h *TopicHub) Subscribers(topic domain.Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Connections number of registered connections
func (h *TopicHub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
