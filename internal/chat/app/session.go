package app

import (
	"sync"

	"realtime_chat_service/internal/chat/domain"
)

// Session per-connection state owned by the transport
type Session struct {
	conn domain.Connection
	// authUser token subject, empty when the connection is unauthenticated
	authUser string

	mu       sync.RWMutex
	username string
}

// NewSession create Session
func NewSession(conn domain.Connection, authUser string) *Session {
	return &Session{conn: conn, authUser: authUser}
}

// Conn underlying connection
func (s *Session) Conn() domain.Connection { return s.conn }

// Username bound username, empty before join
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) setUsername(u string) {
	s.mu.Lock()
	s.username = u
	s.mu.Unlock()
}
