package app

import (
	"sort"
	"sync"

	"realtime_chat_service/pkg/metrics"
)

// PresenceRegistry connection id -> username, a user is online while any connection is bound
type PresenceRegistry struct {
	mu     sync.RWMutex
	byConn map[string]string
	byUser map[string]map[string]struct{}
}

// BindResult transitions caused by a bind
type BindResult struct {
	// BecameOnline first connection for the username
	BecameOnline bool
	// Previous username the connection was bound to before, if different
	Previous string
	// PreviousWentOffline the rebind removed Previous' last connection
	PreviousWentOffline bool
}

// NewPresenceRegistry create PresenceRegistry
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byConn: make(map[string]string),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Bind connID to username; binding the same pair again changes nothing
func (p *PresenceRegistry) Bind(connID, username string) BindResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res BindResult
	if prev, ok := p.byConn[connID]; ok {
		if prev == username {
			return res
		}
		res.Previous = prev
		res.PreviousWentOffline = p.removeLocked(connID, prev)
	}

	conns, ok := p.byUser[username]
	if !ok {
		conns = make(map[string]struct{})
		p.byUser[username] = conns
		res.BecameOnline = true
	}
	conns[connID] = struct{}{}
	p.byConn[connID] = username

	metrics.UsersOnline.Set(float64(len(p.byUser)))
	return res
}

// Unbind remove connID; wentOffline is true only when it was the username's last connection
func (p *PresenceRegistry) Unbind(connID string) (username string, wentOffline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	username, ok := p.byConn[connID]
	if !ok {
		return "", false
	}
	wentOffline = p.removeLocked(connID, username)

	metrics.UsersOnline.Set(float64(len(p.byUser)))
	return username, wentOffline
}

func (p *PresenceRegistry) removeLocked(connID, username string) bool {
	delete(p.byConn, connID)
	conns := p.byUser[username]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.byUser, username)
		return true
	}
	return false
}

// IsOnline any live connection bound to username
func (p *PresenceRegistry) IsOnline(username string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byUser[username]
	return ok
}

// ListOnline online usernames, sorted
func (p *PresenceRegistry) ListOnline() []string {
	p.mu.RLock()
	users := make([]string, 0, len(p.byUser))
	for u := range p.byUser {
		users = append(users, u)
	}
	p.mu.RUnlock()

	sort.Strings(users)
	return users
}

// ConnectionsOf connection ids bound to username
func (p *PresenceRegistry) ConnectionsOf(username string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.byUser[username]))
	for id := range p.byUser[username] {
		ids = append(ids, id)
	}
	return ids
}

// UsernameOf username bound to connID
func (p *PresenceRegistry) UsernameOf(connID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.byConn[connID]
	return u, ok
}
