package app

import (
	"sort"
	"sync"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg"
)

// GroupCallTracker participants of each active group call.
// Advisory only: it answers ListParticipants, the mesh itself is negotiated by clients.
type GroupCallTracker struct {
	mu    sync.Mutex
	calls map[string]*groupCall
}

type groupCall struct {
	kind         domain.CallKind
	participants map[string]struct{}
}

// NewGroupCallTracker create GroupCallTracker
func NewGroupCallTracker() *GroupCallTracker {
	return &GroupCallTracker{calls: make(map[string]*groupCall)}
}

// Start open the call (or keep the running one) with the initiator as participant
func (t *GroupCallTracker) Start(groupID, initiator string, kind domain.CallKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.callLocked(groupID)
	if kind != "" {
		c.kind = kind
	}
	c.participants[initiator] = struct{}{}
}

// Join add username; others are the participants already in the call
func (t *GroupCallTracker) Join(groupID, username string) (others []string, kind domain.CallKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.callLocked(groupID)
	others = pkg.Remove(sortedKeys(c.participants), username)
	c.participants[username] = struct{}{}
	return others, c.kind
}

// Leave remove username; left is false when username was not in the call
func (t *GroupCallTracker) Leave(groupID, username string) (remaining []string, left bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaveLocked(groupID, username)
}

// LeaveAll remove username from every call, keyed by group id with the remaining participants
func (t *GroupCallTracker) LeaveAll(username string) map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string][]string)
	for groupID, c := range t.calls {
		if _, ok := c.participants[username]; !ok {
			continue
		}
		remaining, _ := t.leaveLocked(groupID, username)
		out[groupID] = remaining
	}
	return out
}

// ListParticipants sorted participants, empty when no call is running
func (t *GroupCallTracker) ListParticipants(groupID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.calls[groupID]
	if !ok {
		return []string{}
	}
	return sortedKeys(c.participants)
}

func (t *GroupCallTracker) callLocked(groupID string) *groupCall {
	c, ok := t.calls[groupID]
	if !ok {
		c = &groupCall{participants: make(map[string]struct{})}
		t.calls[groupID] = c
	}
	return c
}

func (t *GroupCallTracker) leaveLocked(groupID, username string) ([]string, bool) {
	c, ok := t.calls[groupID]
	if !ok {
		return nil, false
	}
	if _, ok := c.participants[username]; !ok {
		return sortedKeys(c.participants), false
	}
	delete(c.participants, username)
	if len(c.participants) == 0 {
		delete(t.calls, groupID)
		return []string{}, true
	}
	return sortedKeys(c.participants), true
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
