package app

import (
	"testing"

	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

func TestGroupCallTracker_Lifecycle(t *testing.T) {
	tr := NewGroupCallTracker()
	assert.Equal(t, []string{}, tr.ListParticipants("g1"))

	tr.Start("g1", "alice", domain.CallVideo)
	assert.Equal(t, []string{"alice"}, tr.ListParticipants("g1"))

	others, kind := tr.Join("g1", "bob")
	assert.Equal(t, []string{"alice"}, others)
	assert.Equal(t, domain.CallVideo, kind)

	others, _ = tr.Join("g1", "carol")
	assert.Equal(t, []string{"alice", "bob"}, others)

	remaining, left := tr.Leave("g1", "bob")
	assert.True(t, left)
	assert.Equal(t, []string{"alice", "carol"}, remaining)

	_, left = tr.Leave("g1", "bob")
	assert.False(t, left)

	tr.Leave("g1", "alice")
	remaining, left = tr.Leave("g1", "carol")
	assert.True(t, left)
	assert.Empty(t, remaining)
	assert.Equal(t, []string{}, tr.ListParticipants("g1"))
}

func TestGroupCallTracker_JoinTwiceNotDuplicated(t *testing.T) {
	tr := NewGroupCallTracker()
	tr.Start("g1", "alice", domain.CallVoice)
	tr.Join("g1", "alice")
	assert.Equal(t, []string{"alice"}, tr.ListParticipants("g1"))
}

func TestGroupCallTracker_LeaveAll(t *testing.T) {
	tr := NewGroupCallTracker()
	tr.Start("g1", "alice", domain.CallVoice)
	tr.Join("g1", "bob")
	tr.Start("g2", "alice", domain.CallVideo)
	tr.Start("g3", "carol", domain.CallVideo)

	out := tr.LeaveAll("alice")
	assert.Equal(t, map[string][]string{"g1": {"bob"}, "g2": {}}, out)
	assert.Equal(t, []string{}, tr.ListParticipants("g2"))
	assert.Equal(t, []string{"carol"}, tr.ListParticipants("g3"))
}
