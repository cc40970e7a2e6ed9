package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceRegistry_BindUnbind(t *testing.T) {
	p := NewPresenceRegistry()

	res := p.Bind("c1", "alice")
	assert.True(t, res.BecameOnline)
	assert.True(t, p.IsOnline("alice"))

	// 第二條連線不會再觸發 online
	res = p.Bind("c2", "alice")
	assert.False(t, res.BecameOnline)
	assert.ElementsMatch(t, []string{"c1", "c2"}, p.ConnectionsOf("alice"))

	user, offline := p.Unbind("c1")
	assert.Equal(t, "alice", user)
	assert.False(t, offline)
	assert.True(t, p.IsOnline("alice"))

	user, offline = p.Unbind("c2")
	assert.Equal(t, "alice", user)
	assert.True(t, offline)
	assert.False(t, p.IsOnline("alice"))
}

func TestPresenceRegistry_RebindSameUserIsNoop(t *testing.T) {
	p := NewPresenceRegistry()
	p.Bind("c1", "alice")

	res := p.Bind("c1", "alice")
	assert.Equal(t, BindResult{}, res)
	assert.Equal(t, []string{"c1"}, p.ConnectionsOf("alice"))
}

func TestPresenceRegistry_RebindOtherUser(t *testing.T) {
	p := NewPresenceRegistry()
	p.Bind("c1", "alice")

	res := p.Bind("c1", "bob")
	assert.True(t, res.BecameOnline)
	assert.Equal(t, "alice", res.Previous)
	assert.True(t, res.PreviousWentOffline)
	assert.False(t, p.IsOnline("alice"))

	u, ok := p.UsernameOf("c1")
	assert.True(t, ok)
	assert.Equal(t, "bob", u)
}

func TestPresenceRegistry_UnbindUnknown(t *testing.T) {
	p := NewPresenceRegistry()
	user, offline := p.Unbind("ghost")
	assert.Empty(t, user)
	assert.False(t, offline)
}

func TestPresenceRegistry_ListOnlineSorted(t *testing.T) {
	p := NewPresenceRegistry()
	assert.Empty(t, p.ListOnline())

	p.Bind("c1", "carol")
	p.Bind("c2", "alice")
	p.Bind("c3", "bob")
	p.Bind("c4", "alice")

	assert.Equal(t, []string{"alice", "bob", "carol"}, p.ListOnline())
}
