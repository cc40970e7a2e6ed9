package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"alice", "bob"}, "bob"))
	assert.False(t, Contains([]string{"alice"}, "carol"))
	assert.False(t, Contains(nil, "carol"))
}

func TestRemove(t *testing.T) {
	assert.Equal(t, []string{"alice", "carol"}, Remove([]string{"alice", "bob", "carol"}, "bob"))
	assert.Equal(t, []string{}, Remove(nil, "bob"))
}
