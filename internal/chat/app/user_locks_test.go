package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserLocks_SameUserSerialized(t *testing.T) {
	locks := newUserLocks()
	unlock := locks.Lock("alice")

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		locks.Lock("alice")()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock on alice did not wait")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Lock on alice never acquired after unlock")
	}
	assert.Equal(t, 0, locks.size())
}

func TestUserLocks_OtherUserNotBlocked(t *testing.T) {
	locks := newUserLocks()
	unlock := locks.Lock("alice")
	defer unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		locks.Lock("bob")()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bob blocked by alice")
	}
}

func TestUserLocks_DuplicateAndEmptyNames(t *testing.T) {
	locks := newUserLocks()

	// 重複與空字串不能自鎖
	unlock := locks.Lock("alice", "", "alice")
	assert.Equal(t, 1, locks.size())
	unlock()
	assert.Equal(t, 0, locks.size())

	locks.Lock()()
	assert.Equal(t, 0, locks.size())
}

func TestUserLocks_OppositeOrderNoDeadlock(t *testing.T) {
	locks := newUserLocks()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			locks.Lock("alice", "bob")()
		}()
		go func() {
			defer wg.Done()
			locks.Lock("bob", "alice")()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deadlock")
	}
	assert.Equal(t, 0, locks.size())
}
