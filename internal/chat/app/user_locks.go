package app

import (
	"sort"
	"sync"
)

// userLocks per-username mutex; entries are dropped once nobody holds or waits on them
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// Lock every distinct non-empty username in sorted order, returns the unlock func
func (u *userLocks) Lock(usernames ...string) func() {
	names := make([]string, 0, len(usernames))
	for _, n := range usernames {
		if n == "" {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)

	held := make([]string, 0, len(names))
	for i, n := range names {
		if i > 0 && names[i-1] == n {
			continue
		}
		u.acquire(n).Lock()
		held = append(held, n)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			u.release(held[i])
		}
	}
}

func (u *userLocks) acquire(name string) *userLock {
	u.mu.Lock()
	l, ok := u.locks[name]
	if !ok {
		l = &userLock{}
		u.locks[name] = l
	}
	l.refs++
	u.mu.Unlock()
	return l
}

func (u *userLocks) release(name string) {
	u.mu.Lock()
	l := u.locks[name]
	l.refs--
	if l.refs == 0 {
		delete(u.locks, name)
	}
	u.mu.Unlock()
	l.Unlock()
}

func (u *userLocks) size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.locks)
}
