package store

import "sync"

// userLocks serializes settlements per user for backends without row-level
// locking. Uses per-user mutexes instead of a global lock so different users
// never contend.
type userLocks struct {
	mu    sync.RWMutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{
		locks: make(map[int64]*sync.Mutex),
	}
}

// Lock locks the settlement path for a specific user.
func (ul *userLocks) Lock(userID int64) {
	ul.mu.Lock()
	m := ul.locks[userID]
	if m == nil {
		m = &sync.Mutex{}
		ul.locks[userID] = m
	}
	ul.mu.Unlock()

	m.Lock()
}

// Unlock releases the settlement path for a specific user.
func (ul *userLocks) Unlock(userID int64) {
	ul.mu.RLock()
	m := ul.locks[userID]
	ul.mu.RUnlock()

	if m != nil {
		m.Unlock()
	}
}
