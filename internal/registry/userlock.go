package registry

import "sync"

// userLocks serializes registry writes per username. The backing store's
// conditional insert is the hard guarantee; the keyed lock keeps the
// check-then-create sequence in StartAction from interleaving so callers
// get the soft "already performing" rejection instead of a silent loss.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (ul *userLocks) lock(username string) *sync.Mutex {
	ul.mu.Lock()
	m, ok := ul.locks[username]
	if !ok {
		m = &sync.Mutex{}
		ul.locks[username] = m
	}
	ul.mu.Unlock()

	m.Lock()
	return m
}
