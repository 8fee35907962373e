package ledger

import "sync"

// lockSet hands out one RWMutex per ingredient. Mutations hold the write lock
// for the whole read-modify-log step; reads hold the read lock so they never
// see a lot mid-update.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*sync.RWMutex)}
}

func (s *lockSet) get(ingredientID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[ingredientID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[ingredientID] = l
	}
	return l
}

// lock acquires the write lock and returns its release func.
func (s *lockSet) lock(ingredientID string) func() {
	l := s.get(ingredientID)
	l.Lock()
	return l.Unlock
}

// rlock acquires the read lock and returns its release func.
func (s *lockSet) rlock(ingredientID string) func() {
	l := s.get(ingredientID)
	l.RLock()
	return l.RUnlock
}
