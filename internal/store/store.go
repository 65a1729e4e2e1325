package store

import (
	"sync"
)

// Store is the state container: it serializes reducer runs and notifies
// subscribers with the resulting snapshot. Mutation order is the order
// Dispatch is called in; handlers run to completion one at a time.
type Store struct {
	mu    sync.Mutex
	state State

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

func New() *Store {
	return &Store{
		subs: make(map[int]func(State)),
	}
}

// Dispatch runs the reducer with the action and notifies subscribers.
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	s.state = reduce(s.state, action)
	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener for state snapshots and returns an
// unsubscribe function. Listeners are called after every dispatch, outside
// the state lock.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snapshot State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
