// Package uistate holds the shared, observable UI state.
//
// A Store is created once and passed explicitly to whatever reads or mutates it.
// Observers subscribe to a slice of the state and are called only when that
// slice changes.
package uistate

import (
	"sync"

	"github.com/and161185/allin/internal/model"
)

// State is a snapshot of the UI state.
type State struct {
	ShowLoginModal bool
	ProfileLoading bool
	Profile        *model.Profile // nil until a profile fetch succeeds
}

type subscriber struct {
	// changed reports whether the slice differs from the last value seen and, if so,
	// returns a callback bound to the new value. Called with the store lock held.
	changed func(State) (func(), bool)
}

// Store is the state container. Safe for concurrent use.
//
// Observers are called one at a time, in the order the changes were applied.
// An action issued while a delivery is running, from an observer or from
// another goroutine, is applied at once and its notifications are queued
// behind the current ones.
type Store struct {
	mu    sync.Mutex
	state State
	subs  map[uint64]*subscriber
	next  uint64

	pending     []func()
	dispatching bool
}

// New returns a store with the zero state.
func New() *Store {
	return &Store{subs: make(map[uint64]*subscriber)}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OpenLogin shows the login modal.
func (s *Store) OpenLogin() { s.update(func(st *State) { st.ShowLoginModal = true }) }

// CloseLogin hides the login modal.
func (s *Store) CloseLogin() { s.update(func(st *State) { st.ShowLoginModal = false }) }

// SetProfileLoading sets the loading flag.
func (s *Store) SetProfileLoading(v bool) { s.update(func(st *State) { st.ProfileLoading = v }) }

// SetProfileData replaces the profile. nil resets it to absent.
func (s *Store) SetProfileData(p *model.Profile) { s.update(func(st *State) { st.Profile = p }) }

// update applies fn under the lock and queues the notifications of the
// observers whose slice changed. The first caller to find the queue idle
// drains it; callbacks run without the lock held so observers may call actions.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	for _, sub := range s.subs {
		if call, ok := sub.changed(s.state); ok {
			s.pending = append(s.pending, call)
		}
	}
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	s.mu.Unlock()

	s.drain()
}

func (s *Store) drain() {
	done := false
	defer func() {
		if !done {
			// an observer panicked; drop its batch so later actions still deliver
			s.mu.Lock()
			s.pending = nil
			s.dispatching = false
			s.mu.Unlock()
		}
	}()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			done = true
			return
		}
		call := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		call()
	}
}

func (s *Store) unsubscriber(id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Select calls fn with sel(state) whenever that value changes. fn is not called
// for the current value; read Snapshot for that. The returned func unsubscribes.
func Select[T comparable](s *Store, sel func(State) T, fn func(T)) func() {
	return SelectFunc(s, sel, func(a, b T) bool { return a == b }, fn)
}

// SelectFunc is Select with a caller supplied equality.
func SelectFunc[T any](s *Store, sel func(State) T, equal func(a, b T) bool, fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := sel(s.state)
	id := s.next
	s.next++
	s.subs[id] = &subscriber{changed: func(st State) (func(), bool) {
		v := sel(st)
		if equal(last, v) {
			return nil, false
		}
		last = v
		return func() { fn(v) }, true
	}}
	return s.unsubscriber(id)
}

// Slice selectors for the common observers.

// LoginModal selects ShowLoginModal.
func LoginModal(st State) bool { return st.ShowLoginModal }

// ProfileLoading selects ProfileLoading.
func ProfileLoading(st State) bool { return st.ProfileLoading }

// Profile selects Profile.
func Profile(st State) *model.Profile { return st.Profile }
