package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sessions keeps one value per client, keyed by a random id handed out in a
// cookie. Idle entries expire after ttl.
type Sessions[T any] struct {
	mu    sync.Mutex
	items map[string]*session[T]
	ttl   time.Duration
	init  func() T
	now   func() time.Time
}

type session[T any] struct {
	value    T
	lastSeen time.Time
}

func NewSessions[T any](ttl time.Duration, init func() T) *Sessions[T] {
	return &Sessions[T]{
		items: make(map[string]*session[T]),
		ttl:   ttl,
		init:  init,
		now:   time.Now,
	}
}

// With runs fn on the value for id under the store lock. An unknown or expired
// id gets a fresh value and a new id; the id in use is returned.
func (s *Sessions[T]) With(id string, fn func(v *T)) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.items[id]
	if ok && s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl {
		delete(s.items, id)
		ok = false
	}
	if !ok {
		id = uuid.NewString()
		sess = &session[T]{value: s.init()}
		s.items[id] = sess
	}
	sess.lastSeen = now
	fn(&sess.value)
	return id
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Sessions[T]) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, sess := range s.items {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Len reports how many sessions are held, expired ones included until swept.
func (s *Sessions[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
