package inspector

import "fmt"

// Key identifies one configuration file of one service. Every async result
// carries the Key it was requested for.
type Key struct {
	ServiceID string
	Index     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.ServiceID, k.Index)
}

// Store is a keyed result cache with per-key pending and failure markers.
// It is not safe for concurrent use; Session serializes access.
type Store[T any] struct {
	entries  map[Key]T
	pending  map[Key]struct{}
	failures map[Key]string
}

// NewStore returns an empty Store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{
		entries:  make(map[Key]T),
		pending:  make(map[Key]struct{}),
		failures: make(map[Key]string),
	}
}

// Get returns the cached value for k.
func (s *Store[T]) Get(k Key) (T, bool) {
	v, ok := s.entries[k]
	return v, ok
}

// Put caches v for k and clears any recorded failure.
func (s *Store[T]) Put(k Key, v T) {
	s.entries[k] = v
	delete(s.failures, k)
}

// HasPending reports whether a request for k is in flight.
func (s *Store[T]) HasPending(k Key) bool {
	_, ok := s.pending[k]
	return ok
}

// MarkPending records an in-flight request for k.
func (s *Store[T]) MarkPending(k Key) {
	s.pending[k] = struct{}{}
}

// ClearPending removes the in-flight marker for k.
func (s *Store[T]) ClearPending(k Key) {
	delete(s.pending, k)
}

// Fail records a display-only failure message for k.
func (s *Store[T]) Fail(k Key, msg string) {
	s.failures[k] = msg
}

// Failure returns the failure message recorded for k.
func (s *Store[T]) Failure(k Key) (string, bool) {
	msg, ok := s.failures[k]
	return msg, ok
}

// ClearFailure forgets the failure recorded for k.
func (s *Store[T]) ClearFailure(k Key) {
	delete(s.failures, k)
}

// Len returns the number of cached entries.
func (s *Store[T]) Len() int {
	return len(s.entries)
}
