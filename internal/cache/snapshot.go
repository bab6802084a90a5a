// Package cache publishes immutable snapshots that are rebuilt when their
// source changes.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stamp identifies one version of a snapshot source, such as a file.
type Stamp struct {
	Size    int64
	ModTime time.Time
	Missing bool
}

type entry[V any] struct {
	stamp Stamp
	value V
}

// Snapshot holds the latest value built from a versioned source. Readers
// get whichever value was published last; a rebuild publishes a new value
// and never changes a published one. Builds are serialized.
type Snapshot[V any] struct {
	mu  sync.Mutex
	cur atomic.Pointer[entry[V]]
}

// New creates an empty Snapshot.
func New[V any]() *Snapshot[V] {
	return &Snapshot[V]{}
}

// Get returns the published value when it was built from stamp. Otherwise
// it calls build, publishes the result, and reports rebuilt=true.
func (s *Snapshot[V]) Get(stamp Stamp, build func() V) (value V, rebuilt bool) {
	if e := s.cur.Load(); e != nil && e.stamp.matches(stamp) {
		return e.value, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have rebuilt while we waited.
	if e := s.cur.Load(); e != nil && e.stamp.matches(stamp) {
		return e.value, false
	}
	value = build()
	s.cur.Store(&entry[V]{stamp: stamp, value: value})
	return value, true
}

func (st Stamp) matches(other Stamp) bool {
	return st.Size == other.Size &&
		st.ModTime.Equal(other.ModTime) &&
		st.Missing == other.Missing
}
