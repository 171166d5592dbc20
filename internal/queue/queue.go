// Package queue provides the bounded FIFO of rendered segments between the
// scheduler and the transport.
package queue

import (
	"errors"
	"fmt"
	"sync"
)

// Queue errors.
var (
	ErrQueueFull    = errors.New("segment queue full")
	ErrQueueEmpty   = errors.New("segment queue empty")
	ErrInvalidIndex = errors.New("segment index out of order")
)

// DefaultCapacity bounds the queue when no capacity is configured.
const DefaultCapacity = 5

// Handle identifies a rendered segment ready for playout.
type Handle struct {
	// Index is the segment's position within its session.
	Index int
	// TrackID is the track the segment hands off to.
	TrackID string
	// Path is the absolute path of the published audio file.
	Path string
	// SidecarPath is the absolute path of the segment's JSON sidecar.
	SidecarPath string
	// Duration is the rendered length in seconds.
	Duration float64
}

// Queue is a bounded FIFO of segment handles. The scheduler is the only
// producer and the transport the only consumer; the scheduler gates on Len
// before offering, so a full queue is a producer bug surfaced as ErrQueueFull
// rather than an eviction.
type Queue struct {
	mu        sync.Mutex
	handles   []Handle
	capacity  int
	lastIndex int
	consumed  chan struct{}
}

// New creates a queue holding at most capacity handles. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		handles:   make([]Handle, 0, capacity),
		capacity:  capacity,
		lastIndex: -1,
		consumed:  make(chan struct{}, 1),
	}
}

// Offer appends a handle without blocking. Handles must arrive in strictly
// increasing index order; a stale or duplicate index is rejected.
func (q *Queue) Offer(h Handle) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.handles) >= q.capacity {
		return ErrQueueFull
	}
	if h.Index <= q.lastIndex {
		return fmt.Errorf("%w: %d after %d", ErrInvalidIndex, h.Index, q.lastIndex)
	}

	q.lastIndex = h.Index
	q.handles = append(q.handles, h)
	return nil
}

// ConsumeHead removes and returns the oldest handle, signalling consumption
// to the scheduler. Returns ErrQueueEmpty when nothing is buffered.
func (q *Queue) ConsumeHead() (Handle, error) {
	q.mu.Lock()
	if len(q.handles) == 0 {
		q.mu.Unlock()
		return Handle{}, ErrQueueEmpty
	}
	h := q.handles[0]
	q.handles = q.handles[1:]
	q.mu.Unlock()

	select {
	case q.consumed <- struct{}{}:
	default:
	}
	return h, nil
}

// PeekHead returns the oldest handle without removing it.
func (q *Queue) PeekHead() (Handle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.handles) == 0 {
		return Handle{}, false
	}
	return q.handles[0], true
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.handles)
}

// Capacity returns the maximum queue depth.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Consumed returns a channel that receives a coalesced signal whenever a
// handle is consumed, so the scheduler can react before its next tick.
func (q *Queue) Consumed() <-chan struct{} {
	return q.consumed
}
