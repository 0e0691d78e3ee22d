package core

import "errors"

const (
	// MaxQueueCapacity is the largest capacity a MotionQueue accepts
	MaxQueueCapacity = 32

	DefaultQueueCapacity = 15
)

var ErrQueueOverflow = errors.New("motion queue full")

// MotionEntry is one queued waypoint in joint space. Bottom and Top are joint
// degrees, Rail is metres along the rail, Speed is a scale in (0, 1].
type MotionEntry struct {
	Bottom float32
	Top    float32
	Rail   float32
	Speed  float32
}

// MotionQueue is a fixed ring of waypoints. One slot is kept free to tell a
// full ring from an empty one.
type MotionQueue struct {
	entries [MaxQueueCapacity + 1]MotionEntry
	size    int
	head    int
	tail    int
}

// NewMotionQueue creates a queue holding up to capacity entries. Out of range
// capacities fall back to the default.
func NewMotionQueue(capacity int) *MotionQueue {
	if capacity <= 0 || capacity > MaxQueueCapacity {
		capacity = DefaultQueueCapacity
	}
	return &MotionQueue{size: capacity + 1}
}

// Push appends an entry
func (q *MotionQueue) Push(e MotionEntry) error {
	next := (q.tail + 1) % q.size
	if next == q.head {
		return ErrQueueOverflow
	}
	q.entries[q.tail] = e
	q.tail = next
	return nil
}

// Pop removes the oldest entry
func (q *MotionQueue) Pop() (MotionEntry, bool) {
	if q.head == q.tail {
		return MotionEntry{}, false
	}
	e := q.entries[q.head]
	q.head = (q.head + 1) % q.size
	return e, true
}

// Len returns the number of queued entries
func (q *MotionQueue) Len() int {
	return (q.tail - q.head + q.size) % q.size
}

// Cap returns the queue capacity
func (q *MotionQueue) Cap() int {
	return q.size - 1
}

// Reset drops every entry
func (q *MotionQueue) Reset() {
	q.head = 0
	q.tail = 0
}
