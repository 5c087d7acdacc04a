package tap

import (
	"sync"
	"time"
)

// DefaultRingSize is the default capacity of the forwarding ring.
const DefaultRingSize = 64

// Ring is a fixed-capacity byte ring. When the ring is full the
// oldest unread byte is overwritten: a live view prefers fresh data
// over complete data, and the producer is never backpressured.
type Ring struct {
	lock  sync.Mutex
	buf   []byte
	head  int // index of the oldest unread byte
	count int // unread bytes, 0 <= count <= len(buf)

	avail chan struct{} // coalesced availability signal
}

// NewRing creates a Ring with the given capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &Ring{
		buf:   make([]byte, capacity),
		avail: make(chan struct{}, 1),
	}
}

// Push appends a byte, overwriting the oldest unread byte when full.
func (r *Ring) Push(b byte) {
	r.lock.Lock()
	if r.count == len(r.buf) {
		r.buf[r.head] = b
		r.head++
		if r.head == len(r.buf) {
			r.head = 0
		}
	} else {
		i := r.head + r.count
		if i >= len(r.buf) {
			i -= len(r.buf)
		}
		r.buf[i] = b
		r.count++
	}
	r.lock.Unlock()
	select {
	case r.avail <- struct{}{}:
	default:
	}
}

// Reset discards all unread bytes and any pending availability
// signal.
func (r *Ring) Reset() {
	r.lock.Lock()
	r.head = 0
	r.count = 0
	r.lock.Unlock()
	select {
	case <-r.avail:
	default:
	}
}

// Pop removes the oldest unread byte without blocking.
func (r *Ring) Pop() (byte, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.count == 0 {
		return 0, false
	}
	b := r.buf[r.head]
	r.head++
	if r.head == len(r.buf) {
		r.head = 0
	}
	r.count--
	return b, true
}

// PopWait removes the oldest unread byte, waiting up to timeout for
// data to arrive. The signal is coalesced, so the ring is polled
// before waiting.
func (r *Ring) PopWait(timeout time.Duration) (byte, bool) {
	if b, ok := r.Pop(); ok {
		return b, ok
	}
	select {
	case <-r.avail:
		return r.Pop()
	case <-time.After(timeout):
		return 0, false
	}
}

// Len reports the number of unread bytes.
func (r *Ring) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.count
}
