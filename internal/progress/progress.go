// Package progress fans conversion progress samples out to listeners
// without ever blocking the encode loop.
package progress

import "sync"

// Sample is one progress measurement for a running conversion.
type Sample struct {
	Fraction float64 `json:"progress"`
}

// Hub delivers samples to zero or more subscribers. Publishing with no
// subscribers is the common case and simply drops the sample. Delivery uses
// a non-blocking send, so a slow subscriber loses samples instead of
// stalling the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Sample
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Sample)}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. The channel is closed by cancel, never by the Hub.
func (h *Hub) Subscribe(buffer int) (<-chan Sample, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Sample, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers s to every subscriber that has room.
func (h *Hub) Publish(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// ListenerCount reports the number of active subscribers.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Sampler suppresses repetitive progress emissions, letting one through each
// time the fraction crosses a bucket boundary.
type Sampler struct {
	bucketSize float64
	lastBucket int
}

// NewSampler constructs a sampler with the given bucket width as a fraction
// (default 0.05 when non-positive).
func NewSampler(bucketSize float64) *Sampler {
	if bucketSize <= 0 {
		bucketSize = 0.05
	}
	return &Sampler{bucketSize: bucketSize, lastBucket: -1}
}

// Should reports whether a sample at the given fraction deserves a log line.
func (s *Sampler) Should(fraction float64) bool {
	if s == nil {
		return true
	}
	if fraction < 0 {
		return false
	}
	bucket := int(fraction / s.bucketSize)
	if fraction >= 1 {
		bucket = int(1 / s.bucketSize)
	}
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}
