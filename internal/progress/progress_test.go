package progress

import "testing"

// --- Hub ---

func TestHubDeliversToSubscribers(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(4)
	defer cancel()

	if got := h.ListenerCount(); got != 1 {
		t.Fatalf("ListenerCount = %d; want 1", got)
	}

	h.Publish(Sample{Fraction: 0.25})
	h.Publish(Sample{Fraction: 0.5})

	if s := <-ch; s.Fraction != 0.25 {
		t.Errorf("first sample = %v; want 0.25", s.Fraction)
	}
	if s := <-ch; s.Fraction != 0.5 {
		t.Errorf("second sample = %v; want 0.5", s.Fraction)
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	// The second publish finds the buffer full and must not block.
	h.Publish(Sample{Fraction: 0.1})
	h.Publish(Sample{Fraction: 0.2})

	if s := <-ch; s.Fraction != 0.1 {
		t.Errorf("sample = %v; want 0.1", s.Fraction)
	}
	select {
	case s := <-ch:
		t.Errorf("unexpected extra sample %v", s.Fraction)
	default:
	}
}

func TestHubCancelUnsubscribes(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)

	cancel()
	if got := h.ListenerCount(); got != 0 {
		t.Errorf("ListenerCount after cancel = %d; want 0", got)
	}

	// The channel is closed so ranging subscribers terminate.
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Cancel is idempotent and publishing to no subscribers is a no-op.
	cancel()
	h.Publish(Sample{Fraction: 1})
}

func TestHubMultipleSubscribers(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe(1)
	b, cancelB := h.Subscribe(1)
	defer cancelA()
	defer cancelB()

	h.Publish(Sample{Fraction: 0.75})

	if s := <-a; s.Fraction != 0.75 {
		t.Errorf("subscriber a got %v; want 0.75", s.Fraction)
	}
	if s := <-b; s.Fraction != 0.75 {
		t.Errorf("subscriber b got %v; want 0.75", s.Fraction)
	}
}

// --- Sampler ---

func TestSamplerBuckets(t *testing.T) {
	s := NewSampler(0.1)

	if !s.Should(0) {
		t.Error("Should(0) = false; want true for the first bucket")
	}
	if s.Should(0.05) {
		t.Error("Should(0.05) = true; want false within the same bucket")
	}
	if !s.Should(0.1) {
		t.Error("Should(0.1) = false; want true for a new bucket")
	}
	if !s.Should(0.35) {
		t.Error("Should(0.35) = false; want true after skipping buckets")
	}
	if s.Should(0.36) {
		t.Error("Should(0.36) = true; want false within the same bucket")
	}
	if !s.Should(1) {
		t.Error("Should(1) = false; want true for completion")
	}
}

func TestSamplerDefaultBucket(t *testing.T) {
	s := NewSampler(0)

	if !s.Should(0) {
		t.Error("Should(0) = false; want true")
	}
	if s.Should(0.04) {
		t.Error("Should(0.04) = true; want false inside the default 5% bucket")
	}
	if !s.Should(0.05) {
		t.Error("Should(0.05) = false; want true at the next 5% bucket")
	}
}
