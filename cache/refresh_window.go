package cache

import (
	"sync"
	"time"
)

// RefreshWindow is a thread-safe sliding-window counter bounding how often
// a single (user, provider) pair may hit a third-party token endpoint. It
// protects the provider relationship: a buggy or hostile caller hammering
// refreshes risks provider-side throttling or account lockout.
type RefreshWindow struct {
	mu     sync.Mutex
	events map[string][]time.Time

	limit  int
	window time.Duration

	cleanupInterval time.Duration
	done            chan struct{}
}

// NewRefreshWindow creates a limiter allowing at most limit refreshes per
// rolling window for each key. A background sweep drops idle keys so memory
// stays bounded.
func NewRefreshWindow(limit int, window time.Duration) *RefreshWindow {
	w := &RefreshWindow{
		events:          make(map[string][]time.Time),
		limit:           limit,
		window:          window,
		cleanupInterval: window,
		done:            make(chan struct{}),
	}

	go w.cleanupLoop()

	return w
}

// Allow reports whether one more refresh is permitted for key right now,
// recording it if so. Checking and recording are a single atomic step, so
// racing callers cannot both squeeze through the last slot.
func (w *RefreshWindow) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	live := w.prune(key, time.Now())
	if len(live) >= w.limit {
		w.events[key] = live
		return false
	}

	w.events[key] = append(live, time.Now())
	return true
}

// Remaining returns how many refreshes key has left in the current window.
func (w *RefreshWindow) Remaining(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	live := w.prune(key, time.Now())
	w.events[key] = live
	if n := w.limit - len(live); n > 0 {
		return n
	}
	return 0
}

// prune drops events older than the window. Caller holds w.mu.
func (w *RefreshWindow) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-w.window)
	live := w.events[key][:0]
	for _, t := range w.events[key] {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	return live
}

func (w *RefreshWindow) cleanupLoop() {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.cleanup()
		case <-w.done:
			return
		}
	}
}

func (w *RefreshWindow) cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := time.Now().Add(-w.window)
	for key, events := range w.events {
		idle := true
		for _, t := range events {
			if t.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(w.events, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (w *RefreshWindow) Close() {
	close(w.done)
}
