package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshWindowAllowsUpToLimit(t *testing.T) {
	w := NewRefreshWindow(5, time.Hour)
	defer w.Close()

	for i := 0; i < 5; i++ {
		assert.True(t, w.Allow("u1:gmail"), "attempt %d", i+1)
	}
	assert.False(t, w.Allow("u1:gmail"), "attempt 6 must be rejected")
	assert.Equal(t, 0, w.Remaining("u1:gmail"))
}

func TestRefreshWindowKeysAreIndependent(t *testing.T) {
	w := NewRefreshWindow(1, time.Hour)
	defer w.Close()

	assert.True(t, w.Allow("u1:gmail"))
	assert.False(t, w.Allow("u1:gmail"))
	assert.True(t, w.Allow("u1:slack"))
	assert.True(t, w.Allow("u2:gmail"))
}

func TestRefreshWindowSlides(t *testing.T) {
	w := NewRefreshWindow(2, 50*time.Millisecond)
	defer w.Close()

	assert.True(t, w.Allow("k"))
	assert.True(t, w.Allow("k"))
	assert.False(t, w.Allow("k"))

	time.Sleep(60 * time.Millisecond)

	assert.True(t, w.Allow("k"), "events aged out of the window")
}

func TestRefreshWindowConcurrentAllow(t *testing.T) {
	const limit = 10
	w := NewRefreshWindow(limit, time.Hour)
	defer w.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed, "exactly limit callers admitted")
}

func TestRefreshWindowCleanupDropsIdleKeys(t *testing.T) {
	w := NewRefreshWindow(1, 10*time.Millisecond)
	defer w.Close()

	for i := 0; i < 100; i++ {
		w.Allow(fmt.Sprintf("key-%d", i))
	}

	assert.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.events) == 0
	}, time.Second, 10*time.Millisecond)
}
