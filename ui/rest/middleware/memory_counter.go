package middleware

import (
	"context"
	"sync"
	"time"
)

// memoryCounter is the per-process fallback for fixed-window counting, used
// when no shared store is configured or the store errors mid-request.
type memoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

func newMemoryCounter(ctx context.Context) *memoryCounter {
	m := &memoryCounter{windows: make(map[string]*memoryWindow)}
	go m.cleanupLoop(ctx)
	return m
}

func (m *memoryCounter) Incr(identity string, window time.Duration) (int64, time.Duration) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[identity]
	if !ok || now.After(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		m.windows[identity] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now)
}

func (m *memoryCounter) Peek(identity string, window time.Duration) (int64, time.Duration) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[identity]
	if !ok || now.After(w.resetAt) {
		return 0, window
	}
	return w.count, w.resetAt.Sub(now)
}

func (m *memoryCounter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, w := range m.windows {
				if now.After(w.resetAt) {
					delete(m.windows, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
