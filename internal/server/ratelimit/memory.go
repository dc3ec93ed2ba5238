package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	sweepInterval = time.Minute
	// DefaultMaxKeys bounds the number of tracked keys.
	DefaultMaxKeys = 10000
)

// Memory is a process-local limiter. Expired keys are dropped on every call
// and by a background sweep; when the map is full the key closest to expiry
// is evicted.
type Memory struct {
	cooldown time.Duration
	maxKeys  int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
	stopCh  chan struct{}
	once    sync.Once
}

func NewMemory(cooldown time.Duration, maxKeys int) *Memory {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	m := &Memory{
		cooldown: cooldown,
		maxKeys:  maxKeys,
		now:      time.Now,
		entries:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *Memory) Allow(ctx context.Context, key string) Decision {
	if m.cooldown <= 0 {
		return Decision{Allowed: true}
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupLocked(now)

	if until, ok := m.entries[key]; ok {
		return Decision{Remaining: until.Sub(now)}
	}

	if len(m.entries) >= m.maxKeys {
		m.evictOldestLocked()
	}
	m.entries[key] = now.Add(m.cooldown)
	return Decision{Allowed: true}
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) cleanupLocked(now time.Time) {
	for k, until := range m.entries {
		if !now.Before(until) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) evictOldestLocked() {
	var victim string
	var soonest time.Time
	for k, until := range m.entries {
		if victim == "" || until.Before(soonest) {
			victim, soonest = k, until
		}
	}
	delete(m.entries, victim)
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.cleanupLocked(m.now())
			m.mu.Unlock()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) Close() error {
	m.once.Do(func() {
		close(m.stopCh)
	})
	return nil
}
