// Package server throttles per-connection event traffic with a token bucket
// so one client cannot monopolize the hub loop.
package server

import (
	"sync"
	"time"
)

// eventLimiter is a token bucket refilled continuously at burst tokens per
// refill interval. Each inbound frame costs one token; frames arriving with
// the bucket empty are discarded by the read pump.
type eventLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
}

func newEventLimiter(burst int, interval time.Duration) *eventLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &eventLimiter{
		tokens:   float64(burst),
		capacity: float64(burst),
		rate:     float64(burst) / interval.Seconds(),
		last:     time.Now(),
	}
}

func (l *eventLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.last).Seconds()
	l.last = now

	if elapsed > 0 {
		l.tokens += elapsed * l.rate
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
	}

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
