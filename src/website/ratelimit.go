package website

import (
	"context"
	"sync"
	"time"

	"github.com/illustory/gallery/src/jobs"
	"golang.org/x/time/rate"
)

type addressLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Token buckets per network address. This sits in front of the daily quota
// and only stops bursts; it never records anything.
type AddressLimiter struct {
	rate  rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*addressLimiter
}

func NewAddressLimiter(perSecond float64, burst int) *AddressLimiter {
	if perSecond <= 0 || burst <= 0 {
		return nil
	}
	return &AddressLimiter{
		rate:    rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*addressLimiter),
	}
}

func (l *AddressLimiter) Allow(addr string) bool {
	return l.limiterFor(addr, time.Now()).Allow()
}

func (l *AddressLimiter) limiterFor(addr string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, exists := l.clients[addr]
	if !exists {
		cl = &addressLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[addr] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Forgets addresses that have been quiet for longer than idle.
func (l *AddressLimiter) Forget(idle time.Duration, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	forgotten := 0
	for addr, cl := range l.clients {
		if now.Sub(cl.lastSeen) > idle {
			delete(l.clients, addr)
			forgotten++
		}
	}
	return forgotten
}

func (l *AddressLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *AddressLimiter) CleanupJob() *jobs.Job {
	if l == nil {
		return jobs.Noop("rate limiter cleanup")
	}
	return jobs.RunEvery("rate limiter cleanup", time.Minute, func(ctx context.Context) error {
		l.Forget(3*time.Minute, time.Now())
		return nil
	})
}
