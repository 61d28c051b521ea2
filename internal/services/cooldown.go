package services

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Cooldown allows one action per user per period, using a token bucket of
// size one per user. Idle buckets are dropped on access.
type Cooldown struct {
	Period time.Duration
	Clock  clockwork.Clock

	mu      sync.Mutex
	buckets map[string]*cooldownBucket
}

type cooldownBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewCooldown returns a limiter on the real clock. A non-positive period
// disables it.
func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{Period: period, Clock: clockwork.NewRealClock(), buckets: map[string]*cooldownBucket{}}
}

// Allow consumes the user's token if available.
func (c *Cooldown) Allow(userID string) bool {
	if c == nil || c.Period <= 0 {
		return true
	}
	now := c.Clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buckets == nil {
		c.buckets = map[string]*cooldownBucket{}
	}
	for id, b := range c.buckets {
		if now.Sub(b.lastSeen) > 10*c.Period {
			delete(c.buckets, id)
		}
	}
	b, ok := c.buckets[userID]
	if !ok {
		b = &cooldownBucket{lim: rate.NewLimiter(rate.Every(c.Period), 1)}
		c.buckets[userID] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}
