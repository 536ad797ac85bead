// Package ratelimit throttles requests per client IP
package ratelimit

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/satswap/satswap/api/apierr"
	"github.com/satswap/satswap/build"
)

var log = build.AddSubLogger("RATE")

// maxLimiters is how many clients we track at once
const maxLimiters = 10000

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out a token bucket per client IP
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
	// idle is how long it takes an unused bucket to fill up again. Clients
	// quiet for longer than that lose nothing when forgotten.
	idle time.Duration
	max  int
	now  func() time.Time
}

// New creates a limiter allowing perMinute requests per minute per client,
// with bursts up to burst requests
func New(perMinute float64, burst int) *Limiter {
	perSecond := perMinute / time.Minute.Seconds()
	return &Limiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		idle:    time.Duration(float64(burst) / perSecond * float64(time.Second)),
		max:     maxLimiters,
		now:     time.Now,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= l.max {
			l.evict(now)
		}
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// evict forgets every idle client. If nobody is idle, the least recently
// seen client goes. The caller holds the lock.
func (l *Limiter) evict(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idle {
			delete(l.clients, key)
			continue
		}
		if !found || c.lastSeen.Before(oldest) {
			oldestKey, oldest, found = key, c.lastSeen, true
		}
	}
	if len(l.clients) >= l.max && found {
		log.WithField("ip", oldestKey).Debug("Evicting least recently seen client")
		delete(l.clients, oldestKey)
	}
}

// Allow reports whether the client with the given key may do another request
// right now
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Middleware rejects requests from clients that are over their limit
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			log.WithField("ip", ip).WithField("path", c.FullPath()).Warn("Rate limit exceeded")
			apierr.Public(c, apierr.ErrTooManyRequests)
			return
		}
	}
}
