package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
)

type window struct {
	start time.Time
	count int
}

// Throttle counts requests per client in fixed windows that start at each
// client's first request.
type Throttle struct {
	mu        sync.Mutex
	clients   map[string]*window
	limit     int
	period    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewThrottle(limit int, period time.Duration) *Throttle {
	return &Throttle{
		clients:   make(map[string]*window),
		limit:     limit,
		period:    period,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow records a request from client and reports whether it is within the
// limit. When it is not, the time until the window resets is returned.
func (t *Throttle) Allow(client string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > t.period {
		for k, w := range t.clients {
			if now.Sub(w.start) > t.period {
				delete(t.clients, k)
			}
		}
		t.lastSweep = now
	}

	w, ok := t.clients[client]
	if !ok || now.Sub(w.start) > t.period {
		w = &window{start: now}
		t.clients[client] = w
	}
	if w.count >= t.limit {
		return false, w.start.Add(t.period).Sub(now)
	}
	w.count++
	return true, 0
}

// RateLimit middleware limits requests per client IP
func RateLimit(limit int, period time.Duration) gin.HandlerFunc {
	throttle := NewThrottle(limit, period)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		ok, retry := throttle.Allow(clientIP)
		if !ok {
			logger.Warn(c.Request.Context(), "rate limit exceeded", "client_ip", clientIP)

			seconds := int(retry.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Demasiadas solicitudes, intente más tarde",
			})
			return
		}

		c.Next()
	}
}
