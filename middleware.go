package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Zakariast578/portfolio/internal/contact"
)

const (
	rateLimitedMessage = "You're sending messages too quickly. Please wait a minute and try again."
	maxTrackedClients  = 4096
)

// requestLogger logs one structured line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}

// clientLimiter hands out one token bucket per client address.
type clientLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter allows perMinute requests per client with the given burst.
// A non-positive perMinute disables limiting.
func newClientLimiter(perMinute, burst int) *clientLimiter {
	if perMinute <= 0 {
		return &clientLimiter{limit: rate.Inf}
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

func (l *clientLimiter) allow(client string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.evict(now)
		}
		b = &clientBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// evict drops buckets idle long enough to have refilled completely. If every
// bucket is still draining, the least recently seen one goes.
func (l *clientLimiter) evict(now time.Time) {
	refill := time.Duration(float64(l.burst) / float64(l.limit) * float64(time.Second))

	var oldest string
	var oldestSeen time.Time
	for key, b := range l.clients {
		if now.Sub(b.lastSeen) >= refill {
			delete(l.clients, key)
			continue
		}
		if oldest == "" || b.lastSeen.Before(oldestSeen) {
			oldest, oldestSeen = key, b.lastSeen
		}
	}
	if len(l.clients) >= maxTrackedClients {
		delete(l.clients, oldest)
	}
}

func (s *server) limitContact() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter.allow(c.ClientIP()) {
			c.Next()
			return
		}

		s.log.Info("contact submission rate limited", zap.String("visitor", s.admin.hashIP(c.ClientIP())))
		var fields contact.Fields
		_ = c.ShouldBind(&fields)
		c.Header("Retry-After", "60")
		c.HTML(http.StatusOK, "contact-form.html", contactView{
			Fields:  fields,
			Invalid: rateLimitedMessage,
		})
		c.Abort()
	}
}
