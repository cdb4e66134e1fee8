// Package ratelimit throttles API clients per IP address with token buckets
// and reports the remaining budget in the RateLimit-* response headers.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/medshadow/internal/respond"
)

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Decision is the outcome of one [Limiter.Allow] call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int

	// Reset is the time until the bucket is full again.
	Reset time.Duration

	// RetryAfter is the time until the next request would be admitted.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter grants each client Limit requests per Window, refilled
// continuously. It is safe for concurrent use. Call [Limiter.Close] to stop
// the idle-visitor janitor.
type Limiter struct {
	limit   int
	window  time.Duration
	every   rate.Limit
	code    string
	message string
	keyFunc func(*http.Request) string
	idle    time.Duration
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a [Limiter].
type Option func(*Limiter)

// WithError sets the envelope code and message returned with 429.
func WithError(code, message string) Option {
	return func(l *Limiter) { l.code, l.message = code, message }
}

// WithKeyFunc overrides how clients are identified. Default [ClientIP].
func WithKeyFunc(fn func(*http.Request) string) Option {
	return func(l *Limiter) { l.keyFunc = fn }
}

// WithIdleTimeout sets how long an unseen client is remembered. Default is
// the window, after which a fresh bucket is indistinguishable from the
// evicted one.
func WithIdleTimeout(d time.Duration) Option {
	return func(l *Limiter) { l.idle = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a Limiter admitting limit requests per window for each client
// and starts its janitor.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		limit:    limit,
		window:   window,
		every:    rate.Every(window / time.Duration(limit)),
		code:     respond.CodeRateLimitExceeded,
		message:  "too many requests, please try again later",
		keyFunc:  ClientIP,
		idle:     window,
		now:      time.Now,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.janitor(max(l.idle/2, time.Second))
	return l
}

// Allow consumes one request from key's bucket.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.every, l.limit)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	allowed := v.lim.AllowN(now, 1)
	tokens := v.lim.TokensAt(now)
	l.mu.Unlock()

	perToken := l.window / time.Duration(l.limit)
	d := Decision{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: max(int(math.Floor(tokens)), 0),
		Reset:     time.Duration((float64(l.limit) - tokens) * float64(perToken)),
	}
	if !allowed {
		d.RetryAfter = time.Duration((1 - tokens) * float64(perToken))
	}
	return d
}

// Middleware applies the limiter to every request.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := l.Allow(l.keyFunc(r))
		h := w.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(d.Reset)))
		h.Set("RateLimit-Policy", strconv.Itoa(l.limit)+";w="+strconv.Itoa(ceilSeconds(l.window)))
		if !d.Allowed {
			h.Set("Retry-After", strconv.Itoa(max(ceilSeconds(d.RetryAfter), 1)))
			respond.Fail(w, http.StatusTooManyRequests, l.code, l.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Scope applies the limiter only to requests whose path equals prefix or
// lies beneath it. A prefix ending in "/" matches by string prefix alone.
func (l *Limiter) Scope(prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := l.Middleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matchPrefix(r.URL.Path, prefix) {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matchPrefix(path, prefix string) bool {
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(path, prefix)
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Len returns the number of remembered clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Close stops the janitor. It is safe to call more than once.
func (l *Limiter) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
	return nil
}

func (l *Limiter) janitor(interval time.Duration) {
	defer close(l.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.evict(l.now())
		}
	}
}

// evict forgets clients not seen for longer than the idle timeout.
func (l *Limiter) evict(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, k)
			n++
		}
	}
	return n
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
