package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/fjod/skinet/internal/cache"
)

const requestIDHeader = "X-Request-ID"

// RequestID keeps a caller supplied X-Request-ID or generates one, and stores
// it where middleware.GetReqID finds it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, requestID)
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recoverer is the outermost error boundary. The stack is always logged and
// returned to the caller only when exposeStack is set.
func Recoverer(logger *slog.Logger, exposeStack bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				stack := debug.Stack()
				logger.ErrorContext(r.Context(), "panic recovered",
					"panic", fmt.Sprint(rvr),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
					"stack", string(stack))

				resp := ErrorResponse{Error: "internal server error", Code: "internal_error"}
				if exposeStack {
					resp.Details = fmt.Sprintf("%v\n%s", rvr, stack)
				}
				respondJSON(w, http.StatusInternalServerError, resp)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per caller. Authenticated callers are keyed
// by email, anonymous ones by remote address.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(visitorKey(r)) {
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()
	return v.limiter.Allow()
}

// Prune forgets callers idle for longer than maxIdle.
func (l *RateLimiter) Prune(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

func visitorKey(r *http.Request) string {
	if claims, ok := claimsFromContext(r.Context()); ok {
		return "user:" + claims.Email
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// bufferedResponse captures a handler's response so it can be cached and
// replayed to every request that waited on the same key.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) replay(w http.ResponseWriter) {
	for k, v := range b.header {
		w.Header()[k] = v
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(b.body.Bytes())
}

// CacheResponse serves GET responses from rc. On a miss the handler runs
// once per key however many requests are waiting, and its response is
// stored only when it is a 200 with a body.
func CacheResponse(rc cache.ResponseCache, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	var group singleflight.Group
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := cache.KeyFromRequest(r.URL.Path, r.URL.Query())
			cached, ok, err := rc.GetCachedResponse(r.Context(), key)
			if err != nil {
				logger.Warn("response cache read failed", "key", key, "error", err)
			}
			if ok && cached != "" {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(cached))
				return
			}

			v, _, _ := group.Do(key, func() (any, error) {
				buf := newBufferedResponse()
				next.ServeHTTP(buf, r)
				if buf.status == http.StatusOK && buf.body.Len() > 0 {
					if err := rc.CacheResponse(r.Context(), key, buf.body.Bytes(), ttl); err != nil {
						logger.Warn("response cache write failed", "key", key, "error", err)
					}
				}
				return buf, nil
			})
			resp := v.(*bufferedResponse)
			w.Header().Set("X-Cache", "MISS")
			resp.replay(w)
		})
	}
}

// InvalidateCache removes cached responses whose key contains pattern after
// the handler returns. A handler that panics or fails with a 5xx leaves the
// cache alone.
func InvalidateCache(rc cache.ResponseCache, pattern string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() >= http.StatusInternalServerError {
				return
			}
			if err := rc.RemoveByPattern(r.Context(), pattern); err != nil {
				logger.Error("response cache invalidation failed", "pattern", pattern, "error", err)
			}
		})
	}
}
