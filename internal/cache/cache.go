// Package cache stores serialized API responses in Redis.
package cache

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ResponseCache keeps serialized responses keyed by request.
type ResponseCache interface {
	CacheResponse(ctx context.Context, key string, value any, ttl time.Duration) error
	// GetCachedResponse reports false when the key is missing or expired.
	GetCachedResponse(ctx context.Context, key string) (string, bool, error)
	// RemoveByPattern deletes every key containing pattern.
	RemoveByPattern(ctx context.Context, pattern string) error
}

// keyEscaper leaves the key separators "|", "-" and "," only between parts.
var keyEscaper = strings.NewReplacer("-", "%2D")

func escapeKeyPart(s string) string {
	return keyEscaper.Replace(url.QueryEscape(s))
}

// KeyFromRequest derives a cache key from a request path and query. The key
// does not depend on the order of query parameters. Names and values are
// escaped, so distinct queries never share a key.
func KeyFromRequest(path string, query url.Values) string {
	var b strings.Builder
	b.WriteString(path)

	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		b.WriteString("|")
		b.WriteString(escapeKeyPart(name))
		b.WriteString("-")
		values := make([]string, len(query[name]))
		for i, v := range query[name] {
			values[i] = escapeKeyPart(v)
		}
		b.WriteString(strings.Join(values, ","))
	}
	return b.String()
}
