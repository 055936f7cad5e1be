// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services read them without
// importing net/http.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	ownerKey       struct{}
	clientInfoKey  struct{}
	requestTimeKey struct{}
)

// WithRequestID stores the correlation id for the current request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation id, or "" when unset.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithOwner stores the authenticated owner subject.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// Owner returns the authenticated owner subject, or "" when unset.
func Owner(ctx context.Context) string {
	v, _ := ctx.Value(ownerKey{}).(string)
	return v
}

// ClientInfo is a short human-readable description of the calling client,
// derived from the User-Agent header. Recorded for audit enrichment only.
type ClientInfo struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// WithClientInfo stores client metadata parsed by the middleware.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// Client returns client metadata, or a zero value when unset.
func Client(ctx context.Context) ClientInfo {
	v, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return v
}

// WithTime pins the observed time for the current request. Tests use this to
// make time-dependent behavior deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
