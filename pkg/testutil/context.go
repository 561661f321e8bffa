package testutil

import (
	"context"
	"net/http"
	"time"

	"correio/pkg/requestcontext"
)

// ContextAt returns a background context pinned to the given instant. Most
// store and service tests start here so expiry math is deterministic.
func ContextAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// WithActor adds an acting user id to the request context, simulating the
// auth middleware for handler tests.
func WithActor(req *http.Request, actorID string) *http.Request {
	if actorID == "" {
		return req
	}
	return req.WithContext(requestcontext.WithActorID(req.Context(), actorID))
}

// AtTime pins the request's context clock, simulating the request time
// middleware.
func AtTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
