// Package identity carries the acting user's identity through a request's
// call chain. The identity is scoped to one inbound request and everything
// that request spawns: it travels on the context.Context, so concurrent
// requests are isolated by construction and nothing is ever stored in a
// shared location.
package identity

import (
	"context"
	"errors"
)

// ErrNoActiveIdentity is returned by FromContext outside any identity
// scope. Hitting it from a tool handler means the agent loop failed to
// establish the scope before dispatching, which is a programming error
// and fatal to that turn.
var ErrNoActiveIdentity = errors.New("identity: no active identity in context")

type contextKey struct{}

// WithUser returns a context carrying userID as the ambient identity.
// All work derived from the returned context, including goroutines handed
// it, observes the same identity. The parent context is unaffected, so
// the previous ambient value (or its absence) is restored on every exit
// path simply by dropping the derived context.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// FromContext returns the ambient user identity, or ErrNoActiveIdentity
// if the context is outside any identity scope.
func FromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoActiveIdentity
	}
	return id, nil
}
