package authclient

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// An attempt ID names one user action, such as a single form submit, and every
// request that action issues. The transport sends it as X-Request-ID and adds
// it to each log line so a login and its profile fetch can be correlated.

type attemptKey struct{}

// WithAttemptID returns ctx carrying id for requests made under it.
func WithAttemptID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, attemptKey{}, id)
}

// AttemptIDFromCtx reports the attempt ctx belongs to; false for requests
// made outside any user action.
func AttemptIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(attemptKey{}).(uuid.UUID)
	return id, ok
}
