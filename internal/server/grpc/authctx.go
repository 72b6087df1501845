package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type userIDKey struct{}

// WithUserID stores the authenticated user ID in ctx; AuthUnary calls it
// after the bearer token has been verified.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromCtx returns the ID stored by WithUserID. A nil ID counts as absent.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
