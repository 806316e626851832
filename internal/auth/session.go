package auth

import (
	"context"
	"time"
)

// Session is the signed-in operator attached to a request.
type Session struct {
	UID       string
	Phone     string
	Name      string
	Admin     bool
	ExpiresAt time.Time
}

type contextKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SessionFrom returns the request's session, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}
