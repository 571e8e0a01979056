package auth

import (
	"context"

	"github.com/dukerupert/zooz/internal/model"
)

type contextKey struct{}

// AuthContext is the authenticated identity of a request.
type AuthContext struct {
	User      model.User
	SessionID string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// Actor returns the user every workflow call is made on behalf of.
func Actor(ctx context.Context) (model.User, bool) {
	ac, ok := FromContext(ctx)
	if !ok {
		return model.User{}, false
	}
	return ac.User, true
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.User.ID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.User.IsAdmin()
}
