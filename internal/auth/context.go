package auth

import (
	"context"

	"github.com/gymii/dashboard/internal/model"
)

type adminKey struct{}

// ContextWithAuth attaches the verified admin identity to ctx.
func ContextWithAuth(ctx context.Context, ac *model.AuthContext) context.Context {
	return context.WithValue(ctx, adminKey{}, ac)
}

// AuthFromContext returns the admin identity set by the auth middleware, or nil.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	ac, _ := ctx.Value(adminKey{}).(*model.AuthContext)
	return ac
}

// EmailFromContext returns the admin email, or "" on unauthenticated routes.
func EmailFromContext(ctx context.Context) string {
	if ac := AuthFromContext(ctx); ac != nil {
		return ac.Email
	}
	return ""
}
