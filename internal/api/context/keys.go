// Package context carries the values the middleware chain attaches to a
// request: admin claims, the resolved tenant and route parameters.
package context

import (
	"context"
	"database/sql"

	"github.com/julienschmidt/httprouter"

	"relaydesk/internal/platform/auth"
)

type key int

const (
	claimsKey key = iota
	tenantKey
	paramsKey
)

// Tenant is the organization a request acts for. Admin requests resolve it
// from JWT claims, external requests from an access token.
type Tenant struct {
	OrgID   string
	OrgSlug string
	DB      *sql.DB
}

func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok && c != nil
}

func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

func TenantFrom(ctx context.Context) *Tenant {
	t, _ := ctx.Value(tenantKey).(*Tenant)
	return t
}

func WithParams(ctx context.Context, ps httprouter.Params) context.Context {
	return context.WithValue(ctx, paramsKey, ps)
}

// Param returns the named route parameter, or "" outside a routed request.
func Param(ctx context.Context, name string) string {
	ps, _ := ctx.Value(paramsKey).(httprouter.Params)
	return ps.ByName(name)
}
