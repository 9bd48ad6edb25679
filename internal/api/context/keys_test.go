package context

import (
	"context"
	"testing"

	"github.com/julienschmidt/httprouter"

	"relaydesk/internal/platform/auth"
)

func TestRequestValues(t *testing.T) {
	ctx := context.Background()
	if _, ok := ClaimsFrom(ctx); ok {
		t.Error("ClaimsFrom() on empty context reported claims")
	}
	if _, ok := ClaimsFrom(WithClaims(ctx, nil)); ok {
		t.Error("ClaimsFrom() accepted nil claims")
	}
	if TenantFrom(ctx) != nil {
		t.Error("TenantFrom() on empty context returned a tenant")
	}
	if got := Param(ctx, "filter_id"); got != "" {
		t.Errorf("Param() outside a route = %q", got)
	}

	ctx = WithClaims(ctx, &auth.Claims{TenantID: "org_1", Role: auth.RoleViewer})
	ctx = WithTenant(ctx, &Tenant{OrgID: "org_1", OrgSlug: "acme"})
	ctx = WithParams(ctx, httprouter.Params{{Key: "filter_id", Value: "flt_9"}})

	if c, ok := ClaimsFrom(ctx); !ok || c.Role != auth.RoleViewer {
		t.Errorf("ClaimsFrom() = %+v, %v", c, ok)
	}
	if tn := TenantFrom(ctx); tn == nil || tn.OrgSlug != "acme" {
		t.Errorf("TenantFrom() = %+v", tn)
	}
	if got := Param(ctx, "filter_id"); got != "flt_9" {
		t.Errorf("Param() = %q, want flt_9", got)
	}
}
