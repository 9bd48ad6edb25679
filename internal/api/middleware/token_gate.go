package middleware

import (
	"context"
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/platform/auth"
	"relaydesk/internal/platform/metrics"
)

const (
	// TokenHeader is an alternative to a bearer Authorization header.
	TokenHeader = "X-Relaydesk-Token"

	invalidTokenMessage = "Invalid or missing access token"
)

type TokenResolver interface {
	Resolve(ctx context.Context, credential string) (string, error)
}

// TokenGate authenticates external callers with access tokens. Missing,
// unknown and revoked tokens all get the same 401 body.
type TokenGate struct {
	resolver TokenResolver
	tenants  *TenantMiddleware
}

func NewTokenGate(resolver TokenResolver, tenants *TenantMiddleware) *TokenGate {
	return &TokenGate{resolver: resolver, tenants: tenants}
}

func (g *TokenGate) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := g.resolver.Resolve(r.Context(), credential(r))
		if err != nil {
			if stdErrors.Is(err, auth.ErrUnauthorized) || stdErrors.Is(err, auth.ErrInvalidCredential) {
				metrics.Inc(metrics.TokenResolveFails)
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, invalidTokenMessage, nil)
				return
			}
			log.Error().Err(err).Msg("resolve access token")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to verify access token", nil)
			return
		}

		g.tenants.serve(w, r, tenantID, next)
	}
}

func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}
