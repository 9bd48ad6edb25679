package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apiContext "relaydesk/internal/api/context"
	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/platform/auth"
)

// AuthMiddleware guards the admin surface with a signed JWT. External
// callers present access tokens instead and go through TokenGate.
type AuthMiddleware struct {
	tokenSvc *auth.TokenService
}

func NewAuthMiddleware(tokenSvc *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing or malformed bearer token", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(raw)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("admin token rejected")
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		next(w, r.WithContext(apiContext.WithClaims(r.Context(), claims)))
	}
}

// bearer extracts the token from "Authorization: Bearer <token>".
func bearer(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}
