package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apiContext "relaydesk/internal/api/context"
	"relaydesk/internal/platform/auth"
	"relaydesk/internal/platform/config"
)

func TestAuthMiddleware(t *testing.T) {
	svc := auth.NewTokenService(config.JWTConfig{Secret: "admin-secret", AccessTokenTTL: time.Minute})
	valid, err := svc.GenerateAccessToken("usr_1", "org_1", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"padded token", "Bearer  " + valid + " ", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"scheme only", "Bearer", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	mw := NewAuthMiddleware(svc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var claims *auth.Claims
			h := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
				claims, _ = apiContext.ClaimsFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/filters", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusOK && (claims == nil || claims.TenantID != "org_1" || claims.Role != auth.RoleAdmin) {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}
