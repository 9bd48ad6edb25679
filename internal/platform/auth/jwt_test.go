package auth

import (
	"testing"
	"time"

	"relaydesk/internal/platform/config"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "s3cret", AccessTokenTTL: time.Hour})

	token, err := svc.GenerateAccessToken("admin@acme", "org_1", RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.TenantID != "org_1" || claims.Role != RoleAdmin || claims.Subject != "admin@acme" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "s3cret", AccessTokenTTL: time.Hour})
	other := NewTokenService(config.JWTConfig{Secret: "other", AccessTokenTTL: time.Hour})
	expired := NewTokenService(config.JWTConfig{Secret: "s3cret", AccessTokenTTL: -time.Minute})

	foreign, _ := other.GenerateAccessToken("a", "org_1", RoleAdmin)
	stale, _ := expired.GenerateAccessToken("a", "org_1", RoleAdmin)
	noTenant, _ := svc.GenerateAccessToken("a", "", RoleAdmin)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreign},
		{"expired", stale},
		{"no tenant", noTenant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tt.token); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
