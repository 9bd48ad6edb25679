package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"

	"relaydesk/internal/platform/models"
	"relaydesk/internal/platform/repositories"
)

const (
	TokenPrefix     = "rdk_"
	tokenBytes      = 32
	displayPrefixSz = len(TokenPrefix) + 8
)

var (
	// ErrUnauthorized means no credential was presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredential covers unknown and revoked tokens alike so callers
	// cannot tell them apart.
	ErrInvalidCredential = errors.New("invalid credential")
	ErrTokenNotFound     = errors.New("access token not found")
	ErrTokenCollision    = errors.New("access token collision")
)

// TokenStore persists access tokens. Lookups return nil, nil when nothing
// matches.
type TokenStore interface {
	Create(ctx context.Context, tok *models.AccessToken) error
	FindByHash(ctx context.Context, hash string) (*models.AccessToken, error)
	GetByID(ctx context.Context, id string) (*models.AccessToken, error)
	TouchLastUsed(ctx context.Context, id string, at int64) error
	Revoke(ctx context.Context, id string) error
	ListByTenant(ctx context.Context, tenantID string) ([]*models.AccessToken, error)
}

// Gate issues opaque access tokens and resolves them back to a tenant.
type Gate struct {
	store        TokenStore
	pepper       []byte
	touchTimeout time.Duration
	now          func() time.Time
}

func NewGate(store TokenStore, pepper string, touchTimeout time.Duration) *Gate {
	if touchTimeout <= 0 {
		touchTimeout = 2 * time.Second
	}
	return &Gate{
		store:        store,
		pepper:       []byte(pepper),
		touchTimeout: touchTimeout,
		now:          time.Now,
	}
}

// HashToken is the keyed BLAKE2b-256 digest stored in place of the token.
func (g *Gate) HashToken(plaintext string) string {
	key := g.pepper
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// Only possible with keys longer than 64 bytes, handled above.
		panic(err)
	}
	h.Write([]byte(plaintext))
	return hex.EncodeToString(h.Sum(nil))
}

// Resolve maps a presented credential to its tenant.
func (g *Gate) Resolve(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrUnauthorized
	}

	tok, err := g.store.FindByHash(ctx, g.HashToken(credential))
	if err != nil {
		return "", fmt.Errorf("lookup token: %w", err)
	}
	if tok == nil || tok.Revoked {
		return "", ErrInvalidCredential
	}

	go g.touch(tok.ID, tok.TenantID)

	return tok.TenantID, nil
}

func (g *Gate) touch(id, tenantID string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.touchTimeout)
	defer cancel()

	if err := g.store.TouchLastUsed(ctx, id, g.now().Unix()); err != nil {
		log.Warn().Err(err).Str("token_id", id).Str("tenant_id", tenantID).Msg("failed to record token use")
	}
}

// Issue creates a token for tenantID. The plaintext is returned once and
// never stored.
func (g *Gate) Issue(ctx context.Context, tenantID, label string) (*models.AccessToken, string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	plaintext := TokenPrefix + hex.EncodeToString(raw)

	tok := &models.AccessToken{
		TenantID:    tenantID,
		Label:       label,
		TokenHash:   g.HashToken(plaintext),
		TokenPrefix: plaintext[:displayPrefixSz],
		CreatedAt:   g.now().Unix(),
	}

	if err := g.store.Create(ctx, tok); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, "", ErrTokenCollision
		}
		return nil, "", fmt.Errorf("store token: %w", err)
	}

	log.Info().Str("tenant_id", tenantID).Str("token_id", tok.ID).Msg("access token issued")
	return tok, plaintext, nil
}

// Revoke is idempotent. Tokens of other tenants are reported as not found.
func (g *Gate) Revoke(ctx context.Context, tenantID, id string) error {
	tok, err := g.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup token: %w", err)
	}
	if tok == nil || tok.TenantID != tenantID {
		return ErrTokenNotFound
	}
	if tok.Revoked {
		return nil
	}

	if err := g.store.Revoke(ctx, id); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	log.Info().Str("tenant_id", tenantID).Str("token_id", id).Msg("access token revoked")
	return nil
}

func (g *Gate) List(ctx context.Context, tenantID string) ([]*models.AccessToken, error) {
	return g.store.ListByTenant(ctx, tenantID)
}
