package repositories

import (
	"context"
	"database/sql"

	"relaydesk/internal/platform/models"
)

// AccessTokenRepository stores external access tokens in the global
// database. Token hashes are unique across tenants.
type AccessTokenRepository struct {
	db *sql.DB
}

func NewAccessTokenRepository(db *sql.DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

const accessTokenColumns = `id, tenant_id, label, token_hash, token_prefix, created_at, last_used_at, revoked`

func (r *AccessTokenRepository) Create(ctx context.Context, tok *models.AccessToken) error {
	if tok.ID == "" {
		tok.ID = newID("tok_")
	}
	if tok.CreatedAt == 0 {
		tok.CreatedAt = now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens (id, tenant_id, label, token_hash, token_prefix, created_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, tok.ID, tok.TenantID, tok.Label, tok.TokenHash, tok.TokenPrefix, tok.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *AccessTokenRepository) FindByHash(ctx context.Context, hash string) (*models.AccessToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accessTokenColumns+` FROM access_tokens WHERE token_hash = ?`, hash)
	return scanAccessToken(row)
}

func (r *AccessTokenRepository) GetByID(ctx context.Context, id string) (*models.AccessToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accessTokenColumns+` FROM access_tokens WHERE id = ?`, id)
	return scanAccessToken(row)
}

func (r *AccessTokenRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.AccessToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accessTokenColumns+` FROM access_tokens WHERE tenant_id = ? ORDER BY created_at DESC, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*models.AccessToken
	for rows.Next() {
		tok, err := scanAccessToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

// TouchLastUsed records the last successful use. Concurrent touches are last
// write wins.
func (r *AccessTokenRepository) TouchLastUsed(ctx context.Context, id string, at int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE access_tokens SET last_used_at = ? WHERE id = ?`, at, id)
	return err
}

func (r *AccessTokenRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE access_tokens SET revoked = 1 WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccessToken(row rowScanner) (*models.AccessToken, error) {
	var tok models.AccessToken
	var lastUsedAt sql.NullInt64

	err := row.Scan(&tok.ID, &tok.TenantID, &tok.Label, &tok.TokenHash, &tok.TokenPrefix, &tok.CreatedAt, &lastUsedAt, &tok.Revoked)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if lastUsedAt.Valid {
		tok.LastUsedAt = new(int64)
		*tok.LastUsedAt = lastUsedAt.Int64
	}
	return &tok, nil
}
