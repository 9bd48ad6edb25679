package models

type AccessToken struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Label       string `json:"label"`
	TokenHash   string `json:"-"`
	TokenPrefix string `json:"token_prefix"`
	CreatedAt   int64  `json:"created_at"`
	LastUsedAt  *int64 `json:"last_used_at,omitempty"`
	Revoked     bool   `json:"revoked"`
}
