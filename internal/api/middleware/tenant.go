package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	apiContext "relaydesk/internal/api/context"
	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/models"
)

type TenantContext = apiContext.Tenant

type OrganizationStore interface {
	GetByID(ctx context.Context, id string) (*models.Organization, error)
}

type TenantMiddleware struct {
	orgRepo OrganizationStore
	dbPool  database.TenantDBProvider
}

func NewTenantMiddleware(orgRepo OrganizationStore, dbPool database.TenantDBProvider) *TenantMiddleware {
	return &TenantMiddleware{
		orgRepo: orgRepo,
		dbPool:  dbPool,
	}
}

// Handle resolves the tenant named by the admin JWT.
func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := apiContext.ClaimsFrom(r.Context())
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}
		m.serve(w, r, claims.TenantID, next)
	}
}

func (m *TenantMiddleware) serve(w http.ResponseWriter, r *http.Request, tenantID string, next http.HandlerFunc) {
	org, err := m.orgRepo.GetByID(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("load organization")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load organization", nil)
		return
	}
	if org == nil {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Organization not found", nil)
		return
	}

	db, err := m.dbPool.ForTenant(org.ID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", org.ID).Msg("open tenant database")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to connect to tenant database", nil)
		return
	}

	ctx := apiContext.WithTenant(r.Context(), &TenantContext{
		OrgID:   org.ID,
		OrgSlug: org.Slug,
		DB:      db,
	})

	next(w, r.WithContext(ctx))
}

// TenantFrom returns the tenant set by TenantMiddleware or TokenGate.
func TenantFrom(r *http.Request) *TenantContext {
	return apiContext.TenantFrom(r.Context())
}
