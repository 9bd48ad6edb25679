package handlers

import (
	"crypto/subtle"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/pkg/validator"
	"relaydesk/internal/platform/auth"
	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/models"
	"relaydesk/internal/platform/repositories"
)

const BootstrapHeader = "X-Bootstrap-Key"

type OrgHandler struct {
	orgRepo      *repositories.OrganizationRepository
	dbPool       database.TenantDBProvider
	tokenSvc     *auth.TokenService
	bootstrapKey string
}

func NewOrgHandler(orgRepo *repositories.OrganizationRepository, dbPool database.TenantDBProvider, tokenSvc *auth.TokenService, bootstrapKey string) *OrgHandler {
	return &OrgHandler{
		orgRepo:      orgRepo,
		dbPool:       dbPool,
		tokenSvc:     tokenSvc,
		bootstrapKey: bootstrapKey,
	}
}

type CreateOrgRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type CreateOrgResponse struct {
	Organization *models.Organization `json:"organization"`
	AccessToken  string               `json:"access_token"`
}

// Create provisions a tenant: its global record, its database and an admin
// JWT for the caller.
func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.bootstrapKey != "" {
		got := r.Header.Get(BootstrapHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.bootstrapKey)) != 1 {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid bootstrap key", nil)
			return
		}
	}

	var req CreateOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name is required", nil)
		return
	}
	if err := validator.Slug(req.Slug); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	org := &models.Organization{Name: req.Name, Slug: req.Slug}
	if err := h.orgRepo.Create(r.Context(), org); err != nil {
		if stdErrors.Is(err, repositories.ErrConflict) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Slug already taken", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create organization", nil)
		return
	}

	if _, err := h.dbPool.ForTenant(org.ID); err != nil {
		log.Error().Err(err).Str("tenant_id", org.ID).Msg("provision tenant database")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to provision tenant database", nil)
		return
	}

	token, err := h.tokenSvc.GenerateAccessToken("bootstrap", org.ID, auth.RoleAdmin)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate token", nil)
		return
	}

	log.Info().Str("tenant_id", org.ID).Str("slug", org.Slug).Msg("organization created")
	writeJSON(w, http.StatusCreated, CreateOrgResponse{Organization: org, AccessToken: token})
}
