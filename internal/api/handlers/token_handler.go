package handlers

import (
	"encoding/json"
	stdErrors "errors"
	"net/http"

	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/platform/auth"
	"relaydesk/internal/platform/models"
)

type TokenHandler struct {
	gate *auth.Gate
}

func NewTokenHandler(gate *auth.Gate) *TokenHandler {
	return &TokenHandler{gate: gate}
}

func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	tok, plaintext, err := h.gate.Issue(r.Context(), tenantID(r), req.Label)
	if err != nil {
		if stdErrors.Is(err, auth.ErrTokenCollision) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Token collision, retry", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue token", nil)
		return
	}

	// The plaintext is only ever returned here.
	writeJSON(w, http.StatusCreated, struct {
		*models.AccessToken
		Token string `json:"token"`
	}{tok, plaintext})
}

func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.gate.List(r.Context(), tenantID(r))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list tokens", nil)
		return
	}
	if tokens == nil {
		tokens = []*models.AccessToken{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	err := h.gate.Revoke(r.Context(), tenantID(r), param(r, "token_id"))
	if err != nil {
		if stdErrors.Is(err, auth.ErrTokenNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Token not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to revoke token", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
