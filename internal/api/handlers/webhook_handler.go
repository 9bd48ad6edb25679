package handlers

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"relaydesk/internal/engine/webhooks"
	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/pkg/validator"
	"relaydesk/internal/platform/broadcast"
	"relaydesk/internal/platform/models"
	"relaydesk/internal/platform/repositories"
)

type EndpointTester interface {
	Test(ctx context.Context, endpoint *models.Webhook) webhooks.TestOutcome
}

type WebhookHandler struct {
	webhooks    *repositories.WebhookRepository
	tester      EndpointTester
	broadcaster broadcast.Broadcaster
	recorder    Recorder
}

func NewWebhookHandler(repo *repositories.WebhookRepository, tester EndpointTester, broadcaster broadcast.Broadcaster, recorder Recorder) *WebhookHandler {
	return &WebhookHandler{
		webhooks:    repo,
		tester:      tester,
		broadcaster: broadcaster,
		recorder:    recorder,
	}
}

type WebhookRequest struct {
	URL            *string            `json:"url"`
	Method         *string            `json:"method"`
	EntityType     *string            `json:"entity_type"`
	Events         *[]string          `json:"events"`
	Enabled        *bool              `json:"enabled"`
	Description    *string            `json:"description"`
	Template       *string            `json:"template"`
	Headers        *map[string]string `json:"headers"`
	LinkedEntityID *string            `json:"linked_entity_id"`
	Secret         *string            `json:"secret"`
}

func (req *WebhookRequest) apply(wh *models.Webhook) {
	if req.URL != nil {
		wh.URL = *req.URL
	}
	if req.Method != nil {
		wh.Method = *req.Method
	}
	if req.EntityType != nil {
		wh.EntityType = *req.EntityType
	}
	if req.Events != nil {
		wh.Events = *req.Events
	}
	if req.Enabled != nil {
		wh.Enabled = *req.Enabled
	}
	if req.Description != nil {
		wh.Description = *req.Description
	}
	if req.Template != nil {
		wh.Template = *req.Template
	}
	if req.Headers != nil {
		wh.Headers = *req.Headers
	}
	if req.LinkedEntityID != nil {
		if *req.LinkedEntityID == "" {
			wh.LinkedEntityID = nil
		} else {
			id := *req.LinkedEntityID
			wh.LinkedEntityID = &id
		}
	}
	if req.Secret != nil {
		wh.Secret = *req.Secret
	}
}

func validateWebhook(wh *models.Webhook) error {
	if err := validator.EndpointURL(wh.URL); err != nil {
		return err
	}
	method, err := validator.Method(wh.Method)
	if err != nil {
		return err
	}
	wh.Method = method

	if !models.IsRegistrationEntityType(wh.EntityType) {
		return stdErrors.New("entity_type must be a tracked entity type or all")
	}
	for _, e := range wh.Events {
		if !models.IsEvent(e) {
			return stdErrors.New("events may only contain create, update or delete")
		}
	}
	if wh.Template == "" {
		wh.Template = models.DefaultTemplate
	}
	return nil
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	wh := &models.Webhook{TenantID: tenantID(r), Enabled: true, Events: []string{}}
	req.apply(wh)
	if err := validateWebhook(wh); err != nil {
		errors.WriteValidation(w, errors.ErrCodeInvalidConfiguration, err)
		return
	}

	if err := h.webhooks.Create(r.Context(), wh); err != nil {
		log.Error().Err(err).Str("tenant_id", wh.TenantID).Msg("create webhook")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create webhook", nil)
		return
	}

	h.recorder.Record(r.Context(), wh.TenantID, models.EntityWebhook, models.EventCreate, wh.ID, wh)
	writeJSON(w, http.StatusCreated, wh)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.webhooks.List(r.Context(), tenantID(r))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list webhooks", nil)
		return
	}
	if list == nil {
		list = []*models.Webhook{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	wh, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	wh, ok := h.load(w, r)
	if !ok {
		return
	}
	wasEnabled := wh.Enabled

	req.apply(wh)
	if err := validateWebhook(wh); err != nil {
		errors.WriteValidation(w, errors.ErrCodeInvalidConfiguration, err)
		return
	}

	if err := h.webhooks.Update(r.Context(), wh); err != nil {
		if stdErrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update webhook", nil)
		return
	}

	if wasEnabled && !wh.Enabled {
		h.endpointChanged(r.Context(), wh.TenantID, wh.ID, "endpoint disabled")
	}
	h.recorder.Record(r.Context(), wh.TenantID, models.EntityWebhook, models.EventUpdate, wh.ID, wh)
	writeJSON(w, http.StatusOK, wh)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, id := tenantID(r), param(r, "webhook_id")

	if err := h.webhooks.Delete(r.Context(), tid, id); err != nil {
		if stdErrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to delete webhook", nil)
		return
	}

	h.endpointChanged(r.Context(), tid, id, "endpoint deleted")
	h.recorder.Record(r.Context(), tid, models.EntityWebhook, models.EventDelete, id, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// Test fires one request at the endpoint with its current settings.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	wh, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.tester.Test(r.Context(), wh))
}

func (h *WebhookHandler) load(w http.ResponseWriter, r *http.Request) (*models.Webhook, bool) {
	wh, err := h.webhooks.GetEndpoint(r.Context(), tenantID(r), param(r, "webhook_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load webhook", nil)
		return nil, false
	}
	if wh == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
		return nil, false
	}
	return wh, true
}

func (h *WebhookHandler) endpointChanged(ctx context.Context, tenantID, endpointID, reason string) {
	change := broadcast.EndpointChange{TenantID: tenantID, EndpointID: endpointID, Reason: reason}
	if err := h.broadcaster.EndpointChanged(ctx, change); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Str("endpoint_id", endpointID).Msg("broadcast endpoint change")
	}
}
