package handlers

import (
	"encoding/json"
	stdErrors "errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"relaydesk/internal/engine/filters"
	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/platform/models"
	"relaydesk/internal/platform/repositories"
)

type FilterHandler struct {
	rules    *repositories.RuleRepository
	recorder Recorder
}

func NewFilterHandler(rules *repositories.RuleRepository, recorder Recorder) *FilterHandler {
	return &FilterHandler{rules: rules, recorder: recorder}
}

type FilterRequest struct {
	Name              *string   `json:"name"`
	Kind              *string   `json:"kind"`
	Pattern           *string   `json:"pattern"`
	Active            *bool     `json:"active"`
	Priority          *int      `json:"priority"`
	AIPrompt          *string   `json:"ai_prompt"`
	WorkflowID        *string   `json:"workflow_id"`
	GroupIDs          *[]string `json:"group_ids"`
	SupportContactIDs *[]string `json:"support_contact_ids"`
}

func (req *FilterRequest) apply(rule *models.Rule) {
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Kind != nil {
		rule.Kind = *req.Kind
	}
	if req.Pattern != nil {
		rule.Pattern = *req.Pattern
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.AIPrompt != nil {
		rule.AIPrompt = *req.AIPrompt
	}
	if req.WorkflowID != nil {
		if *req.WorkflowID == "" {
			rule.WorkflowID = nil
		} else {
			id := *req.WorkflowID
			rule.WorkflowID = &id
		}
	}
	if req.GroupIDs != nil {
		rule.GroupIDs = *req.GroupIDs
	}
	if req.SupportContactIDs != nil {
		rule.SupportContactIDs = *req.SupportContactIDs
	}
}

func (h *FilterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	rule := &models.Rule{TenantID: tenantID(r), Active: true}
	req.apply(rule)
	if err := filters.ValidateRule(rule); err != nil {
		errors.WriteValidation(w, errors.ErrCodeInvalidRule, err)
		return
	}

	if err := h.rules.Create(r.Context(), rule); err != nil {
		log.Error().Err(err).Str("tenant_id", rule.TenantID).Msg("create filter")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create filter", nil)
		return
	}

	h.recorder.Record(r.Context(), rule.TenantID, models.EntityFilter, models.EventCreate, rule.ID, rule)
	writeJSON(w, http.StatusCreated, rule)
}

func (h *FilterHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context(), tenantID(r))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list filters", nil)
		return
	}
	if rules == nil {
		rules = []*models.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *FilterHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.GetByID(r.Context(), tenantID(r), param(r, "filter_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load filter", nil)
		return
	}
	if rule == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Filter not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *FilterHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	rule, err := h.rules.GetByID(r.Context(), tenantID(r), param(r, "filter_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load filter", nil)
		return
	}
	if rule == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Filter not found", nil)
		return
	}

	req.apply(rule)
	if err := filters.ValidateRule(rule); err != nil {
		errors.WriteValidation(w, errors.ErrCodeInvalidRule, err)
		return
	}

	if err := h.rules.Update(r.Context(), rule); err != nil {
		if stdErrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Filter not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update filter", nil)
		return
	}

	h.recorder.Record(r.Context(), rule.TenantID, models.EntityFilter, models.EventUpdate, rule.ID, rule)
	writeJSON(w, http.StatusOK, rule)
}

// Delete removes a filter, or deactivates it when delivery logs reference it.
func (h *FilterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, id := tenantID(r), param(r, "filter_id")

	used, err := h.rules.HasDeliveryHistory(r.Context(), tid, id)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to check filter history", nil)
		return
	}

	event := models.EventDelete
	if used {
		err = h.rules.Deactivate(r.Context(), tid, id)
		event = models.EventUpdate
	} else {
		err = h.rules.Delete(r.Context(), tid, id)
	}
	if err != nil {
		if stdErrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Filter not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to delete filter", nil)
		return
	}

	h.recorder.Record(r.Context(), tid, models.EntityFilter, event, id, map[string]interface{}{"id": id, "deactivated": used})
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "deactivated": used})
}
