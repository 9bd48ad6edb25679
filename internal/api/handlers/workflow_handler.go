package handlers

import (
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"strings"

	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/pkg/validator"
	"relaydesk/internal/platform/models"
	"relaydesk/internal/platform/repositories"
)

type WorkflowHandler struct {
	workflows *repositories.WorkflowRepository
	recorder  Recorder
}

func NewWorkflowHandler(workflows *repositories.WorkflowRepository, recorder Recorder) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows, recorder: recorder}
}

func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		WebhookURL string `json:"webhook_url"`
		Active     *bool  `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name is required", nil)
		return
	}
	if err := validator.EndpointURL(req.WebhookURL); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	wf := &models.Workflow{
		TenantID:   tenantID(r),
		Name:       req.Name,
		WebhookURL: req.WebhookURL,
		Active:     req.Active == nil || *req.Active,
	}
	if err := h.workflows.Create(r.Context(), wf); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create workflow", nil)
		return
	}

	h.recorder.Record(r.Context(), wf.TenantID, models.EntityWorkflow, models.EventCreate, wf.ID, wf)
	writeJSON(w, http.StatusCreated, wf)
}

func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.workflows.List(r.Context(), tenantID(r))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list workflows", nil)
		return
	}
	if workflows == nil {
		workflows = []*models.Workflow{}
	}
	writeJSON(w, http.StatusOK, workflows)
}

func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, id := tenantID(r), param(r, "workflow_id")

	if err := h.workflows.Delete(r.Context(), tid, id); err != nil {
		if stdErrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Workflow not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to delete workflow", nil)
		return
	}

	h.recorder.Record(r.Context(), tid, models.EntityWorkflow, models.EventDelete, id, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
