package handlers

import (
	"net/http"
	"strconv"

	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/platform/models"
	"relaydesk/internal/platform/repositories"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type LogHandler struct {
	logs *repositories.DeliveryLogRepository
}

func NewLogHandler(logs *repositories.DeliveryLogRepository) *LogHandler {
	return &LogHandler{logs: logs}
}

// List returns the latest delivery logs, newest first.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLogLimit)
	if err != nil || limit <= 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be a positive integer", nil)
		return
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "offset must be a non-negative integer", nil)
		return
	}

	logs, err := h.logs.List(r.Context(), tenantID(r), limit, offset)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list delivery logs", nil)
		return
	}
	if logs == nil {
		logs = []*models.DeliveryLog{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
