package handlers

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"relaydesk/internal/engine/filters"
	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/platform/models"
)

type MessageEvaluator interface {
	Evaluate(ctx context.Context, tenantID string, msg *filters.Message) (*filters.MatchResult, error)
}

// ExternalHandler serves callers holding an access token.
type ExternalHandler struct {
	evaluator MessageEvaluator
	recorder  Recorder
}

func NewExternalHandler(evaluator MessageEvaluator, recorder Recorder) *ExternalHandler {
	return &ExternalHandler{evaluator: evaluator, recorder: recorder}
}

func (h *ExternalHandler) Messages(w http.ResponseWriter, r *http.Request) {
	var msg filters.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	res, err := h.evaluator.Evaluate(r.Context(), tenantID(r), &msg)
	if err != nil {
		if stdErrors.Is(err, filters.ErrInvalidInput) {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		log.Error().Err(err).Str("tenant_id", tenantID(r)).Msg("evaluate message")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to evaluate message", nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type MutationRequest struct {
	EntityType string          `json:"entity_type"`
	Event      string          `json:"event"`
	EntityID   string          `json:"entity_id"`
	Data       json.RawMessage `json:"data"`
}

// Mutations accepts an entity change made outside this service and hands it
// to the dispatcher in the background.
func (h *ExternalHandler) Mutations(w http.ResponseWriter, r *http.Request) {
	var req MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if !models.IsEntityType(req.EntityType) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidEvent, "unknown entity_type", nil)
		return
	}
	if !models.IsEvent(req.Event) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidEvent, "event must be create, update or delete", nil)
		return
	}
	if len(req.Data) == 0 {
		req.Data = json.RawMessage("null")
	}

	h.recorder.Record(r.Context(), tenantID(r), req.EntityType, req.Event, req.EntityID, req.Data)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
