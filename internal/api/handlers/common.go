package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	apiContext "relaydesk/internal/api/context"
	"relaydesk/internal/api/middleware"
)

// Recorder is told about every successful mutation so registered webhooks
// hear about it.
type Recorder interface {
	Record(ctx context.Context, tenantID, entityType, event, entityID string, payload interface{})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func param(r *http.Request, name string) string {
	return apiContext.Param(r.Context(), name)
}

func tenantID(r *http.Request) string {
	if t := middleware.TenantFrom(r); t != nil {
		return t.OrgID
	}
	return ""
}
