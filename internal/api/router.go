package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "relaydesk/internal/api/context"
	"relaydesk/internal/api/handlers"
	"relaydesk/internal/api/middleware"
	"relaydesk/internal/pkg/errors"
	"relaydesk/internal/platform/auth"
)

type Dependencies struct {
	OrgHandler       *handlers.OrgHandler
	FilterHandler    *handlers.FilterHandler
	WorkflowHandler  *handlers.WorkflowHandler
	WebhookHandler   *handlers.WebhookHandler
	LogHandler       *handlers.LogHandler
	TokenHandler     *handlers.TokenHandler
	ExternalHandler  *handlers.ExternalHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
	TokenGate        *middleware.TokenGate
	AdminLimiter     *middleware.RateLimiter
	ExternalLimiter  *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	// Operational
	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Tenant bootstrap
	router.POST("/api/v1/organizations", chain(deps.OrgHandler.Create, deps.AdminLimiter.Handle))

	authMid := deps.AuthMiddleware.Handle
	tenantMid := deps.TenantMiddleware.Handle
	adminRL := deps.AdminLimiter.Handle
	admin := requireRole(auth.RoleAdmin)

	// Filters
	router.POST("/api/v1/filters",
		chain(deps.FilterHandler.Create, authMid, tenantMid, adminRL, admin))
	router.GET("/api/v1/filters",
		chain(deps.FilterHandler.List, authMid, tenantMid, adminRL))
	router.GET("/api/v1/filters/:filter_id",
		chain(deps.FilterHandler.Get, authMid, tenantMid, adminRL))
	router.PATCH("/api/v1/filters/:filter_id",
		chain(deps.FilterHandler.Update, authMid, tenantMid, adminRL, admin))
	router.DELETE("/api/v1/filters/:filter_id",
		chain(deps.FilterHandler.Delete, authMid, tenantMid, adminRL, admin))

	// Workflows
	router.POST("/api/v1/workflows",
		chain(deps.WorkflowHandler.Create, authMid, tenantMid, adminRL, admin))
	router.GET("/api/v1/workflows",
		chain(deps.WorkflowHandler.List, authMid, tenantMid, adminRL))
	router.DELETE("/api/v1/workflows/:workflow_id",
		chain(deps.WorkflowHandler.Delete, authMid, tenantMid, adminRL, admin))

	// Webhook registrations
	router.POST("/api/v1/webhooks",
		chain(deps.WebhookHandler.Create, authMid, tenantMid, adminRL, admin))
	router.GET("/api/v1/webhooks",
		chain(deps.WebhookHandler.List, authMid, tenantMid, adminRL))
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Get, authMid, tenantMid, adminRL))
	router.PATCH("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Update, authMid, tenantMid, adminRL, admin))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Delete, authMid, tenantMid, adminRL, admin))
	router.POST("/api/v1/webhooks/:webhook_id/test",
		chain(deps.WebhookHandler.Test, authMid, tenantMid, adminRL, admin))

	// Delivery logs
	router.GET("/api/v1/logs",
		chain(deps.LogHandler.List, authMid, tenantMid, adminRL))

	// Access tokens
	router.POST("/api/v1/tokens",
		chain(deps.TokenHandler.Create, authMid, tenantMid, adminRL, admin))
	router.GET("/api/v1/tokens",
		chain(deps.TokenHandler.List, authMid, tenantMid, adminRL, admin))
	router.DELETE("/api/v1/tokens/:token_id",
		chain(deps.TokenHandler.Revoke, authMid, tenantMid, adminRL, admin))

	// External callers
	gate := deps.TokenGate.Handle
	externalRL := deps.ExternalLimiter.Handle
	router.POST("/api/v1/external/messages",
		chain(deps.ExternalHandler.Messages, gate, externalRL))
	router.POST("/api/v1/external/mutations",
		chain(deps.ExternalHandler.Mutations, gate, externalRL))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		handler(w, r.WithContext(apiContext.WithParams(r.Context(), ps)))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := apiContext.ClaimsFrom(r.Context())

			allowed := false
			for _, role := range roles {
				if ok && claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
