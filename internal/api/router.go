package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "staysync/internal/api/context"
	"staysync/internal/api/handlers"
	"staysync/internal/api/middleware"
)

type Dependencies struct {
	WebhookHandler  *handlers.WebhookHandler
	CalendarHandler *handlers.CalendarHandler
	SyncHandler     *handlers.SyncHandler
	HealthHandler   *handlers.HealthHandler
	RateLimiter     *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	rl := deps.RateLimiter

	// Inbound webhooks from the upstream provider
	router.POST("/webhooks/inbound",
		chain(deps.WebhookHandler.Receive, rl.Limit("webhook")))

	// Property calendar
	router.GET("/api/v1/properties/:property_id/calendar",
		chain(deps.CalendarHandler.Get, rl.Limit("api_read")))
	router.POST("/api/v1/properties/:property_id/calendar/refresh",
		wrap(deps.CalendarHandler.Refresh))
	router.PUT("/api/v1/properties/:property_id/calendar/feed",
		wrap(deps.CalendarHandler.SetFeedURL))

	// Sync observability
	router.GET("/api/v1/sync/logs",
		chain(deps.SyncHandler.ListLogs, rl.Limit("api_read")))
	router.GET("/api/v1/webhooks/events",
		chain(deps.SyncHandler.ListEvents, rl.Limit("api_read")))
	router.POST("/api/v1/webhooks/events/:event_id/replay",
		wrap(deps.SyncHandler.ReplayEvent))

	router.GET("/health", wrap(deps.HealthHandler.Check))

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
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
