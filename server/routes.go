package server

import (
	"net/http"

	"github.com/jrsteele09/repo-dashboard/internal/metrics"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex, s.route(RouteIndex, s.IndexHandler(), s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, s.route(RouteLogin, s.auth.Login, s.HTMLMiddleWare(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteCallback, s.route(RouteCallback, s.auth.Callback, s.HTMLMiddleWare(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteLogout, s.route(RouteLogout, s.auth.Logout, s.HTMLMiddleWare()...))

	// Billing webhooks
	s.RegisterRouteHandler("POST "+RouteWebhook, s.route(RouteWebhook, s.billing.Webhook, s.WebhookMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteWebhookStripe, s.route(RouteWebhookStripe, s.billing.Webhook, s.WebhookMiddleware()...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPIUser, s.route(RouteAPIUser, s.UserHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIPortalSession, s.route(RouteAPIPortalSession, s.PortalSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {}, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHealth, s.route(RouteHealth, s.HealthHandler()))
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
}

// route chains mw around handler and records request metrics under the route name.
func (s *Server) route(name string, handler http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	return metrics.Instrument(name, ChainMiddleware(handler, mw...))
}
