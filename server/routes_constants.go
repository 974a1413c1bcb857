package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/{$}"

	// Auth Routes - Login & Logout
	RouteLogin    = "/login"
	RouteCallback = "/callback"
	RouteLogout   = "/logout"

	// Billing
	RouteWebhook       = "/webhook"
	RouteWebhookStripe = "/webhook/stripe"

	// API Routes
	RouteAPIUser          = "/api/user"
	RouteAPIPortalSession = "/api/create-portal-session"

	// Operational
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
