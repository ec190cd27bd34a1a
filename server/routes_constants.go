package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Portal session routes; {role} is one of user, admin, restaurant, delivery
	RoutePortalLogin   = "/portal/{role}/login"
	RoutePortalSignup  = "/portal/{role}/signup"
	RoutePortalLogout  = "/portal/{role}/logout"
	RoutePortalProfile = "/portal/{role}/profile"
	RoutePortalSession = "/portal/{role}/session"

	// Operational routes
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)
