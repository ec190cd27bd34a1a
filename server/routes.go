package server

import (
	"net/http"
	"strings"

	"github.com/mealroute/session-gateway/guard"
	"github.com/mealroute/session-gateway/internal/obs"
)

func (s *Server) initRoutes() {
	base := s.baseMiddleware()

	// Session mutation endpoints resolve the role from the path.
	s.RegisterRouteFunc("POST "+RoutePortalLogin, ChainMiddleware(s.LoginHandler(), append(base, s.LoginRateLimitMiddleware)...))
	s.RegisterRouteFunc("POST "+RoutePortalSignup, ChainMiddleware(s.SignupHandler(), append(base, s.LoginRateLimitMiddleware)...))
	s.RegisterRouteFunc("POST "+RoutePortalLogout, ChainMiddleware(s.LogoutHandler(), base...))
	s.RegisterRouteFunc("GET "+RoutePortalSession, ChainMiddleware(s.SessionStateHandler(), base...))

	// Protected routes are registered per role so each sits behind its own
	// role's guard; the guards never consult another role's state.
	for _, mgr := range s.managers.All() {
		pattern := "GET " + strings.Replace(RoutePortalProfile, "{role}", string(mgr.Role().Role), 1)
		handler := ChainMiddleware(s.ProfileHandler(), append(base, guard.Protect(mgr))...)
		s.RegisterRouteFunc(pattern, handler)
	}

	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, obs.Handler())
}

func (s *Server) baseMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return []func(http.HandlerFunc) http.HandlerFunc{
		obs.Instrument,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.CorsMiddleware,
	}
}
