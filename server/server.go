// Package server is the composition root: it builds the four role-scoped
// session managers and exposes the portal endpoints they back.
package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealroute/session-gateway/backend"
	"github.com/mealroute/session-gateway/credstore"
	"github.com/mealroute/session-gateway/internal/config"
	serrors "github.com/mealroute/session-gateway/internal/errors"
	"github.com/mealroute/session-gateway/internal/obs"
	"github.com/mealroute/session-gateway/roles"
	"github.com/mealroute/session-gateway/session"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "production")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	managers *Managers
	log      zerolog.Logger
	limiters *loginLimiters
}

// New wires the credential store, four backend clients, and four session
// managers, then registers routes. Boot restore is started separately via
// Managers.BootRestore so callers control when network traffic begins.
func New(cfg config.Config, logger zerolog.Logger) (*Server, error) {
	store, err := buildStore(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] build credential store")
	}

	managers, err := NewManagers(cfg, store, logger)
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] build session managers")
	}

	obs.Init()

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		managers: managers,
		log:      logger,
		limiters: newLoginLimiters(cfg.GetLoginRatePerMinute(), cfg.GetLoginBurst()),
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// NewWithManagers builds a Server over pre-constructed managers. Used by
// tests that wire fakes underneath.
func NewWithManagers(cfg config.Config, managers *Managers, logger zerolog.Logger) *Server {
	obs.Init()
	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		managers: managers,
		log:      logger,
		limiters: newLoginLimiters(cfg.GetLoginRatePerMinute(), cfg.GetLoginBurst()),
	}
	s.env = cfg.GetEnv()
	s.initRoutes()
	return s
}

func buildStore(cfg config.Config) (credstore.Store, error) {
	fileStore, err := credstore.NewFileStore(cfg.GetDataFolder())
	if err != nil {
		return nil, err
	}
	if secret := cfg.GetStoreSealSecret(); secret != "" {
		return credstore.NewSealedStore(fileStore, secret)
	}
	return fileStore, nil
}

// Managers returns the session manager bundle.
func (s *Server) Managers() *Managers { return s.managers }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// buildClients constructs one backend client per role against the configured
// base URL.
func buildClients(cfg config.Config) (map[roles.Role]*backend.Client, error) {
	clients := make(map[roles.Role]*backend.Client, 4)
	httpClient := &http.Client{Timeout: cfg.GetBackendTimeout()}
	for _, rc := range roles.All() {
		client, err := backend.New(rc, cfg.GetBackendBaseURL(), backend.WithHTTPClient(httpClient))
		if err != nil {
			return nil, errors.Wrapf(err, "[server.buildClients] role %s", rc.Role)
		}
		clients[rc.Role] = client
	}
	return clients, nil
}

// manager resolves the session manager for a role name from a URL path.
func (s *Server) manager(roleName string) (*session.Manager, error) {
	mgr := s.managers.ByRole(roles.Role(roleName))
	if mgr == nil {
		return nil, serrors.Wrapf(serrors.ErrUnknownRole, "role %q", roleName)
	}
	return mgr, nil
}
