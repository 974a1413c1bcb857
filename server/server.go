package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/repo-dashboard/auth"
	"github.com/jrsteele09/repo-dashboard/billing"
	"github.com/jrsteele09/repo-dashboard/dashboard"
	"github.com/jrsteele09/repo-dashboard/internal/config"
	"github.com/jrsteele09/repo-dashboard/subscriptions"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env            string // Environment (e.g., "DEV", "PROD")
	mux            *http.ServeMux
	routes         []string
	config         config.Config
	auth           *auth.Manager
	billing        *billing.Processor
	subs           subscriptions.Repo
	engine         *dashboard.Engine
	loginLimiter   *ipRateLimiter
	trustedProxies config.TrustedProxies
}

func New(config config.Config, authManager *auth.Manager, processor *billing.Processor, subs subscriptions.Repo, engine *dashboard.Engine) (*Server, error) {
	if authManager == nil {
		return nil, fmt.Errorf("[Server New] auth manager is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("[Server New] billing processor is required")
	}
	if subs == nil {
		return nil, fmt.Errorf("[Server New] subscription repo is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("[Server New] dashboard engine is required")
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  config,
		auth:    authManager,
		billing: processor,
		subs:    subs,
		engine:  engine,
	}
	s.env = config.GetEnv()
	if config.GetEnableRateLimiting() {
		s.loginLimiter = newIPRateLimiter(config.GetLoginRateLimit(), config.GetLoginRateBurst())
		s.trustedProxies = config.GetTrustedProxies()
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

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
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
