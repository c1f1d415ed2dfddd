// Package server renders the marketing pages and the account UI, and
// wires each browser session to its own session store and SSO gateway.
package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eternivity/account-portal/gateway"
	"github.com/eternivity/account-portal/internal/config"
	"github.com/eternivity/account-portal/server/browsersession"
	"github.com/eternivity/account-portal/session"
)

// StoreFactory builds the state bundle for a newly seen browser: a
// fresh SSO gateway (with its own cookie jar) and a session store bound
// to it. Tests substitute factories that talk to a stub SSO.
type StoreFactory func() (*session.Store, browsersession.AccountGateway, error)

type Server struct {
	env        string // Environment (e.g. "DEV", "production")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	sessions   browsersession.Repo
	newStore   StoreFactory
	google     *GoogleSignIn
	metrics    *Metrics
	fileServer http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithStoreFactory replaces the per-browser store construction.
func WithStoreFactory(f StoreFactory) Option {
	return func(s *Server) { s.newStore = f }
}

// WithSessionRepo replaces the browser session repository.
func WithSessionRepo(repo browsersession.Repo) Option {
	return func(s *Server) { s.sessions = repo }
}

// WithGoogleSignIn enables the Google sign-in surfaces.
func WithGoogleSignIn(g *GoogleSignIn) Option {
	return func(s *Server) { s.google = g }
}

// WithMetricsRegistry collects metrics into reg instead of a private
// registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.metrics = NewMetrics(reg) }
}

func New(cfg config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		sessions: browsersession.NewInMemoryRepo(),
	}
	s.env = cfg.GetEnv()
	s.fileServer = FileServerHandler()

	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.NewRegistry())
	}
	if s.newStore == nil {
		s.newStore = func() (*session.Store, browsersession.AccountGateway, error) {
			gw, err := gateway.New(cfg.GetSSOBaseURL(), gateway.WithRecorder(s.metrics))
			if err != nil {
				return nil, nil, fmt.Errorf("[Server] creating SSO gateway: %w", err)
			}
			return session.NewStore(gw), gw, nil
		}
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

// PurgeIdleSessions drops browser sessions idle for longer than the
// configured max age. main runs this on a ticker.
func (s *Server) PurgeIdleSessions() {
	type purger interface {
		PurgeIdle(time.Duration) int
	}
	if p, ok := s.sessions.(purger); ok {
		if n := p.PurgeIdle(s.config.GetSessionMaxAge()); n > 0 {
			log.Printf("purged %d idle browser sessions\n", n)
		}
	}
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
		displayMethod = color + paddedMethod + resetColor
	} else {
		displayMethod = gray + paddedMethod + resetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

const (
	green      = "\033[32m"
	blue       = "\033[34m"
	cyan       = "\033[36m"
	yellow     = "\033[33m"
	gray       = "\033[90m"
	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	"GET":    green,
	"POST":   blue,
	"PUT":    cyan,
	"DELETE": yellow,
}
