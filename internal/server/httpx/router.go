// Package httpx is the HTTP JSON transport: routing, cookie sessions, the
// page guard, error mapping and request metrics.
package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/reembolsai/internal/logging"
	"github.com/dmitrijs2005/reembolsai/internal/server/mailer"
	"github.com/dmitrijs2005/reembolsai/internal/server/services"
)

const (
	maxBodyBytes       = 1 << 20
	healthCheckTimeout = 2 * time.Second

	msgBadBody = "Corpo da requisição inválido"
)

// MailDiagnostics is what the SMTP self-test needs.
type MailDiagnostics interface {
	Transport() mailer.Transport
	SendTest(ctx context.Context, to string) error
}

type Options struct {
	SecureCookies bool
	// StaticDir holds the pages. Empty serves no pages.
	StaticDir string
	// Health reports store reachability for /healthz.
	Health func(context.Context) error
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux            chi.Router
	logger         logging.Logger
	users          *services.UserService
	reimbursements *services.ReimbursementService
	mail           MailDiagnostics
	metrics        *Metrics
	health         func(context.Context) error
	secureCookies  bool
	staticDir      string
}

func NewRouter(logger logging.Logger, us *services.UserService, rs *services.ReimbursementService,
	mail MailDiagnostics, opts Options) *Router {
	rt := &Router{
		logger:         logger.With("module", "http"),
		users:          us,
		reimbursements: rs,
		mail:           mail,
		metrics:        NewMetrics(),
		health:         opts.Health,
		secureCookies:  opts.SecureCookies,
		staticDir:      opts.StaticDir,
	}
	if rt.health == nil {
		rt.health = func(context.Context) error { return nil }
	}
	rt.mux = rt.routes()
	return rt
}

// ServeHTTP delegates to the chi mux.
func (rt *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rt.mux.ServeHTTP(w, req)
}

func (rt *Router) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, rt.audit, middleware.Recoverer)

	r.Get("/healthz", rt.handleHealthz)
	r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", rt.handleRegister)
			r.Post("/login", rt.handleLogin)
			r.Post("/logout", rt.handleLogout)
			r.Get("/verify", rt.handleVerify)
			r.Post("/resend-verification", rt.handleResendVerification)
			r.With(rt.requireAuth).Get("/me", rt.handleMe)
		})

		r.Get("/plans", rt.handlePlans)

		r.Group(func(r chi.Router) {
			r.Use(rt.requireAuth)

			r.Get("/reimbursements", rt.handleListReimbursements)
			r.Post("/reimbursements", rt.handleCreateReimbursement)
			r.Get("/reimbursements/stats", rt.handleStats)
			r.Get("/reimbursements/{id}", rt.handleGetReimbursement)
			r.Get("/reimbursements/{id}/pdf", rt.handlePDF)
			r.Post("/reimbursements/{id}/send", rt.handleSend)
			r.Get("/logs", rt.handleLogs)
			r.Get("/test-email", rt.handleTestEmail)
		})

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "Rota não encontrada")
		})
	})

	pages := http.NotFoundHandler()
	if rt.staticDir != "" {
		pages = http.FileServer(http.Dir(rt.staticDir))
	}
	r.With(guard).Handle("/*", pages)

	return r
}

func (rt *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()

	if err := rt.health(ctx); err != nil {
		rt.logger.Warn(req.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
