package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

type ctxKey string

const (
	userKey    ctxKey = "user"
	requestKey ctxKey = "request"
)

// protectedPrefix is the page tree that needs a session cookie.
const protectedPrefix = "/dashboard"

// requestInfo is filled in by inner handlers for the access log.
type requestInfo struct {
	userID string
}

// audit writes one access log line and records metrics for every request.
func (rt *Router) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		info := &requestInfo{}
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req.WithContext(context.WithValue(req.Context(), requestKey, info)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		duration := time.Since(start)

		rt.metrics.observe(req.Method, route, status, duration)
		rt.logger.Info(req.Context(), "http request",
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
			"request_id", middleware.GetReqID(req.Context()),
			"user_id", info.userID,
		)
	})
}

// requireAuth resolves the session cookie to the current user record.
func (rt *Router) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var token string
		if c, err := req.Cookie(common.AuthCookieName); err == nil {
			token = c.Value
		}

		user, err := rt.users.Authenticate(req.Context(), token)
		if err != nil {
			rt.writeServiceError(w, req, err)
			return
		}

		if info, ok := req.Context().Value(requestKey).(*requestInfo); ok {
			info.userID = user.ID
		}
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), userKey, user)))
	})
}

func userFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// guard redirects page navigation. It only looks at cookie presence; the
// API checks the credential itself.
func guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			next.ServeHTTP(w, req)
			return
		}

		c, err := req.Cookie(common.AuthCookieName)
		hasCookie := err == nil && c.Value != ""

		switch {
		case path == protectedPrefix || strings.HasPrefix(path, protectedPrefix+"/"):
			if !hasCookie {
				http.Redirect(w, req, "/login?redirect="+url.QueryEscape(path), http.StatusFound)
				return
			}
		case path == "/login" || path == "/register":
			if hasCookie {
				http.Redirect(w, req, protectedPrefix, http.StatusFound)
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

func (rt *Router) setAuthCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   rt.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (rt *Router) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   rt.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
