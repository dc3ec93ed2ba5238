package httpx

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/reembolsai/internal/server/services"
)

func (rt *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(w, req, &in); err != nil {
		rt.writeServiceError(w, req, err)
		return
	}

	user, err := rt.users.Register(req.Context(), in)
	if err != nil {
		rt.writeServiceError(w, req, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Conta criada com sucesso! Verifique seu e-mail para ativar sua conta.",
		"user":    user.Public(),
	})
}

func (rt *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, req, &in); err != nil {
		rt.writeServiceError(w, req, err)
		return
	}

	user, token, err := rt.users.Login(req.Context(), in.Email, in.Password)
	if err != nil {
		rt.writeServiceError(w, req, err)
		return
	}

	rt.setAuthCookie(w, token, rt.users.CredentialTTL())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login realizado com sucesso",
		"user":    user.Public(),
	})
}

func (rt *Router) handleLogout(w http.ResponseWriter, _ *http.Request) {
	rt.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logout realizado com sucesso",
	})
}

func (rt *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userFromContext(req.Context()).Public(),
	})
}

// handleVerify always answers with a redirect to the login page.
func (rt *Router) handleVerify(w http.ResponseWriter, req *http.Request) {
	token := req.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, req, "/login?error=token_missing", http.StatusFound)
		return
	}

	if _, err := rt.users.VerifyEmail(req.Context(), token); err != nil {
		reason := "verification_failed"

		var (
			validation *services.ValidationError
			conflict   *services.ConflictError
		)
		switch {
		case errors.As(err, &validation):
			reason = validation.Reason
		case errors.As(err, &conflict):
			reason = conflict.Reason
		default:
			rt.logger.Error(req.Context(), "email verification failed", "error", err)
		}
		http.Redirect(w, req, "/login?error="+url.QueryEscape(reason), http.StatusFound)
		return
	}

	http.Redirect(w, req, "/login?verified=true", http.StatusFound)
}

func (rt *Router) handleResendVerification(w http.ResponseWriter, req *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, req, &in); err != nil {
		rt.writeServiceError(w, req, err)
		return
	}

	if err := rt.users.ResendVerification(req.Context(), in.Email); err != nil {
		var rl *services.RateLimitError
		if errors.As(err, &rl) {
			rt.metrics.deny("/api/auth/resend-verification", "rate_limit")
		}
		rt.writeServiceError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "E-mail de verificação reenviado! Confira sua caixa de entrada.",
	})
}
