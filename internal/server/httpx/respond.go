package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/reembolsai/internal/server/services"
)

const msgInternal = "Erro interno"

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorBody maps a service error to a status and a JSON body. Anything not
// typed by the services is internal and gets a generic message.
func errorBody(err error) (int, map[string]any) {
	var (
		validation *services.ValidationError
		conflict   *services.ConflictError
		authErr    *services.AuthError
		planErr    *services.PlanError
		forbidden  *services.ForbiddenError
		notFound   *services.NotFoundError
		rateLimit  *services.RateLimitError
		delivery   *services.DeliveryError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, map[string]any{"error": validation.Reason}
	case errors.As(err, &conflict):
		return http.StatusConflict, map[string]any{"error": conflict.Reason}
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, map[string]any{"error": authErr.Reason}
	case errors.As(err, &planErr):
		return http.StatusForbidden, map[string]any{
			"error":           planErr.Reason,
			"requiresUpgrade": true,
			"currentPlan":     planErr.CurrentPlan,
			"requiredPlan":    planErr.RequiredPlan,
		}
	case errors.As(err, &forbidden):
		return http.StatusForbidden, map[string]any{"error": forbidden.Reason}
	case errors.As(err, &notFound):
		return http.StatusNotFound, map[string]any{"error": notFound.Reason}
	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests, map[string]any{
			"error":             rateLimit.Error(),
			"retryAfterSeconds": rateLimit.RemainingSeconds(),
		}
	case errors.As(err, &delivery):
		return http.StatusServiceUnavailable, map[string]any{"error": delivery.Reason}
	}
	return http.StatusInternalServerError, map[string]any{"error": msgInternal}
}

func (rt *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error(req.Context(), "request failed", "path", req.URL.Path, "error", err)
	}

	var rateLimit *services.RateLimitError
	if errors.As(err, &rateLimit) {
		w.Header().Set("Retry-After", strconv.Itoa(rateLimit.RemainingSeconds()))
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &services.ValidationError{Reason: msgBadBody}
	}
	return nil
}
