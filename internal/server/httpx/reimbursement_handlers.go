package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/reembolsai/internal/server/pdf"
	"github.com/dmitrijs2005/reembolsai/internal/server/plans"
	"github.com/dmitrijs2005/reembolsai/internal/server/services"
)

// denied counts plan and ownership refusals before writing them out.
func (rt *Router) denied(w http.ResponseWriter, req *http.Request, route string, err error) {
	var (
		planErr   *services.PlanError
		forbidden *services.ForbiddenError
	)
	switch {
	case errors.As(err, &planErr):
		rt.metrics.deny(route, "plan")
	case errors.As(err, &forbidden):
		rt.metrics.deny(route, "ownership")
	}
	rt.writeServiceError(w, req, err)
}

func (rt *Router) handleListReimbursements(w http.ResponseWriter, req *http.Request) {
	user := userFromContext(req.Context())

	listing, err := rt.reimbursements.List(req.Context(), user.ID)
	if err != nil {
		rt.writeServiceError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*services.Listing
	}{true, listing})
}

func (rt *Router) handleCreateReimbursement(w http.ResponseWriter, req *http.Request) {
	user := userFromContext(req.Context())

	var in services.CreateInput
	if err := decodeJSON(w, req, &in); err != nil {
		rt.writeServiceError(w, req, err)
		return
	}

	rec, err := rt.reimbursements.Create(req.Context(), user.ID, in)
	if err != nil {
		rt.denied(w, req, "/api/reimbursements", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"message":       "Reembolso criado com sucesso",
		"reimbursement": rec,
	})
}

func (rt *Router) handleGetReimbursement(w http.ResponseWriter, req *http.Request) {
	user := userFromContext(req.Context())

	rec, err := rt.reimbursements.Get(req.Context(), user.ID, chi.URLParam(req, "id"))
	if err != nil {
		rt.denied(w, req, "/api/reimbursements/{id}", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reimbursement": rec})
}

func (rt *Router) handleStats(w http.ResponseWriter, req *http.Request) {
	user := userFromContext(req.Context())

	st, err := rt.reimbursements.Stats(req.Context(), user.ID)
	if err != nil {
		rt.writeServiceError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": st})
}

func (rt *Router) handlePDF(w http.ResponseWriter, req *http.Request) {
	user := userFromContext(req.Context())

	doc, err := rt.reimbursements.GeneratePDF(req.Context(), user.ID, chi.URLParam(req, "id"))
	if err != nil {
		rt.denied(w, req, "/api/reimbursements/{id}/pdf", err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", pdf.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	h.Set("Content-Length", strconv.Itoa(len(doc.Data)))
	if doc.ArchiveURL != "" {
		h.Set("X-Archive-URL", doc.ArchiveURL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func (rt *Router) handleSend(w http.ResponseWriter, req *http.Request) {
	user := userFromContext(req.Context())

	rec, msg, err := rt.reimbursements.SendToOperator(req.Context(), user.ID, chi.URLParam(req, "id"))
	if err != nil {
		rt.denied(w, req, "/api/reimbursements/{id}/send", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       msg,
		"reimbursement": rec,
		"sentAt":        rec.SentToOperatorAt,
	})
}

func (rt *Router) handleLogs(w http.ResponseWriter, req *http.Request) {
	user := userFromContext(req.Context())

	logs, err := rt.users.Logs(req.Context(), user.ID)
	if err != nil {
		rt.writeServiceError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "logs": logs})
}

func (rt *Router) handlePlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "plans": plans.Catalog()})
}

// handleTestEmail checks the SMTP connection and then sends a test message.
// Only administrators may run it.
func (rt *Router) handleTestEmail(w http.ResponseWriter, req *http.Request) {
	user := userFromContext(req.Context())
	if !user.IsAdmin {
		rt.denied(w, req, "/api/test-email", &services.ForbiddenError{Reason: "Acesso negado"})
		return
	}

	transport := rt.mail.Transport()
	info := transport.Info()

	if err := transport.Ping(req.Context()); err != nil {
		rt.logger.Error(req.Context(), "smtp connection test failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Falha no teste de conexão SMTP",
			"error":   err.Error(),
			"details": info,
		})
		return
	}

	to := req.URL.Query().Get("email")
	if to == "" {
		to = info.User
	}
	if to == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "E-mail de destino não especificado. Use ?email=seu@email.com",
		})
		return
	}

	if err := rt.mail.SendTest(req.Context(), to); err != nil {
		rt.logger.Error(req.Context(), "smtp test message failed", "to", to, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Conexão SMTP OK, mas falha ao enviar e-mail. Verifique os logs do servidor.",
			"details": info,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "E-mail de teste enviado com sucesso! Verifique sua caixa de entrada (e spam).",
		"details": map[string]any{
			"host":          info.Host,
			"port":          info.Port,
			"user":          info.User,
			"tlsMode":       info.TLSMode,
			"tlsActive":     info.TLSActive,
			"testEmailSent": to,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		},
	})
}
