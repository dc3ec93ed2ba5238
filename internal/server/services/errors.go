package services

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/reembolsai/internal/server/models"
	"github.com/dmitrijs2005/reembolsai/internal/server/ratelimit"
)

// The error types below carry a user-facing Reason. Anything else returned
// by a service is internal and must not be shown to the caller.

// ValidationError is malformed or missing input.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

// ConflictError is a request that clashes with current state: a taken
// e-mail, an already verified account, an already sent record.
type ConflictError struct{ Reason string }

func (e *ConflictError) Error() string { return e.Reason }

// AuthError is a missing, invalid or expired credential, or a failed login.
type AuthError struct{ Reason string }

func (e *AuthError) Error() string { return e.Reason }

// PlanError is a capability the user's tier does not include.
type PlanError struct {
	Reason       string
	CurrentPlan  models.Plan
	RequiredPlan models.Plan
}

func (e *PlanError) Error() string { return e.Reason }

// ForbiddenError is an authenticated request for something the caller does
// not own.
type ForbiddenError struct{ Reason string }

func (e *ForbiddenError) Error() string { return e.Reason }

type NotFoundError struct{ Reason string }

func (e *NotFoundError) Error() string { return e.Reason }

// RateLimitError is a repeated request inside the cooldown.
type RateLimitError struct{ Remaining time.Duration }

func (e *RateLimitError) RemainingSeconds() int {
	return ratelimit.Decision{Remaining: e.Remaining}.RemainingSeconds()
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Aguarde %d segundos antes de reenviar novamente", e.RemainingSeconds())
}

// DeliveryError is an e-mail that could not be handed to the SMTP server.
type DeliveryError struct {
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string { return e.Reason }
func (e *DeliveryError) Unwrap() error { return e.Err }

const (
	msgRequiredFields    = "Todos os campos são obrigatórios"
	msgInvalidEmail      = "E-mail inválido"
	msgPasswordMismatch  = "As senhas não coincidem"
	msgEmailTaken        = "Este e-mail já está cadastrado"
	msgBadCredentials    = "E-mail ou senha incorretos"
	msgCredentialsNeeded = "E-mail e senha são obrigatórios"
	msgUnverified        = "Seu e-mail ainda não foi verificado. Verifique sua caixa de entrada ou spam."
	msgBadToken          = "Token de verificação inválido ou expirado"
	msgAlreadyVerified   = "Esta conta já foi verificada"
	msgAccountVerified   = "Esta conta já está verificada"
	msgEmailRequired     = "E-mail é obrigatório"
	msgUserNotFound      = "Usuário não encontrado"
	msgNotAuthenticated  = "Não autenticado"
	msgSessionExpired    = "Sessão expirada. Faça login novamente."
	msgMailNotConfigured = "Sistema de e-mail não configurado. Entre em contato com o suporte."
	msgVerificationMail  = "Falha ao enviar e-mail de verificação. Verifique suas configurações de e-mail e tente novamente."
	msgResendMail        = "Erro ao enviar e-mail. Tente novamente mais tarde."
	msgInvalidPlan       = "Plano inválido"
	msgInvalidStatus     = "Status inválido"

	msgReimbursementNotFound = "Reembolso não encontrado"
	msgAccessDenied          = "Acesso negado"
	msgPositiveValues        = "Valores devem ser maiores que zero"
	msgRefundExceedsTotal    = "Valor de reembolso não pode ser maior que o valor total"
	msgAlreadySent           = "Este reembolso já foi enviado para a operadora"
)
