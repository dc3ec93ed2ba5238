package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/logging"
	"github.com/dmitrijs2005/reembolsai/internal/server/auth"
	"github.com/dmitrijs2005/reembolsai/internal/server/config"
	"github.com/dmitrijs2005/reembolsai/internal/server/mailer"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
	"github.com/dmitrijs2005/reembolsai/internal/server/ratelimit"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/repomanager"
)

// CounterResetPeriod is how long a monthly counter lives before the reset
// sweep zeroes it.
const CounterResetPeriod = 30 * 24 * time.Hour

// Notifier sends the account e-mails.
type Notifier interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendWelcome(ctx context.Context, to, name string) error
}

type UserService struct {
	repomanager   repomanager.RepositoryManager
	notifier      Notifier
	limiter       ratelimit.Limiter
	secretKey     []byte
	credentialTTL time.Duration
	bcryptCost    int
	isAdminEmail  func(string) bool
	logger        logging.Logger
	now           func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(m repomanager.RepositoryManager, n Notifier, limiter ratelimit.Limiter,
	cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		repomanager:   m,
		notifier:      n,
		limiter:       limiter,
		secretKey:     []byte(cfg.SecretKey),
		credentialTTL: cfg.CredentialTTL,
		bcryptCost:    cfg.BcryptCost,
		isAdminEmail:  cfg.IsAdminEmail,
		logger:        logger.With("module", "users"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CredentialTTL is the lifetime of issued credentials.
func (s *UserService) CredentialTTL() time.Duration {
	return s.credentialTTL
}

type RegisterInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
}

// Register creates an unverified free account and sends the verification
// e-mail. When the e-mail cannot be sent the account is deleted again, so
// no account exists without a delivered verification link.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := auth.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)

	if email == "" || in.Password == "" || name == "" {
		return nil, &ValidationError{Reason: msgRequiredFields}
	}
	if !auth.ValidEmail(email) {
		return nil, &ValidationError{Reason: msgInvalidEmail}
	}
	if in.Password != in.ConfirmPassword {
		return nil, &ValidationError{Reason: msgPasswordMismatch}
	}
	if reason := auth.CheckPasswordStrength(in.Password); reason != "" {
		return nil, &ValidationError{Reason: reason}
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token, err := auth.NewVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("verification token: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:                newID(prefixUser),
		Email:             email,
		PasswordHash:      hash,
		Name:              name,
		Plan:              models.PlanFree,
		IsAdmin:           s.isAdminEmail(email),
		VerificationToken: token,
		CreatedAt:         now,
		LastMonthReset:    now,
	}

	err = s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if _, err := r.Users().Create(ctx, user); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return &ConflictError{Reason: msgEmailTaken}
			}
			return err
		}

		details := fmt.Sprintf("Usuário %s criado com plano %s", user.Email, user.Plan)
		if user.IsAdmin {
			details += " (ADMIN)"
		}
		return r.ActionLogs().Append(ctx, newLog(now, user.ID, common.ActionUserCreated, details))
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.SendVerification(ctx, user.Email, user.Name, token); err != nil {
		s.logger.Error(ctx, "verification email failed, rolling back account", "user_id", user.ID, "error", err)

		if derr := s.deleteUser(context.WithoutCancel(ctx), user, "falha no envio de e-mail"); derr != nil {
			s.logger.Error(ctx, "rollback of unverifiable account failed", "user_id", user.ID, "error", derr)
			return nil, fmt.Errorf("rollback user %s: %w", user.ID, derr)
		}

		reason := msgVerificationMail
		if errors.Is(err, mailer.ErrNotConfigured) {
			reason = msgMailNotConfigured
		}
		return nil, &DeliveryError{Reason: reason, Err: err}
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "admin", user.IsAdmin)
	return user, nil
}

func (s *UserService) deleteUser(ctx context.Context, user *models.User, why string) error {
	return s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Users().Delete(ctx, user.ID); err != nil {
			return err
		}
		return r.ActionLogs().Append(ctx, newLog(s.now(), user.ID, common.ActionUserDeleted,
			fmt.Sprintf("Usuário %s deletado (%s)", user.Email, why)))
	})
}

// comparePassword runs bcrypt even for unknown accounts so both failures
// take the same time.
func (s *UserService) comparePassword(user *models.User, password string) (bool, error) {
	if user == nil {
		s.dummyOnce.Do(func() {
			s.dummyHash, _ = auth.HashPassword("dummy-password-for-timing", s.bcryptCost)
		})
		_, _ = auth.ComparePassword(s.dummyHash, password)
		return false, nil
	}
	return auth.ComparePassword(user.PasswordHash, password)
}

// Login checks the password and the verified flag and issues a credential.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", &ValidationError{Reason: msgCredentialsNeeded}
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, "", err
	}

	ok, err := s.comparePassword(user, password)
	if err != nil {
		return nil, "", fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		s.logger.Info(ctx, "login failed", "email", email)
		return nil, "", &AuthError{Reason: msgBadCredentials}
	}

	if !user.IsVerified {
		s.logger.Info(ctx, "login blocked, email not verified", "user_id", user.ID)
		return nil, "", &AuthError{Reason: msgUnverified}
	}

	token, err := auth.GenerateToken(auth.Identity{UserID: user.ID, Email: user.Email, Plan: string(user.Plan)},
		s.secretKey, s.credentialTTL)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info(ctx, "login succeeded", "user_id", user.ID)
	return user, token, nil
}

func (s *UserService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var user *models.User
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		user, err = r.Users().GetByEmail(ctx, email)
		return err
	})
	return user, err
}

// VerifyEmail consumes a verification token. The welcome e-mail is best
// effort and never undoes the verification.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, &ValidationError{Reason: msgBadToken}
	}

	var user *models.User
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		user, err = r.Users().GetByVerificationToken(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return &ValidationError{Reason: msgBadToken}
			}
			return err
		}
		if user.IsVerified {
			return &ConflictError{Reason: msgAlreadyVerified}
		}

		user.IsVerified = true
		user.VerificationToken = ""
		if err := r.Users().Update(ctx, user); err != nil {
			return err
		}
		return r.ActionLogs().Append(ctx, newLog(s.now(), user.ID, common.ActionUserVerified,
			fmt.Sprintf("E-mail %s verificado", user.Email)))
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.SendWelcome(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn(ctx, "welcome email failed", "user_id", user.ID, "error", err)
	}

	s.logger.Info(ctx, "email verified", "user_id", user.ID)
	return user, nil
}

// ResendVerification issues a fresh token and sends it again, at most once
// per cooldown per address.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return &ValidationError{Reason: msgEmailRequired}
	}

	if d := s.limiter.Allow(ctx, email); !d.Allowed {
		return &RateLimitError{Remaining: d.Remaining}
	}

	token, err := auth.NewVerificationToken()
	if err != nil {
		return fmt.Errorf("verification token: %w", err)
	}

	var user *models.User
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		user, err = r.Users().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return &NotFoundError{Reason: msgUserNotFound}
			}
			return err
		}
		if user.IsVerified {
			return &ConflictError{Reason: msgAccountVerified}
		}

		user.VerificationToken = token
		if err := r.Users().Update(ctx, user); err != nil {
			return err
		}
		return r.ActionLogs().Append(ctx, newLog(s.now(), user.ID, common.ActionVerificationResent,
			fmt.Sprintf("E-mail de verificação reenviado para %s", user.Email)))
	})
	if err != nil {
		return err
	}

	if err := s.notifier.SendVerification(ctx, user.Email, user.Name, token); err != nil {
		s.logger.Error(ctx, "verification resend failed", "user_id", user.ID, "error", err)
		return &DeliveryError{Reason: msgResendMail, Err: err}
	}
	return nil
}

// Authenticate resolves a credential to the current user record. The plan
// embedded in the credential is ignored in favor of the stored one.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, &AuthError{Reason: msgNotAuthenticated}
	}

	id, err := auth.ParseToken(token, s.secretKey)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, &AuthError{Reason: msgSessionExpired}
		}
		s.logger.Debug(ctx, "invalid credential", "error", err)
		return nil, &AuthError{Reason: msgNotAuthenticated}
	}

	user, err := s.GetUser(ctx, id.UserID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, &AuthError{Reason: msgUserNotFound}
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		user, err = r.Users().GetByID(ctx, userID)
		if errors.Is(err, common.ErrorNotFound) {
			return &NotFoundError{Reason: msgUserNotFound}
		}
		return err
	})
	return user, err
}

// ResetMonthlyCounters zeroes the counter of every user whose last reset is
// older than CounterResetPeriod and returns how many were reset.
func (s *UserService) ResetMonthlyCounters(ctx context.Context) (int, error) {
	now := s.now()
	n := 0

	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		n = 0
		all, err := r.Users().List(ctx)
		if err != nil {
			return err
		}
		for _, u := range all {
			if now.Sub(u.LastMonthReset) <= CounterResetPeriod {
				continue
			}
			prev := u.ReimbursementsThisMonth
			u.ReimbursementsThisMonth = 0
			u.LastMonthReset = now
			if err := r.Users().Update(ctx, u); err != nil {
				return err
			}
			if err := r.ActionLogs().Append(ctx, newLog(now, u.ID, common.ActionMonthlyCounterReset,
				fmt.Sprintf("Contador mensal zerado (era %d)", prev))); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "monthly counters reset", "users", n)
	return n, nil
}

// SetPlan changes a user's tier.
func (s *UserService) SetPlan(ctx context.Context, email string, plan models.Plan) (*models.User, error) {
	if !plan.Valid() {
		return nil, &ValidationError{Reason: msgInvalidPlan}
	}

	return s.updateByEmail(ctx, email, func(u *models.User) (string, string, error) {
		prev := u.Plan
		u.Plan = plan
		return common.ActionPlanChanged, fmt.Sprintf("Plano alterado de %s para %s", prev, plan), nil
	})
}

// SetPassword replaces a user's password after the usual strength checks.
func (s *UserService) SetPassword(ctx context.Context, email, password string) (*models.User, error) {
	if reason := auth.CheckPasswordStrength(password); reason != "" {
		return nil, &ValidationError{Reason: reason}
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.updateByEmail(ctx, email, func(u *models.User) (string, string, error) {
		u.PasswordHash = hash
		return common.ActionPasswordChanged, "Senha alterada", nil
	})
}

func (s *UserService) updateByEmail(ctx context.Context, email string,
	mutate func(u *models.User) (action, details string, err error)) (*models.User, error) {
	email = auth.NormalizeEmail(email)

	var user *models.User
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		user, err = r.Users().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return &NotFoundError{Reason: msgUserNotFound}
			}
			return err
		}

		action, details, err := mutate(user)
		if err != nil {
			return err
		}
		if err := r.Users().Update(ctx, user); err != nil {
			return err
		}
		return r.ActionLogs().Append(ctx, newLog(s.now(), user.ID, action, details))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logs returns the caller's own audit trail.
func (s *UserService) Logs(ctx context.Context, userID string) ([]*models.ActionLog, error) {
	var logs []*models.ActionLog
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		logs, err = r.ActionLogs().ListByUser(ctx, userID)
		return err
	})
	return logs, err
}
