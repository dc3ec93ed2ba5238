package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/server/auth"
	"github.com/dmitrijs2005/reembolsai/internal/server/mailer"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/repomanager"
)

func TestUserService_Register_Success(t *testing.T) {
	e := newEnv(t)

	u, err := e.users.Register(context.Background(), RegisterInput{
		Email: "  A@X.com ", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana",
	})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, models.PlanFree, u.Plan)
	assert.False(t, u.IsVerified)
	assert.False(t, u.IsAdmin)
	assert.Len(t, u.VerificationToken, auth.VerificationTokenBytes*2)
	assert.Regexp(t, `^user_[0-9a-f-]{36}$`, u.ID)
	assert.NotEqual(t, testPassword, u.PasswordHash)

	assert.Equal(t, 1, e.notifier.count("verification"))
	assert.Equal(t, u.VerificationToken, e.notifier.last().token)
	assert.Equal(t, []string{common.ActionUserCreated}, e.actions(t, u.ID))
}

func TestUserService_Register_AdminFromConfig(t *testing.T) {
	e := newEnv(t)

	u, err := e.users.Register(context.Background(), RegisterInput{
		Email: "Admin@X.com", Password: testPassword, ConfirmPassword: testPassword, Name: "Root",
	})
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
}

func TestUserService_Register_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   RegisterInput
		want string
	}{
		{"missing name", RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword}, msgRequiredFields},
		{"missing email", RegisterInput{Password: testPassword, ConfirmPassword: testPassword, Name: "Ana"}, msgRequiredFields},
		{"bad email", RegisterInput{Email: "a@x", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana"}, msgInvalidEmail},
		{"mismatch", RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: "Passw0rd!", Name: "Ana"}, msgPasswordMismatch},
		{"missing confirmation", RegisterInput{Email: "a@x.com", Password: testPassword, Name: "Ana"}, msgPasswordMismatch},
		{"weak", RegisterInput{Email: "a@x.com", Password: "password", ConfirmPassword: "password", Name: "Ana"}, auth.CheckPasswordStrength("password")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.users.Register(context.Background(), tt.in)
			verr := requireErrorAs[*ValidationError](t, err)
			assert.Equal(t, tt.want, verr.Reason)
			assert.Zero(t, e.userCount(t))
		})
	}
}

func TestUserService_Register_DuplicateEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := RegisterInput{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana"}

	_, err := e.users.Register(ctx, in)
	require.NoError(t, err)

	in.Email = "A@X.COM"
	_, err = e.users.Register(ctx, in)
	cerr := requireErrorAs[*ConflictError](t, err)
	assert.Equal(t, msgEmailTaken, cerr.Reason)

	assert.Equal(t, 1, e.userCount(t))
	assert.Equal(t, 1, e.notifier.count("verification"))
}

func TestUserService_Register_RollsBackWhenMailFails(t *testing.T) {
	tests := []struct {
		name    string
		sendErr error
		want    string
	}{
		{"smtp failure", errors.New("dial tcp: connection refused"), msgVerificationMail},
		{"not configured", mailer.ErrNotConfigured, msgMailNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.notifier.verificationErr = tt.sendErr

			_, err := e.users.Register(context.Background(), RegisterInput{
				Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana",
			})
			derr := requireErrorAs[*DeliveryError](t, err)
			assert.Equal(t, tt.want, derr.Reason)
			assert.ErrorIs(t, err, tt.sendErr)
			assert.Zero(t, e.userCount(t))

			// the address is free again once mail works
			e.notifier.verificationErr = nil
			_, err = e.users.Register(context.Background(), RegisterInput{
				Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana",
			})
			require.NoError(t, err)
		})
	}
}

func TestUserService_Login(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	registered, err := e.users.Register(ctx, RegisterInput{
		Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana",
	})
	require.NoError(t, err)

	t.Run("unverified is blocked", func(t *testing.T) {
		_, _, err := e.users.Login(ctx, "a@x.com", testPassword)
		aerr := requireErrorAs[*AuthError](t, err)
		assert.Equal(t, msgUnverified, aerr.Reason)
	})

	t.Run("unverified with wrong password gets the generic reason", func(t *testing.T) {
		_, _, err := e.users.Login(ctx, "a@x.com", "Wrong0000")
		aerr := requireErrorAs[*AuthError](t, err)
		assert.Equal(t, msgBadCredentials, aerr.Reason)
	})

	_, err = e.users.VerifyEmail(ctx, registered.VerificationToken)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		u, token, err := e.users.Login(ctx, " A@x.com", testPassword)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, u.ID)

		id, err := auth.ParseToken(token, []byte(testConfig().SecretKey))
		require.NoError(t, err)
		assert.Equal(t, auth.Identity{UserID: u.ID, Email: "a@x.com", Plan: "free"}, id)
	})

	t.Run("unknown and wrong password share a reason", func(t *testing.T) {
		_, _, err1 := e.users.Login(ctx, "nobody@x.com", testPassword)
		_, _, err2 := e.users.Login(ctx, "a@x.com", "Wrong0000")
		a1 := requireErrorAs[*AuthError](t, err1)
		a2 := requireErrorAs[*AuthError](t, err2)
		assert.Equal(t, msgBadCredentials, a1.Reason)
		assert.Equal(t, a1.Reason, a2.Reason)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, _, err := e.users.Login(ctx, "", "")
		requireErrorAs[*ValidationError](t, err)
	})
}

func TestUserService_VerifyEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	registered, err := e.users.Register(ctx, RegisterInput{
		Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana",
	})
	require.NoError(t, err)

	_, err = e.users.VerifyEmail(ctx, "")
	requireErrorAs[*ValidationError](t, err)

	_, err = e.users.VerifyEmail(ctx, "deadbeef")
	verr := requireErrorAs[*ValidationError](t, err)
	assert.Equal(t, msgBadToken, verr.Reason)

	u, err := e.users.VerifyEmail(ctx, registered.VerificationToken)
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
	assert.Empty(t, u.VerificationToken)
	assert.Equal(t, 1, e.notifier.count("welcome"))

	// the token is single use
	_, err = e.users.VerifyEmail(ctx, registered.VerificationToken)
	requireErrorAs[*ValidationError](t, err)

	assert.Equal(t, []string{common.ActionUserCreated, common.ActionUserVerified}, e.actions(t, u.ID))
}

func TestUserService_VerifyEmail_WelcomeFailureKeepsVerification(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.notifier.welcomeErr = errors.New("smtp down")

	registered, err := e.users.Register(ctx, RegisterInput{
		Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana",
	})
	require.NoError(t, err)

	u, err := e.users.VerifyEmail(ctx, registered.VerificationToken)
	require.NoError(t, err)
	assert.True(t, u.IsVerified)

	stored, err := e.users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
}

func TestUserService_ResendVerification(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	registered, err := e.users.Register(ctx, RegisterInput{
		Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana",
	})
	require.NoError(t, err)

	require.NoError(t, e.users.ResendVerification(ctx, "A@X.com"))
	assert.Equal(t, []string{"a@x.com"}, e.limiter.keys)
	assert.Equal(t, 2, e.notifier.count("verification"))

	fresh := e.notifier.last().token
	assert.NotEqual(t, registered.VerificationToken, fresh)

	// the old token no longer verifies
	_, err = e.users.VerifyEmail(ctx, registered.VerificationToken)
	requireErrorAs[*ValidationError](t, err)

	_, err = e.users.VerifyEmail(ctx, fresh)
	require.NoError(t, err)

	err = e.users.ResendVerification(ctx, "a@x.com")
	cerr := requireErrorAs[*ConflictError](t, err)
	assert.Equal(t, msgAccountVerified, cerr.Reason)
}

func TestUserService_ResendVerification_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		e := newEnv(t)
		requireErrorAs[*ValidationError](t, e.users.ResendVerification(ctx, " "))
	})

	t.Run("unknown", func(t *testing.T) {
		e := newEnv(t)
		requireErrorAs[*NotFoundError](t, e.users.ResendVerification(ctx, "nobody@x.com"))
	})

	t.Run("rate limited", func(t *testing.T) {
		e := newEnv(t)
		e.limiter.denied = true
		e.limiter.remaining = 41500 * time.Millisecond

		err := e.users.ResendVerification(ctx, "a@x.com")
		rerr := requireErrorAs[*RateLimitError](t, err)
		assert.Equal(t, 42, rerr.RemainingSeconds())
		assert.Equal(t, "Aguarde 42 segundos antes de reenviar novamente", rerr.Error())
	})

	t.Run("delivery failure", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.users.Register(ctx, RegisterInput{
			Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword, Name: "Ana",
		})
		require.NoError(t, err)

		e.notifier.verificationErr = errors.New("smtp down")
		derr := requireErrorAs[*DeliveryError](t, e.users.ResendVerification(ctx, "a@x.com"))
		assert.Equal(t, msgResendMail, derr.Reason)
		assert.Equal(t, 1, e.userCount(t))
	})
}

func TestUserService_Authenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanFree)

	_, token, err := e.users.Login(ctx, "a@x.com", testPassword)
	require.NoError(t, err)

	t.Run("valid credential reflects stored plan", func(t *testing.T) {
		_, err := e.users.SetPlan(ctx, "a@x.com", models.PlanPremium)
		require.NoError(t, err)

		got, err := e.users.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, models.PlanPremium, got.Plan)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := e.users.Authenticate(ctx, "")
		aerr := requireErrorAs[*AuthError](t, err)
		assert.Equal(t, msgNotAuthenticated, aerr.Reason)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := e.users.Authenticate(ctx, token+"x")
		requireErrorAs[*AuthError](t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := auth.GenerateToken(auth.Identity{UserID: u.ID}, []byte(testConfig().SecretKey), -time.Minute)
		require.NoError(t, err)
		_, err = e.users.Authenticate(ctx, expired)
		aerr := requireErrorAs[*AuthError](t, err)
		assert.Equal(t, msgSessionExpired, aerr.Reason)
	})

	t.Run("deleted user", func(t *testing.T) {
		ghost, err := auth.GenerateToken(auth.Identity{UserID: "user_gone"}, []byte(testConfig().SecretKey), time.Hour)
		require.NoError(t, err)
		_, err = e.users.Authenticate(ctx, ghost)
		aerr := requireErrorAs[*AuthError](t, err)
		assert.Equal(t, msgUserNotFound, aerr.Reason)
	})
}

func TestUserService_ResetMonthlyCounters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	old := e.verifiedUser(t, "old@x.com", models.PlanPro)
	recent := e.verifiedUser(t, "new@x.com", models.PlanPro)

	err := e.manager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		for _, id := range []string{old.ID, recent.ID} {
			u, err := r.Users().GetByID(ctx, id)
			if err != nil {
				return err
			}
			u.ReimbursementsThisMonth = 5
			if id == old.ID {
				u.LastMonthReset = time.Now().UTC().Add(-31 * 24 * time.Hour)
			}
			if err := r.Users().Update(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	n, err := e.users.ResetMonthlyCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := e.users.GetUser(ctx, old.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ReimbursementsThisMonth)
	assert.WithinDuration(t, time.Now(), got.LastMonthReset, time.Minute)
	assert.Contains(t, e.actions(t, old.ID), common.ActionMonthlyCounterReset)

	got, err = e.users.GetUser(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ReimbursementsThisMonth)

	n, err = e.users.ResetMonthlyCounters(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUserService_SetPlan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanFree)

	_, err := e.users.SetPlan(ctx, "a@x.com", models.Plan("gold"))
	requireErrorAs[*ValidationError](t, err)

	_, err = e.users.SetPlan(ctx, "nobody@x.com", models.PlanPro)
	requireErrorAs[*NotFoundError](t, err)

	got, err := e.users.SetPlan(ctx, "A@x.com", models.PlanPro)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, got.Plan)
	assert.Contains(t, e.actions(t, u.ID), common.ActionPlanChanged)
}

func TestUserService_SetPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.verifiedUser(t, "a@x.com", models.PlanFree)

	_, err := e.users.SetPassword(ctx, "a@x.com", "short")
	requireErrorAs[*ValidationError](t, err)

	_, err = e.users.SetPassword(ctx, "a@x.com", "N3wPassword")
	require.NoError(t, err)

	_, _, err = e.users.Login(ctx, "a@x.com", testPassword)
	requireErrorAs[*AuthError](t, err)

	_, _, err = e.users.Login(ctx, "a@x.com", "N3wPassword")
	require.NoError(t, err)
}
