package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/reembolsai/internal/logging"
	"github.com/dmitrijs2005/reembolsai/internal/server/config"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
	"github.com/dmitrijs2005/reembolsai/internal/server/ratelimit"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/repomanager"
)

const testPassword = "Passw0rd"

type sentMail struct {
	kind, to, name, token string
}

type fakeNotifier struct {
	mu              sync.Mutex
	sent            []sentMail
	verificationErr error
	welcomeErr      error
}

func (f *fakeNotifier) SendVerification(_ context.Context, to, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verificationErr != nil {
		return f.verificationErr
	}
	f.sent = append(f.sent, sentMail{kind: "verification", to: to, name: name, token: token})
	return nil
}

func (f *fakeNotifier) SendWelcome(_ context.Context, to, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.welcomeErr != nil {
		return f.welcomeErr
	}
	f.sent = append(f.sent, sentMail{kind: "welcome", to: to, name: name})
	return nil
}

func (f *fakeNotifier) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeNotifier) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.kind == kind {
			n++
		}
	}
	return n
}

type fakeLimiter struct {
	denied    bool
	remaining time.Duration
	keys      []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) ratelimit.Decision {
	f.keys = append(f.keys, key)
	if f.denied {
		return ratelimit.Decision{Remaining: f.remaining}
	}
	return ratelimit.Decision{Allowed: true}
}

func (f *fakeLimiter) Close() error { return nil }

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(r *models.Reimbursement, _ *models.User) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-" + r.Protocolo), nil
}

type fakeArchiver struct {
	err  error
	keys []string
}

func (f *fakeArchiver) Store(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://bucket.example/" + key, nil
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:     "0123456789abcdef0123456789abcdef",
		CredentialTTL: time.Hour,
		BcryptCost:    bcrypt.MinCost,
		AdminEmails:   []string{"admin@x.com"},
	}
}

type env struct {
	manager  *repomanager.DocumentRepositoryManager
	notifier *fakeNotifier
	limiter  *fakeLimiter
	renderer *fakeRenderer
	archiver *fakeArchiver
	users    *UserService
	reimb    *ReimbursementService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		manager:  repomanager.NewDocumentRepositoryManager(filepath.Join(t.TempDir(), "database.json")),
		notifier: &fakeNotifier{},
		limiter:  &fakeLimiter{},
		renderer: &fakeRenderer{},
		archiver: &fakeArchiver{},
	}
	e.users = NewUserService(e.manager, e.notifier, e.limiter, testConfig(), logging.Nop{})
	e.reimb = NewReimbursementService(e.manager, e.renderer, e.archiver, logging.Nop{})
	return e
}

// verifiedUser registers and verifies an account on the given plan.
func (e *env) verifiedUser(t *testing.T, email string, plan models.Plan) *models.User {
	t.Helper()
	ctx := context.Background()

	_, err := e.users.Register(ctx, RegisterInput{
		Email: email, Password: testPassword, ConfirmPassword: testPassword, Name: "Ana",
	})
	require.NoError(t, err)

	u, err := e.users.VerifyEmail(ctx, e.notifier.last().token)
	require.NoError(t, err)

	if plan != models.PlanFree {
		u, err = e.users.SetPlan(ctx, email, plan)
		require.NoError(t, err)
	}
	return u
}

func (e *env) userCount(t *testing.T) int {
	t.Helper()
	var n int
	err := e.manager.WithTx(context.Background(), func(ctx context.Context, r repomanager.Repositories) error {
		all, err := r.Users().List(ctx)
		n = len(all)
		return err
	})
	require.NoError(t, err)
	return n
}

func (e *env) actions(t *testing.T, userID string) []string {
	t.Helper()
	logs, err := e.users.Logs(context.Background(), userID)
	require.NoError(t, err)
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Action)
	}
	return out
}

func requireErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.Error(t, err)
	require.True(t, errors.As(err, &target), "got %T: %v", err, err)
	return target
}
