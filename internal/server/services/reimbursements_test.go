package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
	"github.com/dmitrijs2005/reembolsai/internal/server/plans"
)

func validInput() CreateInput {
	return CreateInput{
		Tipo:           "Consulta",
		Profissional:   "Dr. Silva",
		Valor:          300,
		ValorReembolso: 210.5,
		Data:           "2026-10-01",
		Operadora:      "Unimed",
	}
}

func TestReimbursementService_Create(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanFree)

	in := validInput()
	in.Tipo = "  Consulta "
	rec, err := e.reimb.Create(ctx, u.ID, in)
	require.NoError(t, err)

	assert.Regexp(t, `^reimb_[0-9a-f-]{36}$`, rec.ID)
	assert.Regexp(t, `^REIMB-\d{13}-[0-9a-f]{6}$`, rec.Protocolo)
	assert.Equal(t, u.ID, rec.UserID)
	assert.Equal(t, "Consulta", rec.Tipo)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Nil(t, rec.SentToOperatorAt)

	stored, err := e.reimb.Get(ctx, u.ID, rec.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(rec, stored); diff != "" {
		t.Errorf("stored record mismatch (-created +stored):\n%s", diff)
	}

	got, err := e.users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReimbursementsThisMonth)
	assert.Contains(t, e.actions(t, u.ID), common.ActionReimbursementCreated)
}

func TestReimbursementService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *CreateInput)
		want   string
	}{
		{"missing tipo", func(in *CreateInput) { in.Tipo = " " }, msgRequiredFields},
		{"missing operadora", func(in *CreateInput) { in.Operadora = "" }, msgRequiredFields},
		{"missing data", func(in *CreateInput) { in.Data = "" }, msgRequiredFields},
		{"zero valor", func(in *CreateInput) { in.Valor = 0 }, msgRequiredFields},
		{"negative valor", func(in *CreateInput) { in.Valor = -10 }, msgPositiveValues},
		{"negative reembolso", func(in *CreateInput) { in.ValorReembolso = -1 }, msgPositiveValues},
		{"infinite valor", func(in *CreateInput) { in.Valor = math.Inf(1) }, msgPositiveValues},
		{"reembolso above valor", func(in *CreateInput) { in.ValorReembolso = 300.01 }, msgRefundExceedsTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			u := e.verifiedUser(t, "a@x.com", models.PlanFree)

			in := validInput()
			tt.mutate(&in)
			_, err := e.reimb.Create(context.Background(), u.ID, in)
			verr := requireErrorAs[*ValidationError](t, err)
			assert.Equal(t, tt.want, verr.Reason)

			got, err := e.users.GetUser(context.Background(), u.ID)
			require.NoError(t, err)
			assert.Zero(t, got.ReimbursementsThisMonth)
		})
	}
}

func TestReimbursementService_Create_EqualAmountsAllowed(t *testing.T) {
	e := newEnv(t)
	u := e.verifiedUser(t, "a@x.com", models.PlanFree)

	in := validInput()
	in.ValorReembolso = in.Valor
	_, err := e.reimb.Create(context.Background(), u.ID, in)
	require.NoError(t, err)
}

func TestReimbursementService_Create_PlanCaps(t *testing.T) {
	tests := []struct {
		plan     models.Plan
		allowed  int
		required models.Plan
	}{
		{models.PlanFree, 1, models.PlanPro},
		{models.PlanPro, plans.For(models.PlanPro).MaxReimbursementsPerMonth, models.PlanPremium},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			u := e.verifiedUser(t, "a@x.com", tt.plan)

			for i := 0; i < tt.allowed; i++ {
				_, err := e.reimb.Create(ctx, u.ID, validInput())
				require.NoError(t, err, "creation %d", i+1)
			}

			_, err := e.reimb.Create(ctx, u.ID, validInput())
			perr := requireErrorAs[*PlanError](t, err)
			assert.Equal(t, tt.plan, perr.CurrentPlan)
			assert.Equal(t, tt.required, perr.RequiredPlan)
			assert.Contains(t, perr.Reason, plans.For(tt.required).Name)

			listing, err := e.reimb.List(ctx, u.ID)
			require.NoError(t, err)
			assert.Len(t, listing.Reimbursements, tt.allowed)
		})
	}
}

func TestReimbursementService_Create_PremiumUnbounded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanPremium)

	for i := 0; i < plans.For(models.PlanPro).MaxReimbursementsPerMonth+5; i++ {
		_, err := e.reimb.Create(ctx, u.ID, validInput())
		require.NoError(t, err)
	}
}

func TestReimbursementService_Create_PlanCheckedBeforeFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanFree)

	_, err := e.reimb.Create(ctx, u.ID, validInput())
	require.NoError(t, err)

	_, err = e.reimb.Create(ctx, u.ID, CreateInput{})
	requireErrorAs[*PlanError](t, err)
}

func TestReimbursementService_Create_ConcurrentCapHolds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanPro)
	limit := plans.For(models.PlanPro).MaxReimbursementsPerMonth

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < limit*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.reimb.Create(ctx, u.ID, validInput()); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, ok)
	got, err := e.users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, got.ReimbursementsThisMonth)
}

func TestReimbursementService_List(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ana := e.verifiedUser(t, "ana@x.com", models.PlanPro)
	bob := e.verifiedUser(t, "bob@x.com", models.PlanPro)

	first, err := e.reimb.Create(ctx, ana.ID, validInput())
	require.NoError(t, err)
	second, err := e.reimb.Create(ctx, ana.ID, validInput())
	require.NoError(t, err)
	_, err = e.reimb.Create(ctx, bob.ID, validInput())
	require.NoError(t, err)

	listing, err := e.reimb.List(ctx, ana.ID)
	require.NoError(t, err)

	ids := make([]string, 0, len(listing.Reimbursements))
	for _, r := range listing.Reimbursements {
		assert.Equal(t, ana.ID, r.UserID)
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	assert.Equal(t, Summary{
		ID: ana.ID, Name: "Ana", Email: "ana@x.com", Plan: models.PlanPro, ReimbursementsThisMonth: 2,
	}, listing.User)
	assert.Equal(t, 2, listing.PlanInfo.CurrentUsage)
	assert.True(t, listing.PlanInfo.CanGeneratePDF)

	empty := e.verifiedUser(t, "carl@x.com", models.PlanFree)
	listing, err = e.reimb.List(ctx, empty.ID)
	require.NoError(t, err)
	assert.NotNil(t, listing.Reimbursements)
	assert.Empty(t, listing.Reimbursements)
}

func TestReimbursementService_Ownership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.verifiedUser(t, "ana@x.com", models.PlanPremium)
	other := e.verifiedUser(t, "bob@x.com", models.PlanPremium)

	rec, err := e.reimb.Create(ctx, owner.ID, validInput())
	require.NoError(t, err)

	_, err = e.reimb.Get(ctx, other.ID, rec.ID)
	ferr := requireErrorAs[*ForbiddenError](t, err)
	assert.Equal(t, msgAccessDenied, ferr.Reason)

	_, err = e.reimb.GeneratePDF(ctx, other.ID, rec.ID)
	requireErrorAs[*ForbiddenError](t, err)

	_, _, err = e.reimb.SendToOperator(ctx, other.ID, rec.ID)
	requireErrorAs[*ForbiddenError](t, err)

	_, err = e.reimb.Get(ctx, other.ID, "reimb_missing")
	nerr := requireErrorAs[*NotFoundError](t, err)
	assert.Equal(t, msgReimbursementNotFound, nerr.Reason)

	got, err := e.reimb.Get(ctx, owner.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Zero(t, e.renderer.calls)
}

func TestReimbursementService_GeneratePDF(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanPro)

	rec, err := e.reimb.Create(ctx, u.ID, validInput())
	require.NoError(t, err)

	doc, err := e.reimb.GeneratePDF(ctx, u.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "reembolso-"+rec.Protocolo+".pdf", doc.Name)
	assert.Equal(t, []byte("%PDF-"+rec.Protocolo), doc.Data)
	assert.Equal(t, "https://bucket.example/reimbursements/"+u.ID+"/"+rec.Protocolo+".pdf", doc.ArchiveURL)

	t.Run("archive failure is not fatal", func(t *testing.T) {
		e.archiver.err = errors.New("bucket gone")
		defer func() { e.archiver.err = nil }()

		doc, err := e.reimb.GeneratePDF(ctx, u.ID, rec.ID)
		require.NoError(t, err)
		assert.Empty(t, doc.ArchiveURL)
		assert.NotEmpty(t, doc.Data)
	})

	t.Run("render failure", func(t *testing.T) {
		e.renderer.err = errors.New("font missing")
		defer func() { e.renderer.err = nil }()

		_, err := e.reimb.GeneratePDF(ctx, u.ID, rec.ID)
		require.Error(t, err)
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := e.reimb.GeneratePDF(ctx, u.ID, "reimb_missing")
		requireErrorAs[*NotFoundError](t, err)
	})
}

func TestReimbursementService_GeneratePDF_FreePlanDenied(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanFree)

	rec, err := e.reimb.Create(ctx, u.ID, validInput())
	require.NoError(t, err)

	_, err = e.reimb.GeneratePDF(ctx, u.ID, rec.ID)
	perr := requireErrorAs[*PlanError](t, err)
	assert.Equal(t, models.PlanFree, perr.CurrentPlan)
	assert.Equal(t, models.PlanPro, perr.RequiredPlan)
	assert.Zero(t, e.renderer.calls)
}

func TestReimbursementService_SendToOperator(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanPro)

	rec, err := e.reimb.Create(ctx, u.ID, validInput())
	require.NoError(t, err)

	sent, msg, err := e.reimb.SendToOperator(ctx, u.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reembolso enviado com sucesso para Unimed", msg)
	assert.Equal(t, models.StatusSent, sent.Status)
	require.NotNil(t, sent.SentToOperatorAt)

	_, _, err = e.reimb.SendToOperator(ctx, u.ID, rec.ID)
	cerr := requireErrorAs[*ConflictError](t, err)
	assert.Equal(t, msgAlreadySent, cerr.Reason)

	got, err := e.reimb.Get(ctx, u.ID, rec.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(sent, got, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("record changed after second send (-want +got):\n%s", diff)
	}

	_, err = e.reimb.Transition(ctx, rec.ID, models.StatusPending)
	requireErrorAs[*ValidationError](t, err)

	logs := e.actions(t, u.ID)
	assert.Equal(t, common.ActionStatusChanged, logs[len(logs)-1])
}

func TestReimbursementService_SendToOperator_FreePlanDenied(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanFree)

	rec, err := e.reimb.Create(ctx, u.ID, validInput())
	require.NoError(t, err)

	_, _, err = e.reimb.SendToOperator(ctx, u.ID, rec.ID)
	perr := requireErrorAs[*PlanError](t, err)
	assert.Equal(t, models.PlanPro, perr.RequiredPlan)

	got, err := e.reimb.Get(ctx, u.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestReimbursementService_Transition(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanPro)

	rec, err := e.reimb.Create(ctx, u.ID, validInput())
	require.NoError(t, err)

	_, err = e.reimb.Transition(ctx, rec.ID, models.Status("arquivado"))
	requireErrorAs[*ValidationError](t, err)

	_, err = e.reimb.Transition(ctx, "reimb_missing", models.StatusInReview)
	requireErrorAs[*NotFoundError](t, err)

	_, err = e.reimb.Transition(ctx, rec.ID, models.StatusApproved)
	requireErrorAs[*ValidationError](t, err)

	for _, next := range []models.Status{models.StatusInReview, models.StatusApproved, models.StatusSent} {
		got, err := e.reimb.Transition(ctx, rec.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, got.Status)
	}

	got, err := e.reimb.Get(ctx, u.ID, rec.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.SentToOperatorAt)

	_, _, err = e.reimb.SendToOperator(ctx, u.ID, rec.ID)
	requireErrorAs[*ConflictError](t, err)
}

func TestReimbursementService_Stats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.verifiedUser(t, "a@x.com", models.PlanPremium)

	a, err := e.reimb.Create(ctx, u.ID, validInput())
	require.NoError(t, err)
	in := validInput()
	in.Valor, in.ValorReembolso = 100, 50
	_, err = e.reimb.Create(ctx, u.ID, in)
	require.NoError(t, err)
	_, _, err = e.reimb.SendToOperator(ctx, u.ID, a.ID)
	require.NoError(t, err)

	st, err := e.reimb.Stats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalReimbursements)
	assert.InDelta(t, 400.0, st.TotalValue, 0.001)
	assert.InDelta(t, 260.5, st.TotalReimbursed, 0.001)
	assert.Equal(t, map[models.Status]int{models.StatusPending: 1, models.StatusSent: 1}, st.ByStatus)

	owner, byEmail, err := e.reimb.StatsByEmail(ctx, "A@X.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner.ID)
	assert.Equal(t, st, byEmail)

	_, _, err = e.reimb.StatsByEmail(ctx, "nobody@x.com")
	requireErrorAs[*NotFoundError](t, err)
}

func TestReimbursementService_UnknownUser(t *testing.T) {
	e := newEnv(t)

	_, err := e.reimb.Create(context.Background(), "user_missing", validInput())
	requireErrorAs[*NotFoundError](t, err)
}
