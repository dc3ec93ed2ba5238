package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/logging"
	"github.com/dmitrijs2005/reembolsai/internal/server/archive"
	"github.com/dmitrijs2005/reembolsai/internal/server/auth"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
	"github.com/dmitrijs2005/reembolsai/internal/server/pdf"
	"github.com/dmitrijs2005/reembolsai/internal/server/plans"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/repomanager"
)

// DocumentRenderer turns a record into a printable document.
type DocumentRenderer interface {
	Render(r *models.Reimbursement, u *models.User) ([]byte, error)
}

type ReimbursementService struct {
	repomanager repomanager.RepositoryManager
	renderer    DocumentRenderer
	archiver    archive.Archiver
	logger      logging.Logger
	now         func() time.Time
}

func NewReimbursementService(m repomanager.RepositoryManager, renderer DocumentRenderer,
	archiver archive.Archiver, logger logging.Logger) *ReimbursementService {
	if archiver == nil {
		archiver = archive.Noop{}
	}
	return &ReimbursementService{
		repomanager: m,
		renderer:    renderer,
		archiver:    archiver,
		logger:      logger.With("module", "reimbursements"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	Tipo           string  `json:"tipo"`
	Profissional   string  `json:"profissional"`
	Valor          float64 `json:"valor"`
	ValorReembolso float64 `json:"valorReembolso"`
	Data           string  `json:"data"`
	Operadora      string  `json:"operadora"`
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Tipo) == "" || strings.TrimSpace(in.Profissional) == "" ||
		strings.TrimSpace(in.Data) == "" || strings.TrimSpace(in.Operadora) == "" ||
		in.Valor == 0 || in.ValorReembolso == 0 {
		return &ValidationError{Reason: msgRequiredFields}
	}
	if !positive(in.Valor) || !positive(in.ValorReembolso) {
		return &ValidationError{Reason: msgPositiveValues}
	}
	if in.ValorReembolso > in.Valor {
		return &ValidationError{Reason: msgRefundExceedsTotal}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func planError(d plans.Decision) error {
	return &PlanError{Reason: d.Reason, CurrentPlan: d.CurrentPlan, RequiredPlan: d.RequiredPlan}
}

func loadUser(ctx context.Context, r repomanager.Repositories, userID string) (*models.User, error) {
	u, err := r.Users().GetByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, &NotFoundError{Reason: msgUserNotFound}
	}
	return u, err
}

// loadOwned fetches a record and checks it belongs to userID. A foreign
// record is reported as forbidden, a missing one as not found.
func loadOwned(ctx context.Context, r repomanager.Repositories, userID, id string) (*models.Reimbursement, error) {
	rec, err := r.Reimbursements().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, &NotFoundError{Reason: msgReimbursementNotFound}
		}
		return nil, err
	}
	if rec.UserID != userID {
		return nil, &ForbiddenError{Reason: msgAccessDenied}
	}
	return rec, nil
}

// Create stores a new pending record owned by userID and bumps the user's
// monthly counter in the same unit of work.
func (s *ReimbursementService) Create(ctx context.Context, userID string, in CreateInput) (*models.Reimbursement, error) {
	var created *models.Reimbursement

	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		user, err := loadUser(ctx, r, userID)
		if err != nil {
			return err
		}
		if d := plans.CanCreateReimbursement(user); !d.Allowed {
			return planError(d)
		}
		if err := in.validate(); err != nil {
			return err
		}

		now := s.now()
		protocolo, err := newProtocol(now)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}

		created, err = r.Reimbursements().Create(ctx, &models.Reimbursement{
			ID:             newID(prefixReimbursement),
			UserID:         user.ID,
			Tipo:           strings.TrimSpace(in.Tipo),
			Profissional:   strings.TrimSpace(in.Profissional),
			Valor:          in.Valor,
			ValorReembolso: in.ValorReembolso,
			Data:           strings.TrimSpace(in.Data),
			Status:         models.StatusPending,
			Operadora:      strings.TrimSpace(in.Operadora),
			Protocolo:      protocolo,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}

		user.ReimbursementsThisMonth++
		if err := r.Users().Update(ctx, user); err != nil {
			return err
		}
		return r.ActionLogs().Append(ctx, newLog(now, user.ID, common.ActionReimbursementCreated,
			fmt.Sprintf("Reembolso %s criado", created.Protocolo)))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "reimbursement created", "user_id", userID, "protocolo", created.Protocolo)
	return created, nil
}

// Summary is the user block returned with a listing.
type Summary struct {
	ID                      string      `json:"id"`
	Name                    string      `json:"name"`
	Email                   string      `json:"email"`
	Plan                    models.Plan `json:"plan"`
	ReimbursementsThisMonth int         `json:"reimbursementsThisMonth"`
}

type Listing struct {
	Reimbursements []*models.Reimbursement `json:"reimbursements"`
	User           Summary                 `json:"user"`
	PlanInfo       plans.Info              `json:"planInfo"`
}

// List returns the caller's records, newest first, with their plan usage.
func (s *ReimbursementService) List(ctx context.Context, userID string) (*Listing, error) {
	var out Listing
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		user, err := loadUser(ctx, r, userID)
		if err != nil {
			return err
		}
		items, err := r.Reimbursements().ListByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if items == nil {
			items = []*models.Reimbursement{}
		}

		out = Listing{
			Reimbursements: items,
			User: Summary{
				ID:                      user.ID,
				Name:                    user.Name,
				Email:                   user.Email,
				Plan:                    user.Plan,
				ReimbursementsThisMonth: user.ReimbursementsThisMonth,
			},
			PlanInfo: plans.UserInfo(user),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ReimbursementService) Get(ctx context.Context, userID, id string) (*models.Reimbursement, error) {
	var rec *models.Reimbursement
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		rec, err = loadOwned(ctx, r, userID, id)
		return err
	})
	return rec, err
}

// Document is a rendered PDF ready to be served.
type Document struct {
	Name       string
	Data       []byte
	ArchiveURL string
}

// GeneratePDF renders a record the caller owns. A copy is archived when an
// archiver is configured; archiving failures are logged and ignored.
func (s *ReimbursementService) GeneratePDF(ctx context.Context, userID, id string) (*Document, error) {
	var (
		user *models.User
		rec  *models.Reimbursement
	)
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		user, err = loadUser(ctx, r, userID)
		if err != nil {
			return err
		}
		if d := plans.CanGeneratePDF(user); !d.Allowed {
			return planError(d)
		}
		rec, err = loadOwned(ctx, r, user.ID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	data, err := s.renderer.Render(rec, user)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	doc := &Document{Name: pdf.FileName(rec), Data: data}
	url, err := s.archiver.Store(ctx, archive.Key(rec), data, pdf.ContentType)
	if err != nil {
		s.logger.Warn(ctx, "pdf archive failed", "protocolo", rec.Protocolo, "error", err)
	} else {
		doc.ArchiveURL = url
	}

	s.logger.Info(ctx, "pdf generated", "user_id", userID, "protocolo", rec.Protocolo)
	return doc, nil
}

// SendToOperator marks a record as sent. It succeeds once per record.
func (s *ReimbursementService) SendToOperator(ctx context.Context, userID, id string) (*models.Reimbursement, string, error) {
	var rec *models.Reimbursement

	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		user, err := loadUser(ctx, r, userID)
		if err != nil {
			return err
		}
		if d := plans.CanSendToOperator(user); !d.Allowed {
			return planError(d)
		}
		rec, err = loadOwned(ctx, r, user.ID, id)
		if err != nil {
			return err
		}
		if rec.Status == models.StatusSent {
			return &ConflictError{Reason: msgAlreadySent}
		}
		return s.setStatus(ctx, r, rec, models.StatusSent)
	})
	if err != nil {
		return nil, "", err
	}

	s.logger.Info(ctx, "reimbursement sent to operator", "user_id", userID,
		"protocolo", rec.Protocolo, "operadora", rec.Operadora, "valor_reembolso", rec.ValorReembolso)
	return rec, fmt.Sprintf("Reembolso enviado com sucesso para %s", rec.Operadora), nil
}

func (s *ReimbursementService) setStatus(ctx context.Context, r repomanager.Repositories,
	rec *models.Reimbursement, next models.Status) error {
	now := s.now()
	prev := rec.Status

	rec.Status = next
	if next == models.StatusSent {
		rec.SentToOperatorAt = &now
	}
	if err := r.Reimbursements().Update(ctx, rec); err != nil {
		return err
	}
	return r.ActionLogs().Append(ctx, newLog(now, rec.UserID, common.ActionStatusChanged,
		fmt.Sprintf("Reembolso %s: status alterado de %s para %s", rec.Protocolo, prev, next)))
}

// Transition moves a record along the status machine on behalf of an
// operator. It bypasses ownership and plan checks.
func (s *ReimbursementService) Transition(ctx context.Context, id string, next models.Status) (*models.Reimbursement, error) {
	if !next.Valid() {
		return nil, &ValidationError{Reason: msgInvalidStatus}
	}

	var rec *models.Reimbursement
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		rec, err = r.Reimbursements().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return &NotFoundError{Reason: msgReimbursementNotFound}
			}
			return err
		}
		if !rec.Status.CanTransition(next) {
			return &ValidationError{Reason: fmt.Sprintf("%s: %s -> %s", msgInvalidStatus, rec.Status, next)}
		}
		return s.setStatus(ctx, r, rec, next)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Stats summarizes the caller's records.
func (s *ReimbursementService) Stats(ctx context.Context, userID string) (*models.Stats, error) {
	var items []*models.Reimbursement
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		items, err = r.Reimbursements().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	st := &models.Stats{ByStatus: make(map[models.Status]int)}
	for _, rec := range items {
		st.TotalReimbursements++
		st.TotalValue += rec.Valor
		st.TotalReimbursed += rec.ValorReembolso
		st.ByStatus[rec.Status]++
	}
	return st, nil
}

// StatsByEmail is Stats for an operator who knows only the e-mail.
func (s *ReimbursementService) StatsByEmail(ctx context.Context, email string) (*models.User, *models.Stats, error) {
	var user *models.User
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var err error
		user, err = r.Users().GetByEmail(ctx, auth.NormalizeEmail(email))
		if errors.Is(err, common.ErrorNotFound) {
			return &NotFoundError{Reason: msgUserNotFound}
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	st, err := s.Stats(ctx, user.ID)
	return user, st, err
}
