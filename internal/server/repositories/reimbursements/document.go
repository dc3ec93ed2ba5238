package reimbursements

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/document"
)

type DocumentRepository struct {
	doc *document.Document
}

func NewDocumentRepository(doc *document.Document) *DocumentRepository {
	return &DocumentRepository{doc: doc}
}

func (r *DocumentRepository) index(id string) int {
	for i, rb := range r.doc.Reimbursements {
		if rb.ID == id {
			return i
		}
	}
	return -1
}

func (r *DocumentRepository) Create(ctx context.Context, rb *models.Reimbursement) (*models.Reimbursement, error) {
	if r.index(rb.ID) >= 0 {
		return nil, common.ErrorAlreadyExists
	}
	r.doc.Reimbursements = append(r.doc.Reimbursements, rb.Clone())
	r.doc.Touch()
	return rb, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Reimbursement, error) {
	i := r.index(id)
	if i < 0 {
		return nil, common.ErrorNotFound
	}
	return r.doc.Reimbursements[i].Clone(), nil
}

func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]*models.Reimbursement, error) {
	out := []*models.Reimbursement{}
	for _, rb := range r.doc.Reimbursements {
		if rb.UserID == userID {
			out = append(out, rb.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update replaces the record. The owner is kept from the stored copy.
func (r *DocumentRepository) Update(ctx context.Context, rb *models.Reimbursement) error {
	i := r.index(rb.ID)
	if i < 0 {
		return common.ErrorNotFound
	}
	c := rb.Clone()
	c.UserID = r.doc.Reimbursements[i].UserID
	r.doc.Reimbursements[i] = c
	r.doc.Touch()
	return nil
}
