package actionlogs

import (
	"context"

	"github.com/dmitrijs2005/reembolsai/internal/server/models"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/document"
)

type DocumentRepository struct {
	doc *document.Document
}

func NewDocumentRepository(doc *document.Document) *DocumentRepository {
	return &DocumentRepository{doc: doc}
}

func (r *DocumentRepository) Append(ctx context.Context, entry *models.ActionLog) error {
	c := *entry
	r.doc.Logs = append(r.doc.Logs, &c)
	r.doc.Touch()
	return nil
}

func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]*models.ActionLog, error) {
	out := []*models.ActionLog{}
	for _, l := range r.doc.Logs {
		if l.UserID == userID {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}
