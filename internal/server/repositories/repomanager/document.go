package repomanager

import (
	"context"

	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/actionlogs"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/document"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/reimbursements"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/users"
)

// DocumentRepositoryManager keeps all records in one JSON file.
type DocumentRepositoryManager struct {
	store *document.Store
}

func NewDocumentRepositoryManager(path string) *DocumentRepositoryManager {
	return &DocumentRepositoryManager{store: document.NewStore(path)}
}

// RunMigrations is a no-op: the document has no schema.
func (m *DocumentRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *DocumentRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return m.store.Update(ctx, func(ctx context.Context, d *document.Document) error {
		return fn(ctx, repos{
			users:          users.NewDocumentRepository(d),
			reimbursements: reimbursements.NewDocumentRepository(d),
			actionLogs:     actionlogs.NewDocumentRepository(d),
		})
	})
}

func (m *DocumentRepositoryManager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

func (m *DocumentRepositoryManager) Close() error {
	return nil
}
