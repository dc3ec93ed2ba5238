// Package repomanager selects a record-store backend and runs units of work
// against it. Both backends give the same guarantee: everything done inside
// one WithTx call is stored together or not at all.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/actionlogs"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/reimbursements"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/users"
)

// Repositories is the set of repositories bound to one unit of work.
type Repositories interface {
	Users() users.Repository
	Reimbursements() reimbursements.Repository
	ActionLogs() actionlogs.Repository
}

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// WithTx runs fn in a unit of work. A non-nil error from fn discards
	// every change fn made.
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}

type repos struct {
	users          users.Repository
	reimbursements reimbursements.Repository
	actionLogs     actionlogs.Repository
}

func (r repos) Users() users.Repository                   { return r.users }
func (r repos) Reimbursements() reimbursements.Repository { return r.reimbursements }
func (r repos) ActionLogs() actionlogs.Repository         { return r.actionLogs }
