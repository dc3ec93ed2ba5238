package actionlogs

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/reembolsai/internal/dbx"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, entry *models.ActionLog) error {
	query :=
		`INSERT INTO action_logs (id, user_id, action, details, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query, entry.ID, entry.UserID, entry.Action, entry.Details, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.ActionLog, error) {
	query :=
		`SELECT id, user_id, action, details, created_at FROM action_logs
		 WHERE user_id = $1
		 ORDER BY created_at, id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.ActionLog{}
	for rows.Next() {
		l := &models.ActionLog{}
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Details, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
