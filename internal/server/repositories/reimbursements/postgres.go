package reimbursements

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/dbx"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

const columns = `id, user_id, tipo, profissional, valor, valor_reembolso, data, status,
		 operadora, protocolo, created_at, sent_to_operator_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.Reimbursement, error) {
	rb := &models.Reimbursement{}
	var sent sql.NullTime
	err := row.Scan(&rb.ID, &rb.UserID, &rb.Tipo, &rb.Profissional, &rb.Valor, &rb.ValorReembolso,
		&rb.Data, &rb.Status, &rb.Operadora, &rb.Protocolo, &rb.CreatedAt, &sent)
	if err != nil {
		return nil, err
	}
	if sent.Valid {
		t := sent.Time
		rb.SentToOperatorAt = &t
	}
	return rb, nil
}

func sentAt(rb *models.Reimbursement) sql.NullTime {
	if rb.SentToOperatorAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *rb.SentToOperatorAt, Valid: true}
}

func (r *PostgresRepository) Create(ctx context.Context, rb *models.Reimbursement) (*models.Reimbursement, error) {
	query :=
		`INSERT INTO reimbursements (` + columns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 `

	_, err := r.db.ExecContext(ctx, query,
		rb.ID, rb.UserID, rb.Tipo, rb.Profissional, rb.Valor, rb.ValorReembolso, rb.Data, rb.Status,
		rb.Operadora, rb.Protocolo, rb.CreatedAt, sentAt(rb))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rb, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Reimbursement, error) {
	query := `SELECT ` + columns + ` FROM reimbursements
		 WHERE id = $1`

	rb, err := scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rb, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Reimbursement, error) {
	query := `SELECT ` + columns + ` FROM reimbursements
		 WHERE user_id = $1
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.Reimbursement{}
	for rows.Next() {
		rb, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Update writes the mutable fields. user_id is never touched.
func (r *PostgresRepository) Update(ctx context.Context, rb *models.Reimbursement) error {
	query :=
		`UPDATE reimbursements SET tipo = $2, profissional = $3, valor = $4, valor_reembolso = $5,
		 data = $6, status = $7, operadora = $8, sent_to_operator_at = $9
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		rb.ID, rb.Tipo, rb.Profissional, rb.Valor, rb.ValorReembolso, rb.Data, rb.Status, rb.Operadora, sentAt(rb))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
