package postgres

import (
	"context"
	"fmt"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/payment"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	const sql = `
		INSERT INTO payments (id, transaction_id, status, amount, method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	_, err := executorFrom(ctx, r.pool).Exec(ctx, sql,
		p.ID, p.TransactionID, p.Status, p.Amount, p.Method, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	const sql = `
		SELECT id, transaction_id, status, amount, method, created_at, updated_at
		FROM payments
		WHERE transaction_id = $1
	`

	var p payment.Payment
	err := executorFrom(ctx, r.pool).QueryRow(ctx, sql, transactionID).Scan(
		&p.ID, &p.TransactionID, &p.Status, &p.Amount, &p.Method, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by transaction_id: %w", err)
	}
	return &p, nil
}
