package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/transaction"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	const sql = `
		INSERT INTO transactions (id, lines, total_amount, payment_method, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	lines, err := json.Marshal(t.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}

	_, err = executorFrom(ctx, r.pool).Exec(ctx, sql,
		t.ID, lines, t.TotalAmount, t.PaymentMethod, string(t.Status),
		nullIfEmpty(t.FailureReason), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	const sql = `
		SELECT id, lines, total_amount, payment_method, status,
			COALESCE(failure_reason, ''), created_at, updated_at
		FROM transactions
		WHERE id = $1
	`

	var t transaction.Transaction
	var lines []byte
	err := executorFrom(ctx, r.pool).QueryRow(ctx, sql, id).Scan(
		&t.ID, &lines, &t.TotalAmount, &t.PaymentMethod, &t.Status,
		&t.FailureReason, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}

	if err := json.Unmarshal(lines, &t.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal lines: %w", err)
	}

	return &t, nil
}

// UpdateStatusIf applies the transition only if the row still holds the
// expected status. The status guard is the saga's write lock: a racing
// consumer or sweeper loses the update and treats its event as stale.
func (r *TransactionRepository) UpdateStatusIf(ctx context.Context, id string, from, to transaction.Status, reason string) (bool, error) {
	const sql = `
		UPDATE transactions
		SET status = $3, failure_reason = COALESCE($4, failure_reason), updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := executorFrom(ctx, r.pool).Exec(ctx, sql, id, string(from), string(to), nullIfEmpty(reason))
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *TransactionRepository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]*transaction.Transaction, error) {
	const sql = `
		SELECT id, lines, total_amount, payment_method, status,
			COALESCE(failure_reason, ''), created_at, updated_at
		FROM transactions
		WHERE status IN ('PENDING', 'PROCESSING') AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := executorFrom(ctx, r.pool).Query(ctx, sql, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stuck transactions: %w", err)
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		t := &transaction.Transaction{}
		var lines []byte
		if err := rows.Scan(&t.ID, &lines, &t.TotalAmount, &t.PaymentMethod, &t.Status,
			&t.FailureReason, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if err := json.Unmarshal(lines, &t.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal lines: %w", err)
		}
		out = append(out, t)
	}

	return out, nil
}
