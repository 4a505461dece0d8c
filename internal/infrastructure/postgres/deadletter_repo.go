package postgres

import (
	"context"
	"fmt"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/deadletter"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DeadLetterRepository struct {
	pool *pgxpool.Pool
}

func NewDeadLetterRepository(pool *pgxpool.Pool) *DeadLetterRepository {
	return &DeadLetterRepository{pool: pool}
}

func (r *DeadLetterRepository) Create(ctx context.Context, rec *deadletter.Record) error {
	const sql = `
		INSERT INTO dead_letters (id, event_id, event_type, consumer, original_topic, partition, "offset",
			event_data, error_message, error_type, retry_count, status, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := executorFrom(ctx, r.pool).Exec(ctx, sql,
		rec.ID, rec.EventID, rec.EventType, rec.Consumer, rec.OriginalTopic, rec.Partition, rec.Offset,
		rec.EventData, rec.ErrorMessage, rec.ErrorType, rec.RetryCount, rec.Status, rec.FailedAt)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}

	return nil
}

func (r *DeadLetterRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]*deadletter.Record, error) {
	// Correlation id lives inside the stored envelope, not in its own column.
	const sql = `
		SELECT id, event_id, event_type, consumer, original_topic, partition, "offset",
			event_data, error_message, error_type, retry_count, status, failed_at,
			COALESCE(resolved_at, 'epoch'::timestamptz), COALESCE(resolved_by, '')
		FROM dead_letters
		WHERE event_data->>'correlation_id' = $1
		ORDER BY failed_at ASC
	`

	rows, err := executorFrom(ctx, r.pool).Query(ctx, sql, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query dead letters: %w", err)
	}
	defer rows.Close()

	var out []*deadletter.Record
	for rows.Next() {
		rec := &deadletter.Record{}
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.Consumer, &rec.OriginalTopic,
			&rec.Partition, &rec.Offset, &rec.EventData, &rec.ErrorMessage, &rec.ErrorType,
			&rec.RetryCount, &rec.Status, &rec.FailedAt, &rec.ResolvedAt, &rec.ResolvedBy); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, rec)
	}

	return out, nil
}

func (r *DeadLetterRepository) Resolve(ctx context.Context, id, resolvedBy string) error {
	const sql = `
		UPDATE dead_letters
		SET status = 'RESOLVED', resolved_at = NOW(), resolved_by = $2
		WHERE id = $1 AND status = 'FAILED'
	`

	tag, err := executorFrom(ctx, r.pool).Exec(ctx, sql, id, resolvedBy)
	if err != nil {
		return fmt.Errorf("resolve dead letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dead letter not found or already resolved")
	}
	return nil
}
