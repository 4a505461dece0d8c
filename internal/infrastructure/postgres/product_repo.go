package postgres

import (
	"context"
	"fmt"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/product"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	const sql = `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var p product.Product
	err := executorFrom(ctx, r.pool).QueryRow(ctx, sql, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return &p, nil
}

// Deduct removes stock with a guard so the count never goes negative.
func (r *ProductRepository) Deduct(ctx context.Context, id string, quantity int) (int, error) {
	const sql = `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`

	var remaining int
	if err := executorFrom(ctx, r.pool).QueryRow(ctx, sql, id, quantity).Scan(&remaining); err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("insufficient stock for product %s", id)
		}
		return 0, fmt.Errorf("deduct stock: %w", err)
	}

	return remaining, nil
}
