package product

import (
	"context"
	"time"
)

// Product is the inventory service's local stock record.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// Deduct removes quantity units of stock and returns the remaining count.
	// It never drives stock below zero; callers rely on the guarded update.
	Deduct(ctx context.Context, id string, quantity int) (remaining int, err error)
}
