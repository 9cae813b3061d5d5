package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-shop-admin/internal/model"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o model.Order) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (id, user_id, items, total_price, total_quantity, status, address, phone,
		                     payment_method, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.UserID, o.Items, o.TotalPrice, o.TotalQuantity, o.Status, o.Address, o.Phone,
		o.PaymentMethod, nullable(o.CreatedBy), o.CreatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, items, total_price::float8, total_quantity, status, address, phone,
		        payment_method, COALESCE(created_by, ''), created_at
		 FROM orders WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Items, &o.TotalPrice, &o.TotalQuantity, &o.Status,
			&o.Address, &o.Phone, &o.PaymentMethod, &o.CreatedBy, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
