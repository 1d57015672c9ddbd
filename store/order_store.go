package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"shopdemo/api/models"
)

const ordersSchema = `
	CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		items JSONB NOT NULL,
		total_price DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id);
`

const orderColumns = `id, user_id, items, total_price, status, created_at, updated_at`

type OrderStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewOrderStore(db *sqlx.DB, logger *zap.Logger) *OrderStore {
	return &OrderStore{db: db, logger: logger}
}

func (s *OrderStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, ordersSchema); err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}
	s.logger.Info("Orders table synchronized")
	return nil
}

func (s *OrderStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY id`
	if err := s.db.SelectContext(ctx, &orders, query); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderStore) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY id`
	if err := s.db.SelectContext(ctx, &orders, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list orders for user %q: %w", userID, err)
	}
	return orders, nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := s.db.GetContext(ctx, order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return order, nil
}

func (s *OrderStore) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	status := req.Status
	if status == "" {
		status = models.DefaultOrderStatus
	}

	order := &models.Order{}
	// lib/pq sends []byte parameters as bytea; JSONB needs the text form.
	query := `
		INSERT INTO orders (user_id, items, total_price, status)
		VALUES ($1, $2::jsonb, $3, $4)
		RETURNING ` + orderColumns
	err := s.db.QueryRowxContext(ctx, query, req.UserID, req.Items.String(), *req.TotalPrice, status).StructScan(order)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created", zap.Int64("id", order.ID), zap.String("user_id", order.UserID))
	return order, nil
}

// UpdateOrder applies the non-nil fields of req.
func (s *OrderStore) UpdateOrder(ctx context.Context, id int64, req models.UpdateOrderRequest) (*models.Order, error) {
	var items *string
	if req.Items != nil {
		v := req.Items.String()
		items = &v
	}

	order := &models.Order{}
	query := `
		UPDATE orders SET
			user_id = COALESCE($2, user_id),
			items = COALESCE($3::jsonb, items),
			total_price = COALESCE($4, total_price),
			status = COALESCE($5, status),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + orderColumns
	err := s.db.QueryRowxContext(ctx, query, id, req.UserID, items, req.TotalPrice, req.Status).StructScan(order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update order %d: %w", id, err)
	}
	return order, nil
}
