package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, `WHERE id = $1`, id)
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return r.getOrder(ctx, `WHERE idempotency_key = $1`, key)
}

func (r *Repository) getOrder(ctx context.Context, where string, arg interface{}) (*domain.Order, error) {
	var order domain.Order
	query := `SELECT id, customer_id, customer_email, status, grand_total, created_at FROM orders ` + where
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&order.ID,
		&order.CustomerID,
		&order.CustomerEmail,
		&order.Status,
		&order.GrandTotal,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	subs, err := r.loadSubOrders(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.SubOrders = subs
	return &order, nil
}

func (r *Repository) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_id, status, grand_total, created_at
		 FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query orders by customer: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.Status, &order.GrandTotal, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order row iteration: %w", err)
	}

	for _, order := range orders {
		subs, err := r.loadSubOrders(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.SubOrders = subs
	}
	return orders, nil
}

func (r *Repository) loadSubOrders(ctx context.Context, orderID uuid.UUID) ([]domain.SubOrder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, supplier_id, status, subtotal
		 FROM sub_orders WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query sub-orders: %w", err)
	}
	defer rows.Close()

	var subs []domain.SubOrder
	for rows.Next() {
		var sub domain.SubOrder
		if err := rows.Scan(&sub.ID, &sub.OrderID, &sub.SupplierID, &sub.Status, &sub.Subtotal); err != nil {
			return nil, fmt.Errorf("scan sub-order row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sub-order row iteration: %w", err)
	}

	for i := range subs {
		lines, err := r.loadLines(ctx, subs[i].ID)
		if err != nil {
			return nil, err
		}
		subs[i].Lines = lines
	}
	return subs, nil
}

func (r *Repository) loadLines(ctx context.Context, subOrderID uuid.UUID) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, product_name, quantity, unit_price
		 FROM order_lines WHERE sub_order_id = $1 ORDER BY id`, subOrderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line row: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order line iteration: %w", err)
	}
	return lines, nil
}

func (r *Repository) GetSubOrderByID(ctx context.Context, id uuid.UUID) (*domain.SubOrder, string, error) {
	var sub domain.SubOrder
	var customerID string
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.order_id, s.supplier_id, s.status, s.subtotal, o.customer_id
		 FROM sub_orders s JOIN orders o ON o.id = s.order_id
		 WHERE s.id = $1`, id).Scan(
		&sub.ID, &sub.OrderID, &sub.SupplierID, &sub.Status, &sub.Subtotal, &customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrSubOrderNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("query sub-order: %w", err)
	}

	lines, err := r.loadLines(ctx, sub.ID)
	if err != nil {
		return nil, "", err
	}
	sub.Lines = lines
	return &sub, customerID, nil
}

func (r *Repository) GetCustomerEmail(ctx context.Context, orderID uuid.UUID) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx,
		`SELECT customer_email FROM orders WHERE id = $1`, orderID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query customer email: %w", err)
	}
	return email, nil
}

func (r *Repository) ListSubOrdersBySupplier(ctx context.Context, supplierID int64) ([]*domain.SubOrder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, supplier_id, status, subtotal
		 FROM sub_orders WHERE supplier_id = $1 ORDER BY created_at DESC`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("query sub-orders by supplier: %w", err)
	}
	defer rows.Close()

	var subs []*domain.SubOrder
	for rows.Next() {
		var sub domain.SubOrder
		if err := rows.Scan(&sub.ID, &sub.OrderID, &sub.SupplierID, &sub.Status, &sub.Subtotal); err != nil {
			return nil, fmt.Errorf("scan sub-order row: %w", err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sub-order row iteration: %w", err)
	}

	for _, sub := range subs {
		lines, err := r.loadLines(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		sub.Lines = lines
	}
	return subs, nil
}
