package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "procurement_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// DB exposes the pool so the catalog provider can share connections.
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateOrder commits a composed order atomically. The stock decrement is
// conditional (quantity >= requested), which closes the gap between
// composition-time validation and commit: two racing commits on the last
// unit serialize on the row update and only one passes.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, idempotencyKey string, events []domain.NotificationEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit transaction: %w", err)
	}
	defer tx.Rollback()

	for _, sub := range order.SubOrders {
		var accepting bool
		err := tx.QueryRowContext(ctx,
			`SELECT accepting FROM suppliers WHERE id = $1`, sub.SupplierID).Scan(&accepting)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSupplierNotFound
		}
		if err != nil {
			return fmt.Errorf("check supplier %d: %w", sub.SupplierID, err)
		}
		if !accepting {
			return fmt.Errorf("supplier %d: %w", sub.SupplierID, ErrSupplierStopped)
		}

		for _, line := range sub.Lines {
			res, err := tx.ExecContext(ctx,
				`UPDATE price_entries SET quantity = quantity - $3, updated_at = NOW()
				 WHERE supplier_id = $1 AND product_id = $2 AND quantity >= $3`,
				sub.SupplierID, line.ProductID, line.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock for product %d: %w", line.ProductID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("decrement stock for product %d: %w", line.ProductID, err)
			}
			if affected == 0 {
				return fmt.Errorf("supplier %d product %d: %w", sub.SupplierID, line.ProductID, ErrStockConflict)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, customer_id, customer_email, idempotency_key, status, grand_total, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		order.ID, order.CustomerID, order.CustomerEmail, idempotencyKey, order.Status, order.GrandTotal, order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCommit
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, sub := range order.SubOrders {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sub_orders (id, order_id, supplier_id, status, subtotal)
			 VALUES ($1, $2, $3, $4, $5)`,
			sub.ID, order.ID, sub.SupplierID, sub.Status, sub.Subtotal)
		if err != nil {
			return fmt.Errorf("insert sub-order for supplier %d: %w", sub.SupplierID, err)
		}

		for _, line := range sub.Lines {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_lines (sub_order_id, product_id, product_name, quantity, unit_price)
				 VALUES ($1, $2, $3, $4, $5)`,
				sub.ID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice)
			if err != nil {
				return fmt.Errorf("insert order line for product %d: %w", line.ProductID, err)
			}
		}
	}

	if err := insertEvents(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order transaction: %w", err)
	}
	return nil
}

// TransitionSubOrder moves one sub-order to a new status if and only if it
// is still in the expected one, recomputes the parent order status from
// the fresh sub-order statuses and records the StatusChanged events, all
// inside a single transaction.
func (r *Repository) TransitionSubOrder(ctx context.Context, subOrderID uuid.UUID, from, to domain.Status, events []domain.NotificationEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition transaction: %w", err)
	}
	defer tx.Rollback()

	var orderID uuid.UUID
	err = tx.QueryRowContext(ctx,
		`UPDATE sub_orders SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3
		 RETURNING order_id`,
		to, subOrderID, from).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the sub-order is gone or a concurrent transition won.
		var exists bool
		if e2 := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM sub_orders WHERE id = $1)`, subOrderID).Scan(&exists); e2 != nil {
			return fmt.Errorf("check sub-order existence: %w", e2)
		}
		if !exists {
			return ErrSubOrderNotFound
		}
		return ErrStatusConflict
	}
	if err != nil {
		return fmt.Errorf("update sub-order status: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT status FROM sub_orders WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("load sibling statuses: %w", err)
	}
	var statuses []domain.Status
	for rows.Next() {
		var s domain.Status
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return fmt.Errorf("scan sibling status: %w", err)
		}
		statuses = append(statuses, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sibling status iteration: %w", err)
	}

	derived := domain.DeriveOrderStatus(statuses)
	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
		derived, orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if err := insertEvents(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition transaction: %w", err)
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, events []domain.NotificationEvent) error {
	for _, ev := range events {
		var subOrderID interface{}
		if ev.SubOrderID != nil {
			subOrderID = *ev.SubOrderID
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notification_events (id, kind, target_kind, target_id, order_id, sub_order_id, payload, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ev.ID, ev.Kind, ev.Target, ev.TargetID, ev.OrderID, subOrderID, []byte(ev.Payload), ev.Status, ev.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert notification event %s: %w", ev.ID, err)
		}
	}
	return nil
}
