package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

func (r *Repository) ListSuppliers(ctx context.Context, ids []int64) (map[int64]domain.Supplier, error) {
	result := make(map[int64]domain.Supplier, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, accepting FROM suppliers WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query suppliers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Accepting); err != nil {
			return nil, fmt.Errorf("scan supplier row: %w", err)
		}
		result[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("supplier row iteration: %w", err)
	}
	return result, nil
}

func (r *Repository) SetSupplierAccepting(ctx context.Context, supplierID int64, accepting bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE suppliers SET accepting = $1 WHERE id = $2`, accepting, supplierID)
	if err != nil {
		return fmt.Errorf("update supplier accepting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update supplier accepting: %w", err)
	}
	if affected == 0 {
		return ErrSupplierNotFound
	}
	return nil
}

// UpsertPriceEntries replaces a supplier's offers for the listed products.
// Existing (supplier, product) rows get the new price, name and quantity;
// new products are inserted.
func (r *Repository) UpsertPriceEntries(ctx context.Context, supplierID int64, entries []domain.PriceSnapshotEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin price upsert: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO price_entries (supplier_id, product_id, product_name, price, quantity)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (supplier_id, product_id)
			 DO UPDATE SET product_name = $3, price = $4, quantity = $5, updated_at = NOW()`,
			supplierID, entry.ProductID, entry.ProductName, entry.UnitPrice, entry.Stock)
		if err != nil {
			return fmt.Errorf("upsert price entry for product %d: %w", entry.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit price upsert: %w", err)
	}
	return nil
}
