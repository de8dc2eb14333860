package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

// PostgresProvider reads snapshots straight from the price_entries and
// suppliers tables. It shares the connection pool with the order
// repository.
type PostgresProvider struct {
	db *sql.DB
}

func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) Snapshot(ctx context.Context, refs []domain.ProductRef) (map[domain.ProductRef]domain.PriceSnapshotEntry, error) {
	result := make(map[domain.ProductRef]domain.PriceSnapshotEntry, len(refs))
	if len(refs) == 0 {
		return result, nil
	}

	supplierIDs := make([]int64, 0, len(refs))
	productIDs := make([]int64, 0, len(refs))
	for _, ref := range refs {
		supplierIDs = append(supplierIDs, ref.SupplierID)
		productIDs = append(productIDs, ref.ProductID)
	}

	// The unnest pair join keeps this a single round trip for any number
	// of requested (supplier, product) pairs.
	query := `SELECT pe.supplier_id, pe.product_id, pe.product_name, pe.price, pe.quantity, s.accepting
	          FROM price_entries pe
	          JOIN suppliers s ON s.id = pe.supplier_id
	          JOIN unnest($1::bigint[], $2::bigint[]) AS req(supplier_id, product_id)
	            ON req.supplier_id = pe.supplier_id AND req.product_id = pe.product_id`

	rows, err := p.db.QueryContext(ctx, query, pq.Array(supplierIDs), pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.PriceSnapshotEntry
		if err := rows.Scan(
			&entry.SupplierID,
			&entry.ProductID,
			&entry.ProductName,
			&entry.UnitPrice,
			&entry.Stock,
			&entry.SupplierAccepting,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		result[domain.ProductRef{SupplierID: entry.SupplierID, ProductID: entry.ProductID}] = entry
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot row iteration: %w", err)
	}

	return result, nil
}
