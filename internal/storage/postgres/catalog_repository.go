package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hyllekvist/dripdrops/internal/domain"
)

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) CreateItem(ctx context.Context, item domain.Item) error {
	const stmt = `
INSERT INTO items (id, drop_id, title, brand, price_cents, sold, created_at)
VALUES ($1, $2, $3, $4, $5, FALSE, $6)`

	_, err := r.exec(ctx, stmt,
		item.ID,
		nullIfEmpty(item.DropID),
		item.Title,
		nullIfEmpty(item.Brand),
		item.PriceCents,
		item.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListItems(ctx context.Context) ([]domain.Item, error) {
	const query = `
SELECT id, drop_id, title, brand, price_cents, sold, reserved_until, reserved_token, created_at
FROM items
ORDER BY created_at DESC`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *CatalogRepository) ListItemsByDrop(ctx context.Context, dropID string) ([]domain.Item, error) {
	const query = `
SELECT id, drop_id, title, brand, price_cents, sold, reserved_until, reserved_token, created_at
FROM items
WHERE drop_id = $1
ORDER BY created_at DESC`

	rows, err := r.query(ctx, query, dropID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list items by drop: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *CatalogRepository) ListReservationsByItem(ctx context.Context, itemID string) ([]domain.Reservation, error) {
	const query = `
SELECT id, item_id, token, expires_at, outcome, created_at
FROM reservations
WHERE item_id = $1
ORDER BY created_at DESC`

	rows, err := r.query(ctx, query, itemID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.ID, &res.ItemID, &res.Token, &res.ExpiresAt, &res.Outcome, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

func scanItems(rows pgx.Rows) ([]domain.Item, error) {
	var out []domain.Item
	for rows.Next() {
		var (
			item          domain.Item
			dropID        *string
			brand         *string
			reservedToken *string
		)
		err := rows.Scan(
			&item.ID,
			&dropID,
			&item.Title,
			&brand,
			&item.PriceCents,
			&item.Sold,
			&item.ReservedUntil,
			&reservedToken,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if dropID != nil {
			item.DropID = *dropID
		}
		if brand != nil {
			item.Brand = *brand
		}
		if reservedToken != nil {
			item.ReservedToken = *reservedToken
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *CatalogRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *CatalogRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
