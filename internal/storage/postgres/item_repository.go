package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hyllekvist/dripdrops/internal/domain"
)

// ItemRepository is the Postgres-backed item ledger. The conditional UPDATEs
// in ReserveItem and MarkSold are the serialization point for all reservation
// arbitration: no in-process locking is layered on top.
type ItemRepository struct {
	pool *pgxpool.Pool
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

func (r *ItemRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *ItemRepository) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	const query = `
SELECT id, drop_id, title, brand, price_cents, sold, reserved_until, reserved_token, created_at
FROM items
WHERE id = $1`

	var (
		item          domain.Item
		dropID        *string
		brand         *string
		reservedToken *string
	)
	err := r.queryRow(ctx, query, itemID).Scan(
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
		if isInvalidUUID(err) {
			return domain.Item{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Item{}, domain.ErrItemNotFound
		}
		return domain.Item{}, fmt.Errorf("get item: %w", err)
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
	return item, nil
}

// ReserveItem applies the single atomic transition that arbitrates holds: the
// row updates only while the item is unsold and any previous hold has lapsed.
// Concurrent callers race on row-level locking inside Postgres; exactly one
// sees RowsAffected()==1.
func (r *ItemRepository) ReserveItem(ctx context.Context, itemID, token string, until, now time.Time) (bool, error) {
	const stmt = `
UPDATE items
SET reserved_until = $2, reserved_token = $3
WHERE id = $1
  AND sold = FALSE
  AND (reserved_until IS NULL OR reserved_until <= $4)`

	tag, err := r.exec(ctx, stmt, itemID, until, token, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("reserve item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSold flips the monotonic sold flag, guarded on an unexpired hold. With
// a token the guard additionally pins the caller to the hold it won, so a
// stale caller cannot finalize over a reacquired hold.
func (r *ItemRepository) MarkSold(ctx context.Context, itemID, token string, now time.Time) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if token == "" {
		const stmt = `
UPDATE items
SET sold = TRUE
WHERE id = $1 AND sold = FALSE AND reserved_until > $2`
		tag, err = r.exec(ctx, stmt, itemID, now)
	} else {
		const stmt = `
UPDATE items
SET sold = TRUE
WHERE id = $1 AND sold = FALSE AND reserved_until > $2 AND reserved_token = $3`
		tag, err = r.exec(ctx, stmt, itemID, now, token)
	}
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark sold: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ItemRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, item_id, token, expires_at, outcome, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.ItemID,
		res.Token,
		res.ExpiresAt,
		res.Outcome,
		res.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ItemRepository) FinalizeReservation(ctx context.Context, itemID, token string) error {
	var err error
	if token == "" {
		// Without a token, close the most recent granted hold.
		const stmt = `
UPDATE reservations
SET outcome = 'finalized'
WHERE id = (
	SELECT id FROM reservations
	WHERE item_id = $1 AND outcome = 'granted'
	ORDER BY created_at DESC
	LIMIT 1
)`
		_, err = r.exec(ctx, stmt, itemID)
	} else {
		const stmt = `
UPDATE reservations
SET outcome = 'finalized'
WHERE item_id = $1 AND token = $2 AND outcome = 'granted'`
		_, err = r.exec(ctx, stmt, itemID, token)
	}
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("finalize reservation: %w", err)
	}
	return nil
}

func (r *ItemRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ItemRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
