// README: Inventory ledger: transaction-scoped stock reserve/release.
package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"wasil/internal/types"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("insufficient stock")
	// ErrUnavailable guards against corrupted pricing: a sale below
	// wholesale cost means the product record cannot be trusted.
	ErrUnavailable = errors.New("product unavailable")
)

// Line identifies one stock unit to consume or restore. A non-empty
// SizeName selects the per-size counter; otherwise the flat product
// counter is used. The two paths are mutually exclusive.
type Line struct {
	ProductID types.ID
	SizeName  string
	Quantity  int
}

// Quote is the authoritative pricing read taken while reserving.
type Quote struct {
	StoreID     types.ID
	ProductName string
	UnitPrice   int64
}

// Ledger mutates stock counters. Every method takes the caller's
// transaction: stock is only ever touched from inside the order state
// machine's atomic block, never standalone.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve re-reads the authoritative product record, resolves the unit
// price (size price, else discount price, else base price) and decrements
// the matching stock counter. The guarded UPDATE makes concurrent
// reservations of the last units mutually exclusive.
func (l *Ledger) Reserve(ctx context.Context, tx pgx.Tx, line Line) (Quote, error) {
	if line.SizeName != "" {
		return l.reserveSized(ctx, tx, line)
	}

	row := tx.QueryRow(ctx, `
		SELECT store_id, name, price, discount_price, wholesale_price
		FROM products
		WHERE id = $1`, string(line.ProductID),
	)
	var q Quote
	var price, wholesale int64
	var discountPrice *int64
	err := row.Scan(&q.StoreID, &q.ProductName, &price, &discountPrice, &wholesale)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, ErrProductNotFound
	}
	if err != nil {
		return Quote{}, err
	}

	q.UnitPrice = price
	if discountPrice != nil && *discountPrice > 0 {
		q.UnitPrice = *discountPrice
	}
	if q.UnitPrice < wholesale {
		return Quote{}, ErrUnavailable
	}

	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET stock = stock - $1
		WHERE id = $2 AND stock >= $1`,
		line.Quantity, string(line.ProductID),
	)
	if err != nil {
		return Quote{}, err
	}
	if tag.RowsAffected() == 0 {
		return Quote{}, ErrOutOfStock
	}
	return q, nil
}

func (l *Ledger) reserveSized(ctx context.Context, tx pgx.Tx, line Line) (Quote, error) {
	row := tx.QueryRow(ctx, `
		SELECT p.store_id, p.name, s.price, p.wholesale_price
		FROM product_sizes s
		JOIN products p ON p.id = s.product_id
		WHERE s.product_id = $1 AND s.name = $2`,
		string(line.ProductID), line.SizeName,
	)
	var q Quote
	var wholesale int64
	err := row.Scan(&q.StoreID, &q.ProductName, &q.UnitPrice, &wholesale)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, ErrProductNotFound
	}
	if err != nil {
		return Quote{}, err
	}
	if q.UnitPrice < wholesale {
		return Quote{}, ErrUnavailable
	}

	tag, err := tx.Exec(ctx, `
		UPDATE product_sizes
		SET stock = stock - $1
		WHERE product_id = $2 AND name = $3 AND stock >= $1`,
		line.Quantity, string(line.ProductID), line.SizeName,
	)
	if err != nil {
		return Quote{}, err
	}
	if tag.RowsAffected() == 0 {
		return Quote{}, ErrOutOfStock
	}
	return q, nil
}

// Release restores previously reserved stock. Unconditional and additive;
// callers guarantee at-most-once invocation per cancellation via the order
// state machine's terminal-state check.
func (l *Ledger) Release(ctx context.Context, tx pgx.Tx, line Line) error {
	if line.SizeName != "" {
		_, err := tx.Exec(ctx, `
			UPDATE product_sizes
			SET stock = stock + $1
			WHERE product_id = $2 AND name = $3`,
			line.Quantity, string(line.ProductID), line.SizeName,
		)
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE products
		SET stock = stock + $1
		WHERE id = $2`,
		line.Quantity, string(line.ProductID),
	)
	return err
}
