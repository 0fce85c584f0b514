// README: Coupon ledger: transaction-scoped redemption with usage invariants.
package coupon

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"wasil/internal/types"
)

var (
	ErrNotFound    = errors.New("coupon not found")
	ErrExhausted   = errors.New("coupon exhausted")
	ErrAlreadyUsed = errors.New("coupon already used by this user")
)

// Ledger redeems coupon codes. Redemption only happens inside the order
// placement transaction so the usage counter and the per-user uniqueness
// set move atomically with the order itself.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Redeem validates and consumes one use of the coupon for userID, returning
// the fixed discount amount. Codes compare case-insensitively. The row lock
// serialises racing redemptions; the unique index on coupon_redemptions is
// the backstop for the one-use-per-user invariant.
func (l *Ledger) Redeem(ctx context.Context, tx pgx.Tx, code string, userID types.ID) (int64, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, discount, max_uses, used_count
		FROM coupons
		WHERE upper(code) = upper($1)
		FOR UPDATE`, code,
	)
	var id int64
	var discount int64
	var maxUses, usedCount int
	err := row.Scan(&id, &discount, &maxUses, &usedCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	if usedCount >= maxUses {
		return 0, ErrExhausted
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO coupon_redemptions (coupon_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (coupon_id, user_id) DO NOTHING`,
		id, string(userID),
	)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrAlreadyUsed
	}

	if _, err := tx.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1 WHERE id = $1`, id,
	); err != nil {
		return 0, err
	}
	return discount, nil
}
