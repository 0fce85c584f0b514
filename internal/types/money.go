// README: Common money value object used across modules.
package types

// Money is an amount in the smallest unit of its currency (IQD has no
// minor unit, so Amount is whole dinars).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// IQD wraps an amount in the platform currency.
func IQD(amount int64) Money {
	return Money{Amount: amount, Currency: "IQD"}
}
