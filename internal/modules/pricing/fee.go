// README: Delivery fee curve: per-km rate, rounded to 250 IQD, clamped.
package pricing

import "math"

const (
	// RatePerKm is the delivery charge per kilometre in IQD.
	RatePerKm = 1000.0 / 3.0
	// FeeStep is the rounding granularity of the final fee.
	FeeStep = 250
	// MinFee and MaxFee bound every computed fee.
	MinFee = 1000
	MaxFee = 20000
)

// DeliveryFee converts a distance into a delivery fee in IQD. Non-positive
// distances (unknown or same-point) collapse to the minimum fee.
func DeliveryFee(distanceKm float64) int64 {
	if distanceKm <= 0 {
		return MinFee
	}
	raw := distanceKm * RatePerKm
	fee := int64(math.Round(raw/FeeStep)) * FeeStep
	if fee < MinFee {
		return MinFee
	}
	if fee > MaxFee {
		return MaxFee
	}
	return fee
}
