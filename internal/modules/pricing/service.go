// README: Pricing service computes delivery fees from distance, with zone fallback.
package pricing

import (
	"context"
	"errors"

	"wasil/internal/types"
)

var ErrNoCoverage = errors.New("delivery fee cannot be computed: no coordinates and no known zone")

type ZoneFees interface {
	ZoneFlatFee(ctx context.Context, zone string) (int64, bool, error)
}

type Service struct {
	zones ZoneFees
}

func NewService(zones ZoneFees) *Service {
	return &Service{zones: zones}
}

// Quote prices the delivery leg from a store to a customer address.
// Distance-based pricing is authoritative; the legacy zone flat fee is used
// only when either endpoint lacks coordinates. With no coordinates and no
// known zone the caller must prompt for a usable address.
func (s *Service) Quote(ctx context.Context, from, to types.Point, zone string) (types.Money, error) {
	if !from.IsZero() && !to.IsZero() {
		return types.IQD(DeliveryFee(HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng))), nil
	}
	if zone != "" && s.zones != nil {
		fee, ok, err := s.zones.ZoneFlatFee(ctx, zone)
		if err != nil {
			return types.Money{}, err
		}
		if ok {
			return types.IQD(fee), nil
		}
	}
	return types.Money{}, ErrNoCoverage
}
