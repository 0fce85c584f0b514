// README: Worker service: presence toggles, level lookup, delivery bookkeeping.
package worker

import (
	"context"
	"time"

	"wasil/internal/config"
	"wasil/internal/types"
)

type Service struct {
	store    *Store
	presence *Presence
	tiers    []Tier

	freezeAfter    time.Duration
	unfreezeTarget int
}

func NewService(store *Store, presence *Presence, cfg config.WorkerConfig) *Service {
	return &Service{
		store:          store,
		presence:       presence,
		tiers:          DefaultTiers,
		freezeAfter:    time.Duration(cfg.FreezeAfterHours) * time.Hour,
		unfreezeTarget: cfg.UnfreezeTarget,
	}
}

func (s *Service) SetOnline(ctx context.Context, id types.ID, online bool) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	if online {
		return s.presence.SetOnline(ctx, id)
	}
	return s.presence.SetOffline(ctx, id)
}

// Name returns the worker's display name for snapshotting onto orders.
func (s *Service) Name(ctx context.Context, id types.ID) (string, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return w.Name, nil
}

// LevelStatus derives the worker's current level badge and freeze state.
func (s *Service) LevelStatus(ctx context.Context, id types.ID, now time.Time) (Level, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return Level{}, err
	}
	delivered, err := s.store.DeliveredCount(ctx, id)
	if err != nil {
		return Level{}, err
	}
	return LevelFor(w, delivered, now, s.tiers, s.freezeAfter), nil
}

// RecordDelivery applies the freeze bookkeeping after an order is delivered.
// A frozen worker earns unfreeze progress per delivery and is reinstated at
// the target; an active worker just has their idle clock reset.
func (s *Service) RecordDelivery(ctx context.Context, id types.ID, now time.Time) error {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	last, progress := NextDeliveryMeta(w, now, s.freezeAfter, s.unfreezeTarget)
	return s.store.UpdateDeliveryMeta(ctx, id, last, progress)
}

// NextDeliveryMeta computes the post-delivery bookkeeping values. Split out
// as a pure function so the unfreeze streak is testable without a database.
func NextDeliveryMeta(w *Worker, now time.Time, freezeAfter time.Duration, unfreezeTarget int) (*time.Time, int) {
	if isFrozen(w, now, freezeAfter) {
		progress := w.UnfreezeProgress + 1
		if progress >= unfreezeTarget {
			return &now, 0
		}
		return w.LastDeliveredAt, progress
	}
	return &now, 0
}
