// README: Dispatch engine: offers orders to the least-busy eligible worker.
package assignment

import (
	"context"
	"sort"
	"time"

	"wasil/internal/modules/order"
	"wasil/internal/notify"
	"wasil/internal/types"
)

// OrderBook is the slice of the order store the engine drives.
type OrderBook interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	Offer(ctx context.Context, id, workerID types.ID, version int, now time.Time) (bool, error)
	Park(ctx context.Context, id types.ID, version int) (bool, error)
	BusyWorkerIDs(ctx context.Context) ([]types.ID, error)
	DeliveredCounts(ctx context.Context) (map[types.ID]int, error)
	ListPendingOfferedBefore(ctx context.Context, cutoff time.Time) ([]*order.Order, error)
}

// PresenceSource reports which workers are currently online.
type PresenceSource interface {
	OnlineWorkerIDs(ctx context.Context) ([]types.ID, error)
}

type Engine struct {
	orders   OrderBook
	presence PresenceSource
	notify   notify.Sender
	now      func() time.Time
}

func NewEngine(orders OrderBook, presence PresenceSource, sender notify.Sender) *Engine {
	return &Engine{orders: orders, presence: presence, notify: sender, now: time.Now}
}

// Assign picks a worker for the order and writes the offer. Re-entrant:
// every invocation recomputes the candidate pool from current state, so it
// is safe to call on initial placement, rejection, timeout and manual
// re-trigger. An empty pool parks the order at unassigned; it self-heals
// when a worker comes online and the order is re-triggered.
func (e *Engine) Assign(ctx context.Context, orderID types.ID, excluded []types.ID) error {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != order.StatusUnassigned && o.Status != order.StatusPendingAssignment {
		// The order moved on (confirmed or cancelled) since we were queued.
		return nil
	}

	skip := make(map[types.ID]bool, len(excluded)+len(o.RejectedWorkerIDs))
	for _, id := range excluded {
		skip[id] = true
	}
	for _, id := range o.RejectedWorkerIDs {
		skip[id] = true
	}

	online, err := e.presence.OnlineWorkerIDs(ctx)
	if err != nil {
		return err
	}
	busyIDs, err := e.orders.BusyWorkerIDs(ctx)
	if err != nil {
		return err
	}
	busy := make(map[types.ID]bool, len(busyIDs))
	for _, id := range busyIDs {
		busy[id] = true
	}

	candidates := make([]types.ID, 0, len(online))
	for _, id := range online {
		if !busy[id] && !skip[id] {
			candidates = append(candidates, id)
		}
	}

	if len(candidates) == 0 {
		if o.Status == order.StatusPendingAssignment {
			_, err := e.orders.Park(ctx, o.ID, o.StatusVersion)
			return err
		}
		return nil
	}

	counts, err := e.orders.DeliveredCounts(ctx)
	if err != nil {
		return err
	}
	pick := PickLeastBusy(candidates, counts)

	ok, err := e.orders.Offer(ctx, o.ID, pick, o.StatusVersion, e.now())
	if err != nil {
		return err
	}
	if !ok {
		return order.ErrConflict
	}
	if e.notify != nil {
		_ = e.notify.Send(ctx, notify.RoleWorker, pick, "New delivery offer: order "+string(o.ID))
	}
	return nil
}

// PickLeastBusy ranks candidates by ascending lifetime delivered count,
// breaking ties by worker id so the choice is deterministic.
func PickLeastBusy(candidates []types.ID, delivered map[types.ID]int) types.ID {
	ranked := make([]types.ID, len(candidates))
	copy(ranked, candidates)
	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := delivered[ranked[i]], delivered[ranked[j]]
		if ci != cj {
			return ci < cj
		}
		return ranked[i] < ranked[j]
	})
	return ranked[0]
}
