// README: Timeout monitor: sweeps stale offers and forces reassignment.
package assignment

import (
	"context"
	"log/slog"
	"time"

	"wasil/internal/config"
	"wasil/internal/modules/order"
)

// Rejecter is implemented by the order service; a timed-out offer is
// handled exactly like a worker rejection.
type Rejecter interface {
	Reject(ctx context.Context, cmd order.RejectCommand) error
}

type Monitor struct {
	orders   OrderBook
	rejecter Rejecter
	tick     time.Duration
	timeout  time.Duration
}

func NewMonitor(orders OrderBook, rejecter Rejecter, cfg config.DispatchConfig) *Monitor {
	return &Monitor{
		orders:   orders,
		rejecter: rejecter,
		tick:     time.Duration(cfg.TickSeconds) * time.Second,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx, time.Now())
		}
	}
}

// Sweep requeues every order whose offer has been outstanding longer than
// the timeout. At-least-once: a worker racing the sweep with a late accept
// loses to the store's offered-worker fencing check.
func (m *Monitor) Sweep(ctx context.Context, now time.Time) {
	stale, err := m.orders.ListPendingOfferedBefore(ctx, now.Add(-m.timeout))
	if err != nil {
		slog.Error("dispatch sweep: list stale offers", "error", err)
		return
	}
	for _, o := range stale {
		if o.OfferedWorkerID == nil {
			continue
		}
		cmd := order.RejectCommand{OrderID: o.ID, WorkerID: *o.OfferedWorkerID, Reason: "offer_timeout"}
		if err := m.rejecter.Reject(ctx, cmd); err != nil {
			slog.Error("dispatch sweep: requeue order",
				"order_id", string(o.ID), "worker_id", string(cmd.WorkerID), "error", err)
		}
	}
}
