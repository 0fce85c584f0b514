// README: Dispatch engine and timeout monitor tests with in-memory stores.
package assignment

import (
	"context"
	"sync"
	"testing"
	"time"

	"wasil/internal/config"
	"wasil/internal/modules/order"
	"wasil/internal/types"
)

// ---------------------------------------------------------------------------
// Unit tests: PickLeastBusy (pure function, no external dependencies)
// ---------------------------------------------------------------------------

func TestPickLeastBusy_FewestDeliveredWins(t *testing.T) {
	candidates := []types.ID{"w1", "w2", "w3"}
	delivered := map[types.ID]int{"w1": 10, "w2": 3, "w3": 7}
	if got := PickLeastBusy(candidates, delivered); got != "w2" {
		t.Fatalf("expected w2, got %s", got)
	}
}

func TestPickLeastBusy_NewWorkerBeatsVeterans(t *testing.T) {
	candidates := []types.ID{"w1", "w2"}
	delivered := map[types.ID]int{"w1": 100}
	if got := PickLeastBusy(candidates, delivered); got != "w2" {
		t.Fatalf("worker with no deliveries should win, got %s", got)
	}
}

func TestPickLeastBusy_TieBreaksByID(t *testing.T) {
	candidates := []types.ID{"w9", "w2", "w5"}
	delivered := map[types.ID]int{"w9": 4, "w2": 4, "w5": 4}
	if got := PickLeastBusy(candidates, delivered); got != "w2" {
		t.Fatalf("tie should break by ascending id, got %s", got)
	}
}

func TestPickLeastBusy_DoesNotMutateInput(t *testing.T) {
	candidates := []types.ID{"w3", "w1", "w2"}
	PickLeastBusy(candidates, map[types.ID]int{})
	want := []types.ID{"w3", "w1", "w2"}
	for i, id := range candidates {
		if id != want[i] {
			t.Fatalf("candidate slice mutated at %d: %s", i, id)
		}
	}
}

// ---------------------------------------------------------------------------
// Engine tests with in-memory mock stores
// ---------------------------------------------------------------------------

type mockOrderBook struct {
	mu        sync.Mutex
	orders    map[types.ID]*order.Order
	busy      []types.ID
	delivered map[types.ID]int
}

func newMockOrderBook() *mockOrderBook {
	return &mockOrderBook{
		orders:    make(map[types.ID]*order.Order),
		delivered: make(map[types.ID]int),
	}
}

func (m *mockOrderBook) Get(_ context.Context, id types.ID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	cp.RejectedWorkerIDs = append([]types.ID(nil), o.RejectedWorkerIDs...)
	return &cp, nil
}

func (m *mockOrderBook) Offer(_ context.Context, id, workerID types.ID, version int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	if o == nil || o.StatusVersion != version ||
		(o.Status != order.StatusUnassigned && o.Status != order.StatusPendingAssignment) {
		return false, nil
	}
	o.Status = order.StatusPendingAssignment
	o.StatusVersion++
	o.OfferedWorkerID = &workerID
	o.AssignedAt = &now
	return true, nil
}

func (m *mockOrderBook) Park(_ context.Context, id types.ID, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	if o == nil || o.StatusVersion != version {
		return false, nil
	}
	o.Status = order.StatusUnassigned
	o.StatusVersion++
	o.OfferedWorkerID = nil
	o.AssignedAt = nil
	return true, nil
}

func (m *mockOrderBook) requeue(id, workerID types.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.Status = order.StatusUnassigned
	o.StatusVersion++
	o.RejectedWorkerIDs = append(o.RejectedWorkerIDs, workerID)
	o.OfferedWorkerID = nil
	o.AssignedAt = nil
}

func (m *mockOrderBook) BusyWorkerIDs(context.Context) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ID(nil), m.busy...), nil
}

func (m *mockOrderBook) DeliveredCounts(context.Context) (map[types.ID]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[types.ID]int, len(m.delivered))
	for k, v := range m.delivered {
		out[k] = v
	}
	return out, nil
}

func (m *mockOrderBook) ListPendingOfferedBefore(_ context.Context, cutoff time.Time) ([]*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*order.Order
	for _, o := range m.orders {
		if o.Status == order.StatusPendingAssignment && o.AssignedAt != nil && o.AssignedAt.Before(cutoff) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockPresence struct {
	online []types.ID
}

func (m *mockPresence) OnlineWorkerIDs(context.Context) ([]types.ID, error) {
	return append([]types.ID(nil), m.online...), nil
}

func seedOrder(book *mockOrderBook, id types.ID, status order.Status) *order.Order {
	o := &order.Order{ID: id, Status: status}
	book.orders[id] = o
	return o
}

func TestAssign_OffersLeastBusyOnlineWorker(t *testing.T) {
	book := newMockOrderBook()
	seedOrder(book, "o1", order.StatusUnassigned)
	book.delivered = map[types.ID]int{"w1": 9, "w2": 2}
	presence := &mockPresence{online: []types.ID{"w1", "w2"}}
	engine := NewEngine(book, presence, nil)

	if err := engine.Assign(context.Background(), "o1", nil); err != nil {
		t.Fatalf("assign: %v", err)
	}

	o, _ := book.Get(context.Background(), "o1")
	if o.Status != order.StatusPendingAssignment {
		t.Fatalf("expected pending_assignment, got %s", o.Status)
	}
	if o.OfferedWorkerID == nil || *o.OfferedWorkerID != "w2" {
		t.Fatalf("expected offer to w2, got %v", o.OfferedWorkerID)
	}
	if o.AssignedAt == nil {
		t.Fatal("expected assignment timestamp to be stamped")
	}
}

func TestAssign_NeverSelectsBusyWorker(t *testing.T) {
	book := newMockOrderBook()
	seedOrder(book, "o1", order.StatusUnassigned)
	book.busy = []types.ID{"w1"}
	book.delivered = map[types.ID]int{"w1": 0, "w2": 50}
	presence := &mockPresence{online: []types.ID{"w1", "w2"}}
	engine := NewEngine(book, presence, nil)

	if err := engine.Assign(context.Background(), "o1", nil); err != nil {
		t.Fatalf("assign: %v", err)
	}
	o, _ := book.Get(context.Background(), "o1")
	if o.OfferedWorkerID == nil || *o.OfferedWorkerID != "w2" {
		t.Fatalf("busy worker must be skipped, got %v", o.OfferedWorkerID)
	}
}

func TestAssign_HonoursExclusionsAndRejectionList(t *testing.T) {
	book := newMockOrderBook()
	o := seedOrder(book, "o1", order.StatusUnassigned)
	o.RejectedWorkerIDs = []types.ID{"w2"}
	presence := &mockPresence{online: []types.ID{"w1", "w2", "w3"}}
	engine := NewEngine(book, presence, nil)

	if err := engine.Assign(context.Background(), "o1", []types.ID{"w1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, _ := book.Get(context.Background(), "o1")
	if got.OfferedWorkerID == nil || *got.OfferedWorkerID != "w3" {
		t.Fatalf("expected only w3 eligible, got %v", got.OfferedWorkerID)
	}
}

func TestAssign_EmptyPoolParksPendingOrder(t *testing.T) {
	book := newMockOrderBook()
	o := seedOrder(book, "o1", order.StatusPendingAssignment)
	w1 := types.ID("w1")
	now := time.Now()
	o.OfferedWorkerID = &w1
	o.AssignedAt = &now
	presence := &mockPresence{} // nobody online
	engine := NewEngine(book, presence, nil)

	if err := engine.Assign(context.Background(), "o1", nil); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, _ := book.Get(context.Background(), "o1")
	if got.Status != order.StatusUnassigned {
		t.Fatalf("expected parked unassigned, got %s", got.Status)
	}
	if got.OfferedWorkerID != nil {
		t.Fatal("expected offered worker to be cleared")
	}
}

func TestAssign_NoOpWhenOrderMovedOn(t *testing.T) {
	book := newMockOrderBook()
	seedOrder(book, "o1", order.StatusConfirmed)
	presence := &mockPresence{online: []types.ID{"w1"}}
	engine := NewEngine(book, presence, nil)

	if err := engine.Assign(context.Background(), "o1", nil); err != nil {
		t.Fatalf("assign on confirmed order should be a no-op, got %v", err)
	}
	got, _ := book.Get(context.Background(), "o1")
	if got.Status != order.StatusConfirmed {
		t.Fatalf("status must be untouched, got %s", got.Status)
	}
}

// ---------------------------------------------------------------------------
// Timeout monitor
// ---------------------------------------------------------------------------

// sweepRejecter mimics the order service's reject path against the mock
// book: requeue with the worker excluded, then re-run the engine.
type sweepRejecter struct {
	book   *mockOrderBook
	engine *Engine
	calls  []order.RejectCommand
}

func (r *sweepRejecter) Reject(ctx context.Context, cmd order.RejectCommand) error {
	r.calls = append(r.calls, cmd)
	r.book.requeue(cmd.OrderID, cmd.WorkerID)
	return r.engine.Assign(ctx, cmd.OrderID, nil)
}

func TestSweep_RequeuesStaleOfferAndReassigns(t *testing.T) {
	book := newMockOrderBook()
	o := seedOrder(book, "o1", order.StatusPendingAssignment)
	w1 := types.ID("w1")
	staleAt := time.Now().Add(-130 * time.Second)
	o.OfferedWorkerID = &w1
	o.AssignedAt = &staleAt

	presence := &mockPresence{online: []types.ID{"w1", "w2"}}
	engine := NewEngine(book, presence, nil)
	rejecter := &sweepRejecter{book: book, engine: engine}
	monitor := NewMonitor(book, rejecter, config.DispatchConfig{TickSeconds: 10, TimeoutSeconds: 120})

	monitor.Sweep(context.Background(), time.Now())

	if len(rejecter.calls) != 1 {
		t.Fatalf("expected 1 requeue, got %d", len(rejecter.calls))
	}
	if rejecter.calls[0].WorkerID != "w1" {
		t.Fatalf("expected w1 to be timed out, got %s", rejecter.calls[0].WorkerID)
	}

	got, _ := book.Get(context.Background(), "o1")
	if got.Status != order.StatusPendingAssignment {
		t.Fatalf("expected re-offer, got %s", got.Status)
	}
	if got.OfferedWorkerID == nil || *got.OfferedWorkerID != "w2" {
		t.Fatalf("expected next offer to w2, got %v", got.OfferedWorkerID)
	}
	if len(got.RejectedWorkerIDs) != 1 || got.RejectedWorkerIDs[0] != "w1" {
		t.Fatalf("expected w1 in rejection list, got %v", got.RejectedWorkerIDs)
	}
}

func TestSweep_LeavesFreshOffersAlone(t *testing.T) {
	book := newMockOrderBook()
	o := seedOrder(book, "o1", order.StatusPendingAssignment)
	w1 := types.ID("w1")
	recent := time.Now().Add(-30 * time.Second)
	o.OfferedWorkerID = &w1
	o.AssignedAt = &recent

	engine := NewEngine(book, &mockPresence{online: []types.ID{"w2"}}, nil)
	rejecter := &sweepRejecter{book: book, engine: engine}
	monitor := NewMonitor(book, rejecter, config.DispatchConfig{TickSeconds: 10, TimeoutSeconds: 120})

	monitor.Sweep(context.Background(), time.Now())

	if len(rejecter.calls) != 0 {
		t.Fatalf("fresh offer must not be requeued, got %d calls", len(rejecter.calls))
	}
	got, _ := book.Get(context.Background(), "o1")
	if got.OfferedWorkerID == nil || *got.OfferedWorkerID != "w1" {
		t.Fatalf("offer must be untouched, got %v", got.OfferedWorkerID)
	}
}
