// README: Concurrency tests for checkout and assignment races (run with -race).
package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"wasil/internal/modules/coupon"
	"wasil/internal/modules/inventory"
	"wasil/internal/types"
)

func TestConcurrentPlace_LastUnitSoldOnce(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupTestService(t)
	seedStore(t, store.db, "s1")
	seedProduct(t, store.db, "p1", "s1", 2000, 1)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, user := range []types.ID{"u1", "u2"} {
		wg.Add(1)
		go func(uid types.ID) {
			defer wg.Done()
			_, err := svc.Place(ctx, PlaceCommand{
				UserID:  uid,
				StoreID: "s1",
				Lines:   []Line{{ProductID: "p1", Quantity: 1}},
				Address: AddressInput{Location: types.Point{Lat: 33.30, Lng: 44.40}},
			})
			errs <- err
		}(user)
	}
	wg.Wait()
	close(errs)

	success, outOfStock := 0, 0
	for err := range errs {
		switch err {
		case nil:
			success++
		case inventory.ErrOutOfStock:
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 || outOfStock != 1 {
		t.Fatalf("expected exactly one sale and one out-of-stock, got %d / %d", success, outOfStock)
	}
	if got := productStock(t, store.db, "p1"); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestConcurrentCouponRedeem_SingleUse(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupTestService(t)
	seedStore(t, store.db, "s1")
	seedProduct(t, store.db, "p1", "s1", 2000, 10)
	seedCoupon(t, store.db, "ONCE", 500, 1)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, user := range []types.ID{"u1", "u2"} {
		wg.Add(1)
		go func(uid types.ID) {
			defer wg.Done()
			_, err := svc.Place(ctx, PlaceCommand{
				UserID:     uid,
				StoreID:    "s1",
				Lines:      []Line{{ProductID: "p1", Quantity: 1}},
				Address:    AddressInput{Location: types.Point{Lat: 33.30, Lng: 44.40}},
				CouponCode: "ONCE",
			})
			errs <- err
		}(user)
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		switch err {
		case nil:
			success++
		case coupon.ErrExhausted:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one redemption, got %d", success)
	}

	var used int
	if err := store.db.QueryRow(ctx,
		`SELECT used_count FROM coupons WHERE code = 'ONCE'`).Scan(&used); err != nil {
		t.Fatalf("read coupon: %v", err)
	}
	if used != 1 {
		t.Fatalf("expected used_count 1, got %d", used)
	}
}

func TestConcurrentConfirmVsReject(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupTestService(t)
	seedStore(t, store.db, "s1")
	seedProduct(t, store.db, "p1", "s1", 2000, 5)
	orderID := placeTestOrder(t, svc, 1, "")

	if ok, err := store.Offer(ctx, orderID, "w1", 0, time.Now()); err != nil || !ok {
		t.Fatalf("offer: ok=%v err=%v", ok, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Confirm(ctx, ConfirmCommand{OrderID: orderID, WorkerID: "w1"})
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Reject(ctx, RejectCommand{OrderID: orderID, WorkerID: "w1", Reason: "offer_timeout"})
	}()
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrConflict && err != ErrWorkerNotEligible {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}

	o, err := svc.Get(ctx, orderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.Status != StatusConfirmed && o.Status != StatusUnassigned {
		t.Fatalf("unexpected final status: %s", o.Status)
	}
}

func TestConcurrentCancelVsConfirm(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupTestService(t)
	seedStore(t, store.db, "s1")
	seedProduct(t, store.db, "p1", "s1", 2000, 5)
	orderID := placeTestOrder(t, svc, 2, "")

	if ok, err := store.Offer(ctx, orderID, "w1", 0, time.Now()); err != nil || !ok {
		t.Fatalf("offer: ok=%v err=%v", ok, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Confirm(ctx, ConfirmCommand{OrderID: orderID, WorkerID: "w1"})
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Cancel(ctx, CancelCommand{OrderID: orderID, Actor: ActorCustomer, ActorID: "u1"})
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err == nil {
			continue
		}
		if err != ErrConflict && err != ErrWorkerNotEligible && err != ErrInvalidTransition {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	o, err := svc.Get(ctx, orderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	switch o.Status {
	case StatusCancelled:
		// the restock must have landed with the cancel
		if got := productStock(t, store.db, "p1"); got != 5 {
			t.Fatalf("expected stock back to 5 after cancel, got %d", got)
		}
	case StatusConfirmed:
		if got := productStock(t, store.db, "p1"); got != 3 {
			t.Fatalf("expected stock 3 while order lives, got %d", got)
		}
	default:
		t.Fatalf("unexpected final status: %s", o.Status)
	}
}
