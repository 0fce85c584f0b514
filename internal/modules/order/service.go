// README: Order service implements the state machine and its side effects.
package order

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wasil/internal/modules/coupon"
	"wasil/internal/modules/inventory"
	"wasil/internal/notify"
	"wasil/internal/types"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrMerchantNotFound  = errors.New("store not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConflict          = errors.New("order state conflict")
	// ErrWorkerNotEligible is returned when a worker acts on an order that
	// is no longer (or never was) theirs: stale offer, timed-out accept,
	// or a forward step by a different worker.
	ErrWorkerNotEligible = errors.New("order no longer available to this worker")
	ErrBadRequest        = errors.New("bad request")
)

// FeeQuoter prices the delivery leg (distance first, zone fallback).
type FeeQuoter interface {
	Quote(ctx context.Context, from, to types.Point, zone string) (types.Money, error)
}

// Geocoder resolves a free-text address to coordinates. Optional.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

// WorkerDirectory is the slice of the worker module the state machine needs.
type WorkerDirectory interface {
	Name(ctx context.Context, id types.ID) (string, error)
	RecordDelivery(ctx context.Context, id types.ID, now time.Time) error
}

// Assigner re-invokes the dispatch engine for an order.
type Assigner interface {
	Assign(ctx context.Context, orderID types.ID, excluded []types.ID) error
}

type Service struct {
	store     *Store
	inventory *inventory.Ledger
	coupons   *coupon.Ledger
	fees      FeeQuoter
	geocoder  Geocoder
	workers   WorkerDirectory
	assigner  Assigner
	notify    notify.Sender
}

type ServiceDeps struct {
	Inventory *inventory.Ledger
	Coupons   *coupon.Ledger
	Fees      FeeQuoter
	Geocoder  Geocoder
	Workers   WorkerDirectory
	Notify    notify.Sender
}

func NewService(store *Store, deps ServiceDeps) *Service {
	return &Service{
		store:     store,
		inventory: deps.Inventory,
		coupons:   deps.Coupons,
		fees:      deps.Fees,
		geocoder:  deps.Geocoder,
		workers:   deps.Workers,
		notify:    deps.Notify,
	}
}

// SetAssigner wires the dispatch engine after construction; the engine
// itself depends on this service's store, so the cycle is closed in main.
func (s *Service) SetAssigner(a Assigner) {
	s.assigner = a
}

type Line struct {
	ProductID types.ID
	SizeName  string
	Quantity  int
}

type AddressInput struct {
	Name     string
	Phone    string
	Zone     string
	Details  string
	Location types.Point
}

type PlaceCommand struct {
	UserID     types.ID
	StoreID    types.ID
	Lines      []Line
	Address    AddressInput
	CouponCode string
}

type ConfirmCommand struct {
	OrderID  types.ID
	WorkerID types.ID
}

type RejectCommand struct {
	OrderID  types.ID
	WorkerID types.ID
	Reason   string
}

type CancelCommand struct {
	OrderID types.ID
	Actor   ActorType
	ActorID types.ID
}

type PrepareCommand struct {
	OrderID types.ID
}

type ReadyCommand struct {
	OrderID types.ID
}

type PickupCommand struct {
	OrderID  types.ID
	WorkerID types.ID
}

type DeliverCommand struct {
	OrderID  types.ID
	WorkerID types.ID
}

// Place runs the checkout transaction: coupon redemption, stock
// reservation with authoritative re-pricing, fee computation and order
// creation, all atomic. On success the dispatch engine is invoked and the
// store owner is notified best-effort.
func (s *Service) Place(ctx context.Context, cmd PlaceCommand) (types.ID, error) {
	if cmd.UserID == "" || cmd.StoreID == "" || len(cmd.Lines) == 0 {
		return "", ErrBadRequest
	}
	for _, l := range cmd.Lines {
		if l.ProductID == "" || l.Quantity < 1 {
			return "", ErrBadRequest
		}
	}

	merchant, err := s.store.GetMerchant(ctx, cmd.StoreID)
	if err != nil {
		return "", err
	}

	loc := cmd.Address.Location
	if loc.IsZero() && s.geocoder != nil && cmd.Address.Details != "" {
		if p, err := s.geocoder.Geocode(ctx, cmd.Address.Details); err == nil {
			loc = p
		}
	}
	fee, err := s.fees.Quote(ctx, merchant.Location, loc, cmd.Address.Zone)
	if err != nil {
		return "", err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var discount int64
	if cmd.CouponCode != "" {
		discount, err = s.coupons.Redeem(ctx, tx, cmd.CouponCode, cmd.UserID)
		if err != nil {
			return "", err
		}
	}

	var subtotal int64
	items := make([]Item, 0, len(cmd.Lines))
	for _, l := range cmd.Lines {
		quote, err := s.inventory.Reserve(ctx, tx, inventory.Line{
			ProductID: l.ProductID,
			SizeName:  l.SizeName,
			Quantity:  l.Quantity,
		})
		if err != nil {
			return "", err
		}
		if quote.StoreID != cmd.StoreID {
			return "", ErrBadRequest
		}
		subtotal += quote.UnitPrice * int64(l.Quantity)
		items = append(items, Item{
			ProductID:   l.ProductID,
			ProductName: quote.ProductName,
			SizeName:    l.SizeName,
			Quantity:    l.Quantity,
			UnitPrice:   quote.UnitPrice,
		})
	}

	discounted := subtotal - discount
	if discounted < 0 {
		discounted = 0
	}

	now := time.Now()
	o := &Order{
		ID:            types.ID(uuid.NewString()),
		UserID:        cmd.UserID,
		StoreID:       cmd.StoreID,
		Status:        StatusUnassigned,
		StatusVersion: 0,
		Subtotal:      subtotal,
		DeliveryFee:   fee.Amount,
		Discount:      discount,
		Total:         discounted + fee.Amount,
		CouponCode:    cmd.CouponCode,
		Address: Address{
			Name:     cmd.Address.Name,
			Phone:    cmd.Address.Phone,
			Zone:     cmd.Address.Zone,
			Location: loc,
			Details:  cmd.Address.Details,
		},
		CreatedAt: now,
		Items:     items,
	}
	if err := s.store.CreateTx(ctx, tx, o); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}

	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusUnassigned,
		ActorType:  ActorCustomer,
		ActorID:    &cmd.UserID,
		CreatedAt:  now,
	})
	if s.notify != nil {
		_ = s.notify.Send(ctx, notify.RoleOwner, cmd.StoreID, "New order "+string(o.ID)+" placed")
	}
	if s.assigner != nil {
		if err := s.assigner.Assign(ctx, o.ID, nil); err != nil {
			slog.Warn("dispatch after placement", "order_id", string(o.ID), "error", err)
		}
	}
	return o.ID, nil
}

// Confirm is the offered worker accepting. The store predicate doubles as
// the fencing check against late accepts after a timeout requeue.
func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status != StatusPendingAssignment || o.OfferedWorkerID == nil || *o.OfferedWorkerID != cmd.WorkerID {
		return ErrWorkerNotEligible
	}
	name, err := s.workers.Name(ctx, cmd.WorkerID)
	if err != nil {
		return err
	}
	ok, err := s.store.Confirm(ctx, o.ID, cmd.WorkerID, name, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWorkerNotEligible
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusPendingAssignment,
		ToStatus:   StatusConfirmed,
		ActorType:  ActorWorker,
		ActorID:    &cmd.WorkerID,
		CreatedAt:  time.Now(),
	})
	return nil
}

// Reject handles both an explicit worker rejection and a monitor timeout:
// the worker joins the exclusion list and the engine is re-invoked.
func (s *Service) Reject(ctx context.Context, cmd RejectCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status != StatusPendingAssignment || o.OfferedWorkerID == nil || *o.OfferedWorkerID != cmd.WorkerID {
		return ErrWorkerNotEligible
	}
	ok, err := s.store.Requeue(ctx, o.ID, cmd.WorkerID, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	actor := ActorWorker
	if cmd.Reason == "offer_timeout" {
		actor = ActorSystem
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusPendingAssignment,
		ToStatus:   StatusUnassigned,
		ActorType:  actor,
		ActorID:    &cmd.WorkerID,
		Reason:     cmd.Reason,
		CreatedAt:  time.Now(),
	})
	if s.assigner != nil {
		if err := s.assigner.Assign(ctx, o.ID, append(o.RejectedWorkerIDs, cmd.WorkerID)); err != nil {
			slog.Warn("dispatch after requeue", "order_id", string(o.ID), "error", err)
		}
	}
	return nil
}

// Cancel reverses the order. The restock and the status write share one
// transaction so a failed cancel never corrupts stock. Customers may only
// cancel before a worker has confirmed.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return ErrInvalidTransition
	}
	if cmd.Actor == ActorCustomer && o.Status != StatusUnassigned && o.Status != StatusPendingAssignment {
		return ErrInvalidTransition
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	items, err := s.store.ItemsTx(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := s.inventory.Release(ctx, tx, inventory.Line{
			ProductID: it.ProductID,
			SizeName:  it.SizeName,
			Quantity:  it.Quantity,
		}); err != nil {
			return err
		}
	}
	ok, err := s.store.CancelTx(ctx, tx, o.ID, o.Status, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	actorID := cmd.ActorID
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusCancelled,
		ActorType:  cmd.Actor,
		ActorID:    &actorID,
		CreatedAt:  time.Now(),
	})
	return nil
}

// Prepare is the restaurant accepting the order for the kitchen. Allowed
// from confirmed, or from unassigned when no worker is needed yet.
func (s *Service) Prepare(ctx context.Context, cmd PrepareCommand) error {
	return s.forward(ctx, cmd.OrderID, StatusPreparing, ActorRestaurant, nil,
		StatusConfirmed, StatusUnassigned)
}

func (s *Service) Ready(ctx context.Context, cmd ReadyCommand) error {
	return s.forward(ctx, cmd.OrderID, StatusReadyForPickup, ActorRestaurant, nil,
		StatusPreparing)
}

func (s *Service) Pickup(ctx context.Context, cmd PickupCommand) error {
	return s.forwardByWorker(ctx, cmd.OrderID, cmd.WorkerID, StatusOnTheWay, StatusReadyForPickup)
}

// Deliver completes the order and triggers the worker's level bookkeeping.
func (s *Service) Deliver(ctx context.Context, cmd DeliverCommand) error {
	if err := s.forwardByWorker(ctx, cmd.OrderID, cmd.WorkerID, StatusDelivered, StatusOnTheWay); err != nil {
		return err
	}
	if s.workers != nil {
		_ = s.workers.RecordDelivery(ctx, cmd.WorkerID, time.Now())
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *Service) Events(ctx context.Context, id types.ID) ([]Event, error) {
	return s.store.Events(ctx, id)
}

func (s *Service) forward(ctx context.Context, id types.ID, to Status, actor ActorType, actorID *types.ID, validFrom ...Status) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	fromOK := false
	for _, f := range validFrom {
		if o.Status == f {
			fromOK = true
			break
		}
	}
	if !fromOK || !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, id, o.Status, to, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    id,
		FromStatus: o.Status,
		ToStatus:   to,
		ActorType:  actor,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (s *Service) forwardByWorker(ctx context.Context, id, workerID types.ID, to Status, validFrom Status) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.DeliveryWorkerID == nil || *o.DeliveryWorkerID != workerID {
		return ErrWorkerNotEligible
	}
	if o.Status != validFrom || !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, id, o.Status, to, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    id,
		FromStatus: o.Status,
		ToStatus:   to,
		ActorType:  ActorWorker,
		ActorID:    &workerID,
		CreatedAt:  time.Now(),
	})
	return nil
}
