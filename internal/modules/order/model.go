// README: Order aggregate, status definitions and the transition table.
package order

import (
	"time"

	"wasil/internal/types"
)

type Status string

const (
	StatusNone              Status = "none"
	StatusUnassigned        Status = "unassigned"
	StatusPendingAssignment Status = "pending_assignment"
	StatusConfirmed         Status = "confirmed"
	StatusPreparing         Status = "preparing"
	StatusReadyForPickup    Status = "ready_for_pickup"
	StatusOnTheWay          Status = "on_the_way"
	StatusDelivered         Status = "delivered"
	StatusCancelled         Status = "cancelled"
)

// ActorType identifies who drives a transition.
type ActorType string

const (
	ActorCustomer   ActorType = "customer"
	ActorRestaurant ActorType = "restaurant"
	ActorWorker     ActorType = "worker"
	ActorSystem     ActorType = "system"
)

// Order is the order aggregate. OfferedWorkerID is set if and only if the
// order is pending_assignment; DeliveryWorkerID is set at confirmation and
// never cleared afterwards so historical reporting keeps the worker.
type Order struct {
	ID            types.ID
	UserID        types.ID
	StoreID       types.ID
	Status        Status
	StatusVersion int

	Subtotal    int64
	DeliveryFee int64
	Discount    int64
	Total       int64
	CouponCode  string

	Address Address

	OfferedWorkerID    *types.ID
	AssignedAt         *time.Time
	DeliveryWorkerID   *types.ID
	DeliveryWorkerName string
	RejectedWorkerIDs  []types.ID

	IsPaid    bool
	IsFeePaid bool

	CreatedAt   time.Time
	ConfirmedAt *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time

	Items []Item
}

// Address is the delivery address snapshot frozen onto the order.
type Address struct {
	Name     string
	Phone    string
	Zone     string
	Location types.Point
	Details  string
}

// Item is one order line with the price and name snapshotted at placement,
// so later catalog edits never alter historical orders.
type Item struct {
	ProductID   types.ID
	ProductName string
	SizeName    string
	Quantity    int
	UnitPrice   int64
}

// Event is one audit row of the order's state history. Reason carries the
// trigger for requeue transitions (worker_reject vs offer_timeout).
type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  ActorType
	ActorID    *types.ID
	Reason     string
	CreatedAt  time.Time
}

// Merchant is the store/restaurant an order is placed against; only the
// fields the order core needs.
type Merchant struct {
	ID       types.ID
	Name     string
	Location types.Point
	Zone     string
}

// AllowedTransitions represents the order state flow (diagram) as code.
// pending_assignment loops to itself when the engine re-offers an order.
var AllowedTransitions = map[Status][]Status{
	StatusUnassigned:        {StatusPendingAssignment, StatusPreparing, StatusCancelled},
	StatusPendingAssignment: {StatusPendingAssignment, StatusConfirmed, StatusUnassigned, StatusCancelled},
	StatusConfirmed:         {StatusPreparing, StatusCancelled},
	StatusPreparing:         {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup:    {StatusOnTheWay, StatusCancelled},
	StatusOnTheWay:          {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func IsTerminal(s Status) bool {
	return len(AllowedTransitions[s]) == 0
}

// ActiveStatuses are the statuses during which the assigned worker counts
// as busy for dispatch purposes.
var ActiveStatuses = []Status{StatusConfirmed, StatusPreparing, StatusOnTheWay}
