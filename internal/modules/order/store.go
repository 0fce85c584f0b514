// README: Order store backed by PostgreSQL with optimistic status CAS.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wasil/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Begin opens a transaction for the multi-ledger operations (placement,
// cancellation restock).
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.db.Begin(ctx)
}

const orderColumns = `
	id, user_id, store_id, status, status_version,
	subtotal, delivery_fee, discount, total, coupon_code,
	address_name, address_phone, address_zone, address_lat, address_lng, address_details,
	offered_worker_id, assigned_at, delivery_worker_id, delivery_worker_name, rejected_worker_ids,
	is_paid, is_fee_paid,
	created_at, confirmed_at, delivered_at, cancelled_at`

// CreateTx inserts the order and its items inside the placement transaction.
func (s *Store) CreateTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, store_id, status, status_version,
			subtotal, delivery_fee, discount, total, coupon_code,
			address_name, address_phone, address_zone, address_lat, address_lng, address_details,
			rejected_worker_ids, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16,
			'{}', $17
		)`,
		string(o.ID), string(o.UserID), string(o.StoreID), string(o.Status), o.StatusVersion,
		o.Subtotal, o.DeliveryFee, o.Discount, o.Total, o.CouponCode,
		o.Address.Name, o.Address.Phone, o.Address.Zone, o.Address.Location.Lat, o.Address.Location.Lng, o.Address.Details,
		o.CreatedAt,
	)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, size_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			string(o.ID), string(it.ProductID), it.ProductName, it.SizeName, it.Quantity, it.UnitPrice,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, string(id))
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var offeredWorker, deliveryWorker, workerName *string
	var rejected []string

	err := row.Scan(
		&o.ID, &o.UserID, &o.StoreID, &o.Status, &o.StatusVersion,
		&o.Subtotal, &o.DeliveryFee, &o.Discount, &o.Total, &o.CouponCode,
		&o.Address.Name, &o.Address.Phone, &o.Address.Zone, &o.Address.Location.Lat, &o.Address.Location.Lng, &o.Address.Details,
		&offeredWorker, &o.AssignedAt, &deliveryWorker, &workerName, &rejected,
		&o.IsPaid, &o.IsFeePaid,
		&o.CreatedAt, &o.ConfirmedAt, &o.DeliveredAt, &o.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if offeredWorker != nil {
		v := types.ID(*offeredWorker)
		o.OfferedWorkerID = &v
	}
	if deliveryWorker != nil {
		v := types.ID(*deliveryWorker)
		o.DeliveryWorkerID = &v
	}
	if workerName != nil {
		o.DeliveryWorkerName = *workerName
	}
	o.RejectedWorkerIDs = make([]types.ID, len(rejected))
	for i, r := range rejected {
		o.RejectedWorkerIDs[i] = types.ID(r)
	}
	return &o, nil
}

// Items loads the order lines. The tx variant is used inside the
// cancellation transaction so the restock reads a consistent snapshot.
func (s *Store) Items(ctx context.Context, id types.ID) ([]Item, error) {
	rows, err := s.db.Query(ctx, itemsQuery, string(id))
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func (s *Store) ItemsTx(ctx context.Context, tx pgx.Tx, id types.ID) ([]Item, error) {
	rows, err := tx.Query(ctx, itemsQuery, string(id))
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

const itemsQuery = `
	SELECT product_id, product_name, size_name, quantity, unit_price
	FROM order_items
	WHERE order_id = $1
	ORDER BY id`

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.SizeName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Offer moves the order to pending_assignment for workerID. The version
// predicate makes racing engine invocations and confirmations exclusive.
func (s *Store) Offer(ctx context.Context, id, workerID types.ID, version int, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = 'pending_assignment',
		    status_version = status_version + 1,
		    offered_worker_id = $1,
		    assigned_at = $2
		WHERE id = $3
		  AND status IN ('unassigned', 'pending_assignment')
		  AND status_version = $4`,
		string(workerID), now, string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Park returns the order to unassigned with no offered worker, keeping the
// rejection list. Used when the candidate pool is empty.
func (s *Store) Park(ctx context.Context, id types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = 'unassigned',
		    status_version = status_version + 1,
		    offered_worker_id = NULL,
		    assigned_at = NULL
		WHERE id = $1
		  AND status IN ('unassigned', 'pending_assignment')
		  AND status_version = $2`,
		string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Confirm freezes the accepting worker onto the order. The offered-worker
// predicate is the fencing check: a late accept after the timeout monitor
// has requeued the order matches zero rows.
func (s *Store) Confirm(ctx context.Context, id, workerID types.ID, workerName string, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = 'confirmed',
		    status_version = status_version + 1,
		    delivery_worker_id = $1,
		    delivery_worker_name = $2,
		    offered_worker_id = NULL,
		    assigned_at = NULL,
		    confirmed_at = NOW()
		WHERE id = $3
		  AND status = 'pending_assignment'
		  AND offered_worker_id = $1
		  AND status_version = $4`,
		string(workerID), workerName, string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Requeue records a rejection or timeout: the offered worker joins the
// exclusion list and the order drops back to unassigned.
func (s *Store) Requeue(ctx context.Context, id, workerID types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = 'unassigned',
		    status_version = status_version + 1,
		    rejected_worker_ids = array_append(rejected_worker_ids, $1),
		    offered_worker_id = NULL,
		    assigned_at = NULL
		WHERE id = $2
		  AND status = 'pending_assignment'
		  AND offered_worker_id = $1
		  AND status_version = $3`,
		string(workerID), string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStatus performs the plain forward transitions with a CAS on the
// current status and version, stamping stage timestamps as they are reached.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelTx writes the cancelled status inside the restock transaction.
func (s *Store) CancelTx(ctx context.Context, tx pgx.Tx, id types.ID, from Status, version int) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = 'cancelled',
		    status_version = status_version + 1,
		    offered_worker_id = NULL,
		    assigned_at = NULL,
		    cancelled_at = NOW()
		WHERE id = $1 AND status = $2 AND status_version = $3`,
		string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// BusyWorkerIDs returns workers currently carrying an active order.
func (s *Store) BusyWorkerIDs(ctx context.Context) ([]types.ID, error) {
	statuses := make([]string, len(ActiveStatuses))
	for i, st := range ActiveStatuses {
		statuses[i] = string(st)
	}
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT delivery_worker_id
		FROM orders
		WHERE delivery_worker_id IS NOT NULL
		  AND status = ANY($1)`, statuses,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

// DeliveredCounts returns lifetime delivered-order counts per worker.
func (s *Store) DeliveredCounts(ctx context.Context) (map[types.ID]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT delivery_worker_id, COUNT(*)
		FROM orders
		WHERE delivery_worker_id IS NOT NULL AND status = 'delivered'
		GROUP BY delivery_worker_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[types.ID]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[types.ID(id)] = n
	}
	return counts, rows.Err()
}

// ListPendingOfferedBefore returns orders whose offer has been outstanding
// since before cutoff; the timeout monitor treats these as rejections.
func (s *Store) ListPendingOfferedBefore(ctx context.Context, cutoff time.Time) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+orderColumns+`
		FROM orders
		WHERE status = 'pending_assignment' AND assigned_at < $1
		ORDER BY assigned_at`, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) GetMerchant(ctx context.Context, id types.ID) (*Merchant, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, lat, lng, zone FROM stores WHERE id = $1`, string(id))
	var m Merchant
	err := row.Scan(&m.ID, &m.Name, &m.Location.Lat, &m.Location.Lng, &m.Zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMerchantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus), string(e.ActorType), actorID, e.Reason, e.CreatedAt,
	)
	return err
}

func (s *Store) Events(ctx context.Context, orderID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_type, actor_id, reason, created_at
		FROM order_state_events
		WHERE order_id = $1
		ORDER BY id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var e Event
		var actorID *string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			v := types.ID(*actorID)
			e.ActorID = &v
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
