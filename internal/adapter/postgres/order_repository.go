package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

const orderColumns = `
	id, status, customer_name, customer_email, customer_phone, pickup_time,
	estimated_prep_minutes, cancellation_reason,
	confirmed_at, started_preparing_at, ready_at, picked_up_at, cancelled_at,
	notification_sent, reminder_sent, version, created_at, updated_at`

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

// slotLockNamespace seeds the advisory lock hash so slot locks stay clear of
// the migration lock.
const slotLockNamespace = 740118804

func (r *orderRepository) Create(ctx context.Context, order domain.Order, entry domain.HistoryEntry, capacity int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if capacity > 0 {
		if err := reserveSlot(ctx, tx, order.PickupTime, capacity); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = tx.Exec(ctx, query, orderArgs(order)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order %s already exists: %w", order.ID, err)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// reserveSlot serializes checkouts for one pickup instant with a transaction
// scoped advisory lock, then counts the bookings already committed.
func reserveSlot(ctx context.Context, tx Tx, pickup time.Time, capacity int) error {
	key := pickup.UTC().Format(time.RFC3339)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, $2))`, key, int64(slotLockNamespace)); err != nil {
		return fmt.Errorf("failed to lock pickup slot: %w", err)
	}

	var booked int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE pickup_time = $1 AND status <> $2
	`, pickup, string(domain.StatusCancelled)).Scan(&booked)
	if err != nil {
		return fmt.Errorf("failed to count bookings: %w", err)
	}
	if booked >= capacity {
		return fmt.Errorf("%w: %s", domain.ErrSlotFull, pickup.Format("15:04"))
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// CompareAndSwap guards the update with the version column and appends the
// history entry in the same transaction.
func (r *orderRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, order domain.Order, entry *domain.HistoryEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE orders
		SET status = $3, customer_name = $4, customer_email = $5, customer_phone = $6,
		    pickup_time = $7, estimated_prep_minutes = $8, cancellation_reason = $9,
		    confirmed_at = $10, started_preparing_at = $11, ready_at = $12,
		    picked_up_at = $13, cancelled_at = $14,
		    notification_sent = $15, reminder_sent = $16, version = $17, updated_at = $18
		WHERE id = $1 AND version = $2
	`
	tag, err := tx.Exec(ctx, query,
		id, expectedVersion,
		string(order.Status), order.Customer.Name, order.Customer.Email, order.Customer.Phone,
		order.PickupTime, order.EstimatedPrepMinutes, order.CancellationReason,
		order.Timestamps.ConfirmedAt, order.Timestamps.StartedPreparingAt, order.Timestamps.ReadyAt,
		order.Timestamps.PickedUpAt, order.Timestamps.CancelledAt,
		order.NotificationSent, order.ReminderSent, order.Version, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var current int64
		err := tx.QueryRow(ctx, `SELECT version FROM orders WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read order version: %w", err)
		}
		return fmt.Errorf("%w: order %s at version %d, expected %d", domain.ErrStaleVersion, id, current, expectedVersion)
	}

	if entry != nil {
		if err := insertHistory(ctx, tx, *entry); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *orderRepository) ListReadyOlderThan(ctx context.Context, threshold time.Time) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1 AND reminder_sent = FALSE AND ready_at < $2
		ORDER BY ready_at ASC
	`

	rows, err := r.db.Query(ctx, query, string(domain.StatusReady), threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ready orders: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	query := `
		SELECT id, order_id, old_status, new_status, actor, notes, occurred_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			entry     domain.HistoryEntry
			oldStatus *string
			newStatus string
		)
		if err := rows.Scan(&entry.ID, &entry.OrderID, &oldStatus, &newStatus, &entry.Actor, &entry.Notes, &entry.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if oldStatus != nil {
			s := domain.Status(*oldStatus)
			entry.OldStatus = &s
		}
		entry.NewStatus = domain.Status(newStatus)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	// every order has a creation entry, so none means no order
	if len(entries) == 0 {
		return nil, domain.ErrOrderNotFound
	}
	return entries, nil
}

func (r *orderRepository) CountByPickupTime(ctx context.Context, from, to time.Time) (domain.Occupancy, error) {
	query := `
		SELECT pickup_time, COUNT(*)
		FROM orders
		WHERE status <> $1 AND pickup_time BETWEEN $2 AND $3
		GROUP BY pickup_time
	`

	rows, err := r.db.Query(ctx, query, string(domain.StatusCancelled), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	defer rows.Close()

	occupancy := domain.Occupancy{}
	for rows.Next() {
		var (
			at    time.Time
			count int
		)
		if err := rows.Scan(&at, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		occupancy[at.Unix()] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counts: %w", err)
	}

	return occupancy, nil
}

func insertHistory(ctx context.Context, tx Tx, entry domain.HistoryEntry) error {
	query := `
		INSERT INTO order_history (order_id, old_status, new_status, actor, notes, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var oldStatus *string
	if entry.OldStatus != nil {
		s := string(*entry.OldStatus)
		oldStatus = &s
	}
	_, err := tx.Exec(ctx, query, entry.OrderID, oldStatus, string(entry.NewStatus), entry.Actor, entry.Notes, entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to log status: %w", err)
	}
	return nil
}

func orderArgs(o domain.Order) []any {
	return []any{
		o.ID, string(o.Status), o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.PickupTime,
		o.EstimatedPrepMinutes, o.CancellationReason,
		o.Timestamps.ConfirmedAt, o.Timestamps.StartedPreparingAt, o.Timestamps.ReadyAt,
		o.Timestamps.PickedUpAt, o.Timestamps.CancelledAt,
		o.NotificationSent, o.ReminderSent, o.Version, o.CreatedAt, o.UpdatedAt,
	}
}

func scanOrder(row Row) (domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := row.Scan(
		&o.ID, &status, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.PickupTime,
		&o.EstimatedPrepMinutes, &o.CancellationReason,
		&o.Timestamps.ConfirmedAt, &o.Timestamps.StartedPreparingAt, &o.Timestamps.ReadyAt,
		&o.Timestamps.PickedUpAt, &o.Timestamps.CancelledAt,
		&o.NotificationSent, &o.ReminderSent, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.Status(status)
	return o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
