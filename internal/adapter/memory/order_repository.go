package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

// OrderRepository keeps orders in process memory. The compare-and-swap contract
// is the same as the Postgres adapter's.
type OrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]domain.Order
	history map[string][]domain.HistoryEntry
	nextID  int64
}

var _ interfaces.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:  make(map[string]domain.Order),
		history: make(map[string][]domain.HistoryEntry),
	}
}

func (r *OrderRepository) Create(_ context.Context, order domain.Order, entry domain.HistoryEntry, capacity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	if capacity > 0 && r.bookedLocked(order.PickupTime) >= capacity {
		return fmt.Errorf("%w: %s", domain.ErrSlotFull, order.PickupTime.Format("15:04"))
	}

	r.orders[order.ID] = order
	r.appendLocked(order.ID, entry)
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (r *OrderRepository) CompareAndSwap(_ context.Context, id string, expectedVersion int64, order domain.Order, entry *domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: order %s at version %d, expected %d", domain.ErrStaleVersion, id, current.Version, expectedVersion)
	}

	r.orders[id] = order
	if entry != nil {
		r.appendLocked(id, *entry)
	}
	return nil
}

func (r *OrderRepository) ListReadyOlderThan(_ context.Context, threshold time.Time) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Order
	for _, o := range r.orders {
		if o.Status != domain.StatusReady || o.ReminderSent {
			continue
		}
		readyAt, ok := o.Timestamps.Get(domain.StatusReady)
		if !ok || !readyAt.Before(threshold) {
			continue
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamps.ReadyAt.Before(*out[j].Timestamps.ReadyAt)
	})
	return out, nil
}

func (r *OrderRepository) History(_ context.Context, id string) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.orders[id]; !ok {
		return nil, domain.ErrOrderNotFound
	}
	return slices.Clone(r.history[id]), nil
}

func (r *OrderRepository) CountByPickupTime(_ context.Context, from, to time.Time) (domain.Occupancy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	occupancy := domain.Occupancy{}
	for _, o := range r.orders {
		if o.Status == domain.StatusCancelled {
			continue
		}
		if o.PickupTime.Before(from) || o.PickupTime.After(to) {
			continue
		}
		occupancy.Add(o.PickupTime)
	}
	return occupancy, nil
}

func (r *OrderRepository) bookedLocked(pickup time.Time) int {
	n := 0
	for _, o := range r.orders {
		if o.Status != domain.StatusCancelled && o.PickupTime.Equal(pickup) {
			n++
		}
	}
	return n
}

func (r *OrderRepository) appendLocked(id string, entry domain.HistoryEntry) {
	r.nextID++
	entry.ID = r.nextID
	r.history[id] = append(r.history[id], entry)
}
