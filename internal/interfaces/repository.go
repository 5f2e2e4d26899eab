package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/pickup/internal/domain"
)

// Интерфейсы Репозиториев (Adapter/Postgres, Adapter/Memory)
type OrderRepository interface {
	// Create stores a new order with its creation history entry. When capacity is
	// positive the slot count and the insert are one atomic step, and a slot already
	// holding capacity non-cancelled orders yields domain.ErrSlotFull.
	Create(ctx context.Context, order domain.Order, entry domain.HistoryEntry, capacity int) error
	Get(ctx context.Context, id string) (domain.Order, error)
	// CompareAndSwap replaces the stored order only if its version still equals expectedVersion,
	// appending entry (when non-nil) in the same unit of work. A mismatch returns domain.ErrStaleVersion.
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, order domain.Order, entry *domain.HistoryEntry) error
	// ListReadyOlderThan returns ready orders entered before threshold that have not been reminded.
	ListReadyOlderThan(ctx context.Context, threshold time.Time) ([]domain.Order, error)
	History(ctx context.Context, id string) ([]domain.HistoryEntry, error)
	// CountByPickupTime counts non-cancelled orders per pickup instant in [from, to].
	CountByPickupTime(ctx context.Context, from, to time.Time) (domain.Occupancy, error)
}
