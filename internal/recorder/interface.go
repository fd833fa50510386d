package recorder

import (
	"context"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/gpu"
)

// Collector receives every tick's samples. When recording is disabled a
// no-op collector stands in so callers never branch on the setting.
type Collector interface {
	Record(ctx context.Context, at time.Time, samples []gpu.Sample) error
	Close() error
}

// Repository persists sample rows.
type Repository interface {
	Record(at time.Time, samples []gpu.Sample) error
	Close() error
}
