// Package history keeps bounded windows of recent metric readings so the
// presentation surfaces can render short-term trends without unbounded
// growth. One series exists per device and metric, sized at construction.
package history

import (
	"fmt"
	"sync"

	"codeberg.org/mutker/nvidiamon/internal/gpu"
)

// DefaultCapacity is the number of samples retained per series, one
// minute of history at the default sample interval.
const DefaultCapacity = 60

type key struct {
	device int
	metric gpu.Metric
}

// series is a fixed-capacity ring. head indexes the oldest element and
// size grows until it reaches capacity, after which every push evicts
// the oldest element.
type series struct {
	values []float64
	ticks  []int
	head   int
	size   int
	total  int
}

func (s *series) push(value float64) {
	pos := (s.head + s.size) % len(s.values)
	s.values[pos] = value
	s.ticks[pos] = s.total
	s.total++

	if s.size < len(s.values) {
		s.size++
	} else {
		s.head = (s.head + 1) % len(s.values)
	}
}

func (s *series) snapshot() ([]float64, []int) {
	values := make([]float64, s.size)
	ticks := make([]int, s.size)
	for i := 0; i < s.size; i++ {
		pos := (s.head + i) % len(s.values)
		values[i] = s.values[pos]
		ticks[i] = s.ticks[pos]
	}

	return values, ticks
}

// Store holds one series per device and alertable metric. Writes happen
// on the sampling tick; reads may come from other goroutines, so access
// is guarded.
type Store struct {
	mu       sync.RWMutex
	capacity int
	devices  int
	series   map[key]*series
}

// New creates a store for the given device count with DefaultCapacity.
func New(devices int) *Store {
	return NewWithCapacity(devices, DefaultCapacity)
}

// NewWithCapacity creates a store retaining capacity samples per series.
// The device count and capacity are construction contracts; violating
// them panics.
func NewWithCapacity(devices, capacity int) *Store {
	if devices < 1 {
		panic(fmt.Sprintf("history: device count %d out of range", devices))
	}
	if capacity < 1 {
		panic(fmt.Sprintf("history: capacity %d out of range", capacity))
	}

	st := &Store{
		capacity: capacity,
		devices:  devices,
		series:   make(map[key]*series, devices*len(gpu.Metrics())),
	}
	for device := 0; device < devices; device++ {
		for _, metric := range gpu.Metrics() {
			st.series[key{device, metric}] = &series{
				values: make([]float64, capacity),
				ticks:  make([]int, capacity),
			}
		}
	}

	return st
}

// Capacity returns the per-series retention limit.
func (st *Store) Capacity() int {
	return st.capacity
}

// Devices returns the device count fixed at construction.
func (st *Store) Devices() int {
	return st.devices
}

// Append records every alertable metric from the sample into the
// device's series. Passing a device index outside the range fixed at
// construction is a programming error and panics.
func (st *Store) Append(device int, sample gpu.Sample) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, metric := range gpu.Metrics() {
		st.lookup(device, metric).push(metric.Value(sample))
	}
}

// Snapshot returns copies of the retained values and their tick indices
// for one series, oldest first. The returned slices are the caller's to
// keep; later appends never mutate them.
func (st *Store) Snapshot(device int, metric gpu.Metric) ([]float64, []int) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.lookup(device, metric).snapshot()
}

func (st *Store) lookup(device int, metric gpu.Metric) *series {
	s, ok := st.series[key{device, metric}]
	if !ok {
		panic(fmt.Sprintf("history: no series for device %d metric %q", device, metric))
	}

	return s
}
