// Package monitor drives the sampling pipeline. One tick at a fixed
// period pulls a snapshot from the GPU sampler, appends it to the history
// store, ranks each device's processes, runs the alert gates, and hands
// the assembled tick to every subscribed consumer. Ticks never overlap:
// the loop finishes one before waiting for the next period boundary.
package monitor

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/alert"
	"codeberg.org/mutker/nvidiamon/internal/config"
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/history"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/proc"
)

// Sampler yields one reading per device in index order. Implemented by
// gpu.Manager.
type Sampler interface {
	Sample() ([]gpu.Sample, error)
}

// Tick is the result of one pipeline run. The contained slices are shared
// between consumers and read-only; the engine never touches them again
// after publishing.
type Tick struct {
	Seq      uint64               `json:"seq"`
	Time     time.Time            `json:"time"`
	Samples  []gpu.Sample         `json:"samples"`
	Rankings [][]gpu.ProcessEntry `json:"rankings"`
	Events   []alert.Event        `json:"events"`
}

// Consumer receives every completed tick on the tick goroutine. A slow
// consumer delays the next tick, it never corrupts it.
type Consumer func(Tick)

// Engine owns the tick loop and the state that lives across ticks.
type Engine struct {
	sampler  Sampler
	history  *history.Store
	alerts   *alert.Engine
	interval time.Duration

	mu        sync.Mutex
	settings  config.Settings
	consumers []Consumer
	seq       uint64
	latest    Tick
	hasTick   bool
}

// New wires the pipeline. The settings are the unit captured at the start
// of every tick; invalid settings or a non-positive interval fail
// construction.
func New(
	sampler Sampler,
	store *history.Store,
	alerts *alert.Engine,
	interval time.Duration,
	settings config.Settings,
) (*Engine, error) {
	errFactory := errors.New()

	if sampler == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "monitor requires a sampler")
	}
	if store == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "monitor requires a history store")
	}
	if alerts == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "monitor requires an alert engine")
	}
	if interval <= 0 {
		return nil, errFactory.WithData(errors.ErrInvalidInterval, interval.String())
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		sampler:  sampler,
		history:  store,
		alerts:   alerts,
		interval: interval,
		settings: settings,
	}, nil
}

// Subscribe registers a consumer for every tick published from now on.
func (e *Engine) Subscribe(c Consumer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consumers = append(e.consumers, c)
}

// Settings returns the unit the next tick will capture. Callers must
// treat the contained threshold map as read-only.
func (e *Engine) Settings() config.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.settings
}

// UpdateSettings validates and replaces the settings used from the next
// tick on. Invalid settings are rejected and the previous ones stay in
// effect.
func (e *Engine) UpdateSettings(s config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()

	logger.Info().
		Float64("temperature", s.Thresholds[gpu.MetricTemperature]).
		Float64("utilization", s.Thresholds[gpu.MetricUtilization]).
		Float64("memory_utilization", s.Thresholds[gpu.MetricMemoryUtilization]).
		Float64("power_draw", s.Thresholds[gpu.MetricPowerDraw]).
		Bool("sound", s.Sound).
		Msg("Settings updated")

	return nil
}

// Latest returns the most recently published tick. ok is false until the
// first tick completes.
func (e *Engine) Latest() (Tick, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.latest, e.hasTick
}

// Run blocks driving the tick loop until ctx is cancelled. A failed tick
// is logged and skipped; the next one fires at the next period boundary,
// never immediately after.
func (e *Engine) Run(ctx context.Context) error {
	errFactory := errors.New()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	logger.Info().Str("interval", e.interval.String()).Msg("Monitoring started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Monitoring stopped")
			return nil
		case <-ticker.C:
			if err := e.tick(); err != nil {
				logger.ErrorWithCode(errFactory.Wrap(ErrTickFailed, err)).Msg("Tick skipped")
			}
		}
	}
}

// tick runs the pipeline once. Any panic out of the pipeline is converted
// to an error so the loop survives it.
func (e *Engine) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New().WithData(ErrTickPanicked, r)
		}
	}()

	settings := e.Settings()

	samples, err := e.sampler.Sample()
	if err != nil {
		return err
	}

	tick := Tick{
		Time:     time.Now(),
		Samples:  samples,
		Rankings: make([][]gpu.ProcessEntry, len(samples)),
	}

	for i, sample := range samples {
		e.history.Append(sample.Device, sample)
		tick.Rankings[i] = proc.Rank(sample.Processes)
		tick.Events = append(tick.Events, e.alerts.Process(sample, settings.Thresholds, settings.Sound)...)
	}

	e.publish(tick)

	return nil
}

func (e *Engine) publish(t Tick) {
	e.mu.Lock()
	e.seq++
	t.Seq = e.seq
	e.latest = t
	e.hasTick = true
	consumers := make([]Consumer, len(e.consumers))
	copy(consumers, e.consumers)
	e.mu.Unlock()

	for _, consume := range consumers {
		consume(t)
	}
}
