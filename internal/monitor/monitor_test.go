package monitor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/nvidiamon/internal/alert"
	"codeberg.org/mutker/nvidiamon/internal/config"
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/history"
	"codeberg.org/mutker/nvidiamon/internal/monitor"
	"codeberg.org/mutker/nvidiamon/internal/proc"
)

const (
	testInterval = 20 * time.Millisecond
	waitTimeout  = 5 * time.Second
)

// scriptedSampler replays a fixed sequence of responses, repeating the
// last one once the script runs out.
type scriptedSampler struct {
	mu     sync.Mutex
	script []response
	calls  int
}

type response struct {
	samples []gpu.Sample
	err     error
}

func (s *scriptedSampler) Sample() ([]gpu.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.calls
	if step >= len(s.script) {
		step = len(s.script) - 1
	}
	s.calls++

	return s.script[step].samples, s.script[step].err
}

func (s *scriptedSampler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func steadySampler(samples ...gpu.Sample) *scriptedSampler {
	return &scriptedSampler{script: []response{{samples: samples}}}
}

func testSettings() config.Settings {
	return config.Settings{
		Thresholds: gpu.Thresholds{
			gpu.MetricTemperature:       80,
			gpu.MetricUtilization:       90,
			gpu.MetricMemoryUtilization: 90,
			gpu.MetricPowerDraw:         250,
		},
	}
}

func newEngine(t *testing.T, sampler monitor.Sampler, devices int) *monitor.Engine {
	t.Helper()

	engine, err := monitor.New(
		sampler,
		history.New(devices),
		alert.NewEngine(devices, nil, nil),
		testInterval,
		testSettings(),
	)
	require.NoError(t, err)

	return engine
}

// startEngine runs the engine until the test ends and returns a channel
// carrying every published tick.
func startEngine(t *testing.T, engine *monitor.Engine) <-chan monitor.Tick {
	t.Helper()

	ticks := make(chan monitor.Tick, 64)
	engine.Subscribe(func(tick monitor.Tick) { ticks <- tick })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		// Keep draining so a publish in flight can finish.
		for {
			select {
			case <-ticks:
			case <-done:
				return
			}
		}
	})

	return ticks
}

func waitTick(t *testing.T, ticks <-chan monitor.Tick) monitor.Tick {
	t.Helper()

	select {
	case tick := <-ticks:
		return tick
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a tick")
		return monitor.Tick{}
	}
}

func TestNewValidation(t *testing.T) {
	store := history.New(1)
	alerts := alert.NewEngine(1, nil, nil)

	_, err := monitor.New(nil, store, alerts, testInterval, testSettings())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))

	_, err = monitor.New(steadySampler(), store, alerts, 0, testSettings())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInterval))

	bad := testSettings()
	bad.Thresholds[gpu.MetricTemperature] = -1
	_, err = monitor.New(steadySampler(), store, alerts, testInterval, bad)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidThreshold))
}

func TestRunPublishesSequencedTicks(t *testing.T) {
	sampler := steadySampler(gpu.Sample{Device: 0, Name: "GPU0", Utilization: 50, Temperature: 60})
	engine := newEngine(t, sampler, 1)

	_, ok := engine.Latest()
	assert.False(t, ok, "no tick published before the loop starts")

	ticks := startEngine(t, engine)

	first := waitTick(t, ticks)
	assert.Equal(t, uint64(1), first.Seq)
	require.Len(t, first.Samples, 1)
	assert.Equal(t, "GPU0", first.Samples[0].Name)
	assert.Empty(t, first.Events)
	assert.False(t, first.Time.IsZero())

	second := waitTick(t, ticks)
	assert.Equal(t, uint64(2), second.Seq)

	latest, ok := engine.Latest()
	require.True(t, ok)
	assert.GreaterOrEqual(t, latest.Seq, second.Seq)
}

func TestRankingsAlwaysCarryARow(t *testing.T) {
	noProcs := gpu.Sample{Device: 0}
	withProcs := gpu.Sample{Device: 1, Processes: []gpu.ProcessEntry{
		{PID: 10, Kind: gpu.KindCompute, MemoryUsed: 5, Name: "small"},
		{PID: 20, Kind: gpu.KindGraphics, MemoryUsed: 20, Name: "large"},
	}}
	engine := newEngine(t, steadySampler(noProcs, withProcs), 2)
	ticks := startEngine(t, engine)

	tick := waitTick(t, ticks)
	require.Len(t, tick.Rankings, 2)

	require.Len(t, tick.Rankings[0], 1)
	assert.True(t, proc.IsPlaceholder(tick.Rankings[0][0]))

	require.Len(t, tick.Rankings[1], 2)
	assert.Equal(t, int32(20), tick.Rankings[1][0].PID, "largest consumer ranks first")
}

func TestPipelineFeedsHistoryAndAlerts(t *testing.T) {
	temps := []float64{85, 85, 70, 85}
	script := make([]response, 0, len(temps))
	for _, temp := range temps {
		script = append(script, response{samples: []gpu.Sample{{Device: 0, Temperature: temp}}})
	}
	sampler := &scriptedSampler{script: script}

	store := history.New(1)
	engine, err := monitor.New(sampler, store, alert.NewEngine(1, nil, nil), testInterval, testSettings())
	require.NoError(t, err)
	ticks := startEngine(t, engine)

	eventCounts := make([]int, 0, len(temps))
	for range temps {
		tick := waitTick(t, ticks)
		eventCounts = append(eventCounts, len(tick.Events))
	}

	assert.Equal(t, []int{1, 0, 0, 1}, eventCounts,
		"sustained breach alerts once and re-alerts only after clearing")

	values, _ := store.Snapshot(0, gpu.MetricTemperature)
	require.GreaterOrEqual(t, len(values), len(temps))
	assert.Equal(t, temps, values[:len(temps)])
}

func TestFailedTickIsSkippedNotFatal(t *testing.T) {
	errFactory := errors.New()
	sampler := &scriptedSampler{script: []response{
		{err: errFactory.New(errors.ErrUnavailable)},
		{err: errFactory.New(errors.ErrUnavailable)},
		{samples: []gpu.Sample{{Device: 0, Temperature: 60}}},
	}}
	engine := newEngine(t, sampler, 1)
	ticks := startEngine(t, engine)

	tick := waitTick(t, ticks)
	assert.Equal(t, uint64(1), tick.Seq, "failed ticks are skipped, not published")
	assert.GreaterOrEqual(t, sampler.callCount(), 3)
}

func TestUpdateSettings(t *testing.T) {
	engine := newEngine(t, steadySampler(gpu.Sample{Device: 0}), 1)

	next := testSettings()
	next.Thresholds[gpu.MetricTemperature] = 70
	next.Sound = true
	require.NoError(t, engine.UpdateSettings(next))

	got := engine.Settings()
	assert.InDelta(t, 70.0, got.Thresholds[gpu.MetricTemperature], 0.001)
	assert.True(t, got.Sound)

	invalid := testSettings()
	invalid.Thresholds[gpu.MetricPowerDraw] = 0
	err := engine.UpdateSettings(invalid)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidThreshold))

	got = engine.Settings()
	assert.InDelta(t, 70.0, got.Thresholds[gpu.MetricTemperature], 0.001,
		"rejected settings leave the previous ones in effect")
	assert.InDelta(t, 250.0, got.Thresholds[gpu.MetricPowerDraw], 0.001)
}

func TestNewSettingsApplyToLaterTicks(t *testing.T) {
	sampler := steadySampler(gpu.Sample{Device: 0, Temperature: 75})
	engine := newEngine(t, sampler, 1)
	ticks := startEngine(t, engine)

	tick := waitTick(t, ticks)
	assert.Empty(t, tick.Events, "75°C is below the 80°C threshold")

	lowered := testSettings()
	lowered.Thresholds[gpu.MetricTemperature] = 70
	require.NoError(t, engine.UpdateSettings(lowered))

	deadline := time.Now().Add(waitTimeout)
	alerted := false
	for time.Now().Before(deadline) {
		tick = waitTick(t, ticks)
		if len(tick.Events) > 0 {
			alerted = true
			break
		}
	}
	require.True(t, alerted, "lowered threshold must alert on a later tick")
	assert.Equal(t, gpu.MetricTemperature, tick.Events[0].Metric)
	assert.InDelta(t, 70.0, tick.Events[0].Threshold, 0.001)
}
