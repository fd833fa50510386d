package history_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/history"
)

func tempSample(temperature float64) gpu.Sample {
	return gpu.Sample{Temperature: temperature}
}

func TestAppendBelowCapacity(t *testing.T) {
	st := history.New(1)

	for i := 0; i < 5; i++ {
		st.Append(0, tempSample(float64(60 + i)))
	}

	values, ticks := st.Snapshot(0, gpu.MetricTemperature)
	require.Len(t, values, 5)
	assert.Equal(t, []float64{60, 61, 62, 63, 64}, values)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ticks)
}

func TestRetainsOnlyLastCapacitySamples(t *testing.T) {
	st := history.NewWithCapacity(1, 4)

	for i := 0; i < 10; i++ {
		st.Append(0, tempSample(float64(i)))
	}

	values, ticks := st.Snapshot(0, gpu.MetricTemperature)
	require.Len(t, values, 4)
	assert.Equal(t, []float64{6, 7, 8, 9}, values)
	assert.Equal(t, []int{6, 7, 8, 9}, ticks)
}

func TestDefaultCapacityIsOneMinute(t *testing.T) {
	st := history.New(1)
	require.Equal(t, 60, st.Capacity())

	for i := 0; i < 100; i++ {
		st.Append(0, tempSample(float64(i)))
	}

	values, _ := st.Snapshot(0, gpu.MetricTemperature)
	require.Len(t, values, 60)
	assert.InDelta(t, 40.0, values[0], 0.001, "oldest retained sample")
	assert.InDelta(t, 99.0, values[59], 0.001, "newest retained sample")
}

func TestAllMetricsRecorded(t *testing.T) {
	st := history.New(1)
	st.Append(0, gpu.Sample{
		Temperature:       70,
		Utilization:       95,
		MemoryUtilization: 42,
		PowerDraw:         180,
	})

	for metric, want := range map[gpu.Metric]float64{
		gpu.MetricTemperature:       70,
		gpu.MetricUtilization:       95,
		gpu.MetricMemoryUtilization: 42,
		gpu.MetricPowerDraw:         180,
	} {
		values, _ := st.Snapshot(0, metric)
		require.Len(t, values, 1, "metric %s", metric)
		assert.InDelta(t, want, values[0], 0.001, "metric %s", metric)
	}
}

func TestDevicesAreIsolated(t *testing.T) {
	st := history.New(2)
	st.Append(0, tempSample(60))
	st.Append(1, tempSample(80))

	first, _ := st.Snapshot(0, gpu.MetricTemperature)
	second, _ := st.Snapshot(1, gpu.MetricTemperature)
	assert.Equal(t, []float64{60}, first)
	assert.Equal(t, []float64{80}, second)
}

func TestSnapshotReturnsCopies(t *testing.T) {
	st := history.New(1)
	st.Append(0, tempSample(60))

	values, _ := st.Snapshot(0, gpu.MetricTemperature)
	values[0] = -1

	again, _ := st.Snapshot(0, gpu.MetricTemperature)
	assert.Equal(t, []float64{60}, again, "mutating a snapshot must not touch the store")
}

func TestPanicsOnUnknownDevice(t *testing.T) {
	st := history.New(1)

	assert.Panics(t, func() { st.Append(1, tempSample(60)) })
	assert.Panics(t, func() { st.Snapshot(-1, gpu.MetricTemperature) })
}

func TestPanicsOnUnknownMetric(t *testing.T) {
	st := history.New(1)

	assert.Panics(t, func() { st.Snapshot(0, gpu.Metric("fan_speed")) })
}

func TestPanicsOnInvalidConstruction(t *testing.T) {
	assert.Panics(t, func() { history.New(0) })
	assert.Panics(t, func() { history.NewWithCapacity(1, 0) })
}

func TestConcurrentSnapshotsDuringAppends(t *testing.T) {
	st := history.New(1)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			st.Append(0, tempSample(float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			values, ticks := st.Snapshot(0, gpu.MetricTemperature)
			assert.Len(t, ticks, len(values))
		}
	}()
	wg.Wait()

	values, _ := st.Snapshot(0, gpu.MetricTemperature)
	assert.Len(t, values, 60)
}
