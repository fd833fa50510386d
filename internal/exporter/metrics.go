package exporter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"codeberg.org/mutker/nvidiamon/internal/monitor"
)

// collectors groups the Prometheus instruments fed from each tick. A
// private registry keeps the surface self-contained, so tests can run
// several servers side by side.
type collectors struct {
	registry *prometheus.Registry

	utilization       *prometheus.GaugeVec
	memoryUsed        *prometheus.GaugeVec
	memoryTotal       *prometheus.GaugeVec
	memoryUtilization *prometheus.GaugeVec
	memoryActivity    *prometheus.GaugeVec
	temperature       *prometheus.GaugeVec
	powerDraw         *prometheus.GaugeVec
	powerLimit        *prometheus.GaugeVec
	fanSpeed          *prometheus.GaugeVec
	clockSpeed        *prometheus.GaugeVec
	processes         *prometheus.GaugeVec

	alerts *prometheus.CounterVec
	ticks  prometheus.Counter
}

func newCollectors() *collectors {
	deviceLabels := []string{"device", "name"}
	deviceGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, deviceLabels)
	}

	c := &collectors{
		registry: prometheus.NewRegistry(),

		utilization:       deviceGauge("nvidiamon_utilization_percent", "GPU utilization"),
		memoryUsed:        deviceGauge("nvidiamon_memory_used_mebibytes", "VRAM in use"),
		memoryTotal:       deviceGauge("nvidiamon_memory_total_mebibytes", "VRAM installed"),
		memoryUtilization: deviceGauge("nvidiamon_memory_utilization_percent", "VRAM in use relative to installed"),
		memoryActivity:    deviceGauge("nvidiamon_memory_activity_percent", "Memory controller activity"),
		temperature:       deviceGauge("nvidiamon_temperature_celsius", "Core temperature"),
		powerDraw:         deviceGauge("nvidiamon_power_draw_watts", "Current power draw"),
		powerLimit:        deviceGauge("nvidiamon_power_limit_watts", "Enforced power limit"),
		fanSpeed:          deviceGauge("nvidiamon_fan_speed_percent", "Fan speed"),
		clockSpeed:        deviceGauge("nvidiamon_clock_mhz", "Graphics clock"),
		processes:         deviceGauge("nvidiamon_processes", "Processes holding device memory"),

		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nvidiamon_alerts_total",
			Help: "Threshold alerts raised since startup",
		}, []string{"device", "metric"}),

		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvidiamon_ticks_total",
			Help: "Completed sample ticks since startup",
		}),
	}

	c.registry.MustRegister(
		c.utilization,
		c.memoryUsed,
		c.memoryTotal,
		c.memoryUtilization,
		c.memoryActivity,
		c.temperature,
		c.powerDraw,
		c.powerLimit,
		c.fanSpeed,
		c.clockSpeed,
		c.processes,
		c.alerts,
		c.ticks,
	)

	return c
}

// observe updates every instrument from one completed tick. Gauges always
// reflect the latest tick; failed ticks never reach here, so stale values
// persist until the next successful sample.
func (c *collectors) observe(t monitor.Tick) {
	for _, s := range t.Samples {
		device := strconv.Itoa(s.Device)

		c.utilization.WithLabelValues(device, s.Name).Set(s.Utilization)
		c.memoryUsed.WithLabelValues(device, s.Name).Set(s.MemoryUsed)
		c.memoryTotal.WithLabelValues(device, s.Name).Set(s.MemoryTotal)
		c.memoryUtilization.WithLabelValues(device, s.Name).Set(s.MemoryUtilization)
		c.memoryActivity.WithLabelValues(device, s.Name).Set(s.MemoryActivity)
		c.temperature.WithLabelValues(device, s.Name).Set(s.Temperature)
		c.powerDraw.WithLabelValues(device, s.Name).Set(s.PowerDraw)
		c.powerLimit.WithLabelValues(device, s.Name).Set(s.PowerLimit)
		c.fanSpeed.WithLabelValues(device, s.Name).Set(s.FanSpeed)
		c.clockSpeed.WithLabelValues(device, s.Name).Set(s.ClockSpeed)
		c.processes.WithLabelValues(device, s.Name).Set(float64(len(s.Processes)))
	}

	for _, event := range t.Events {
		c.alerts.WithLabelValues(strconv.Itoa(event.Device), string(event.Metric)).Inc()
	}

	c.ticks.Inc()
}
