package gpu

// Metric identifies one alertable reading produced for every device on
// every sample.
type Metric string

const (
	MetricTemperature       Metric = "temperature"
	MetricUtilization       Metric = "utilization"
	MetricMemoryUtilization Metric = "memory_utilization"
	MetricPowerDraw         Metric = "power_draw"
)

// Metrics returns the alertable metrics in a stable order.
func Metrics() []Metric {
	return []Metric{
		MetricTemperature,
		MetricUtilization,
		MetricMemoryUtilization,
		MetricPowerDraw,
	}
}

// Label returns the human-readable name used in alert and status messages.
func (m Metric) Label() string {
	switch m {
	case MetricTemperature:
		return "temperature"
	case MetricUtilization:
		return "utilization"
	case MetricMemoryUtilization:
		return "memory utilization"
	case MetricPowerDraw:
		return "power draw"
	}

	return string(m)
}

// Unit returns the display unit for the metric.
func (m Metric) Unit() string {
	switch m {
	case MetricTemperature:
		return "°C"
	case MetricUtilization, MetricMemoryUtilization:
		return "%"
	case MetricPowerDraw:
		return "W"
	}

	return ""
}

// Value extracts the metric's reading from a sample.
func (m Metric) Value(s Sample) float64 {
	switch m {
	case MetricTemperature:
		return s.Temperature
	case MetricUtilization:
		return s.Utilization
	case MetricMemoryUtilization:
		return s.MemoryUtilization
	case MetricPowerDraw:
		return s.PowerDraw
	}

	return 0
}

// Thresholds maps each alertable metric to its upper limit.
type Thresholds map[Metric]float64

// ProcessKind tags the engine a process was reported by, using the
// single-letter convention from nvidia-smi.
type ProcessKind string

const (
	KindCompute  ProcessKind = "C"
	KindGraphics ProcessKind = "G"
	KindUnknown  ProcessKind = "-"
)

// UnknownName is the fallback when a device or process name cannot be
// resolved.
const UnknownName = "Unknown"

// ProcessEntry describes one process holding memory on a device.
type ProcessEntry struct {
	PID        int32       `json:"pid"`
	Kind       ProcessKind `json:"kind"`
	MemoryUsed float64     `json:"memory_used"`
	Name       string      `json:"name"`
}

// Sample is one immutable per-device reading. Memory values are MiB,
// power values are W, clock speed is MHz, temperature is °C, and the
// utilization fields are percentages. A query group that failed leaves
// its fields at zero.
type Sample struct {
	Device            int            `json:"device"`
	Name              string         `json:"name"`
	Utilization       float64        `json:"utilization"`
	MemoryUsed        float64        `json:"memory_used"`
	MemoryTotal       float64        `json:"memory_total"`
	MemoryUtilization float64        `json:"memory_utilization"`
	MemoryActivity    float64        `json:"memory_activity"`
	Temperature       float64        `json:"temperature"`
	PowerDraw         float64        `json:"power_draw"`
	PowerLimit        float64        `json:"power_limit"`
	FanSpeed          float64        `json:"fan_speed"`
	ClockSpeed        float64        `json:"clock_speed"`
	Processes         []ProcessEntry `json:"processes"`
}
