package gpu

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
)

const (
	bytesPerMiB       = 1024 * 1024
	milliWattsToWatts = 1000
	percentScale      = 100
)

// NameResolver supplies display names for pids reported by the driver.
// Lookups that fail resolve to UnknownName rather than aborting a sample.
type NameResolver interface {
	ResolveName(pid int32) (string, error)
}

// Manager owns the NVML session and samples every detected device.
// Device handles and names are resolved once at startup; the set of
// GPUs in a machine does not change while the daemon runs.
type Manager struct {
	ctrl     nvmlController
	devices  []device
	names    []string
	resolver NameResolver
}

// New initializes NVML and resolves all device handles. Any failure here
// is unrecoverable for the daemon.
func New(resolver NameResolver) (*Manager, error) {
	return newManager(&nvmlWrapper{}, resolver)
}

func newManager(ctrl nvmlController, resolver NameResolver) (*Manager, error) {
	errFactory := errors.New()

	if err := ctrl.Initialize(); err != nil {
		return nil, err
	}

	count, err := ctrl.GetDeviceCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errFactory.New(ErrNoDevices)
	}

	m := &Manager{
		ctrl:     ctrl,
		devices:  make([]device, 0, count),
		names:    make([]string, 0, count),
		resolver: resolver,
	}

	for i := 0; i < count; i++ {
		dev, err := ctrl.GetDevice(i)
		if err != nil {
			return nil, err
		}

		name := UnknownName
		if n, ret := dev.GetName(); IsNVMLSuccess(ret) {
			name = n
			logger.Info().Msgf("Detected GPU %d: %v", i, name)
		} else {
			logger.Warn().Msgf("Failed to get name for GPU %d: %v", i, nvml.ErrorString(ret))
		}

		m.devices = append(m.devices, dev)
		m.names = append(m.names, name)
	}

	return m, nil
}

// DeviceCount returns the number of devices detected at startup.
func (m *Manager) DeviceCount() int {
	return len(m.devices)
}

// DeviceName returns the cached name for a device index.
func (m *Manager) DeviceName(index int) string {
	if index < 0 || index >= len(m.names) {
		return UnknownName
	}

	return m.names[index]
}

// Shutdown releases the NVML session.
func (m *Manager) Shutdown() error {
	return m.ctrl.Shutdown()
}

// Sample reads every device once. Each query group degrades independently:
// a failed query leaves its fields at their zero values and never aborts
// the sample.
func (m *Manager) Sample() ([]Sample, error) {
	samples := make([]Sample, 0, len(m.devices))
	for i, dev := range m.devices {
		samples = append(samples, m.sampleDevice(i, dev))
	}

	return samples, nil
}

func (m *Manager) sampleDevice(index int, dev device) Sample {
	s := Sample{Device: index, Name: m.names[index]}

	if util, ret := dev.GetUtilizationRates(); IsNVMLSuccess(ret) {
		s.Utilization = float64(util.Gpu)
		s.MemoryActivity = float64(util.Memory)
	} else {
		logDegraded(index, "utilization", ret)
	}

	if mem, ret := dev.GetMemoryInfo(); IsNVMLSuccess(ret) {
		s.MemoryUsed = float64(mem.Used) / bytesPerMiB
		s.MemoryTotal = float64(mem.Total) / bytesPerMiB
		if mem.Total > 0 {
			s.MemoryUtilization = s.MemoryUsed / s.MemoryTotal * percentScale
		}
	} else {
		logDegraded(index, "memory", ret)
	}

	if temp, ret := dev.GetTemperature(nvml.TEMPERATURE_GPU); IsNVMLSuccess(ret) {
		s.Temperature = float64(temp)
	} else {
		logDegraded(index, "temperature", ret)
	}

	if draw, ret := dev.GetPowerUsage(); IsNVMLSuccess(ret) {
		s.PowerDraw = float64(draw) / milliWattsToWatts
	} else {
		logDegraded(index, "power_draw", ret)
	}

	if limit, ret := dev.GetEnforcedPowerLimit(); IsNVMLSuccess(ret) {
		s.PowerLimit = float64(limit) / milliWattsToWatts
	} else {
		logDegraded(index, "power_limit", ret)
	}

	if speed, ret := dev.GetFanSpeed(); IsNVMLSuccess(ret) {
		s.FanSpeed = float64(speed)
	} else {
		logDegraded(index, "fan_speed", ret)
	}

	if clock, ret := dev.GetClockInfo(nvml.CLOCK_GRAPHICS); IsNVMLSuccess(ret) {
		s.ClockSpeed = float64(clock)
	} else {
		logDegraded(index, "clock_speed", ret)
	}

	s.Processes = m.deviceProcesses(index, dev)

	return s
}

func (m *Manager) deviceProcesses(index int, dev device) []ProcessEntry {
	entries := make([]ProcessEntry, 0)

	if infos, ret := dev.GetComputeRunningProcesses(); IsNVMLSuccess(ret) {
		entries = m.appendProcesses(entries, infos, KindCompute)
	} else {
		logDegraded(index, "compute_processes", ret)
	}

	if infos, ret := dev.GetGraphicsRunningProcesses(); IsNVMLSuccess(ret) {
		entries = m.appendProcesses(entries, infos, KindGraphics)
	} else {
		logDegraded(index, "graphics_processes", ret)
	}

	return entries
}

func (m *Manager) appendProcesses(entries []ProcessEntry, infos []nvml.ProcessInfo, kind ProcessKind) []ProcessEntry {
	for _, info := range infos {
		pid := int32(info.Pid)

		name := UnknownName
		if m.resolver != nil {
			if resolved, err := m.resolver.ResolveName(pid); err == nil && resolved != "" {
				name = resolved
			}
		}

		entries = append(entries, ProcessEntry{
			PID:        pid,
			Kind:       kind,
			MemoryUsed: float64(info.UsedGpuMemory) / bytesPerMiB,
			Name:       name,
		})
	}

	return entries
}

func logDegraded(index int, query string, ret nvml.Return) {
	logger.Debug().
		Int("device", index).
		Str("query", query).
		Err(newNVMLError(ret)).
		Msg("Query degraded, keeping zero value")
}
