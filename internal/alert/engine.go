// Package alert turns metric readings into one-shot alert events and
// delivers them to notification and sound sinks. Each device/metric pair
// carries a two-state hysteresis gate: a reading strictly above the
// threshold fires exactly once and arms the gate, and the gate re-arms
// silently as soon as a reading comes back at or below the threshold.
package alert

import (
	"fmt"

	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/logger"
)

// Title is the headline used for every alert notification.
const Title = "GPU Monitor Alert"

type state uint8

const (
	stateClear state = iota
	stateArmed
)

type key struct {
	device int
	metric gpu.Metric
}

// Event describes one threshold breach.
type Event struct {
	Device    int        `json:"device"`
	Metric    gpu.Metric `json:"metric"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
}

// Message renders the human-readable alert text.
func (e Event) Message() string {
	unit := e.Metric.Unit()

	return fmt.Sprintf("GPU %d %s %.1f%s exceeds %.1f%s",
		e.Device, e.Metric.Label(), e.Value, unit, e.Threshold, unit)
}

// Engine evaluates samples against thresholds and dispatches events.
// It is driven from the sampling tick only and needs no locking.
type Engine struct {
	states   map[key]state
	notifier Notifier
	player   Player
}

// NewEngine creates an engine with every gate clear. The device count is
// fixed for the engine's lifetime, matching the devices found at startup.
func NewEngine(devices int, notifier Notifier, player Player) *Engine {
	states := make(map[key]state, devices*len(gpu.Metrics()))
	for device := 0; device < devices; device++ {
		for _, metric := range gpu.Metrics() {
			states[key{device, metric}] = stateClear
		}
	}

	return &Engine{
		states:   states,
		notifier: notifier,
		player:   player,
	}
}

// Evaluate runs the hysteresis gate for one sample and returns the events
// that fired, in metric order. A missing threshold disables alerting for
// that metric.
func (e *Engine) Evaluate(sample gpu.Sample, thresholds gpu.Thresholds) []Event {
	var events []Event

	for _, metric := range gpu.Metrics() {
		limit, ok := thresholds[metric]
		if !ok {
			continue
		}

		k := key{sample.Device, metric}
		value := metric.Value(sample)

		if value > limit {
			if e.states[k] == stateClear {
				e.states[k] = stateArmed
				events = append(events, Event{
					Device:    sample.Device,
					Metric:    metric,
					Value:     value,
					Threshold: limit,
				})
			}
			continue
		}

		e.states[k] = stateClear
	}

	return events
}

// Process evaluates a sample and delivers any events to the sinks. Sink
// failures are logged and never interrupt the caller.
func (e *Engine) Process(sample gpu.Sample, thresholds gpu.Thresholds, sound bool) []Event {
	events := e.Evaluate(sample, thresholds)

	for _, event := range events {
		logger.Warn().
			Int("device", event.Device).
			Str("metric", string(event.Metric)).
			Float64("value", event.Value).
			Float64("threshold", event.Threshold).
			Msg(event.Message())

		if e.notifier != nil {
			if err := e.notifier.Notify(Title, event.Message()); err != nil {
				logger.Warn().Err(err).Msg("Failed to deliver notification")
			}
		}

		if sound && e.player != nil {
			if err := e.player.Play(); err != nil {
				logger.Warn().Err(err).Msg("Failed to play alert sound")
			}
		}
	}

	return events
}
