package monitor

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	ErrTickFailed   = errors.ErrorCode("monitor_tick_failed")
	ErrTickPanicked = errors.ErrorCode("monitor_tick_panicked")
)
