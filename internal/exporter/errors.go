package exporter

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	ErrInvalidListenAddr = errors.ErrorCode("exporter_invalid_listen_addr")
	ErrInvalidSource     = errors.ErrorCode("exporter_invalid_source")
	ErrServerFailed      = errors.ErrorCode("exporter_server_failed")
	ErrShutdownFailed    = errors.ErrorCode("exporter_shutdown_failed")
)
