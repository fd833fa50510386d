package proc

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	ErrNameLookupFailed = errors.ErrorCode("proc_name_lookup_failed")
	ErrTerminateFailed  = errors.ErrorCode("proc_terminate_failed")
)
