// Package proc provides the platform process operations the daemon needs:
// resolving display names for pids reported by the GPU driver and
// terminating processes on request. Everything else about a process is
// out of scope.
package proc

import (
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"codeberg.org/mutker/nvidiamon/internal/errors"
)

const (
	terminateGrace     = 3 * time.Second
	terminatePollEvery = 100 * time.Millisecond
)

// Capabilities describes the process operations available on this platform.
type Capabilities interface {
	ResolveName(pid int32) (string, error)
	Terminate(pid int32) error
}

// SystemCapabilities implements Capabilities against the running system.
type SystemCapabilities struct{}

func NewSystemCapabilities() *SystemCapabilities {
	return &SystemCapabilities{}
}

// ResolveName returns a best-effort display name for a pid: the executable
// name when available, otherwise the command line.
func (*SystemCapabilities) ResolveName(pid int32) (string, error) {
	errFactory := errors.New()

	p, err := process.NewProcess(pid)
	if err != nil {
		return "", errFactory.Wrap(ErrNameLookupFailed, err)
	}

	if name, err := p.Name(); err == nil && name != "" {
		return name, nil
	}

	cmdline, err := p.Cmdline()
	if err != nil {
		return "", errFactory.Wrap(ErrNameLookupFailed, err)
	}
	if cmdline == "" {
		return "", errFactory.WithData(ErrNameLookupFailed, pid)
	}

	return cmdline, nil
}

// Terminate asks the process to exit and escalates to a kill when it is
// still running after a short grace period.
func (*SystemCapabilities) Terminate(pid int32) error {
	errFactory := errors.New()

	p, err := process.NewProcess(pid)
	if err != nil {
		return errFactory.Wrap(ErrTerminateFailed, err)
	}

	if err := p.Terminate(); err != nil {
		return errFactory.Wrap(ErrTerminateFailed, err)
	}

	deadline := time.After(terminateGrace)
	for {
		running, err := p.IsRunning()
		if err != nil || !running {
			return nil
		}

		select {
		case <-deadline:
			if err := p.Kill(); err != nil {
				return errFactory.Wrap(ErrTerminateFailed, err)
			}
			return nil
		case <-time.After(terminatePollEvery):
		}
	}
}
