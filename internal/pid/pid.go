// Package pid guards against concurrent daemon instances with a pid file
// in the system temp directory. A file left behind by a crashed instance
// is reclaimed once its pid no longer maps to a live process.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
)

const fileName = "nvidiamon.pid"

// Path returns the pid file location.
func Path() string {
	return filepath.Join(os.TempDir(), fileName)
}

// Write claims the pid file for this process. It fails with
// errors.ErrAlreadyRunning while another live process holds the file;
// stale and unreadable files are reclaimed.
func Write() error {
	errFactory := errors.New()

	if holder, ok := currentHolder(); ok {
		if alive(holder) {
			return errFactory.WithData(errors.ErrAlreadyRunning, holder)
		}
		logger.Debug().Int("pid", holder).Msg("Reclaiming stale PID file")
	}

	if err := os.WriteFile(Path(), []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove deletes the pid file. A missing file is not an error.
func Remove() error {
	errFactory := errors.New()

	if err := os.Remove(Path()); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// currentHolder reads the pid recorded in the file; ok is false when the
// file is missing or does not hold a pid.
func currentHolder() (int, bool) {
	data, err := os.ReadFile(Path())
	if err != nil {
		return 0, false
	}

	holder, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}

	return holder, true
}

// alive reports whether the pid maps to a running process. Signal 0
// performs the existence check without delivering anything.
func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}
