package pid_test

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/pid"
)

func TestWriteAndRemove(t *testing.T) {
	t.Cleanup(func() { _ = pid.Remove() })

	require.NoError(t, pid.Write())

	data, err := os.ReadFile(pid.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	// A second instance must refuse to start while this one is alive.
	err = pid.Write()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))

	require.NoError(t, pid.Remove())
	require.NoError(t, pid.Write())
}

func TestRemoveWithoutFile(t *testing.T) {
	require.NoError(t, pid.Remove())
	require.NoError(t, pid.Remove())
}

func TestWriteReclaimsStaleFile(t *testing.T) {
	t.Cleanup(func() { _ = pid.Remove() })

	// No live process can hold a pid beyond the kernel's pid_max.
	require.NoError(t, os.WriteFile(pid.Path(), []byte("999999999"), 0o600))

	require.NoError(t, pid.Write())

	data, err := os.ReadFile(pid.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestWriteReclaimsUnreadableFile(t *testing.T) {
	t.Cleanup(func() { _ = pid.Remove() })

	require.NoError(t, os.WriteFile(pid.Path(), []byte("not a pid"), 0o600))

	require.NoError(t, pid.Write())

	data, err := os.ReadFile(pid.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}
