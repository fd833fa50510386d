package alert_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/nvidiamon/internal/alert"
	"codeberg.org/mutker/nvidiamon/internal/errors"
)

// writeClip encodes a short silent WAV for the player to load.
func writeClip(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(64), format))
	require.NoError(t, f.Close())
}

func TestPlayerStartsUnloaded(t *testing.T) {
	var player alert.WavPlayer

	assert.False(t, player.Loaded())
	assert.Empty(t, player.Path())

	err := player.Play()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, alert.ErrSoundNotLoaded))
}

func TestReloadArmsEmptyPlayer(t *testing.T) {
	clip := filepath.Join(t.TempDir(), "alert.wav")
	writeClip(t, clip)

	// Sound switched on long after construction must still work, so an
	// empty player loads its first clip through the same Reload path.
	var player alert.WavPlayer
	require.NoError(t, player.Reload(clip))
	assert.True(t, player.Loaded())
	assert.Equal(t, clip, player.Path())
}

func TestReloadKeepsPreviousClipOnFailure(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "alert.wav")
	writeClip(t, clip)

	var player alert.WavPlayer
	require.NoError(t, player.Reload(clip))

	err := player.Reload(filepath.Join(dir, "missing.wav"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, alert.ErrSoundLoadFailed))
	assert.True(t, player.Loaded())
	assert.Equal(t, clip, player.Path())

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not audio"), 0o600))

	err = player.Reload(garbage)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, alert.ErrSoundDecodeFailed))
	assert.Equal(t, clip, player.Path())
}

func TestResolveSoundFilePrefersConfigured(t *testing.T) {
	clip := filepath.Join(t.TempDir(), "custom.wav")
	writeClip(t, clip)

	assert.Equal(t, clip, alert.ResolveSoundFile(clip))
}

func TestResolveSoundFileFallsBackToBundledClip(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	fallback := filepath.Join(filepath.Dir(exe), alert.DefaultSoundName)
	writeClip(t, fallback)
	t.Cleanup(func() { os.Remove(fallback) })

	assert.Equal(t, fallback, alert.ResolveSoundFile(""))

	missing := filepath.Join(t.TempDir(), "missing.wav")
	assert.Equal(t, fallback, alert.ResolveSoundFile(missing))
}

func TestResolveSoundFileEmptyWhenNothingFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.wav")
	assert.Empty(t, alert.ResolveSoundFile(missing))
}
