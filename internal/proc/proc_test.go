package proc_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/proc"
)

func entry(pid int32, memoryMiB float64) gpu.ProcessEntry {
	return gpu.ProcessEntry{PID: pid, Kind: gpu.KindCompute, MemoryUsed: memoryMiB, Name: "worker"}
}

func TestRankOrdersByMemoryDescending(t *testing.T) {
	entries := []gpu.ProcessEntry{
		entry(1, 5),
		entry(2, 20),
		entry(3, 5),
		entry(4, 1),
	}

	ranked := proc.Rank(entries)
	require.Len(t, ranked, 4)
	assert.Equal(t, int32(2), ranked[0].PID)
	assert.Equal(t, int32(1), ranked[1].PID, "equal values keep arrival order")
	assert.Equal(t, int32(3), ranked[2].PID, "equal values keep arrival order")
	assert.Equal(t, int32(4), ranked[3].PID)
}

func TestRankTruncatesToDisplayLimit(t *testing.T) {
	entries := make([]gpu.ProcessEntry, 0, 25)
	for i := 0; i < 25; i++ {
		entries = append(entries, entry(int32(i+1), float64(i)))
	}

	ranked := proc.Rank(entries)
	require.Len(t, ranked, proc.DisplayLimit)
	assert.InDelta(t, 24.0, ranked[0].MemoryUsed, 0.001, "largest consumer survives truncation")
	assert.InDelta(t, 5.0, ranked[len(ranked)-1].MemoryUsed, 0.001, "smallest consumers are dropped")
}

func TestRankEmptyYieldsPlaceholder(t *testing.T) {
	ranked := proc.Rank(nil)
	require.Len(t, ranked, 1)
	assert.True(t, proc.IsPlaceholder(ranked[0]))
	assert.Equal(t, proc.PlaceholderName, ranked[0].Name)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	entries := []gpu.ProcessEntry{entry(1, 5), entry(2, 20)}

	_ = proc.Rank(entries)
	assert.Equal(t, int32(1), entries[0].PID)
	assert.Equal(t, int32(2), entries[1].PID)
}

func TestIsPlaceholderRejectsRealEntries(t *testing.T) {
	assert.False(t, proc.IsPlaceholder(entry(1, 5)))
}

func TestDisplayNameTruncation(t *testing.T) {
	short := "python3"
	assert.Equal(t, short, proc.DisplayName(short))

	long := strings.Repeat("a", 60)
	assert.Equal(t, strings.Repeat("a", proc.NameDisplayLimit), proc.DisplayName(long))

	multibyte := strings.Repeat("ü", 60)
	got := proc.DisplayName(multibyte)
	assert.Equal(t, strings.Repeat("ü", proc.NameDisplayLimit), got)
	assert.Len(t, []rune(got), proc.NameDisplayLimit, "cut counts runes, not bytes")
}

func TestResolveNameForOwnProcess(t *testing.T) {
	caps := proc.NewSystemCapabilities()

	name, err := caps.ResolveName(int32(os.Getpid()))
	require.NoError(t, err)
	assert.NotEmpty(t, name)
}

func TestResolveNameForMissingProcess(t *testing.T) {
	caps := proc.NewSystemCapabilities()

	// Pids never reach the int32 ceiling on supported platforms.
	_, err := caps.ResolveName(1<<31 - 1)
	assert.Error(t, err)
}
