package proc

import (
	"sort"

	"codeberg.org/mutker/nvidiamon/internal/gpu"
)

const (
	// DisplayLimit caps how many processes a ranking carries.
	DisplayLimit = 20
	// NameDisplayLimit caps rendered process name length.
	NameDisplayLimit = 50
	// PlaceholderName is shown when a device reports no processes.
	PlaceholderName = "No Processes"
)

// Placeholder returns the row shown when a device has no processes.
func Placeholder() gpu.ProcessEntry {
	return gpu.ProcessEntry{
		Kind: gpu.KindUnknown,
		Name: PlaceholderName,
	}
}

// IsPlaceholder reports whether an entry is the no-processes row.
func IsPlaceholder(entry gpu.ProcessEntry) bool {
	return entry.PID == 0 && entry.Name == PlaceholderName
}

// Rank orders entries by memory use, largest first, keeping arrival order
// for equal values, and truncates to DisplayLimit. An empty input yields
// a single placeholder row so tables always have something to show.
// The input slice is never modified.
func Rank(entries []gpu.ProcessEntry) []gpu.ProcessEntry {
	if len(entries) == 0 {
		return []gpu.ProcessEntry{Placeholder()}
	}

	ranked := make([]gpu.ProcessEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MemoryUsed > ranked[j].MemoryUsed
	})

	if len(ranked) > DisplayLimit {
		ranked = ranked[:DisplayLimit]
	}

	return ranked
}

// DisplayName cuts a process name to the rendered table width. Ranked
// entries keep their full name; the cut happens only at display time.
func DisplayName(name string) string {
	runes := []rune(name)
	if len(runes) <= NameDisplayLimit {
		return name
	}

	return string(runes[:NameDisplayLimit])
}
