package config

import (
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/gpu"
)

// Settings is the runtime-adjustable slice of the configuration: the four
// alert thresholds plus the sound toggle and sound asset path. It is
// replaced as a single unit at tick boundaries; a tick in progress keeps
// the settings it captured at its start.
type Settings struct {
	Thresholds gpu.Thresholds
	Sound      bool
	SoundFile  string
}

// Validate rejects settings no tick could safely act on. Every alertable
// metric must carry a positive threshold.
func (s Settings) Validate() error {
	errFactory := errors.New()

	for _, metric := range gpu.Metrics() {
		limit, ok := s.Thresholds[metric]
		if !ok {
			return errFactory.WithMessage(errors.ErrInvalidThreshold,
				"missing threshold for "+string(metric))
		}
		if limit <= 0 {
			return errFactory.WithData(errors.ErrInvalidThreshold, map[string]any{
				"metric": string(metric),
				"value":  limit,
			})
		}
	}

	return nil
}

// Settings returns the runtime-adjustable view of the configuration. The
// returned value carries fresh copies; mutating it never touches the
// loaded configuration.
func (c *Config) Settings() Settings {
	return Settings{
		Thresholds: c.Thresholds(),
		Sound:      c.Sound,
		SoundFile:  c.SoundFile,
	}
}
