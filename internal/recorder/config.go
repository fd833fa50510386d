package recorder

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	defaultDBPath       = "/var/lib/nvidiamon/samples.db"
	defaultBatchSize    = 16
	defaultBatchSeconds = 30

	defaultDirPerm = 0o755
)

// Config controls where and how sample rows are persisted. BatchSize and
// BatchTimeout bound how long rows may sit in memory before a flush.
type Config struct {
	DBPath       string
	BatchSize    int
	BatchTimeout int // seconds
	Enabled      bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchSeconds,
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	return c.validateStorage()
}

func (c Config) validateStorage() error {
	errFactory := errors.New()

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}

	if c.BatchSize < 1 || c.BatchTimeout < 1 {
		return errFactory.WithData(ErrInvalidBatch, struct {
			BatchSize    int
			BatchTimeout int
		}{BatchSize: c.BatchSize, BatchTimeout: c.BatchTimeout})
	}

	return nil
}
