package recorder

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

// row is one device sample pinned to its tick time.
type row struct {
	at     int64
	sample gpu.Sample
}

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config

	mu     sync.Mutex
	buffer []row

	flushTicker *time.Ticker
	shutdown    chan struct{}
	flusherDone chan struct{}
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Path  string
			Error string
		}{
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	// WAL keeps inserts from stalling the monitor loop; incremental
	// auto_vacuum keeps a long-running database from growing without bound.
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL&_auto_vacuum=2")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}
	if err := ValidateAndUpdateSchema(db, cfg.DBPath, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Int("batch_timeout", cfg.BatchTimeout).
		Msg("Sample repository initialized")

	repo := &repository{
		db:          db,
		logger:      log,
		cfg:         cfg,
		buffer:      make([]row, 0, cfg.BatchSize),
		flushTicker: time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second),
		shutdown:    make(chan struct{}),
		flusherDone: make(chan struct{}),
	}
	go repo.flusher()

	return repo, nil
}

// Record buffers one row per device and flushes once the batch size is
// reached. Rows from the same tick share a timestamp, so a replayed tick
// replaces its earlier rows rather than duplicating them.
func (r *repository) Record(at time.Time, samples []gpu.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := at.Unix()
	for _, sample := range samples {
		r.buffer = append(r.buffer, row{at: ts, sample: sample})
	}
	if len(r.buffer) < r.cfg.BatchSize {
		return nil
	}

	return r.flushLocked()
}

// Close drains the buffer, checkpoints the WAL and closes the database.
func (r *repository) Close() error {
	errFactory := errors.New()

	r.flushTicker.Stop()
	close(r.shutdown)
	<-r.flusherDone

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	r.logger.Info().Msg("Sample repository closed")

	return nil
}

// flusher drains rows that never reached a full batch. The final drain runs
// before flusherDone closes, so Close always observes an empty buffer.
func (r *repository) flusher() {
	defer close(r.flusherDone)

	for {
		select {
		case <-r.flushTicker.C:
			r.flushNow()
		case <-r.shutdown:
			r.flushNow()
			return
		}
	}
}

func (r *repository) flushNow() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.flushLocked(); err != nil {
		r.logger.Error().Err(err).Msg("Background flush failed")
	}
}

func (r *repository) flushLocked() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer rollbackUnlessDone(tx, r.logger)

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, entry := range r.buffer {
		s := entry.sample
		if _, err := stmt.Exec(
			entry.at,
			int64(s.Device),
			s.Name,
			s.Utilization,
			s.MemoryUsed,
			s.MemoryTotal,
			s.MemoryUtilization,
			s.MemoryActivity,
			s.Temperature,
			s.PowerDraw,
			s.PowerLimit,
			s.FanSpeed,
			s.ClockSpeed,
			int64(len(s.Processes)),
		); err != nil {
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("rows", len(r.buffer)).Msg("Flushed samples to database")
	r.buffer = r.buffer[:0]

	return nil
}
