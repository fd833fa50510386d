package recorder

import (
	"database/sql"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
)

// SchemaVersion is bumped whenever the samples table shape changes. A
// mismatch at startup triggers a backup and rebuild rather than an in-place
// migration, since recorded samples are an operational log, not primary data.
const SchemaVersion = 1

const (
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       timestamp          INTEGER NOT NULL CHECK (typeof(timestamp) = 'integer'),
	       device             INTEGER NOT NULL CHECK (typeof(device) = 'integer'),
	       name               TEXT NOT NULL,
	       utilization        REAL NOT NULL,
	       memory_used        REAL NOT NULL,
	       memory_total       REAL NOT NULL,
	       memory_utilization REAL NOT NULL,
	       memory_activity    REAL NOT NULL,
	       temperature        REAL NOT NULL,
	       power_draw         REAL NOT NULL,
	       power_limit        REAL NOT NULL,
	       fan_speed          REAL NOT NULL,
	       clock_speed        REAL NOT NULL,
	       process_count      INTEGER NOT NULL CHECK (typeof(process_count) = 'integer'),
	       PRIMARY KEY (timestamp, device)
	   );`

	insertSampleSQL = `
    INSERT OR REPLACE INTO samples (
        timestamp, device, name,
        utilization, memory_used, memory_total, memory_utilization, memory_activity,
        temperature, power_draw, power_limit,
        fan_speed, clock_speed, process_count
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// InitSchema creates the samples and schema_versions tables and stamps the
// current version, all in one transaction.
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	defer rollbackUnlessDone(tx, log)

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))",
		SchemaVersion,
	); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	log.Info().Int("version", SchemaVersion).Msg("Database schema initialized")

	return nil
}

// GetSchemaVersion reports the newest version stamp in the database. A
// database that has never been initialized reports zero.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	var hasVersions bool
	err := db.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type='table' AND name='schema_versions')",
	).Scan(&hasVersions)
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !hasVersions {
		return 0, nil
	}

	var version int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	return version, nil
}

// rollbackUnlessDone is deferred after Begin. Once a transaction commits,
// Rollback reports sql.ErrTxDone, which is the expected outcome and not
// worth logging.
func rollbackUnlessDone(tx *sql.Tx, log logger.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Debug().Err(err).Msg("Transaction rollback failed")
	}
}
