package recorder

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("recorder_invalid_config")
	ErrInvalidDBPath = errors.ErrorCode("recorder_invalid_db_path")
	ErrInvalidBatch  = errors.ErrorCode("recorder_invalid_batch")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("recorder_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("recorder_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("recorder_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("recorder_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrorCode("recorder_storage_init_failed")
	ErrStorageClose = errors.ErrorCode("recorder_storage_close_failed")

	// Collection Errors
	ErrRecordFailed   = errors.ErrorCode("recorder_record_failed")
	ErrInvalidSamples = errors.ErrorCode("recorder_invalid_samples")

	// Operation Errors
	ErrOperationTimeout = errors.ErrorCode("recorder_operation_timeout")
	ErrServiceShutdown  = errors.ErrorCode("recorder_service_shutdown_failed")
)
