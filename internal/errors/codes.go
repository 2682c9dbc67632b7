// Package errors provides structured error handling for docsmcp.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index and store errors (disk, corruption, batches)
//   - 3XX: Source acquisition and network errors
//   - 4XX: Validation and query errors
//   - 5XX: Internal errors (embedding, chunking)
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryStore      Category = "STORE"
	CategorySource     Category = "SOURCE"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal means the backend cannot be used as-is and must be recreated.
	SeverityFatal Severity = "FATAL"
	// SeverityError means the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning means degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigProject  = "ERR_103_CONFIG_PROJECT"

	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeStoreWrite       = "ERR_202_STORE_WRITE"
	ErrCodeDiskFull         = "ERR_203_DISK_FULL"
	ErrCodeBatchTooLarge    = "ERR_204_BATCH_TOO_LARGE"
	ErrCodeCorruptIndex     = "ERR_205_CORRUPT_INDEX"
	ErrCodeBackupFailed     = "ERR_206_BACKUP_FAILED"
	ErrCodeRestoreFailed    = "ERR_207_RESTORE_FAILED"
	ErrCodeLedgerWrite      = "ERR_208_LEDGER_WRITE"
	ErrCodeIndexBusy        = "ERR_209_INDEX_BUSY"

	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeSourceFetch        = "ERR_303_SOURCE_FETCH"
	ErrCodeSourceExtract      = "ERR_304_SOURCE_EXTRACT"

	ErrCodeInvalidInput          = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch     = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty            = "ERR_403_QUERY_EMPTY"
	ErrCodeUnknownProject        = "ERR_404_UNKNOWN_PROJECT"
	ErrCodeDocumentNotFound      = "ERR_405_DOCUMENT_NOT_FOUND"
	ErrCodeDuplicateID           = "ERR_406_DUPLICATE_ID"
	ErrCodeBestPracticesNotFound = "ERR_407_BEST_PRACTICES_NOT_FOUND"

	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
	ErrCodeChunkingFailed  = "ERR_504_CHUNKING_FAILED"
	ErrCodeIndexFailed     = "ERR_505_INDEX_FAILED"
)

func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategorySource
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDiskFull, ErrCodeDimensionMismatch:
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeSourceFetch, ErrCodeIndexBusy:
		return true
	default:
		return false
	}
}
