package errs

import "errors"

// Common sentinel errors for cross-layer signaling. Callers wrap them with
// fmt.Errorf("...: %w", errs.ErrX) and classify with errors.Is.
var (
    // ErrNotFound means a referenced entity does not exist at mutation time.
    ErrNotFound = errors.New("not_found")
    // ErrInvalidOperation is a semantic rule violation (bad transfer references,
    // non-positive amount, deleting a referenced account, category cycles).
    ErrInvalidOperation = errors.New("invalid_operation")
    // ErrInvalidFormat marks a malformed backup payload.
    ErrInvalidFormat = errors.New("invalid_format")
    // ErrStorage wraps failures of the underlying persistence layer.
    ErrStorage = errors.New("storage_failure")
    // ErrInvalid is used for malformed input that never reached domain rules.
    ErrInvalid = errors.New("invalid")
    ErrConflict = errors.New("conflict")
)
