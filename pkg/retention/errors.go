package retention

import (
	"errors"
	"fmt"
	"time"
)

// ErrProcessNotFound is returned by stores when a process id does not exist.
var ErrProcessNotFound = errors.New("retention process not found")

// ErrAlertNotFound is returned by stores when an alert id does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// RuleNotFoundError reports that no retention rule applies to a
// classification path at the given date. The engine never assumes a default
// retention period; resolution failure is a hard error.
type RuleNotFoundError struct {
	Path ClassificationPath
	AsOf time.Time
}

// Error implements the error interface.
func (e *RuleNotFoundError) Error() string {
	return fmt.Sprintf("no retention rule for schedule=%s series=%s subserie=%s document_type=%s as of %s",
		e.Path.ScheduleID, e.Path.SeriesID, e.Path.SubserieID, e.Path.DocumentTypeID,
		e.AsOf.Format("2006-01-02"))
}

// NewRuleNotFoundError creates a new RuleNotFoundError.
func NewRuleNotFoundError(path ClassificationPath, asOf time.Time) *RuleNotFoundError {
	return &RuleNotFoundError{Path: path, AsOf: asOf}
}

// InvalidTransitionError reports an illegal state change attempt, naming the
// current state, the attempted state, and the guard that rejected it.
type InvalidTransitionError struct {
	ProcessID string
	From      ProcessState
	To        ProcessState
	Guard     string
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	if e.Guard != "" {
		return fmt.Sprintf("process %s: invalid transition %s -> %s (guard: %s)",
			e.ProcessID, e.From, e.To, e.Guard)
	}
	return fmt.Sprintf("process %s: invalid transition %s -> %s", e.ProcessID, e.From, e.To)
}

// NewInvalidTransitionError creates a new InvalidTransitionError.
func NewInvalidTransitionError(processID string, from, to ProcessState, guard string) *InvalidTransitionError {
	return &InvalidTransitionError{ProcessID: processID, From: from, To: to, Guard: guard}
}

// InvalidDeadlineError reports a deferral deadline that is not strictly after
// the process's current effective expiry.
type InvalidDeadlineError struct {
	ProcessID     string
	Deadline      time.Time
	CurrentExpiry time.Time
}

// Error implements the error interface.
func (e *InvalidDeadlineError) Error() string {
	return fmt.Sprintf("process %s: deferral deadline %s is not after current expiry %s",
		e.ProcessID, e.Deadline.Format("2006-01-02"), e.CurrentExpiry.Format("2006-01-02"))
}

// NewInvalidDeadlineError creates a new InvalidDeadlineError.
func NewInvalidDeadlineError(processID string, deadline, currentExpiry time.Time) *InvalidDeadlineError {
	return &InvalidDeadlineError{ProcessID: processID, Deadline: deadline, CurrentExpiry: currentExpiry}
}

// BlockedByLockError reports an elimination attempt on a process whose
// locked_for_deletion flag is set. The lock wins regardless of expiry.
type BlockedByLockError struct {
	ProcessID string
}

// Error implements the error interface.
func (e *BlockedByLockError) Error() string {
	return fmt.Sprintf("process %s: elimination blocked by deletion lock", e.ProcessID)
}

// NewBlockedByLockError creates a new BlockedByLockError.
func NewBlockedByLockError(processID string) *BlockedByLockError {
	return &BlockedByLockError{ProcessID: processID}
}

// IntegrityViolationError reports a hash-chain mismatch detected during
// ledger verification. It is never auto-corrected; it marks the point in the
// chain where tampering was detected and requires manual investigation.
type IntegrityViolationError struct {
	ProcessID string
	Seq       int64
	Field     string // "entry_hash" or "prev_hash"
	Expected  string
	Got       string
}

// Error implements the error interface.
func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("process %s: audit chain integrity violation at seq %d (%s: expected %s, got %s)",
		e.ProcessID, e.Seq, e.Field, e.Expected, e.Got)
}

// NewIntegrityViolationError creates a new IntegrityViolationError.
func NewIntegrityViolationError(processID string, seq int64, field, expected, got string) *IntegrityViolationError {
	return &IntegrityViolationError{ProcessID: processID, Seq: seq, Field: field, Expected: expected, Got: got}
}

// RecipientResolutionError reports that the recipients for an alert could not
// be determined. During a sweep it is converted into a process-error alert
// rather than propagated, so one bad record cannot stop the batch.
type RecipientResolutionError struct {
	ProcessID string
	Cause     error
}

// Error implements the error interface.
func (e *RecipientResolutionError) Error() string {
	return fmt.Sprintf("process %s: recipient resolution failed: %v", e.ProcessID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecipientResolutionError) Unwrap() error {
	return e.Cause
}

// NewRecipientResolutionError creates a new RecipientResolutionError.
func NewRecipientResolutionError(processID string, cause error) *RecipientResolutionError {
	return &RecipientResolutionError{ProcessID: processID, Cause: cause}
}

// VersionConflictError reports an optimistic concurrency failure: the process
// row changed between read and write. Callers retry with a fresh read.
type VersionConflictError struct {
	ProcessID string
	Version   int64
}

// Error implements the error interface.
func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("process %s: version conflict at version %d", e.ProcessID, e.Version)
}

// NewVersionConflictError creates a new VersionConflictError.
func NewVersionConflictError(processID string, version int64) *VersionConflictError {
	return &VersionConflictError{ProcessID: processID, Version: version}
}

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // "sqlite", "memory"
	Operation string // "create_process", "append_entry", etc.
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
