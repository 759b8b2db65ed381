// Package ledger implements the hash-chained audit trail of the retention
// engine. Every action taken on a retention process appends exactly one
// entry; entries for a process form a chain where each entry's hash covers
// the previous entry's hash, so any after-the-fact edit is detectable.
//
// Append is the only write operation the store interface exposes. There is
// no update and no delete: tampering is detected by Verify, not prevented at
// the storage layer, since the ledger does not assume a write-once medium.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/retention"
)

// Store is the append-only persistence interface for audit entries.
// Implementations must not expose any way to update or delete an entry.
type Store interface {
	// AppendEntry persists a new entry. It must reject an entry whose
	// (process_id, seq) already exists.
	AppendEntry(ctx context.Context, entry *retention.AuditEntry) error

	// LatestEntry returns the highest-seq entry for a process, or nil when
	// the process has no entries yet.
	LatestEntry(ctx context.Context, processID string) (*retention.AuditEntry, error)

	// ListEntries returns all entries for a process ordered by seq ascending.
	ListEntries(ctx context.Context, processID string) ([]*retention.AuditEntry, error)

	// ListProcessIDs returns the ids of all processes with at least one
	// entry. Used by full-ledger verification.
	ListProcessIDs(ctx context.Context) ([]string, error)
}

// Ledger appends to and verifies per-process hash chains.
type Ledger struct {
	store  Store
	logger *slog.Logger
	// now is swappable for tests.
	now func() time.Time
}

// New creates a ledger over the given store.
func New(store Store, logger *slog.Logger) *Ledger {
	return NewWithClock(store, logger, time.Now)
}

// NewWithClock creates a ledger with an injected clock, so entry timestamps
// can be pinned in deterministic tests.
func NewWithClock(store Store, logger *slog.Logger, now func() time.Time) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:  store,
		logger: logger.With("component", "retention.ledger"),
		now:    now,
	}
}

// Prepare builds the next chain entry for a process without persisting it.
// The caller persists it atomically together with the process mutation it
// records. Prepare must not be called concurrently for the same process;
// the engine's per-process serialization guarantees that.
func (l *Ledger) Prepare(ctx context.Context, processID string, action retention.AuditAction, prior, next retention.ProcessState, description, actor string) (*retention.AuditEntry, error) {
	latest, err := l.store.LatestEntry(ctx, processID)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain head for process %s: %w", processID, err)
	}

	seq := int64(1)
	prevHash := GenesisHash
	if latest != nil {
		seq = latest.Seq + 1
		prevHash = latest.EntryHash
	}

	entry := &retention.AuditEntry{
		ID:          uuid.NewString(),
		ProcessID:   processID,
		Seq:         seq,
		Action:      action,
		PriorState:  prior,
		NextState:   next,
		Description: description,
		Actor:       actor,
		Timestamp:   l.now().UTC(),
		PrevHash:    prevHash,
	}
	entry.EntryHash = EntryHash(prevHash, entry)

	return entry, nil
}

// Append builds and persists the next chain entry in one call, for actions
// that carry no process mutation of their own.
func (l *Ledger) Append(ctx context.Context, processID string, action retention.AuditAction, prior, next retention.ProcessState, description, actor string) (*retention.AuditEntry, error) {
	entry, err := l.Prepare(ctx, processID, action, prior, next, description, actor)
	if err != nil {
		return nil, err
	}
	if err := l.store.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry for process %s: %w", processID, err)
	}

	l.logger.Debug("audit entry appended",
		"process_id", processID,
		"seq", entry.Seq,
		"action", string(action),
	)
	return entry, nil
}

// Verify replays the chain for a process and fails with IntegrityViolation
// on the first mismatch between stored and recomputed hashes, or on a broken
// seq sequence. A violation is reported, never auto-corrected.
func (l *Ledger) Verify(ctx context.Context, processID string) error {
	entries, err := l.store.ListEntries(ctx, processID)
	if err != nil {
		return fmt.Errorf("failed to list audit entries for process %s: %w", processID, err)
	}

	prevHash := GenesisHash
	for i, e := range entries {
		wantSeq := int64(i + 1)
		if e.Seq != wantSeq {
			return retention.NewIntegrityViolationError(processID, e.Seq, "seq",
				fmt.Sprintf("%d", wantSeq), fmt.Sprintf("%d", e.Seq))
		}
		if e.PrevHash != prevHash {
			return retention.NewIntegrityViolationError(processID, e.Seq, "prev_hash", prevHash, e.PrevHash)
		}
		if computed := EntryHash(prevHash, e); computed != e.EntryHash {
			return retention.NewIntegrityViolationError(processID, e.Seq, "entry_hash", computed, e.EntryHash)
		}
		prevHash = e.EntryHash
	}

	return nil
}

// VerifyAll verifies every chain in the ledger, collecting violations
// instead of stopping at the first bad process. Chain reads that fail for
// storage reasons abort the audit.
func (l *Ledger) VerifyAll(ctx context.Context) ([]error, error) {
	ids, err := l.store.ListProcessIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list audited processes: %w", err)
	}

	var violations []error
	for _, id := range ids {
		if ctx.Err() != nil {
			return violations, ctx.Err()
		}
		if err := l.Verify(ctx, id); err != nil {
			var iv *retention.IntegrityViolationError
			if errors.As(err, &iv) {
				violations = append(violations, err)
				continue
			}
			return violations, err
		}
	}

	return violations, nil
}

// Entries returns the full chain for a process ordered by seq.
func (l *Ledger) Entries(ctx context.Context, processID string) ([]*retention.AuditEntry, error) {
	return l.store.ListEntries(ctx, processID)
}
