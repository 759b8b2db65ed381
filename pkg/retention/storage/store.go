package storage

import (
	"context"

	"mercator-hq/saturn/pkg/retention"
	"mercator-hq/saturn/pkg/retention/ledger"
)

// ProcessStore persists retention processes.
type ProcessStore interface {
	// CreateProcess inserts a new process together with its first audit
	// entry, atomically.
	CreateProcess(ctx context.Context, p *retention.RetentionProcess, entry *retention.AuditEntry) error

	// GetProcess returns a process by id, or ErrProcessNotFound.
	GetProcess(ctx context.Context, id string) (*retention.RetentionProcess, error)

	// ApplyChange persists a process mutation, its audit entry, and any
	// alerts raised by the same decision in one transaction. The process
	// carries the version it was read at; ApplyChange fails with
	// VersionConflict if the row has moved, and bumps p.Version on success.
	ApplyChange(ctx context.Context, p *retention.RetentionProcess, entry *retention.AuditEntry, alerts ...*retention.Alert) error

	// ListProcesses returns processes matching the query.
	ListProcesses(ctx context.Context, q *retention.ProcessQuery) ([]*retention.RetentionProcess, error)

	// CountProcesses returns the number of processes matching the query.
	CountProcesses(ctx context.Context, q *retention.ProcessQuery) (int64, error)
}

// AlertStore persists alerts. Alerts are never deleted; acknowledgment and
// dismissal are state changes.
type AlertStore interface {
	// CreateAlert inserts a new alert.
	CreateAlert(ctx context.Context, a *retention.Alert) error

	// GetAlert returns an alert by id, or ErrAlertNotFound.
	GetAlert(ctx context.Context, id string) (*retention.Alert, error)

	// UpdateAlert persists alert lifecycle and repetition changes.
	UpdateAlert(ctx context.Context, a *retention.Alert) error

	// ListAlerts returns alerts matching the query, ordered by creation time.
	ListAlerts(ctx context.Context, q *retention.AlertQuery) ([]*retention.Alert, error)

	// FindOpenAlert returns the open (pending/sent/read) alert for a
	// (process, type) pair, or nil when none exists. This backs the sweep's
	// duplicate suppression.
	FindOpenAlert(ctx context.Context, processID string, alertType retention.AlertType) (*retention.Alert, error)
}

// Store is the full persistence surface of the engine.
type Store interface {
	ProcessStore
	AlertStore
	ledger.Store

	// Close releases any resources held by the backend.
	Close() error
}
