// Package engine coordinates the retention lifecycle: registration, the
// user-driven state commands, alert acknowledgment, and ledger audits. All
// process mutations funnel through it so the audit chain, the integrity
// hash, and the optimistic version check are applied uniformly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/retention"
	"mercator-hq/saturn/pkg/retention/ledger"
	"mercator-hq/saturn/pkg/retention/process"
	"mercator-hq/saturn/pkg/retention/rules"
	"mercator-hq/saturn/pkg/retention/schedule"
	"mercator-hq/saturn/pkg/retention/storage"
)

// CatalogNotifier is told when a process reaches a terminal state so the
// record catalog can mirror the outcome. Failures are logged, never
// propagated: the lifecycle outcome is already committed.
type CatalogNotifier interface {
	ProcessConcluded(ctx context.Context, p *retention.RetentionProcess) error
}

type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) ProcessConcluded(ctx context.Context, p *retention.RetentionProcess) error {
	n.logger.Info("process concluded",
		"process_id", p.ID,
		"record", p.Record.String(),
		"state", string(p.State),
		"action", string(p.Action),
	)
	return nil
}

// Metrics receives engine observations. The telemetry package provides a
// Prometheus-backed implementation; a no-op is used when none is given.
type Metrics interface {
	ProcessRegistered()
	LedgerViolation()
}

type noopMetrics struct{}

func (noopMetrics) ProcessRegistered() {}
func (noopMetrics) LedgerViolation()   {}

// Config contains engine configuration.
type Config struct {
	// LeadDays is the alert lead window applied at registration and when a
	// deferral moves the expiry. Default: 30
	LeadDays int

	// ConflictRetries bounds retries after optimistic version conflicts.
	// Default: 3
	ConflictRetries int

	// AlertRecipients and AlertChannels address the alerts the engine
	// raises on disposition initiation and confirmation. Empty is fine;
	// a dispatcher may resolve recipients itself.
	AlertRecipients []string
	AlertChannels   []string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		LeadDays:        schedule.DefaultLeadDays,
		ConflictRetries: 3,
	}
}

// Engine is the write path of the retention system.
type Engine struct {
	store    storage.Store
	resolver *rules.Resolver
	ledger   *ledger.Ledger
	notifier CatalogNotifier
	metrics  Metrics
	config   *Config
	logger   *slog.Logger
	// now is swappable for tests.
	now func() time.Time
}

// New creates an engine. A nil notifier falls back to logging, a nil
// metrics to a no-op.
func New(store storage.Store, resolver *rules.Resolver, led *ledger.Ledger, notifier CatalogNotifier, metrics Metrics, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.LeadDays <= 0 {
		config.LeadDays = schedule.DefaultLeadDays
	}
	if config.ConflictRetries <= 0 {
		config.ConflictRetries = 3
	}
	logger := slog.Default().With("component", "retention.engine")
	if notifier == nil {
		notifier = &logNotifier{logger: logger}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		ledger:   led,
		notifier: notifier,
		metrics:  metrics,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRequest describes a record entering retention tracking.
type RegisterRequest struct {
	Record     retention.RecordRef
	Path       retention.ClassificationPath
	OriginDate time.Time
	Actor      string

	// DisableAlerts opts the process out of notifications. Transitions
	// still happen on schedule.
	DisableAlerts bool
}

// RegisterRecord resolves the applicable retention rule, computes the
// schedule, and creates the process with its first audit entry. The rule is
// bound as a snapshot: later rule edits never move dates already assigned.
func (e *Engine) RegisterRecord(ctx context.Context, req *RegisterRequest) (*retention.RetentionProcess, error) {
	if err := req.Record.Validate(); err != nil {
		return nil, err
	}
	if err := req.Path.Validate(); err != nil {
		return nil, err
	}
	if req.OriginDate.IsZero() {
		return nil, fmt.Errorf("record %s: origin date cannot be zero", req.Record)
	}

	now := e.now().UTC()
	rule, err := e.resolver.Resolve(req.Path, req.Record.Kind, now)
	if err != nil {
		return nil, err
	}
	snapshot := rule.Snapshot()

	dates, err := schedule.Compute(req.OriginDate, snapshot, e.config.LeadDays)
	if err != nil {
		return nil, err
	}

	p := &retention.RetentionProcess{
		ID:            uuid.NewString(),
		Record:        req.Record,
		Path:          req.Path,
		Rule:          snapshot,
		OriginDate:    req.OriginDate.UTC(),
		AlertsEnabled: !req.DisableAlerts,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	dates.Apply(p)
	// A record registered late may already be inside its alert window or
	// past expiry; the initial state reflects the real clock position.
	p.State = p.NaturalState(now)
	p.IntegrityHash = retention.ComputeIntegrityHash(p)

	entry, err := e.ledger.Prepare(ctx, p.ID, retention.AuditCreate, "", p.State,
		fmt.Sprintf("registered under rule %s (%s, %d+%d years, %s)",
			snapshot.RuleID, snapshot.Level, snapshot.ManagementYears, snapshot.CentralYears, snapshot.Action),
		req.Actor)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateProcess(ctx, p, entry); err != nil {
		return nil, err
	}
	e.metrics.ProcessRegistered()

	e.logger.Info("record registered",
		"process_id", p.ID,
		"record", p.Record.String(),
		"rule_id", snapshot.RuleID,
		"state", string(p.State),
		"management_expiry", p.ManagementExpiry.Format("2006-01-02"),
	)
	return p, nil
}

// mutation applies fn to a fresh copy of the process and returns the audit
// action and description to record for it.
type mutation func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error)

// alertFunc builds an alert to commit together with a mutation. A nil
// return raises nothing.
type alertFunc func(p *retention.RetentionProcess, now time.Time) *retention.Alert

// update runs a mutation under the optimistic concurrency protocol:
// read, mutate, write with version check, retry on conflict. Alerts built
// by alertFns land in the same transaction as the mutation.
func (e *Engine) update(ctx context.Context, processID, actor string, fn mutation, alertFns ...alertFunc) (*retention.RetentionProcess, error) {
	var lastErr error
	for attempt := 0; attempt < e.config.ConflictRetries; attempt++ {
		p, err := e.store.GetProcess(ctx, processID)
		if err != nil {
			return nil, err
		}

		now := e.now().UTC()
		prior := p.State
		action, description, err := fn(p, now)
		if err != nil {
			return nil, err
		}
		p.UpdatedAt = now
		p.IntegrityHash = retention.ComputeIntegrityHash(p)

		entry, err := e.ledger.Prepare(ctx, p.ID, action, prior, p.State, description, actor)
		if err != nil {
			return nil, err
		}

		var alerts []*retention.Alert
		if p.AlertsEnabled {
			for _, fn := range alertFns {
				if a := fn(p, now); a != nil {
					alerts = append(alerts, a)
				}
			}
		}

		err = e.store.ApplyChange(ctx, p, entry, alerts...)
		if err == nil {
			return p, nil
		}
		var conflict *retention.VersionConflictError
		if !errors.As(err, &conflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// newAlert builds a pending alert addressed per the engine configuration.
// Delivery happens on the next sweep, like any other pending alert.
func (e *Engine) newAlert(p *retention.RetentionProcess, alertType retention.AlertType, priority retention.AlertPriority, now time.Time, message string) *retention.Alert {
	return &retention.Alert{
		ID:                  uuid.NewString(),
		ProcessID:           p.ID,
		Type:                alertType,
		Priority:            priority,
		Recipients:          e.config.AlertRecipients,
		Channels:            e.config.AlertChannels,
		Message:             message,
		State:               retention.AlertPending,
		RepeatIntervalHours: 24,
		MaxRepeats:          10,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// InitiateDisposition moves a vencido process into en_disposicion with the
// chosen action pending confirmation.
func (e *Engine) InitiateDisposition(ctx context.Context, processID string, action retention.DispositionAction, actor string) (*retention.RetentionProcess, error) {
	return e.update(ctx, processID, actor, func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error) {
		if err := process.InitiateDisposition(p, action); err != nil {
			return "", "", err
		}
		return retention.AuditTransition, fmt.Sprintf("disposition %s initiated", action), nil
	}, func(p *retention.RetentionProcess, now time.Time) *retention.Alert {
		a := e.newAlert(p, retention.AlertDispositionConfirmation, retention.PriorityHigh, now,
			fmt.Sprintf("disposition %s of %s awaits confirmation", p.Action, p.Record))
		a.RepeatUntilAck = true
		return a
	})
}

// ConfirmDisposition completes an initiated disposition, landing the
// process in its terminal state. An eliminated process is soft-deleted; the
// row and its audit chain remain.
func (e *Engine) ConfirmDisposition(ctx context.Context, processID, actor string) (*retention.RetentionProcess, error) {
	p, err := e.update(ctx, processID, actor, func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error) {
		terminal, err := process.ConfirmDisposition(p)
		if err != nil {
			return "", "", err
		}
		if terminal == retention.StateEliminado {
			deleted := now
			p.DeletedAt = &deleted
		}
		return retention.AuditTransition, fmt.Sprintf("disposition %s confirmed, process %s", p.Action, terminal), nil
	})
	if err != nil {
		return nil, err
	}

	if nerr := e.notifier.ProcessConcluded(ctx, p); nerr != nil {
		e.logger.Error("catalog notification failed",
			"process_id", p.ID,
			"error", nerr,
		)
	}
	return p, nil
}

// Defer postpones disposition until a later deadline under a justification.
// The alert lead date follows the new deadline so the pre-expiry alert
// fires again before it.
func (e *Engine) Defer(ctx context.Context, processID string, until time.Time, reason, actor string) (*retention.RetentionProcess, error) {
	return e.update(ctx, processID, actor, func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error) {
		if err := process.Defer(p, until.UTC(), reason); err != nil {
			return "", "", err
		}
		p.AlertLeadDate = until.UTC().AddDate(0, 0, -e.config.LeadDays)
		return retention.AuditDefer,
			fmt.Sprintf("disposition deferred until %s: %s", until.Format("2006-01-02"), reason), nil
	})
}

// EndDeferral ends a deferral early, restoring the process's natural clock
// state. Lapsed deferrals end automatically on the next sweep; this is the
// manual path.
func (e *Engine) EndDeferral(ctx context.Context, processID, actor string) (*retention.RetentionProcess, error) {
	return e.update(ctx, processID, actor, func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error) {
		restored, err := process.EndDeferral(p, now)
		if err != nil {
			return "", "", err
		}
		return retention.AuditReactivate, fmt.Sprintf("deferral ended, process %s", restored), nil
	})
}

// Suspend places an administrative hold on the process.
func (e *Engine) Suspend(ctx context.Context, processID, reason, actor string) (*retention.RetentionProcess, error) {
	return e.update(ctx, processID, actor, func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error) {
		if err := process.Suspend(p, reason); err != nil {
			return "", "", err
		}
		return retention.AuditSuspend, fmt.Sprintf("suspended: %s", reason), nil
	})
}

// Reactivate lifts an administrative hold, restoring the held state.
func (e *Engine) Reactivate(ctx context.Context, processID, actor string) (*retention.RetentionProcess, error) {
	return e.update(ctx, processID, actor, func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error) {
		restored, err := process.Reactivate(p)
		if err != nil {
			return "", "", err
		}
		return retention.AuditReactivate, fmt.Sprintf("reactivated to %s", restored), nil
	})
}

// Lock sets the deletion lock on a process.
func (e *Engine) Lock(ctx context.Context, processID, reason, actor string) (*retention.RetentionProcess, error) {
	return e.update(ctx, processID, actor, func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error) {
		process.Lock(p)
		return retention.AuditLock, fmt.Sprintf("deletion lock set: %s", reason), nil
	})
}

// Unlock clears the deletion lock.
func (e *Engine) Unlock(ctx context.Context, processID, actor string) (*retention.RetentionProcess, error) {
	return e.update(ctx, processID, actor, func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error) {
		process.Unlock(p)
		return retention.AuditUnlock, "deletion lock cleared", nil
	})
}

// RecomputeDates re-resolves the rule for the process's classification as
// of now and recomputes the schedule from the origin date. Used after a
// reclassification or a rule correction; the new snapshot replaces the
// bound one. Clock states are re-derived from the new dates, holds and
// disposition progress are untouched.
func (e *Engine) RecomputeDates(ctx context.Context, processID, actor string) (*retention.RetentionProcess, error) {
	return e.update(ctx, processID, actor, func(p *retention.RetentionProcess, now time.Time) (retention.AuditAction, string, error) {
		rule, err := e.resolver.Resolve(p.Path, p.Record.Kind, now)
		if err != nil {
			return "", "", err
		}
		snapshot := rule.Snapshot()

		dates, err := schedule.Compute(p.OriginDate, snapshot, e.config.LeadDays)
		if err != nil {
			return "", "", err
		}

		p.Rule = snapshot
		dates.Apply(p)
		switch p.State {
		case retention.StateActivo, retention.StateAlertaPrevia, retention.StateVencido:
			p.State = p.NaturalState(now)
		}

		return retention.AuditRecompute,
			fmt.Sprintf("dates recomputed under rule %s: expiry %s",
				snapshot.RuleID, p.ManagementExpiry.Format("2006-01-02")), nil
	})
}

// GetProcess returns a process by id.
func (e *Engine) GetProcess(ctx context.Context, processID string) (*retention.RetentionProcess, error) {
	return e.store.GetProcess(ctx, processID)
}

// ListProcesses returns processes matching the query.
func (e *Engine) ListProcesses(ctx context.Context, q *retention.ProcessQuery) ([]*retention.RetentionProcess, error) {
	return e.store.ListProcesses(ctx, q)
}

// History returns the full audit chain for a process.
func (e *Engine) History(ctx context.Context, processID string) ([]*retention.AuditEntry, error) {
	return e.ledger.Entries(ctx, processID)
}

// Verify checks one process's audit chain and its integrity hash.
func (e *Engine) Verify(ctx context.Context, processID string) error {
	p, err := e.store.GetProcess(ctx, processID)
	if err != nil {
		return err
	}
	if !retention.VerifyIntegrityHash(p) {
		e.metrics.LedgerViolation()
		return retention.NewIntegrityViolationError(p.ID, 0, "integrity_hash",
			retention.ComputeIntegrityHash(p), p.IntegrityHash)
	}
	if err := e.ledger.Verify(ctx, processID); err != nil {
		e.metrics.LedgerViolation()
		return err
	}
	return nil
}

// VerifyAll audits every chain, collecting violations.
func (e *Engine) VerifyAll(ctx context.Context) ([]error, error) {
	violations, err := e.ledger.VerifyAll(ctx)
	for range violations {
		e.metrics.LedgerViolation()
	}
	return violations, err
}

// AcknowledgeAlert marks an open alert acknowledged, stopping repetition.
func (e *Engine) AcknowledgeAlert(ctx context.Context, alertID, actor string) (*retention.Alert, error) {
	return e.updateAlert(ctx, alertID, actor, retention.AlertAcknowledged, retention.AuditAlertAck, "alert acknowledged")
}

// MarkAlertRead marks a sent alert read.
func (e *Engine) MarkAlertRead(ctx context.Context, alertID, actor string) (*retention.Alert, error) {
	return e.updateAlert(ctx, alertID, actor, retention.AlertRead, retention.AuditAlertAck, "alert read")
}

// DismissAlert dismisses an open alert without acknowledgment.
func (e *Engine) DismissAlert(ctx context.Context, alertID, actor string) (*retention.Alert, error) {
	return e.updateAlert(ctx, alertID, actor, retention.AlertDismissed, retention.AuditAlertDismiss, "alert dismissed")
}

func (e *Engine) updateAlert(ctx context.Context, alertID, actor string, target retention.AlertState, action retention.AuditAction, description string) (*retention.Alert, error) {
	a, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !validAlertTransition(a.State, target) {
		return nil, fmt.Errorf("alert %s: cannot move from %s to %s", alertID, a.State, target)
	}

	a.State = target
	a.UpdatedAt = e.now().UTC()
	if err := e.store.UpdateAlert(ctx, a); err != nil {
		return nil, err
	}

	if _, err := e.ledger.Append(ctx, a.ProcessID, action, "", "",
		fmt.Sprintf("%s (%s)", description, a.Type), actor); err != nil {
		return nil, err
	}
	return a, nil
}

// validAlertTransition encodes the alert delivery lifecycle: pending and
// sent move forward only, closed states never reopen.
func validAlertTransition(from, to retention.AlertState) bool {
	switch to {
	case retention.AlertRead:
		return from == retention.AlertSent
	case retention.AlertAcknowledged, retention.AlertDismissed:
		return from == retention.AlertPending || from == retention.AlertSent || from == retention.AlertRead
	}
	return false
}
