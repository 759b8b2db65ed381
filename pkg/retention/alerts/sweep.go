package alerts

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/retention"
	"mercator-hq/saturn/pkg/retention/ledger"
	"mercator-hq/saturn/pkg/retention/process"
	"mercator-hq/saturn/pkg/retention/storage"
)

// SweepActor is the actor recorded on audit entries written by the sweep.
const SweepActor = "scheduler"

// Config contains sweep configuration.
type Config struct {
	// Shards is the number of workers a sweep fans out to. Processes are
	// assigned to workers by a hash of their id, so no two workers ever
	// touch the same process. Default: 4
	Shards int

	// RepeatIntervalHours is the default re-send interval for alerts that
	// repeat until acknowledged. Default: 24
	RepeatIntervalHours int

	// MaxRepeats caps re-sends of a repeating alert. Default: 10
	MaxRepeats int

	// ConflictRetries is how many times a tick is retried for a process
	// after an optimistic version conflict. Default: 3
	ConflictRetries int
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() *Config {
	return &Config{
		Shards:              4,
		RepeatIntervalHours: 24,
		MaxRepeats:          10,
		ConflictRetries:     3,
	}
}

// Metrics receives sweep observations. The telemetry package provides a
// Prometheus-backed implementation; a no-op is used when none is given.
type Metrics interface {
	SweepCompleted(outcome string, duration time.Duration)
	Transition(from, to retention.ProcessState)
	AlertCreated(alertType retention.AlertType)
	AlertDispatched(alertType retention.AlertType, success bool)
}

type noopMetrics struct{}

func (noopMetrics) SweepCompleted(string, time.Duration)          {}
func (noopMetrics) Transition(retention.ProcessState, retention.ProcessState) {}
func (noopMetrics) AlertCreated(retention.AlertType)              {}
func (noopMetrics) AlertDispatched(retention.AlertType, bool)     {}

// Result summarizes one sweep.
type Result struct {
	Examined     int
	Transitioned int
	Created      int
	Dispatched   int
	Errors       int
	Duration     time.Duration
}

// Sweeper drives clock transitions and alert delivery. It is safe to run
// concurrently with user-driven commands: every write goes through the
// store's optimistic version check and conflicting ticks retry on a fresh
// read.
type Sweeper struct {
	store      storage.Store
	ledger     *ledger.Ledger
	dispatcher Dispatcher
	resolver   RecipientResolver
	metrics    Metrics
	config     *Config
	logger     *slog.Logger
	// now is swappable for tests.
	now func() time.Time
}

// NewSweeper creates a sweeper. A nil dispatcher falls back to logging, a
// nil resolver to empty recipients, a nil metrics to a no-op.
func NewSweeper(store storage.Store, led *ledger.Ledger, config *Config, dispatcher Dispatcher, resolver RecipientResolver, metrics Metrics) *Sweeper {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Shards <= 0 {
		config.Shards = 4
	}
	if config.ConflictRetries <= 0 {
		config.ConflictRetries = 3
	}
	if dispatcher == nil {
		dispatcher = NewLogDispatcher(nil)
	}
	if resolver == nil {
		resolver = &StaticResolver{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Sweeper{
		store:      store,
		ledger:     led,
		dispatcher: dispatcher,
		resolver:   resolver,
		metrics:    metrics,
		config:     config,
		logger:     slog.Default().With("component", "retention.alerts.sweep"),
		now:        time.Now,
	}
}

// Sweep runs one full pass over every process whose state the clock can
// move. It never stops at a single bad process: per-process failures are
// counted, logged, and surfaced as process-error alerts.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	started := s.now()
	now := started.UTC()

	candidates, err := s.store.ListProcesses(ctx, &retention.ProcessQuery{
		States: []retention.ProcessState{
			retention.StateActivo,
			retention.StateAlertaPrevia,
			retention.StateVencido,
			retention.StateAplazado,
			retention.StateEnDisposicion,
		},
	})
	if err != nil {
		s.metrics.SweepCompleted("error", time.Since(started))
		return nil, fmt.Errorf("failed to list sweep candidates: %w", err)
	}

	shards := make([][]*retention.RetentionProcess, s.config.Shards)
	for _, p := range candidates {
		i := shardFor(p.ID, s.config.Shards)
		shards[i] = append(shards[i], p)
	}

	results := make([]Result, s.config.Shards)
	var wg sync.WaitGroup
	for i, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, shard []*retention.RetentionProcess) {
			defer wg.Done()
			s.sweepShard(ctx, shard, now, &results[i])
		}(i, shard)
	}
	wg.Wait()

	total := Result{Duration: time.Since(started)}
	for _, r := range results {
		total.Examined += r.Examined
		total.Transitioned += r.Transitioned
		total.Created += r.Created
		total.Dispatched += r.Dispatched
		total.Errors += r.Errors
	}

	outcome := "ok"
	if ctx.Err() != nil {
		outcome = "canceled"
	} else if total.Errors > 0 {
		outcome = "partial"
	}
	s.metrics.SweepCompleted(outcome, total.Duration)

	s.logger.Info("sweep completed",
		"examined", total.Examined,
		"transitioned", total.Transitioned,
		"alerts_created", total.Created,
		"alerts_dispatched", total.Dispatched,
		"errors", total.Errors,
		"duration_ms", total.Duration.Milliseconds(),
	)
	return &total, ctx.Err()
}

func (s *Sweeper) sweepShard(ctx context.Context, shard []*retention.RetentionProcess, now time.Time, res *Result) {
	for _, p := range shard {
		if ctx.Err() != nil {
			return
		}
		res.Examined++
		if err := s.tickWithRetry(ctx, p, now, res); err != nil {
			res.Errors++
			s.logger.Error("sweep tick failed",
				"process_id", p.ID,
				"state", string(p.State),
				"error", err,
			)
			s.raiseProcessError(ctx, p, err, now, res)
		}
	}
}

// tickWithRetry retries version conflicts on a fresh read. The candidate
// list is a snapshot; a conflict just means someone moved the process under
// us, which is normal.
func (s *Sweeper) tickWithRetry(ctx context.Context, p *retention.RetentionProcess, now time.Time, res *Result) error {
	var err error
	for attempt := 0; attempt < s.config.ConflictRetries; attempt++ {
		if attempt > 0 {
			p, err = s.store.GetProcess(ctx, p.ID)
			if err != nil {
				return err
			}
		}
		err = s.tick(ctx, p, now, res)
		var conflict *retention.VersionConflictError
		if !errors.As(err, &conflict) {
			return err
		}
	}
	return err
}

func (s *Sweeper) tick(ctx context.Context, p *retention.RetentionProcess, now time.Time, res *Result) error {
	// Lapsed deferrals end first so the clock logic below sees the real
	// state.
	if p.State == retention.StateAplazado {
		if p.DeferredUntil == nil || now.Before(*p.DeferredUntil) {
			return nil
		}
		if err := s.endDeferral(ctx, p, now, res); err != nil {
			return err
		}
	}

	switch p.State {
	case retention.StateActivo:
		if !now.Before(p.AlertLeadDate) {
			target := retention.StateAlertaPrevia
			if !now.Before(p.EffectiveExpiry()) {
				target = retention.StateVencido
			}
			if err := s.advance(ctx, p, target, now, res); err != nil {
				return err
			}
		}
	case retention.StateAlertaPrevia:
		if !now.Before(p.EffectiveExpiry()) {
			if err := s.advance(ctx, p, retention.StateVencido, now, res); err != nil {
				return err
			}
		}
	}

	// Recovery pass: a state that demands an alert gets one even when the
	// transition that entered it happened on a tick that died before the
	// alert landed. An acknowledged alert stays silent until the state is
	// entered again.
	if err := s.ensureStateAlert(ctx, p, now, res); err != nil {
		return err
	}

	return s.deliver(ctx, p, now, res)
}

// advance moves the process along the clock path and bundles the matching
// alert with the transition in one atomic write.
func (s *Sweeper) advance(ctx context.Context, p *retention.RetentionProcess, target retention.ProcessState, now time.Time, res *Result) error {
	prior := p.State
	if err := process.Advance(p, target, now); err != nil {
		return err
	}
	p.UpdatedAt = now
	p.IntegrityHash = retention.ComputeIntegrityHash(p)

	entry, err := s.ledger.Prepare(ctx, p.ID, retention.AuditTransition, prior, target,
		fmt.Sprintf("clock transition %s -> %s", prior, target), SweepActor)
	if err != nil {
		return err
	}

	// Recipient trouble must not lose the transition; a failed alert build
	// is surfaced as a process error after the write. The state is entered
	// right now, so any earlier alert of the same type belongs to a past
	// epoch and never suppresses this one.
	var newAlerts []*retention.Alert
	alert, alertErr := s.alertForState(ctx, p, now, now)
	if alertErr == nil && alert != nil {
		newAlerts = append(newAlerts, alert)
	}

	if err := s.store.ApplyChange(ctx, p, entry, newAlerts...); err != nil {
		return err
	}
	if alertErr != nil {
		s.raiseProcessError(ctx, p, alertErr, now, res)
	}

	res.Transitioned++
	res.Created += len(newAlerts)
	s.metrics.Transition(prior, target)
	for _, a := range newAlerts {
		s.metrics.AlertCreated(a.Type)
	}

	s.logger.Info("process advanced",
		"process_id", p.ID,
		"from", string(prior),
		"to", string(target),
	)
	return nil
}

func (s *Sweeper) endDeferral(ctx context.Context, p *retention.RetentionProcess, now time.Time, res *Result) error {
	prior := p.State
	natural, err := process.EndDeferral(p, now)
	if err != nil {
		return err
	}
	p.UpdatedAt = now
	p.IntegrityHash = retention.ComputeIntegrityHash(p)

	lapsedAt := p.DeferredUntil.Format("2006-01-02")
	entry, err := s.ledger.Prepare(ctx, p.ID, retention.AuditReactivate, prior, natural,
		fmt.Sprintf("deferral lapsed at %s", lapsedAt), SweepActor)
	if err != nil {
		return err
	}

	// A lapsed deferral demands attention beyond the routine expiry alert.
	var newAlerts []*retention.Alert
	alert, alertErr := s.deferralLapsedAlert(ctx, p, now, lapsedAt)
	if alertErr == nil && alert != nil {
		newAlerts = append(newAlerts, alert)
	}

	if err := s.store.ApplyChange(ctx, p, entry, newAlerts...); err != nil {
		return err
	}
	if alertErr != nil {
		s.raiseProcessError(ctx, p, alertErr, now, res)
	}

	res.Transitioned++
	res.Created += len(newAlerts)
	s.metrics.Transition(prior, natural)
	for _, a := range newAlerts {
		s.metrics.AlertCreated(a.Type)
	}
	s.logger.Info("deferral ended",
		"process_id", p.ID,
		"restored_state", string(natural),
	)
	return nil
}

// ensureStateAlert creates the alert the current state demands when none
// has been raised since the state was entered. Deduplication by (process,
// type, state epoch) makes repeated ticks idempotent and keeps an
// acknowledged alert silenced for as long as the state holds.
func (s *Sweeper) ensureStateAlert(ctx context.Context, p *retention.RetentionProcess, now time.Time, res *Result) error {
	enteredAt, err := s.stateEnteredAt(ctx, p)
	if err != nil {
		return err
	}
	alert, err := s.alertForState(ctx, p, now, enteredAt)
	if err != nil {
		var rre *retention.RecipientResolutionError
		if errors.As(err, &rre) {
			s.raiseProcessError(ctx, p, err, now, res)
			return nil
		}
		return err
	}
	if alert == nil {
		return nil
	}
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return err
	}
	res.Created++
	s.metrics.AlertCreated(alert.Type)
	return nil
}

// alertForState builds the alert the process's state calls for, or nil when
// the state needs none, alerts are disabled, or the state's alert was
// already raised. An open alert always suppresses; a closed one suppresses
// only while the state epoch it was raised in still holds, so acknowledging
// stays final until the process moves again.
func (s *Sweeper) alertForState(ctx context.Context, p *retention.RetentionProcess, now, enteredAt time.Time) (*retention.Alert, error) {
	if !p.AlertsEnabled {
		return nil, nil
	}

	var (
		alertType retention.AlertType
		priority  retention.AlertPriority
		message   string
		repeat    bool
	)
	switch p.State {
	case retention.StateAlertaPrevia:
		alertType = retention.AlertUpcomingExpiry
		priority = retention.PriorityMedium
		message = fmt.Sprintf("record %s enters its alert window: retention expires %s (action: %s)",
			p.Record, p.EffectiveExpiry().Format("2006-01-02"), p.Rule.Action)
	case retention.StateVencido:
		alertType = retention.AlertCurrentExpiry
		priority = retention.PriorityHigh
		repeat = true
		message = fmt.Sprintf("record %s retention expired %s: disposition %s required",
			p.Record, p.EffectiveExpiry().Format("2006-01-02"), p.Rule.Action)
	default:
		return nil, nil
	}

	latest, err := s.latestAlert(ctx, p.ID, alertType)
	if err != nil {
		return nil, err
	}
	if latest != nil && (latest.Open() || !latest.CreatedAt.Before(enteredAt)) {
		return nil, nil
	}

	recipients, channels, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, retention.NewRecipientResolutionError(p.ID, err)
	}

	return &retention.Alert{
		ID:                  uuid.NewString(),
		ProcessID:           p.ID,
		Type:                alertType,
		Priority:            priority,
		Recipients:          recipients,
		Channels:            channels,
		Message:             message,
		State:               retention.AlertPending,
		RepeatUntilAck:      repeat,
		RepeatIntervalHours: s.config.RepeatIntervalHours,
		MaxRepeats:          s.config.MaxRepeats,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// latestAlert returns the most recently created alert of the given type for
// a process, in any lifecycle state, or nil when none exists.
func (s *Sweeper) latestAlert(ctx context.Context, processID string, alertType retention.AlertType) (*retention.Alert, error) {
	alerts, err := s.store.ListAlerts(ctx, &retention.AlertQuery{
		ProcessID: processID,
		Type:      alertType,
	})
	if err != nil {
		return nil, err
	}
	var latest *retention.Alert
	for _, a := range alerts {
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return latest, nil
}

// stateEnteredAt returns the timestamp of the audit entry that moved the
// process into its current state: the oldest entry of the chain's current
// same-state suffix. Bookkeeping entries without a state (alert sends,
// acknowledgments) are skipped; entries recorded while the state held
// (locks) carry the state as both prior and next and stay in the suffix.
func (s *Sweeper) stateEnteredAt(ctx context.Context, p *retention.RetentionProcess) (time.Time, error) {
	entries, err := s.store.ListEntries(ctx, p.ID)
	if err != nil {
		return time.Time{}, err
	}
	entered := p.CreatedAt
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].NextState == "" {
			continue
		}
		if entries[i].NextState != p.State {
			break
		}
		entered = entries[i].Timestamp
	}
	return entered, nil
}

// deferralLapsedAlert builds the action-required alert raised when a
// deferral runs out. Deduplicated like any other state alert.
func (s *Sweeper) deferralLapsedAlert(ctx context.Context, p *retention.RetentionProcess, now time.Time, lapsedAt string) (*retention.Alert, error) {
	if !p.AlertsEnabled {
		return nil, nil
	}

	existing, err := s.store.FindOpenAlert(ctx, p.ID, retention.AlertActionRequired)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	recipients, channels, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, retention.NewRecipientResolutionError(p.ID, err)
	}

	return &retention.Alert{
		ID:         uuid.NewString(),
		ProcessID:  p.ID,
		Type:       retention.AlertActionRequired,
		Priority:   retention.PriorityHigh,
		Recipients: recipients,
		Channels:   channels,
		Message: fmt.Sprintf("deferral of record %s lapsed %s: disposition %s required",
			p.Record, lapsedAt, p.Rule.Action),
		State:               retention.AlertPending,
		RepeatUntilAck:      true,
		RepeatIntervalHours: s.config.RepeatIntervalHours,
		MaxRepeats:          s.config.MaxRepeats,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// deliver sends pending alerts and re-sends repeating ones whose interval
// elapsed without acknowledgment.
func (s *Sweeper) deliver(ctx context.Context, p *retention.RetentionProcess, now time.Time, res *Result) error {
	pending, err := s.store.ListAlerts(ctx, &retention.AlertQuery{
		ProcessID: p.ID,
		States:    []retention.AlertState{retention.AlertPending},
	})
	if err != nil {
		return err
	}
	for _, a := range pending {
		if err := s.send(ctx, a, now, false); err != nil {
			res.Errors++
			continue
		}
		res.Dispatched++
	}

	open, err := s.store.ListAlerts(ctx, &retention.AlertQuery{
		ProcessID: p.ID,
		States:    []retention.AlertState{retention.AlertSent, retention.AlertRead},
	})
	if err != nil {
		return err
	}
	for _, a := range open {
		if !s.repeatDue(a, now) {
			continue
		}
		if err := s.send(ctx, a, now, true); err != nil {
			res.Errors++
			continue
		}
		res.Dispatched++
	}
	return nil
}

func (s *Sweeper) repeatDue(a *retention.Alert, now time.Time) bool {
	if !a.RepeatUntilAck || a.LastSentAt == nil {
		return false
	}
	if a.MaxRepeats > 0 && a.RepeatsSent >= a.MaxRepeats {
		return false
	}
	interval := time.Duration(a.RepeatIntervalHours) * time.Hour
	if interval <= 0 {
		return false
	}
	return now.Sub(*a.LastSentAt) >= interval
}

func (s *Sweeper) send(ctx context.Context, a *retention.Alert, now time.Time, isRepeat bool) error {
	if err := s.dispatcher.Dispatch(ctx, a); err != nil {
		s.metrics.AlertDispatched(a.Type, false)
		s.logger.Error("alert dispatch failed",
			"alert_id", a.ID,
			"process_id", a.ProcessID,
			"type", string(a.Type),
			"error", err,
		)
		return err
	}

	if a.State == retention.AlertPending {
		a.State = retention.AlertSent
	}
	if isRepeat {
		a.RepeatsSent++
	}
	sent := now
	a.LastSentAt = &sent
	a.UpdatedAt = now
	if err := s.store.UpdateAlert(ctx, a); err != nil {
		return err
	}

	s.metrics.AlertDispatched(a.Type, true)

	desc := fmt.Sprintf("alert %s dispatched", a.Type)
	if isRepeat {
		desc = fmt.Sprintf("alert %s re-dispatched (repeat %d)", a.Type, a.RepeatsSent)
	}
	if _, err := s.ledger.Append(ctx, a.ProcessID, retention.AuditSendAlert, "", "", desc, SweepActor); err != nil {
		return err
	}
	return nil
}

// raiseProcessError surfaces a per-process failure as a high-priority alert
// so it reaches the same inbox the normal notifications do. Deduplicated
// like any other alert type.
func (s *Sweeper) raiseProcessError(ctx context.Context, p *retention.RetentionProcess, cause error, now time.Time, res *Result) {
	existing, err := s.store.FindOpenAlert(ctx, p.ID, retention.AlertProcessError)
	if err != nil || existing != nil {
		return
	}

	alert := &retention.Alert{
		ID:        uuid.NewString(),
		ProcessID: p.ID,
		Type:      retention.AlertProcessError,
		Priority:  retention.PriorityHigh,
		Message:   fmt.Sprintf("retention processing failed for record %s: %v", p.Record, cause),
		State:     retention.AlertPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		s.logger.Error("failed to record process-error alert",
			"process_id", p.ID,
			"error", err,
		)
		return
	}
	res.Created++
	s.metrics.AlertCreated(retention.AlertProcessError)
}

func shardFor(id string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(shards))
}
