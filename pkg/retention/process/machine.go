// Package process implements the retention process state machine: the
// authoritative set of lifecycle states and the legal transitions between
// them. Every mutation entry point validates its guard before touching the
// process; illegal transitions fail with InvalidTransition naming the current
// and attempted states and the guard that rejected them.
//
// The functions here mutate the process in memory only. Persisting the
// change and appending the matching audit entry is the engine's job, and the
// storage layer applies both atomically.
package process

import (
	"fmt"
	"time"

	"mercator-hq/saturn/pkg/retention"
)

// Guard names reported inside InvalidTransition errors.
const (
	GuardTerminal        = "terminal_state"
	GuardSchedulerOnly   = "scheduler_clock"
	GuardRequiresVencido = "requires_vencido"
	GuardRequiresInDisp  = "requires_en_disposicion"
	GuardDeferFrom       = "defer_from_alerta_previa_or_vencido"
	GuardSuspendedOnly   = "requires_suspendido"
	GuardDeferredOnly    = "requires_aplazado"
)

// Advance applies a clock-driven transition: activo -> alerta_previa when the
// alert lead date is reached, alerta_previa -> vencido when the effective
// expiry is reached. It is driven by the alert scheduler, never by user
// action.
func Advance(p *retention.RetentionProcess, to retention.ProcessState, now time.Time) error {
	switch {
	case p.State == retention.StateActivo && to == retention.StateAlertaPrevia:
		if now.Before(p.AlertLeadDate) {
			return retention.NewInvalidTransitionError(p.ID, p.State, to, GuardSchedulerOnly)
		}
	case p.State == retention.StateAlertaPrevia && to == retention.StateVencido:
		if now.Before(p.EffectiveExpiry()) {
			return retention.NewInvalidTransitionError(p.ID, p.State, to, GuardSchedulerOnly)
		}
	// A long gap between sweeps can carry an active process straight past
	// its lead window.
	case p.State == retention.StateActivo && to == retention.StateVencido:
		if now.Before(p.EffectiveExpiry()) {
			return retention.NewInvalidTransitionError(p.ID, p.State, to, GuardSchedulerOnly)
		}
	default:
		return retention.NewInvalidTransitionError(p.ID, p.State, to, GuardSchedulerOnly)
	}

	p.State = to
	return nil
}

// InitiateDisposition moves a vencido process into en_disposicion, recording
// the chosen disposition action. Requires an authorized actor upstream.
func InitiateDisposition(p *retention.RetentionProcess, action retention.DispositionAction) error {
	if p.State != retention.StateVencido {
		return retention.NewInvalidTransitionError(p.ID, p.State, retention.StateEnDisposicion, GuardRequiresVencido)
	}
	if !action.Valid() {
		return fmt.Errorf("process %s: unknown disposition action %q", p.ID, action)
	}

	p.State = retention.StateEnDisposicion
	p.Action = action
	return nil
}

// ConfirmDisposition completes an in-progress disposition, moving the
// process into the terminal state implied by its action. Elimination fails
// with BlockedByLock while locked_for_deletion is set, regardless of expiry.
func ConfirmDisposition(p *retention.RetentionProcess) (retention.ProcessState, error) {
	if p.State != retention.StateEnDisposicion {
		return "", retention.NewInvalidTransitionError(p.ID, p.State, retention.StateConservado, GuardRequiresInDisp)
	}
	if !p.Action.Valid() {
		return "", fmt.Errorf("process %s: no disposition action recorded", p.ID)
	}

	terminal := p.Action.TerminalState()
	if terminal == retention.StateEliminado && p.LockedForDeletion {
		return "", retention.NewBlockedByLockError(p.ID)
	}

	p.State = terminal
	return terminal, nil
}

// Defer postpones disposition under a justification. Only alerta_previa and
// vencido processes may be deferred, and the new deadline must be strictly
// after the current effective expiry. The deferral suspends the normal clock
// until it lapses.
func Defer(p *retention.RetentionProcess, until time.Time, reason string) error {
	if p.State != retention.StateAlertaPrevia && p.State != retention.StateVencido {
		return retention.NewInvalidTransitionError(p.ID, p.State, retention.StateAplazado, GuardDeferFrom)
	}
	if reason == "" {
		return fmt.Errorf("process %s: deferral requires a justification", p.ID)
	}
	if !until.After(p.EffectiveExpiry()) {
		return retention.NewInvalidDeadlineError(p.ID, until, p.EffectiveExpiry())
	}

	p.State = retention.StateAplazado
	p.Deferred = true
	p.DeferredUntil = &until
	p.DeferralReason = reason
	return nil
}

// EndDeferral reactivates a deferred process into the state it would
// naturally occupy given the extended expiry. The deferral deadline stays in
// effect as the new expiry for subsequent clock transitions. Returns the
// state entered.
func EndDeferral(p *retention.RetentionProcess, now time.Time) (retention.ProcessState, error) {
	if p.State != retention.StateAplazado {
		return "", retention.NewInvalidTransitionError(p.ID, p.State, retention.StateActivo, GuardDeferredOnly)
	}

	natural := p.NaturalState(now)
	p.State = natural
	return natural, nil
}

// Suspend places an administrative hold on any non-terminal process,
// remembering the state held so reactivation can restore it.
func Suspend(p *retention.RetentionProcess, reason string) error {
	if p.State.Terminal() {
		return retention.NewInvalidTransitionError(p.ID, p.State, retention.StateSuspendido, GuardTerminal)
	}
	if p.State == retention.StateSuspendido {
		return retention.NewInvalidTransitionError(p.ID, p.State, retention.StateSuspendido, GuardSuspendedOnly)
	}
	if reason == "" {
		return fmt.Errorf("process %s: suspension requires a reason", p.ID)
	}

	p.HeldState = p.State
	p.State = retention.StateSuspendido
	return nil
}

// Reactivate lifts an administrative hold, restoring the state held at
// suspension. The next sweep advances the clock if it moved meanwhile.
// Returns the restored state.
func Reactivate(p *retention.RetentionProcess) (retention.ProcessState, error) {
	if p.State != retention.StateSuspendido {
		return "", retention.NewInvalidTransitionError(p.ID, p.State, p.HeldState, GuardSuspendedOnly)
	}
	if !p.HeldState.Valid() || p.HeldState.Terminal() {
		return "", fmt.Errorf("process %s: no restorable state held at suspension", p.ID)
	}

	restored := p.HeldState
	p.State = restored
	p.HeldState = ""
	return restored, nil
}

// Lock sets the deletion lock. Locking is allowed in any state; the lock
// only ever blocks future elimination, it never changes the current state.
func Lock(p *retention.RetentionProcess) {
	p.LockedForDeletion = true
}

// Unlock clears the deletion lock.
func Unlock(p *retention.RetentionProcess) {
	p.LockedForDeletion = false
}
