package process

import (
	"errors"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/retention"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// newProcess returns a process with expiry 2025-01-01 and lead date
// 2024-12-02 in the given state.
func newProcess(state retention.ProcessState) *retention.RetentionProcess {
	central := date(2035, 1, 1)
	return &retention.RetentionProcess{
		ID:               "proc-1",
		Record:           retention.RecordRef{Kind: retention.RecordDocumento, ID: "doc-1"},
		OriginDate:       date(2020, 1, 1),
		ManagementExpiry: date(2025, 1, 1),
		CentralExpiry:    &central,
		AlertLeadDate:    date(2024, 12, 2),
		State:            state,
		AlertsEnabled:    true,
	}
}

func TestAdvance_IntoLeadWindow(t *testing.T) {
	p := newProcess(retention.StateActivo)

	if err := Advance(p, retention.StateAlertaPrevia, date(2024, 12, 10)); err != nil {
		t.Fatalf("Advance() failed: %v", err)
	}
	if p.State != retention.StateAlertaPrevia {
		t.Errorf("state = %s, want alerta_previa", p.State)
	}
}

func TestAdvance_BeforeLeadWindow(t *testing.T) {
	p := newProcess(retention.StateActivo)

	err := Advance(p, retention.StateAlertaPrevia, date(2024, 11, 15))
	var invalid *retention.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("Advance() error = %v, want InvalidTransitionError", err)
	}
	if p.State != retention.StateActivo {
		t.Errorf("state mutated to %s on failed transition", p.State)
	}
}

func TestAdvance_IntoVencido(t *testing.T) {
	p := newProcess(retention.StateAlertaPrevia)

	if err := Advance(p, retention.StateVencido, date(2025, 1, 1)); err != nil {
		t.Fatalf("Advance() failed: %v", err)
	}
	if p.State != retention.StateVencido {
		t.Errorf("state = %s, want vencido", p.State)
	}
}

func TestAdvance_SkipsLeadWindowAfterLongGap(t *testing.T) {
	p := newProcess(retention.StateActivo)

	if err := Advance(p, retention.StateVencido, date(2025, 6, 1)); err != nil {
		t.Fatalf("Advance() failed: %v", err)
	}
}

func TestAdvance_RejectsUserDrivenShapes(t *testing.T) {
	cases := []struct {
		name string
		from retention.ProcessState
		to   retention.ProcessState
	}{
		{"activo_to_en_disposicion", retention.StateActivo, retention.StateEnDisposicion},
		{"vencido_to_activo", retention.StateVencido, retention.StateActivo},
		{"terminal_to_activo", retention.StateEliminado, retention.StateActivo},
		{"activo_to_eliminado", retention.StateActivo, retention.StateEliminado},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newProcess(tc.from)
			err := Advance(p, tc.to, date(2026, 1, 1))
			var invalid *retention.InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("Advance(%s -> %s) error = %v, want InvalidTransitionError", tc.from, tc.to, err)
			}
		})
	}
}

func TestInitiateDisposition(t *testing.T) {
	p := newProcess(retention.StateVencido)

	if err := InitiateDisposition(p, retention.ActionEliminacion); err != nil {
		t.Fatalf("InitiateDisposition() failed: %v", err)
	}
	if p.State != retention.StateEnDisposicion {
		t.Errorf("state = %s, want en_disposicion", p.State)
	}
	if p.Action != retention.ActionEliminacion {
		t.Errorf("action = %s, want eliminacion", p.Action)
	}
}

func TestInitiateDisposition_GuardedStates(t *testing.T) {
	for _, from := range []retention.ProcessState{
		retention.StateActivo,
		retention.StateAlertaPrevia,
		retention.StateAplazado,
		retention.StateSuspendido,
		retention.StateConservado,
	} {
		t.Run(string(from), func(t *testing.T) {
			p := newProcess(from)
			err := InitiateDisposition(p, retention.ActionEliminacion)
			var invalid *retention.InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("InitiateDisposition from %s error = %v, want InvalidTransitionError", from, err)
			}
		})
	}
}

func TestInitiateDisposition_UnknownAction(t *testing.T) {
	p := newProcess(retention.StateVencido)
	if err := InitiateDisposition(p, "shred"); err == nil {
		t.Error("InitiateDisposition() with unknown action succeeded, want error")
	}
}

func TestConfirmDisposition_TerminalMapping(t *testing.T) {
	cases := []struct {
		action retention.DispositionAction
		want   retention.ProcessState
	}{
		{retention.ActionEliminacion, retention.StateEliminado},
		{retention.ActionTransferenciaHistorica, retention.StateTransferido},
		{retention.ActionConservacionTotal, retention.StateConservado},
		{retention.ActionSeleccion, retention.StateConservado},
		{retention.ActionMicrofilmacion, retention.StateConservado},
		{retention.ActionDigitalizacionPermanente, retention.StateConservado},
	}

	for _, tc := range cases {
		t.Run(string(tc.action), func(t *testing.T) {
			p := newProcess(retention.StateEnDisposicion)
			p.Action = tc.action

			got, err := ConfirmDisposition(p)
			if err != nil {
				t.Fatalf("ConfirmDisposition() failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("terminal state = %s, want %s", got, tc.want)
			}
		})
	}
}

// TestConfirmDisposition_BlockedByLock: the deletion lock always wins,
// regardless of expiry.
func TestConfirmDisposition_BlockedByLock(t *testing.T) {
	p := newProcess(retention.StateEnDisposicion)
	p.Action = retention.ActionEliminacion
	p.LockedForDeletion = true

	_, err := ConfirmDisposition(p)
	var blocked *retention.BlockedByLockError
	if !errors.As(err, &blocked) {
		t.Fatalf("ConfirmDisposition() error = %v, want BlockedByLockError", err)
	}
	if p.State != retention.StateEnDisposicion {
		t.Errorf("state mutated to %s on blocked elimination", p.State)
	}
}

// TestConfirmDisposition_LockAllowsConservation: the lock only blocks
// elimination.
func TestConfirmDisposition_LockAllowsConservation(t *testing.T) {
	p := newProcess(retention.StateEnDisposicion)
	p.Action = retention.ActionConservacionTotal
	p.LockedForDeletion = true

	got, err := ConfirmDisposition(p)
	if err != nil {
		t.Fatalf("ConfirmDisposition() failed: %v", err)
	}
	if got != retention.StateConservado {
		t.Errorf("terminal state = %s, want conservado", got)
	}
}

func TestDefer(t *testing.T) {
	p := newProcess(retention.StateVencido)
	until := date(2026, 1, 1)

	if err := Defer(p, until, "pending litigation review"); err != nil {
		t.Fatalf("Defer() failed: %v", err)
	}
	if p.State != retention.StateAplazado {
		t.Errorf("state = %s, want aplazado", p.State)
	}
	if !p.Deferred || p.DeferredUntil == nil || !p.DeferredUntil.Equal(until) {
		t.Errorf("deferral fields not set: deferred=%v until=%v", p.Deferred, p.DeferredUntil)
	}
	if !p.EffectiveExpiry().Equal(until) {
		t.Errorf("EffectiveExpiry() = %v, want %v", p.EffectiveExpiry(), until)
	}
}

func TestDefer_InvalidState(t *testing.T) {
	for _, from := range []retention.ProcessState{
		retention.StateActivo,
		retention.StateEnDisposicion,
		retention.StateSuspendido,
		retention.StateEliminado,
	} {
		t.Run(string(from), func(t *testing.T) {
			p := newProcess(from)
			err := Defer(p, date(2026, 1, 1), "reason")
			var invalid *retention.InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("Defer from %s error = %v, want InvalidTransitionError", from, err)
			}
		})
	}
}

func TestDefer_DeadlineNotAfterExpiry(t *testing.T) {
	p := newProcess(retention.StateVencido)

	err := Defer(p, date(2025, 1, 1), "reason") // equals expiry, not strictly after
	var invalid *retention.InvalidDeadlineError
	if !errors.As(err, &invalid) {
		t.Fatalf("Defer() error = %v, want InvalidDeadlineError", err)
	}
}

func TestDefer_EmptyReason(t *testing.T) {
	p := newProcess(retention.StateAlertaPrevia)
	if err := Defer(p, date(2026, 1, 1), ""); err == nil {
		t.Error("Defer() with empty justification succeeded, want error")
	}
}

// TestEndDeferral_NaturalState: after the deferral lapses, the process lands
// in the state it would have reached had the original expiry been the
// deferred deadline.
func TestEndDeferral_NaturalState(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want retention.ProcessState
	}{
		{"past_deadline", date(2026, 2, 1), retention.StateVencido},
		{"at_deadline", date(2026, 1, 1), retention.StateVencido},
		{"before_deadline", date(2025, 6, 1), retention.StateAlertaPrevia},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newProcess(retention.StateVencido)
			if err := Defer(p, date(2026, 1, 1), "reason"); err != nil {
				t.Fatalf("Defer() failed: %v", err)
			}

			got, err := EndDeferral(p, tc.now)
			if err != nil {
				t.Fatalf("EndDeferral() failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("EndDeferral() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSuspendAndReactivate(t *testing.T) {
	for _, held := range []retention.ProcessState{
		retention.StateActivo,
		retention.StateAlertaPrevia,
		retention.StateVencido,
		retention.StateEnDisposicion,
		retention.StateAplazado,
	} {
		t.Run(string(held), func(t *testing.T) {
			p := newProcess(held)

			if err := Suspend(p, "administrative review"); err != nil {
				t.Fatalf("Suspend() failed: %v", err)
			}
			if p.State != retention.StateSuspendido {
				t.Fatalf("state = %s, want suspendido", p.State)
			}

			restored, err := Reactivate(p)
			if err != nil {
				t.Fatalf("Reactivate() failed: %v", err)
			}
			if restored != held {
				t.Errorf("Reactivate() = %s, want %s", restored, held)
			}
			if p.HeldState != "" {
				t.Errorf("held state = %s after reactivation, want empty", p.HeldState)
			}
		})
	}
}

func TestSuspend_Terminal(t *testing.T) {
	p := newProcess(retention.StateTransferido)
	err := Suspend(p, "reason")
	var invalid *retention.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Errorf("Suspend() on terminal error = %v, want InvalidTransitionError", err)
	}
}

func TestReactivate_NotSuspended(t *testing.T) {
	p := newProcess(retention.StateActivo)
	_, err := Reactivate(p)
	var invalid *retention.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Errorf("Reactivate() error = %v, want InvalidTransitionError", err)
	}
}
