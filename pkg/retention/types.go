package retention

import (
	"fmt"
	"time"
)

// DispositionAction is the final action applied to a record at the end of its
// retention period. It is a closed enumeration; free-form strings are rejected
// at the boundary.
type DispositionAction string

const (
	// ActionConservacionTotal keeps the record permanently. Records under
	// total conservation never enter the central-archive expiry clock.
	ActionConservacionTotal DispositionAction = "conservacion_total"

	// ActionEliminacion destroys the record once retention lapses.
	ActionEliminacion DispositionAction = "eliminacion"

	// ActionTransferenciaHistorica transfers the record to a historical archive.
	ActionTransferenciaHistorica DispositionAction = "transferencia_historica"

	// ActionSeleccion selects a representative sample for conservation and
	// eliminates the remainder.
	ActionSeleccion DispositionAction = "seleccion"

	// ActionMicrofilmacion reproduces the record on microfilm before disposal.
	ActionMicrofilmacion DispositionAction = "microfilmacion"

	// ActionDigitalizacionPermanente digitizes the record for permanent
	// electronic conservation.
	ActionDigitalizacionPermanente DispositionAction = "digitalizacion_permanente"
)

// Valid reports whether the action is a member of the closed enumeration.
func (a DispositionAction) Valid() bool {
	switch a {
	case ActionConservacionTotal, ActionEliminacion, ActionTransferenciaHistorica,
		ActionSeleccion, ActionMicrofilmacion, ActionDigitalizacionPermanente:
		return true
	}
	return false
}

// TerminalState returns the process state a confirmed disposition lands in.
func (a DispositionAction) TerminalState() ProcessState {
	switch a {
	case ActionEliminacion:
		return StateEliminado
	case ActionTransferenciaHistorica:
		return StateTransferido
	default:
		// Conservation variants (total, selection, microfilm, digitization)
		// all conserve the record.
		return StateConservado
	}
}

// ProcessState is the lifecycle state of a retention process.
type ProcessState string

const (
	// StateActivo: within the retention period, no action pending.
	StateActivo ProcessState = "activo"

	// StateAlertaPrevia: inside the alert lead window before expiry.
	StateAlertaPrevia ProcessState = "alerta_previa"

	// StateVencido: retention expired, disposition action required.
	StateVencido ProcessState = "vencido"

	// StateEnDisposicion: a disposition action has been initiated and awaits
	// confirmation.
	StateEnDisposicion ProcessState = "en_disposicion"

	// StateAplazado: disposition deferred under justification until a new
	// deadline. The normal clock is suspended until the deferral lapses.
	StateAplazado ProcessState = "aplazado"

	// StateSuspendido: administrative hold. Reactivation restores the state
	// held before suspension.
	StateSuspendido ProcessState = "suspendido"

	// Terminal states. No transitions leave them.
	StateTransferido ProcessState = "transferido"
	StateEliminado   ProcessState = "eliminado"
	StateConservado  ProcessState = "conservado"
)

// Valid reports whether the state is a member of the closed enumeration.
func (s ProcessState) Valid() bool {
	switch s {
	case StateActivo, StateAlertaPrevia, StateVencido, StateEnDisposicion,
		StateAplazado, StateSuspendido, StateTransferido, StateEliminado, StateConservado:
		return true
	}
	return false
}

// Terminal reports whether no further transitions may leave the state.
func (s ProcessState) Terminal() bool {
	switch s {
	case StateTransferido, StateEliminado, StateConservado:
		return true
	}
	return false
}

// RecordKind discriminates the two record variants a process may track.
type RecordKind string

const (
	RecordDocumento  RecordKind = "documento"
	RecordExpediente RecordKind = "expediente"
)

// RecordRef identifies exactly one record: a document or a case file
// (expediente). The tagged form makes the dual-null and dual-set states of
// the original schema unrepresentable; an empty kind or id is a validation
// error, never a silently accepted row.
type RecordRef struct {
	Kind RecordKind `json:"kind" yaml:"kind"`
	ID   string     `json:"id" yaml:"id"`
}

// Validate rejects references that do not name exactly one record.
func (r RecordRef) Validate() error {
	switch r.Kind {
	case RecordDocumento, RecordExpediente:
	default:
		return fmt.Errorf("record ref: unknown kind %q", r.Kind)
	}
	if r.ID == "" {
		return fmt.Errorf("record ref: id cannot be empty")
	}
	return nil
}

func (r RecordRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ClassificationPath places a record in the retention schedule hierarchy:
// schedule -> series -> subserie -> document type. Subserie and document type
// are optional refinements.
type ClassificationPath struct {
	ScheduleID     string `json:"schedule_id" yaml:"schedule_id"`
	SeriesID       string `json:"series_id" yaml:"series_id"`
	SubserieID     string `json:"subserie_id,omitempty" yaml:"subserie_id,omitempty"`
	DocumentTypeID string `json:"document_type_id,omitempty" yaml:"document_type_id,omitempty"`
}

// Validate rejects paths missing the mandatory schedule and series levels,
// or naming a document type without the subserie chain being meaningful.
func (p ClassificationPath) Validate() error {
	if p.ScheduleID == "" {
		return fmt.Errorf("classification path: schedule id cannot be empty")
	}
	if p.SeriesID == "" {
		return fmt.Errorf("classification path: series id cannot be empty")
	}
	return nil
}

// RuleLevel orders rule scopes from least to most specific.
type RuleLevel int

const (
	LevelSchedule RuleLevel = iota
	LevelSeries
	LevelSubserie
	LevelDocumentType
)

func (l RuleLevel) String() string {
	switch l {
	case LevelSchedule:
		return "schedule"
	case LevelSeries:
		return "series"
	case LevelSubserie:
		return "subserie"
	case LevelDocumentType:
		return "document_type"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// RetentionRule declares retention parameters for one applicability scope.
// The most specific non-empty scope id determines the rule's level. Rules are
// immutable once referenced by a process; a new version supersedes rather
// than mutates.
type RetentionRule struct {
	ID string `json:"id" yaml:"id"`

	// Scope. ScheduleID is always set; the deepest non-empty id below it
	// defines specificity.
	ScheduleID     string `json:"schedule_id" yaml:"schedule_id"`
	SeriesID       string `json:"series_id,omitempty" yaml:"series_id,omitempty"`
	SubserieID     string `json:"subserie_id,omitempty" yaml:"subserie_id,omitempty"`
	DocumentTypeID string `json:"document_type_id,omitempty" yaml:"document_type_id,omitempty"`

	// RecordKinds restricts which record variants the rule applies to.
	// Empty means the rule applies to both documents and case files.
	RecordKinds []RecordKind `json:"record_kinds,omitempty" yaml:"record_kinds,omitempty"`

	ManagementYears int               `json:"management_years" yaml:"management_years"`
	CentralYears    int               `json:"central_years" yaml:"central_years"`
	Action          DispositionAction `json:"action" yaml:"action"`

	// Activation window. A nil EffectiveTo means the rule never expires.
	EffectiveFrom time.Time  `json:"effective_from" yaml:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`

	// Priority breaks ties between rules at the same specificity level.
	Priority int `json:"priority" yaml:"priority"`
}

// Level returns the rule's specificity: the deepest scope id that is set.
func (r *RetentionRule) Level() RuleLevel {
	switch {
	case r.DocumentTypeID != "":
		return LevelDocumentType
	case r.SubserieID != "":
		return LevelSubserie
	case r.SeriesID != "":
		return LevelSeries
	default:
		return LevelSchedule
	}
}

// ActiveAt reports whether asOf falls inside the rule's activation window.
// The window is inclusive at both ends.
func (r *RetentionRule) ActiveAt(asOf time.Time) bool {
	if asOf.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && asOf.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// AppliesTo reports whether the rule covers the given record kind.
func (r *RetentionRule) AppliesTo(kind RecordKind) bool {
	if len(r.RecordKinds) == 0 {
		return true
	}
	for _, k := range r.RecordKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Validate checks the rule's internal consistency at load time.
func (r *RetentionRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule: id cannot be empty")
	}
	if r.ScheduleID == "" {
		return fmt.Errorf("rule %s: schedule id cannot be empty", r.ID)
	}
	if r.DocumentTypeID != "" && r.SeriesID == "" {
		return fmt.Errorf("rule %s: document-type scope requires a series id", r.ID)
	}
	if r.SubserieID != "" && r.SeriesID == "" {
		return fmt.Errorf("rule %s: subserie scope requires a series id", r.ID)
	}
	if r.ManagementYears < 0 || r.CentralYears < 0 {
		return fmt.Errorf("rule %s: retention years cannot be negative", r.ID)
	}
	if !r.Action.Valid() {
		return fmt.Errorf("rule %s: unknown disposition action %q", r.ID, r.Action)
	}
	if r.EffectiveFrom.IsZero() {
		return fmt.Errorf("rule %s: effective_from cannot be zero", r.ID)
	}
	if r.EffectiveTo != nil && r.EffectiveTo.Before(r.EffectiveFrom) {
		return fmt.Errorf("rule %s: effective_to precedes effective_from", r.ID)
	}
	for _, k := range r.RecordKinds {
		if k != RecordDocumento && k != RecordExpediente {
			return fmt.Errorf("rule %s: unknown record kind %q", r.ID, k)
		}
	}
	return nil
}

// RuleSnapshot is the frozen copy of a resolved rule bound to a process at
// creation, so later rule edits never retroactively change already-scheduled
// records.
type RuleSnapshot struct {
	RuleID          string            `json:"rule_id"`
	Level           RuleLevel         `json:"level"`
	ManagementYears int               `json:"management_years"`
	CentralYears    int               `json:"central_years"`
	Action          DispositionAction `json:"action"`
	Priority        int               `json:"priority"`
}

// Snapshot freezes the rule fields a process depends on.
func (r *RetentionRule) Snapshot() RuleSnapshot {
	return RuleSnapshot{
		RuleID:          r.ID,
		Level:           r.Level(),
		ManagementYears: r.ManagementYears,
		CentralYears:    r.CentralYears,
		Action:          r.Action,
		Priority:        r.Priority,
	}
}

// RetentionProcess is the per-record retention instance. It is created when a
// record enters the catalog and is classified, mutated only through the state
// machine and the deferral manager, and never hard-deleted: elimination is a
// state, not a row deletion.
type RetentionProcess struct {
	ID     string    `json:"id"`
	Record RecordRef `json:"record"`
	Path   ClassificationPath `json:"path"`
	Rule   RuleSnapshot       `json:"rule"`

	OriginDate       time.Time  `json:"origin_date"`
	ManagementExpiry time.Time  `json:"management_expiry"`
	// CentralExpiry is nil when the disposition action is total conservation:
	// the record never leaves central custody.
	CentralExpiry *time.Time `json:"central_expiry,omitempty"`
	AlertLeadDate time.Time  `json:"alert_lead_date"`

	State ProcessState `json:"state"`
	// HeldState is the state a suspension was entered from; reactivation
	// restores it. Empty outside suspension.
	HeldState ProcessState `json:"held_state,omitempty"`

	// Action is the disposition chosen when the process entered
	// en_disposicion; empty before initiation.
	Action DispositionAction `json:"action,omitempty"`

	Deferred       bool       `json:"deferred"`
	DeferredUntil  *time.Time `json:"deferred_until,omitempty"`
	DeferralReason string     `json:"deferral_reason,omitempty"`

	// LockedForDeletion forbids any transition into eliminado regardless of
	// expiry. Set upstream by legal-hold style flags.
	LockedForDeletion bool `json:"locked_for_deletion"`

	AlertsEnabled bool `json:"alerts_enabled"`

	// IntegrityHash covers the process's critical fields; recomputed on every
	// mutation and checked on load.
	IntegrityHash string `json:"integrity_hash"`

	// Version implements optimistic concurrency: updates carry the version
	// they read and fail on mismatch.
	Version int64 `json:"version"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// EffectiveExpiry is the management expiry with any active deferral applied:
// a lapsed deferral deadline acts as the new expiry for state recomputation.
func (p *RetentionProcess) EffectiveExpiry() time.Time {
	if p.Deferred && p.DeferredUntil != nil {
		return *p.DeferredUntil
	}
	return p.ManagementExpiry
}

// NaturalState computes the state the process would occupy at now given its
// effective dates, ignoring holds and disposition progress. Used when a
// deferral lapses or a suspension is lifted onto a stale clock state.
func (p *RetentionProcess) NaturalState(now time.Time) ProcessState {
	if !now.Before(p.EffectiveExpiry()) {
		return StateVencido
	}
	if !now.Before(p.AlertLeadDate) {
		return StateAlertaPrevia
	}
	return StateActivo
}

// AlertType classifies what triggered an alert.
type AlertType string

const (
	AlertUpcomingExpiry          AlertType = "upcoming_expiry"
	AlertCurrentExpiry           AlertType = "current_expiry"
	AlertActionRequired          AlertType = "action_required"
	AlertProcessError            AlertType = "process_error"
	AlertDispositionConfirmation AlertType = "disposition_confirmation"
)

// AlertState is the delivery lifecycle of an alert.
type AlertState string

const (
	AlertPending      AlertState = "pending"
	AlertSent         AlertState = "sent"
	AlertRead         AlertState = "read"
	AlertAcknowledged AlertState = "acknowledged"
	AlertDismissed    AlertState = "dismissed"
)

// AlertPriority orders alerts for the notification dispatcher.
type AlertPriority string

const (
	PriorityLow      AlertPriority = "low"
	PriorityMedium   AlertPriority = "medium"
	PriorityHigh     AlertPriority = "high"
	PriorityCritical AlertPriority = "critical"
)

// Alert is a scheduled notification about a retention process. Alerts are
// retained indefinitely for audit; acknowledgment and dismissal are state
// changes, not deletions.
type Alert struct {
	ID        string        `json:"id"`
	ProcessID string        `json:"process_id"`
	Type      AlertType     `json:"type"`
	Priority  AlertPriority `json:"priority"`

	Recipients []string `json:"recipients"`
	Channels   []string `json:"channels"`
	Message    string   `json:"message"`

	State AlertState `json:"state"`

	// Repetition policy: re-send every RepeatIntervalHours until acknowledged
	// or MaxRepeats reached.
	RepeatUntilAck      bool `json:"repeat_until_ack"`
	RepeatIntervalHours int  `json:"repeat_interval_hours"`
	MaxRepeats          int  `json:"max_repeats"`
	RepeatsSent         int  `json:"repeats_sent"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
}

// Open reports whether the alert still demands attention: it has not been
// acknowledged or dismissed. Open alerts suppress duplicate creation for the
// same (process, type) pair.
func (a *Alert) Open() bool {
	switch a.State {
	case AlertPending, AlertSent, AlertRead:
		return true
	}
	return false
}

// AuditAction is the closed enumeration of actions the ledger records.
type AuditAction string

const (
	AuditCreate       AuditAction = "create"
	AuditRecompute    AuditAction = "recompute"
	AuditSendAlert    AuditAction = "send_alert"
	AuditAlertAck     AuditAction = "acknowledge_alert"
	AuditAlertDismiss AuditAction = "dismiss_alert"
	AuditTransition   AuditAction = "transition"
	AuditDefer        AuditAction = "defer"
	AuditReactivate   AuditAction = "reactivate"
	AuditSuspend      AuditAction = "suspend"
	AuditLock         AuditAction = "lock"
	AuditUnlock       AuditAction = "unlock"
	AuditModifyDates  AuditAction = "modify_dates"
)

// AuditEntry is one append-only link in a process's hash chain. EntryHash is
// SHA-256 over the previous entry's hash concatenated with this entry's
// canonical serialization; the first entry chains to a fixed genesis value.
type AuditEntry struct {
	ID        string      `json:"id"`
	ProcessID string      `json:"process_id"`
	// Seq is 1-based and strictly increasing per process.
	Seq        int64        `json:"seq"`
	Action     AuditAction  `json:"action"`
	PriorState ProcessState `json:"prior_state,omitempty"`
	NextState  ProcessState `json:"next_state,omitempty"`
	Description string      `json:"description"`
	Actor       string      `json:"actor"`
	Timestamp   time.Time   `json:"timestamp"`
	PrevHash    string      `json:"prev_hash"`
	EntryHash   string      `json:"entry_hash"`
}

// ProcessQuery filters process listings for dashboards and the sweep.
type ProcessQuery struct {
	States     []ProcessState `json:"states,omitempty"`
	RecordKind RecordKind     `json:"record_kind,omitempty"`

	// Expiry window filters apply to the management expiry.
	ExpiryBefore *time.Time `json:"expiry_before,omitempty"`
	ExpiryAfter  *time.Time `json:"expiry_after,omitempty"`

	// AlertsEnabled filters on the per-process alert flag when non-nil.
	AlertsEnabled *bool `json:"alerts_enabled,omitempty"`

	IncludeDeleted bool `json:"include_deleted,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// AlertQuery filters alert listings.
type AlertQuery struct {
	ProcessID string       `json:"process_id,omitempty"`
	Type      AlertType    `json:"type,omitempty"`
	States    []AlertState `json:"states,omitempty"`
	Limit     int          `json:"limit,omitempty"`
	Offset    int          `json:"offset,omitempty"`
}
