package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure-Go driver, registered as "sqlite"

	"mercator-hq/saturn/pkg/retention"
)

// Driver names accepted by SQLiteConfig.
const (
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverModernc = "sqlite"  // modernc.org/sqlite (pure Go)
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the SQLite driver: "sqlite3" (cgo) or "sqlite"
	// (pure Go). Default: "sqlite3".
	Driver string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/retention.db",
		Driver:       DriverMattn,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite storage backend. It initializes the
// schema and enables WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverMattn
	}
	if config.Driver != DriverMattn && config.Driver != DriverModernc {
		return nil, retention.NewStorageError("sqlite", "open",
			fmt.Errorf("unknown sqlite driver %q", config.Driver))
	}

	logger := slog.Default().With("component", "retention.storage.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, retention.NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the schema and the configured pragmas.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return retention.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if busyTimeoutMs > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
			return retention.NewStorageError("sqlite", "set_busy_timeout", err)
		}
	}

	if _, err := s.db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return retention.NewStorageError("sqlite", "enable_foreign_keys", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return retention.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return retention.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return retention.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return retention.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return retention.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

const insertProcessSQL = `
	INSERT INTO retention_processes (
		id, record_kind, record_id,
		schedule_id, series_id, subserie_id, document_type_id,
		rule_id, rule_level, rule_management_years, rule_central_years, rule_action, rule_priority,
		origin_date, management_expiry, central_expiry, alert_lead_date,
		state, held_state, action,
		deferred, deferred_until, deferral_reason,
		locked_for_deletion, alerts_enabled,
		integrity_hash, version, created_at, updated_at, deleted_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertEntrySQL = `
	INSERT INTO audit_entries (
		id, process_id, seq, action, prior_state, next_state,
		description, actor, timestamp, prev_hash, entry_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertAlertSQL = `
	INSERT INTO alerts (
		id, process_id, type, priority, recipients, channels, message, state,
		repeat_until_ack, repeat_interval_hours, max_repeats, repeats_sent,
		created_at, updated_at, last_sent_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const processColumns = `
	id, record_kind, record_id,
	schedule_id, series_id, subserie_id, document_type_id,
	rule_id, rule_level, rule_management_years, rule_central_years, rule_action, rule_priority,
	origin_date, management_expiry, central_expiry, alert_lead_date,
	state, held_state, action,
	deferred, deferred_until, deferral_reason,
	locked_for_deletion, alerts_enabled,
	integrity_hash, version, created_at, updated_at, deleted_at
`

// CreateProcess inserts a new process and its first audit entry atomically.
func (s *SQLiteStore) CreateProcess(ctx context.Context, p *retention.RetentionProcess, entry *retention.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return retention.NewStorageError("sqlite", "create_process", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertProcessSQL, processArgs(p)...); err != nil {
		return retention.NewStorageError("sqlite", "create_process", err)
	}
	if _, err := tx.ExecContext(ctx, insertEntrySQL, entryArgs(entry)...); err != nil {
		return retention.NewStorageError("sqlite", "create_process_audit", err)
	}

	if err := tx.Commit(); err != nil {
		return retention.NewStorageError("sqlite", "create_process", err)
	}
	return nil
}

// GetProcess returns a process by id.
func (s *SQLiteStore) GetProcess(ctx context.Context, id string) (*retention.RetentionProcess, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+processColumns+" FROM retention_processes WHERE id = ?", id)

	p, err := scanProcess(row)
	if err == sql.ErrNoRows {
		return nil, retention.ErrProcessNotFound
	}
	if err != nil {
		return nil, retention.NewStorageError("sqlite", "get_process", err)
	}
	return p, nil
}

// ApplyChange persists a process mutation, its audit entry, and any alerts
// in one transaction, with an optimistic version check on the process row.
func (s *SQLiteStore) ApplyChange(ctx context.Context, p *retention.RetentionProcess, entry *retention.AuditEntry, alerts ...*retention.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return retention.NewStorageError("sqlite", "apply_change", err)
	}
	defer tx.Rollback()

	newVersion := p.Version + 1
	res, err := tx.ExecContext(ctx, `
		UPDATE retention_processes SET
			rule_id = ?, rule_level = ?, rule_management_years = ?, rule_central_years = ?,
			rule_action = ?, rule_priority = ?,
			management_expiry = ?, central_expiry = ?, alert_lead_date = ?,
			state = ?, held_state = ?, action = ?,
			deferred = ?, deferred_until = ?, deferral_reason = ?,
			locked_for_deletion = ?, alerts_enabled = ?,
			integrity_hash = ?, version = ?, updated_at = ?, deleted_at = ?
		WHERE id = ? AND version = ?`,
		p.Rule.RuleID, int(p.Rule.Level), p.Rule.ManagementYears, p.Rule.CentralYears,
		string(p.Rule.Action), p.Rule.Priority,
		fmtTime(p.ManagementExpiry), fmtTimePtr(p.CentralExpiry), fmtTime(p.AlertLeadDate),
		string(p.State), nullString(string(p.HeldState)), nullString(string(p.Action)),
		boolInt(p.Deferred), fmtTimePtr(p.DeferredUntil), nullString(p.DeferralReason),
		boolInt(p.LockedForDeletion), boolInt(p.AlertsEnabled),
		p.IntegrityHash, newVersion, fmtTime(p.UpdatedAt), fmtTimePtr(p.DeletedAt),
		p.ID, p.Version,
	)
	if err != nil {
		return retention.NewStorageError("sqlite", "apply_change", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return retention.NewStorageError("sqlite", "apply_change", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM retention_processes WHERE id = ?", p.ID).Scan(&exists); err != nil {
			return retention.NewStorageError("sqlite", "apply_change", err)
		}
		if exists == 0 {
			return retention.ErrProcessNotFound
		}
		return retention.NewVersionConflictError(p.ID, p.Version)
	}

	if _, err := tx.ExecContext(ctx, insertEntrySQL, entryArgs(entry)...); err != nil {
		return retention.NewStorageError("sqlite", "apply_change_audit", err)
	}

	for _, a := range alerts {
		if _, err := tx.ExecContext(ctx, insertAlertSQL, alertArgs(a)...); err != nil {
			return retention.NewStorageError("sqlite", "apply_change_alert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return retention.NewStorageError("sqlite", "apply_change", err)
	}

	p.Version = newVersion
	return nil
}

// ListProcesses returns processes matching the query, ordered by management
// expiry ascending.
func (s *SQLiteStore) ListProcesses(ctx context.Context, q *retention.ProcessQuery) ([]*retention.RetentionProcess, error) {
	where, args := buildProcessWhere(q)

	query := "SELECT " + processColumns + " FROM retention_processes"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY management_expiry ASC, id ASC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, retention.NewStorageError("sqlite", "list_processes", err)
	}
	defer rows.Close()

	processes := []*retention.RetentionProcess{}
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, retention.NewStorageError("sqlite", "scan_process", err)
		}
		processes = append(processes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, retention.NewStorageError("sqlite", "list_processes", err)
	}
	return processes, nil
}

// CountProcesses returns the number of processes matching the query.
func (s *SQLiteStore) CountProcesses(ctx context.Context, q *retention.ProcessQuery) (int64, error) {
	where, args := buildProcessWhere(q)

	query := "SELECT COUNT(*) FROM retention_processes"
	if where != "" {
		query += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, retention.NewStorageError("sqlite", "count_processes", err)
	}
	return count, nil
}

// CreateAlert inserts a new alert.
func (s *SQLiteStore) CreateAlert(ctx context.Context, a *retention.Alert) error {
	if _, err := s.db.ExecContext(ctx, insertAlertSQL, alertArgs(a)...); err != nil {
		return retention.NewStorageError("sqlite", "create_alert", err)
	}
	return nil
}

// GetAlert returns an alert by id.
func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*retention.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)

	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, retention.ErrAlertNotFound
	}
	if err != nil {
		return nil, retention.NewStorageError("sqlite", "get_alert", err)
	}
	return a, nil
}

// UpdateAlert persists alert lifecycle and repetition changes.
func (s *SQLiteStore) UpdateAlert(ctx context.Context, a *retention.Alert) error {
	recipients, _ := json.Marshal(a.Recipients)
	channels, _ := json.Marshal(a.Channels)

	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET
			priority = ?, recipients = ?, channels = ?, message = ?, state = ?,
			repeat_until_ack = ?, repeat_interval_hours = ?, max_repeats = ?, repeats_sent = ?,
			updated_at = ?, last_sent_at = ?
		WHERE id = ?`,
		string(a.Priority), string(recipients), string(channels), a.Message, string(a.State),
		boolInt(a.RepeatUntilAck), a.RepeatIntervalHours, a.MaxRepeats, a.RepeatsSent,
		fmtTime(a.UpdatedAt), fmtTimePtr(a.LastSentAt),
		a.ID,
	)
	if err != nil {
		return retention.NewStorageError("sqlite", "update_alert", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return retention.NewStorageError("sqlite", "update_alert", err)
	}
	if affected == 0 {
		return retention.ErrAlertNotFound
	}
	return nil
}

// ListAlerts returns alerts matching the query, ordered by creation time.
func (s *SQLiteStore) ListAlerts(ctx context.Context, q *retention.AlertQuery) ([]*retention.Alert, error) {
	var conditions []string
	var args []interface{}

	if q.ProcessID != "" {
		conditions = append(conditions, "process_id = ?")
		args = append(args, q.ProcessID)
	}
	if q.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(q.Type))
	}
	if len(q.States) > 0 {
		placeholders := make([]string, len(q.States))
		for i, st := range q.States {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "state IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := "SELECT " + alertColumns + " FROM alerts"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, retention.NewStorageError("sqlite", "list_alerts", err)
	}
	defer rows.Close()

	alerts := []*retention.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, retention.NewStorageError("sqlite", "scan_alert", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, retention.NewStorageError("sqlite", "list_alerts", err)
	}
	return alerts, nil
}

// FindOpenAlert returns the open alert for a (process, type) pair, or nil.
func (s *SQLiteStore) FindOpenAlert(ctx context.Context, processID string, alertType retention.AlertType) (*retention.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+alertColumns+` FROM alerts
		 WHERE process_id = ? AND type = ? AND state IN ('pending', 'sent', 'read')
		 ORDER BY created_at DESC LIMIT 1`,
		processID, string(alertType))

	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, retention.NewStorageError("sqlite", "find_open_alert", err)
	}
	return a, nil
}

// AppendEntry persists a new audit entry. The unique (process_id, seq)
// index rejects chain forks.
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry *retention.AuditEntry) error {
	if _, err := s.db.ExecContext(ctx, insertEntrySQL, entryArgs(entry)...); err != nil {
		return retention.NewStorageError("sqlite", "append_entry", err)
	}
	return nil
}

// LatestEntry returns the highest-seq entry for a process, or nil.
func (s *SQLiteStore) LatestEntry(ctx context.Context, processID string) (*retention.AuditEntry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM audit_entries WHERE process_id = ? ORDER BY seq DESC LIMIT 1",
		processID)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, retention.NewStorageError("sqlite", "latest_entry", err)
	}
	return e, nil
}

// ListEntries returns all entries for a process ordered by seq ascending.
func (s *SQLiteStore) ListEntries(ctx context.Context, processID string) ([]*retention.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM audit_entries WHERE process_id = ? ORDER BY seq ASC",
		processID)
	if err != nil {
		return nil, retention.NewStorageError("sqlite", "list_entries", err)
	}
	defer rows.Close()

	entries := []*retention.AuditEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, retention.NewStorageError("sqlite", "scan_entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, retention.NewStorageError("sqlite", "list_entries", err)
	}
	return entries, nil
}

// ListProcessIDs returns the ids of all processes with at least one entry.
func (s *SQLiteStore) ListProcessIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT process_id FROM audit_entries ORDER BY process_id")
	if err != nil {
		return nil, retention.NewStorageError("sqlite", "list_process_ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, retention.NewStorageError("sqlite", "list_process_ids", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, retention.NewStorageError("sqlite", "list_process_ids", err)
	}
	return ids, nil
}

// buildProcessWhere builds a WHERE clause from the query filters.
func buildProcessWhere(q *retention.ProcessQuery) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if len(q.States) > 0 {
		placeholders := make([]string, len(q.States))
		for i, st := range q.States {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "state IN ("+strings.Join(placeholders, ", ")+")")
	}
	if q.RecordKind != "" {
		conditions = append(conditions, "record_kind = ?")
		args = append(args, string(q.RecordKind))
	}
	if q.ExpiryBefore != nil {
		conditions = append(conditions, "management_expiry <= ?")
		args = append(args, fmtTime(*q.ExpiryBefore))
	}
	if q.ExpiryAfter != nil {
		conditions = append(conditions, "management_expiry >= ?")
		args = append(args, fmtTime(*q.ExpiryAfter))
	}
	if q.AlertsEnabled != nil {
		conditions = append(conditions, "alerts_enabled = ?")
		args = append(args, boolInt(*q.AlertsEnabled))
	}
	if !q.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	return strings.Join(conditions, " AND "), args
}

const alertColumns = `
	id, process_id, type, priority, recipients, channels, message, state,
	repeat_until_ack, repeat_interval_hours, max_repeats, repeats_sent,
	created_at, updated_at, last_sent_at
`

const entryColumns = `
	id, process_id, seq, action, prior_state, next_state,
	description, actor, timestamp, prev_hash, entry_hash
`

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func processArgs(p *retention.RetentionProcess) []interface{} {
	return []interface{}{
		p.ID, string(p.Record.Kind), p.Record.ID,
		p.Path.ScheduleID, p.Path.SeriesID, nullString(p.Path.SubserieID), nullString(p.Path.DocumentTypeID),
		p.Rule.RuleID, int(p.Rule.Level), p.Rule.ManagementYears, p.Rule.CentralYears,
		string(p.Rule.Action), p.Rule.Priority,
		fmtTime(p.OriginDate), fmtTime(p.ManagementExpiry), fmtTimePtr(p.CentralExpiry), fmtTime(p.AlertLeadDate),
		string(p.State), nullString(string(p.HeldState)), nullString(string(p.Action)),
		boolInt(p.Deferred), fmtTimePtr(p.DeferredUntil), nullString(p.DeferralReason),
		boolInt(p.LockedForDeletion), boolInt(p.AlertsEnabled),
		p.IntegrityHash, p.Version, fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt), fmtTimePtr(p.DeletedAt),
	}
}

func scanProcess(row rowScanner) (*retention.RetentionProcess, error) {
	var p retention.RetentionProcess
	var (
		recordKind, state                                string
		subserieID, documentTypeID, heldState, action    sql.NullString
		deferralReason                                   sql.NullString
		originDate, mgmtExpiry, leadDate, createdAt      string
		updatedAt, ruleAction                            string
		centralExpiry, deferredUntil, deletedAt          sql.NullString
		deferred, locked, alertsEnabled, ruleLevel       int
	)

	err := row.Scan(
		&p.ID, &recordKind, &p.Record.ID,
		&p.Path.ScheduleID, &p.Path.SeriesID, &subserieID, &documentTypeID,
		&p.Rule.RuleID, &ruleLevel, &p.Rule.ManagementYears, &p.Rule.CentralYears,
		&ruleAction, &p.Rule.Priority,
		&originDate, &mgmtExpiry, &centralExpiry, &leadDate,
		&state, &heldState, &action,
		&deferred, &deferredUntil, &deferralReason,
		&locked, &alertsEnabled,
		&p.IntegrityHash, &p.Version, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Record.Kind = retention.RecordKind(recordKind)
	p.Path.SubserieID = subserieID.String
	p.Path.DocumentTypeID = documentTypeID.String
	p.Rule.Level = retention.RuleLevel(ruleLevel)
	p.Rule.Action = retention.DispositionAction(ruleAction)
	p.State = retention.ProcessState(state)
	p.HeldState = retention.ProcessState(heldState.String)
	p.Action = retention.DispositionAction(action.String)
	p.Deferred = deferred != 0
	p.DeferralReason = deferralReason.String
	p.LockedForDeletion = locked != 0
	p.AlertsEnabled = alertsEnabled != 0

	if p.OriginDate, err = parseTime(originDate); err != nil {
		return nil, err
	}
	if p.ManagementExpiry, err = parseTime(mgmtExpiry); err != nil {
		return nil, err
	}
	if p.AlertLeadDate, err = parseTime(leadDate); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if p.CentralExpiry, err = parseTimePtr(centralExpiry); err != nil {
		return nil, err
	}
	if p.DeferredUntil, err = parseTimePtr(deferredUntil); err != nil {
		return nil, err
	}
	if p.DeletedAt, err = parseTimePtr(deletedAt); err != nil {
		return nil, err
	}

	return &p, nil
}

func alertArgs(a *retention.Alert) []interface{} {
	recipients, _ := json.Marshal(a.Recipients)
	channels, _ := json.Marshal(a.Channels)
	return []interface{}{
		a.ID, a.ProcessID, string(a.Type), string(a.Priority),
		string(recipients), string(channels), a.Message, string(a.State),
		boolInt(a.RepeatUntilAck), a.RepeatIntervalHours, a.MaxRepeats, a.RepeatsSent,
		fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt), fmtTimePtr(a.LastSentAt),
	}
}

func scanAlert(row rowScanner) (*retention.Alert, error) {
	var a retention.Alert
	var (
		alertType, priority, state, recipients, channels string
		createdAt, updatedAt                             string
		lastSentAt                                       sql.NullString
		repeatUntilAck                                   int
	)

	err := row.Scan(
		&a.ID, &a.ProcessID, &alertType, &priority, &recipients, &channels, &a.Message, &state,
		&repeatUntilAck, &a.RepeatIntervalHours, &a.MaxRepeats, &a.RepeatsSent,
		&createdAt, &updatedAt, &lastSentAt,
	)
	if err != nil {
		return nil, err
	}

	a.Type = retention.AlertType(alertType)
	a.Priority = retention.AlertPriority(priority)
	a.State = retention.AlertState(state)
	a.RepeatUntilAck = repeatUntilAck != 0

	if recipients != "" {
		json.Unmarshal([]byte(recipients), &a.Recipients)
	}
	if channels != "" {
		json.Unmarshal([]byte(channels), &a.Channels)
	}

	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if a.LastSentAt, err = parseTimePtr(lastSentAt); err != nil {
		return nil, err
	}

	return &a, nil
}

func entryArgs(e *retention.AuditEntry) []interface{} {
	return []interface{}{
		e.ID, e.ProcessID, e.Seq, string(e.Action),
		nullString(string(e.PriorState)), nullString(string(e.NextState)),
		e.Description, e.Actor, fmtTime(e.Timestamp), e.PrevHash, e.EntryHash,
	}
}

func scanEntry(row rowScanner) (*retention.AuditEntry, error) {
	var e retention.AuditEntry
	var (
		action, timestamp      string
		priorState, nextState  sql.NullString
	)

	err := row.Scan(
		&e.ID, &e.ProcessID, &e.Seq, &action, &priorState, &nextState,
		&e.Description, &e.Actor, &timestamp, &e.PrevHash, &e.EntryHash,
	)
	if err != nil {
		return nil, err
	}

	e.Action = retention.AuditAction(action)
	e.PriorState = retention.ProcessState(priorState.String)
	e.NextState = retention.ProcessState(nextState.String)
	if e.Timestamp, err = parseTime(timestamp); err != nil {
		return nil, err
	}

	return &e, nil
}

// Timestamps are stored as RFC 3339 text so both SQLite drivers read them
// back identically.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
