package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the retention database schema.
const Schema = `
-- Retention processes: one row per tracked record. Rows are soft-deleted at
-- most; elimination is a state, never a row deletion.
CREATE TABLE IF NOT EXISTS retention_processes (
    id TEXT PRIMARY KEY,

    record_kind TEXT NOT NULL,
    record_id TEXT NOT NULL,

    schedule_id TEXT NOT NULL,
    series_id TEXT NOT NULL,
    subserie_id TEXT,
    document_type_id TEXT,

    -- Rule snapshot frozen at creation
    rule_id TEXT NOT NULL,
    rule_level INTEGER NOT NULL,
    rule_management_years INTEGER NOT NULL,
    rule_central_years INTEGER NOT NULL,
    rule_action TEXT NOT NULL,
    rule_priority INTEGER NOT NULL,

    origin_date TEXT NOT NULL,
    management_expiry TEXT NOT NULL,
    central_expiry TEXT,
    alert_lead_date TEXT NOT NULL,

    state TEXT NOT NULL,
    held_state TEXT,
    action TEXT,

    deferred INTEGER NOT NULL DEFAULT 0,
    deferred_until TEXT,
    deferral_reason TEXT,

    locked_for_deletion INTEGER NOT NULL DEFAULT 0,
    alerts_enabled INTEGER NOT NULL DEFAULT 1,

    integrity_hash TEXT NOT NULL,
    version INTEGER NOT NULL,

    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    deleted_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_processes_state ON retention_processes(state);
CREATE INDEX IF NOT EXISTS idx_processes_lead_date ON retention_processes(alert_lead_date);
CREATE INDEX IF NOT EXISTS idx_processes_expiry ON retention_processes(management_expiry);
CREATE UNIQUE INDEX IF NOT EXISTS idx_processes_record ON retention_processes(record_kind, record_id)
    WHERE deleted_at IS NULL;

-- Alerts: retained indefinitely for audit.
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    process_id TEXT NOT NULL REFERENCES retention_processes(id),
    type TEXT NOT NULL,
    priority TEXT NOT NULL,
    recipients TEXT NOT NULL,
    channels TEXT NOT NULL,
    message TEXT NOT NULL,
    state TEXT NOT NULL,
    repeat_until_ack INTEGER NOT NULL DEFAULT 0,
    repeat_interval_hours INTEGER NOT NULL DEFAULT 0,
    max_repeats INTEGER NOT NULL DEFAULT 0,
    repeats_sent INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    last_sent_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_alerts_process ON alerts(process_id, type, state);
CREATE INDEX IF NOT EXISTS idx_alerts_state ON alerts(state);

-- Audit entries: append-only hash chain per process. No UPDATE or DELETE is
-- ever issued against this table.
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    process_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    action TEXT NOT NULL,
    prior_state TEXT,
    next_state TEXT,
    description TEXT NOT NULL,
    actor TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    prev_hash TEXT NOT NULL,
    entry_hash TEXT NOT NULL,
    UNIQUE (process_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_audit_process ON audit_entries(process_id, seq);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// InsertSchemaVersion records the schema version, idempotently.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion returns the highest applied schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`
