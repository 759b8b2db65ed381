// Package retention defines the core domain model for the record retention
// and disposition lifecycle engine. It contains the closed enumerations for
// disposition actions, process states, alert types, and audit actions, the
// entities built from them (RetentionRule, RetentionProcess, Alert,
// AuditEntry), and the error taxonomy shared by all subsystems.
//
// # Architecture
//
// The engine is composed of six cooperating components, layered leaves-first:
//
//  1. Rule Resolver (rules)    - resolves the effective retention parameters
//     for a record by walking schedule -> series -> subserie -> document type
//  2. Date Calculator (schedule) - derives concrete transition dates from the
//     origin date and resolved rule
//  3. Process State Machine (process) - owns the lifecycle of a single
//     record's retention process
//  4. Alert Scheduler (alerts) - periodic idempotent sweep that raises and
//     repeats alerts until acknowledged
//  5. Deferral Manager (engine.Defer) - authorized postponement under a
//     state-machine guard
//  6. Audit Ledger (ledger)    - hash-chained, append-only record of every
//     decision, verifiable after the fact
//
// # Data flow
//
//	Rule Resolver -> Date Calculator -> State Machine (creates/updates a process)
//	     -> Alert Scheduler (reads process dates)
//	     -> Deferral Manager (mutates process under guard)
//	     -> all paths append to the Audit Ledger
//
// A RetentionProcess is never hard-deleted; elimination is itself a state.
// Every successful state change appends exactly one audit entry, and the
// change and the append happen atomically in the storage layer.
package retention
