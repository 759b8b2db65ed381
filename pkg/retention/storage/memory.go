package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mercator-hq/saturn/pkg/retention"
)

// MemoryStore implements the Store interface in memory. It is used by tests
// and by ephemeral deployments that do not need durability. A single mutex
// gives ApplyChange the same all-or-nothing behavior the SQLite transactions
// provide.
type MemoryStore struct {
	mu        sync.RWMutex
	processes map[string]*retention.RetentionProcess
	alerts    map[string]*retention.Alert
	entries   map[string][]*retention.AuditEntry // keyed by process id, seq order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		processes: make(map[string]*retention.RetentionProcess),
		alerts:    make(map[string]*retention.Alert),
		entries:   make(map[string][]*retention.AuditEntry),
	}
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateProcess stores a new process together with its first audit entry.
func (s *MemoryStore) CreateProcess(ctx context.Context, p *retention.RetentionProcess, entry *retention.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.processes[p.ID]; exists {
		return retention.NewStorageError("memory", "create_process",
			retention.NewVersionConflictError(p.ID, p.Version))
	}

	s.processes[p.ID] = copyProcess(p)
	s.entries[p.ID] = append(s.entries[p.ID], copyEntry(entry))
	return nil
}

// GetProcess returns a copy of the process so callers cannot mutate stored
// state without going through ApplyChange.
func (s *MemoryStore) GetProcess(ctx context.Context, id string) (*retention.RetentionProcess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.processes[id]
	if !ok {
		return nil, retention.ErrProcessNotFound
	}
	return copyProcess(p), nil
}

// ApplyChange replaces the stored process, appends the audit entry, and
// stores any alerts, all under one lock. The version check mirrors the
// optimistic UPDATE of the SQLite backend.
func (s *MemoryStore) ApplyChange(ctx context.Context, p *retention.RetentionProcess, entry *retention.AuditEntry, alerts ...*retention.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.processes[p.ID]
	if !ok {
		return retention.ErrProcessNotFound
	}
	if stored.Version != p.Version {
		return retention.NewVersionConflictError(p.ID, p.Version)
	}

	next := copyProcess(p)
	next.Version = p.Version + 1
	s.processes[p.ID] = next
	s.entries[entry.ProcessID] = append(s.entries[entry.ProcessID], copyEntry(entry))
	for _, a := range alerts {
		s.alerts[a.ID] = copyAlert(a)
	}

	p.Version = next.Version
	return nil
}

// ListProcesses returns processes matching the query, ordered by management
// expiry ascending with id as the tiebreaker.
func (s *MemoryStore) ListProcesses(ctx context.Context, q *retention.ProcessQuery) ([]*retention.RetentionProcess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.matchProcesses(q)

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []*retention.RetentionProcess{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*retention.RetentionProcess, len(matched))
	for i, p := range matched {
		out[i] = copyProcess(p)
	}
	return out, nil
}

// CountProcesses returns the number of processes matching the query.
func (s *MemoryStore) CountProcesses(ctx context.Context, q *retention.ProcessQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matchProcesses(q))), nil
}

func (s *MemoryStore) matchProcesses(q *retention.ProcessQuery) []*retention.RetentionProcess {
	var matched []*retention.RetentionProcess
	for _, p := range s.processes {
		if !q.IncludeDeleted && p.DeletedAt != nil {
			continue
		}
		if len(q.States) > 0 && !containsState(q.States, p.State) {
			continue
		}
		if q.RecordKind != "" && p.Record.Kind != q.RecordKind {
			continue
		}
		if q.ExpiryBefore != nil && p.ManagementExpiry.After(*q.ExpiryBefore) {
			continue
		}
		if q.ExpiryAfter != nil && p.ManagementExpiry.Before(*q.ExpiryAfter) {
			continue
		}
		if q.AlertsEnabled != nil && p.AlertsEnabled != *q.AlertsEnabled {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ManagementExpiry.Equal(matched[j].ManagementExpiry) {
			return matched[i].ManagementExpiry.Before(matched[j].ManagementExpiry)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

// CreateAlert stores a new alert.
func (s *MemoryStore) CreateAlert(ctx context.Context, a *retention.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = copyAlert(a)
	return nil
}

// GetAlert returns a copy of an alert by id.
func (s *MemoryStore) GetAlert(ctx context.Context, id string) (*retention.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, retention.ErrAlertNotFound
	}
	return copyAlert(a), nil
}

// UpdateAlert replaces a stored alert.
func (s *MemoryStore) UpdateAlert(ctx context.Context, a *retention.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[a.ID]; !ok {
		return retention.ErrAlertNotFound
	}
	s.alerts[a.ID] = copyAlert(a)
	return nil
}

// ListAlerts returns alerts matching the query, ordered by creation time.
func (s *MemoryStore) ListAlerts(ctx context.Context, q *retention.AlertQuery) ([]*retention.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*retention.Alert
	for _, a := range s.alerts {
		if q.ProcessID != "" && a.ProcessID != q.ProcessID {
			continue
		}
		if q.Type != "" && a.Type != q.Type {
			continue
		}
		if len(q.States) > 0 && !containsAlertState(q.States, a.State) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []*retention.Alert{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*retention.Alert, len(matched))
	for i, a := range matched {
		out[i] = copyAlert(a)
	}
	return out, nil
}

// FindOpenAlert returns the most recent open alert for a (process, type)
// pair, or nil when none exists.
func (s *MemoryStore) FindOpenAlert(ctx context.Context, processID string, alertType retention.AlertType) (*retention.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *retention.Alert
	for _, a := range s.alerts {
		if a.ProcessID != processID || a.Type != alertType || !a.Open() {
			continue
		}
		if found == nil || a.CreatedAt.After(found.CreatedAt) {
			found = a
		}
	}
	if found == nil {
		return nil, nil
	}
	return copyAlert(found), nil
}

// AppendEntry appends an audit entry to the process's chain.
func (s *MemoryStore) AppendEntry(ctx context.Context, entry *retention.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ProcessID] = append(s.entries[entry.ProcessID], copyEntry(entry))
	return nil
}

// LatestEntry returns the highest-seq entry for a process, or nil.
func (s *MemoryStore) LatestEntry(ctx context.Context, processID string) (*retention.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.entries[processID]
	if len(chain) == 0 {
		return nil, nil
	}
	return copyEntry(chain[len(chain)-1]), nil
}

// ListEntries returns all entries for a process in seq order.
func (s *MemoryStore) ListEntries(ctx context.Context, processID string) ([]*retention.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.entries[processID]
	out := make([]*retention.AuditEntry, len(chain))
	for i, e := range chain {
		out[i] = copyEntry(e)
	}
	return out, nil
}

// ListProcessIDs returns the ids of all processes with audit entries.
func (s *MemoryStore) ListProcessIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return strings.Compare(ids[i], ids[j]) < 0 })
	return ids, nil
}

func containsState(states []retention.ProcessState, s retention.ProcessState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func containsAlertState(states []retention.AlertState, s retention.AlertState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func copyProcess(p *retention.RetentionProcess) *retention.RetentionProcess {
	cp := *p
	cp.CentralExpiry = copyTimePtr(p.CentralExpiry)
	cp.DeferredUntil = copyTimePtr(p.DeferredUntil)
	cp.DeletedAt = copyTimePtr(p.DeletedAt)
	return &cp
}

func copyAlert(a *retention.Alert) *retention.Alert {
	cp := *a
	cp.Recipients = append([]string(nil), a.Recipients...)
	cp.Channels = append([]string(nil), a.Channels...)
	cp.LastSentAt = copyTimePtr(a.LastSentAt)
	return &cp
}

func copyEntry(e *retention.AuditEntry) *retention.AuditEntry {
	cp := *e
	return &cp
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
