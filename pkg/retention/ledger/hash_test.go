package ledger

import (
	"strings"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/retention"
)

func sampleEntry() *retention.AuditEntry {
	return &retention.AuditEntry{
		ID:          "e1",
		ProcessID:   "p1",
		Seq:         1,
		Action:      retention.AuditCreate,
		PriorState:  "",
		NextState:   retention.StateActivo,
		Description: "process created",
		Actor:       "system",
		Timestamp:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCanonicalizeIsStable(t *testing.T) {
	e := sampleEntry()
	if Canonicalize(e) != Canonicalize(e) {
		t.Fatal("canonical form must be deterministic")
	}
}

func TestCanonicalizeExcludesIdentity(t *testing.T) {
	a := sampleEntry()
	b := sampleEntry()
	b.ID = "different-id"
	b.EntryHash = "whatever"
	if Canonicalize(a) != Canonicalize(b) {
		t.Error("id and entry hash must not affect the canonical form")
	}
}

func TestCanonicalizeSeparatesFields(t *testing.T) {
	// The separator must prevent field-boundary ambiguity: moving a suffix
	// from one field to the next must change the canonical form.
	a := sampleEntry()
	a.Description = "ab"
	a.Actor = "c"

	b := sampleEntry()
	b.Description = "a"
	b.Actor = "bc"

	if Canonicalize(a) == Canonicalize(b) {
		t.Error("field boundaries are ambiguous")
	}
}

func TestCanonicalizeNormalizesTimezone(t *testing.T) {
	a := sampleEntry()
	b := sampleEntry()
	b.Timestamp = a.Timestamp.In(time.FixedZone("X", 5*3600))
	if Canonicalize(a) != Canonicalize(b) {
		t.Error("same instant in different zones must canonicalize identically")
	}
}

func TestEntryHashChangesWithAnyField(t *testing.T) {
	base := EntryHash(GenesisHash, sampleEntry())

	mutations := map[string]func(*retention.AuditEntry){
		"seq":         func(e *retention.AuditEntry) { e.Seq = 2 },
		"action":      func(e *retention.AuditEntry) { e.Action = retention.AuditDefer },
		"prior_state": func(e *retention.AuditEntry) { e.PriorState = retention.StateVencido },
		"next_state":  func(e *retention.AuditEntry) { e.NextState = retention.StateVencido },
		"description": func(e *retention.AuditEntry) { e.Description = "edited" },
		"actor":       func(e *retention.AuditEntry) { e.Actor = "intruder" },
		"timestamp":   func(e *retention.AuditEntry) { e.Timestamp = e.Timestamp.Add(time.Second) },
	}

	for name, mutate := range mutations {
		e := sampleEntry()
		mutate(e)
		if EntryHash(GenesisHash, e) == base {
			t.Errorf("mutating %s did not change the hash", name)
		}
	}

	if EntryHash("ff", sampleEntry()) == base {
		t.Error("changing the previous hash did not change the hash")
	}
}

func TestEntryHashFormat(t *testing.T) {
	h := EntryHash(GenesisHash, sampleEntry())
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	if h != strings.ToLower(h) {
		t.Error("hash must be lowercase hex")
	}
}

func TestGenesisHashShape(t *testing.T) {
	if len(GenesisHash) != 64 || strings.Trim(GenesisHash, "0") != "" {
		t.Errorf("genesis hash must be 64 zeros, got %s", GenesisHash)
	}
}
