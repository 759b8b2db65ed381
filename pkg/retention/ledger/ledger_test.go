package ledger_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/retention"
	"mercator-hq/saturn/pkg/retention/ledger"
	"mercator-hq/saturn/pkg/retention/storage"
)

func testLedger() (*ledger.Ledger, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	l := ledger.New(store, slog.Default())
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	l.SetNow(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	})
	return l, store
}

func TestAppendGrowsChainByOne(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	first, err := l.Append(ctx, "p1", retention.AuditCreate, "", retention.StateActivo, "process created", "system")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.Seq != 1 {
		t.Errorf("first seq = %d, want 1", first.Seq)
	}
	if first.PrevHash != ledger.GenesisHash {
		t.Errorf("first entry must chain to genesis, got %s", first.PrevHash)
	}

	second, err := l.Append(ctx, "p1", retention.AuditTransition, retention.StateActivo, retention.StateAlertaPrevia, "entered alert window", "scheduler")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.Seq != 2 {
		t.Errorf("second seq = %d, want 2", second.Seq)
	}
	if second.PrevHash != first.EntryHash {
		t.Errorf("second entry does not chain to first")
	}

	entries, err := l.Entries(ctx, "p1")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("chain length = %d, want 2", len(entries))
	}
}

func TestPrepareDoesNotPersist(t *testing.T) {
	l, store := testLedger()
	ctx := context.Background()

	entry, err := l.Prepare(ctx, "p1", retention.AuditCreate, "", retention.StateActivo, "process created", "system")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if entry.Seq != 1 || entry.PrevHash != ledger.GenesisHash || entry.EntryHash == "" {
		t.Errorf("prepared entry not fully built: %+v", entry)
	}

	latest, err := store.LatestEntry(ctx, "p1")
	if err != nil {
		t.Fatalf("LatestEntry: %v", err)
	}
	if latest != nil {
		t.Errorf("Prepare must not persist, found stored entry seq %d", latest.Seq)
	}
}

func TestChainsAreIndependentPerProcess(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	if _, err := l.Append(ctx, "p1", retention.AuditCreate, "", retention.StateActivo, "created", "system"); err != nil {
		t.Fatalf("Append p1: %v", err)
	}
	e, err := l.Append(ctx, "p2", retention.AuditCreate, "", retention.StateActivo, "created", "system")
	if err != nil {
		t.Fatalf("Append p2: %v", err)
	}
	if e.Seq != 1 || e.PrevHash != ledger.GenesisHash {
		t.Errorf("p2 chain must start at genesis independently, got seq=%d prev=%s", e.Seq, e.PrevHash)
	}
}

func TestVerifyCleanChain(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	actions := []retention.AuditAction{
		retention.AuditCreate, retention.AuditTransition, retention.AuditDefer, retention.AuditReactivate,
	}
	for _, a := range actions {
		if _, err := l.Append(ctx, "p1", a, retention.StateActivo, retention.StateActivo, "step", "system"); err != nil {
			t.Fatalf("Append %s: %v", a, err)
		}
	}

	if err := l.Verify(ctx, "p1"); err != nil {
		t.Errorf("Verify on clean chain: %v", err)
	}
}

func TestVerifyEmptyChain(t *testing.T) {
	l, _ := testLedger()
	if err := l.Verify(context.Background(), "nobody"); err != nil {
		t.Errorf("Verify on empty chain should pass, got %v", err)
	}
}

func TestVerifyDetectsTamperedDescription(t *testing.T) {
	l, store := testLedger()
	ctx := context.Background()

	if _, err := l.Append(ctx, "p1", retention.AuditCreate, "", retention.StateActivo, "created", "system"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	target, err := l.Append(ctx, "p1", retention.AuditTransition, retention.StateActivo, retention.StateVencido, "expired", "scheduler")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Rewrite the stored entry's description, keeping its stored hashes.
	// The memory store has no update path for entries; simulate tampering by
	// appending a doctored copy under a fresh process and verifying a chain
	// built from it. Instead, tamper through a second store sharing the data.
	tampered := *target
	tampered.Description = "record archived"
	forged := storage.NewMemoryStore()
	orig, _ := store.ListEntries(ctx, "p1")
	for _, e := range orig {
		cp := *e
		if cp.Seq == tampered.Seq {
			cp.Description = tampered.Description
		}
		if err := forged.AppendEntry(ctx, &cp); err != nil {
			t.Fatalf("AppendEntry: %v", err)
		}
	}

	forgedLedger := ledger.New(forged, slog.Default())
	err = forgedLedger.Verify(ctx, "p1")
	var iv *retention.IntegrityViolationError
	if !errors.As(err, &iv) {
		t.Fatalf("expected IntegrityViolationError, got %v", err)
	}
	if iv.Seq != 2 || iv.Field != "entry_hash" {
		t.Errorf("violation at seq %d field %s, want seq 2 entry_hash", iv.Seq, iv.Field)
	}
}

func TestVerifyDetectsBrokenSequence(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	store := storage.NewMemoryStore()
	gapped := ledger.New(store, slog.Default())
	gapped.SetNow(l.Now())

	e1, _ := gapped.Prepare(ctx, "p1", retention.AuditCreate, "", retention.StateActivo, "created", "system")
	if err := store.AppendEntry(ctx, e1); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	// Forge an entry that skips seq 2.
	e3 := &retention.AuditEntry{
		ID:          "forged",
		ProcessID:   "p1",
		Seq:         3,
		Action:      retention.AuditTransition,
		Description: "skipped",
		Actor:       "system",
		Timestamp:   time.Now().UTC(),
		PrevHash:    e1.EntryHash,
	}
	e3.EntryHash = ledger.EntryHash(e3.PrevHash, e3)
	if err := store.AppendEntry(ctx, e3); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	err := gapped.Verify(ctx, "p1")
	var iv *retention.IntegrityViolationError
	if !errors.As(err, &iv) {
		t.Fatalf("expected IntegrityViolationError, got %v", err)
	}
	if iv.Field != "seq" {
		t.Errorf("violation field = %s, want seq", iv.Field)
	}
}

func TestVerifyDetectsBrokenLink(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	l := ledger.New(store, slog.Default())

	e1, _ := l.Prepare(ctx, "p1", retention.AuditCreate, "", retention.StateActivo, "created", "system")
	if err := store.AppendEntry(ctx, e1); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	e2 := &retention.AuditEntry{
		ID:          "forged",
		ProcessID:   "p1",
		Seq:         2,
		Action:      retention.AuditTransition,
		Description: "relinked",
		Actor:       "system",
		Timestamp:   time.Now().UTC(),
		PrevHash:    ledger.GenesisHash, // wrong: must link to e1
	}
	e2.EntryHash = ledger.EntryHash(e2.PrevHash, e2)
	if err := store.AppendEntry(ctx, e2); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	err := l.Verify(ctx, "p1")
	var iv *retention.IntegrityViolationError
	if !errors.As(err, &iv) {
		t.Fatalf("expected IntegrityViolationError, got %v", err)
	}
	if iv.Field != "prev_hash" {
		t.Errorf("violation field = %s, want prev_hash", iv.Field)
	}
}

func TestVerifyAllCollectsViolations(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	l := ledger.New(store, slog.Default())

	// Clean chain for p1.
	if _, err := l.Append(ctx, "p1", retention.AuditCreate, "", retention.StateActivo, "created", "system"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Tampered chain for p2.
	bad := &retention.AuditEntry{
		ID:          "bad",
		ProcessID:   "p2",
		Seq:         1,
		Action:      retention.AuditCreate,
		Description: "created",
		Actor:       "system",
		Timestamp:   time.Now().UTC(),
		PrevHash:    ledger.GenesisHash,
		EntryHash:   "not-a-real-hash",
	}
	if err := store.AppendEntry(ctx, bad); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	violations, err := l.VerifyAll(ctx)
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	var iv *retention.IntegrityViolationError
	if !errors.As(violations[0], &iv) || iv.ProcessID != "p2" {
		t.Errorf("violation = %v, want integrity violation on p2", violations[0])
	}
}

func TestVerifyAllHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := storage.NewMemoryStore()
	l := ledger.New(store, slog.Default())

	if _, err := l.Append(ctx, "p1", retention.AuditCreate, "", retention.StateActivo, "created", "system"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cancel()

	if _, err := l.VerifyAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
