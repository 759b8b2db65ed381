package rules

import (
	"errors"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/retention"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func seriesRule(id string) *retention.RetentionRule {
	return &retention.RetentionRule{
		ID:              id,
		ScheduleID:      "trd-1",
		SeriesID:        "ser-contratos",
		ManagementYears: 5,
		CentralYears:    10,
		Action:          retention.ActionEliminacion,
		EffectiveFrom:   date(2010, 1, 1),
	}
}

func loadedResolver(t *testing.T, rs ...*retention.RetentionRule) *Resolver {
	t.Helper()
	r := NewResolver(nil)
	if err := r.Load(rs); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return r
}

// TestResolve_DocumentTypeOverridesSeries covers the reference scenario: a
// document-type rule active 2023-2024 must win over an indefinitely active
// series-level default as of 2024-06-01.
func TestResolve_DocumentTypeOverridesSeries(t *testing.T) {
	docRule := &retention.RetentionRule{
		ID:              "r-doctype",
		ScheduleID:      "trd-1",
		SeriesID:        "ser-contratos",
		DocumentTypeID:  "dt-acta",
		ManagementYears: 2,
		CentralYears:    8,
		Action:          retention.ActionConservacionTotal,
		EffectiveFrom:   date(2023, 1, 1),
		EffectiveTo:     ptr(date(2024, 12, 31)),
	}

	r := loadedResolver(t, seriesRule("r-series"), docRule)

	path := retention.ClassificationPath{
		ScheduleID:     "trd-1",
		SeriesID:       "ser-contratos",
		DocumentTypeID: "dt-acta",
	}

	got, err := r.Resolve(path, retention.RecordDocumento, date(2024, 6, 1))
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if got.ID != "r-doctype" {
		t.Errorf("Resolve() = %s, want r-doctype", got.ID)
	}
}

// TestResolve_FallsBackWhenWindowClosed verifies the series default applies
// once the document-type rule's window has passed.
func TestResolve_FallsBackWhenWindowClosed(t *testing.T) {
	docRule := &retention.RetentionRule{
		ID:              "r-doctype",
		ScheduleID:      "trd-1",
		SeriesID:        "ser-contratos",
		DocumentTypeID:  "dt-acta",
		ManagementYears: 2,
		Action:          retention.ActionConservacionTotal,
		EffectiveFrom:   date(2023, 1, 1),
		EffectiveTo:     ptr(date(2024, 12, 31)),
	}

	r := loadedResolver(t, seriesRule("r-series"), docRule)

	path := retention.ClassificationPath{
		ScheduleID:     "trd-1",
		SeriesID:       "ser-contratos",
		DocumentTypeID: "dt-acta",
	}

	got, err := r.Resolve(path, retention.RecordDocumento, date(2025, 3, 1))
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if got.ID != "r-series" {
		t.Errorf("Resolve() = %s, want r-series", got.ID)
	}
}

// TestResolve_SpecificityChain verifies the full override chain:
// document type > subserie > series > schedule.
func TestResolve_SpecificityChain(t *testing.T) {
	scheduleRule := &retention.RetentionRule{
		ID:            "r-schedule",
		ScheduleID:    "trd-1",
		Action:        retention.ActionEliminacion,
		EffectiveFrom: date(2010, 1, 1),
	}
	subserieRule := &retention.RetentionRule{
		ID:            "r-subserie",
		ScheduleID:    "trd-1",
		SeriesID:      "ser-contratos",
		SubserieID:    "sub-obra",
		Action:        retention.ActionSeleccion,
		EffectiveFrom: date(2010, 1, 1),
	}

	r := loadedResolver(t, scheduleRule, seriesRule("r-series"), subserieRule)

	cases := []struct {
		name string
		path retention.ClassificationPath
		want string
	}{
		{
			name: "subserie_beats_series",
			path: retention.ClassificationPath{ScheduleID: "trd-1", SeriesID: "ser-contratos", SubserieID: "sub-obra"},
			want: "r-subserie",
		},
		{
			name: "series_beats_schedule",
			path: retention.ClassificationPath{ScheduleID: "trd-1", SeriesID: "ser-contratos"},
			want: "r-series",
		},
		{
			name: "schedule_default",
			path: retention.ClassificationPath{ScheduleID: "trd-1", SeriesID: "ser-otros"},
			want: "r-schedule",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(tc.path, retention.RecordExpediente, date(2024, 1, 1))
			if err != nil {
				t.Fatalf("Resolve() failed: %v", err)
			}
			if got.ID != tc.want {
				t.Errorf("Resolve() = %s, want %s", got.ID, tc.want)
			}
		})
	}
}

// TestResolve_TieBreaking resolves same-level ties by priority, then most
// recent effective_from.
func TestResolve_TieBreaking(t *testing.T) {
	lowPriority := seriesRule("r-low")
	lowPriority.Priority = 1

	highOld := seriesRule("r-high-old")
	highOld.Priority = 5
	highOld.EffectiveFrom = date(2015, 1, 1)

	highNew := seriesRule("r-high-new")
	highNew.Priority = 5
	highNew.EffectiveFrom = date(2020, 1, 1)

	r := loadedResolver(t, lowPriority, highOld, highNew)

	path := retention.ClassificationPath{ScheduleID: "trd-1", SeriesID: "ser-contratos"}
	got, err := r.Resolve(path, retention.RecordDocumento, date(2024, 1, 1))
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if got.ID != "r-high-new" {
		t.Errorf("Resolve() = %s, want r-high-new (priority then recency)", got.ID)
	}
}

// TestResolve_NoRule fails hard with RuleNotFound; no default is assumed.
func TestResolve_NoRule(t *testing.T) {
	r := loadedResolver(t, seriesRule("r-series"))

	path := retention.ClassificationPath{ScheduleID: "trd-other", SeriesID: "ser-x"}
	_, err := r.Resolve(path, retention.RecordDocumento, date(2024, 1, 1))

	var notFound *retention.RuleNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Resolve() error = %v, want RuleNotFoundError", err)
	}
}

// TestResolve_RecordKindFilter skips rules restricted to the other record kind.
func TestResolve_RecordKindFilter(t *testing.T) {
	docsOnly := seriesRule("r-docs-only")
	docsOnly.RecordKinds = []retention.RecordKind{retention.RecordDocumento}

	r := loadedResolver(t, docsOnly)

	path := retention.ClassificationPath{ScheduleID: "trd-1", SeriesID: "ser-contratos"}

	if _, err := r.Resolve(path, retention.RecordDocumento, date(2024, 1, 1)); err != nil {
		t.Errorf("Resolve(documento) failed: %v", err)
	}

	_, err := r.Resolve(path, retention.RecordExpediente, date(2024, 1, 1))
	var notFound *retention.RuleNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Resolve(expediente) error = %v, want RuleNotFoundError", err)
	}
}

// TestResolve_InvalidPath rejects paths missing mandatory levels.
func TestResolve_InvalidPath(t *testing.T) {
	r := loadedResolver(t, seriesRule("r-series"))

	if _, err := r.Resolve(retention.ClassificationPath{SeriesID: "ser-x"}, retention.RecordDocumento, date(2024, 1, 1)); err == nil {
		t.Error("Resolve() with empty schedule id succeeded, want error")
	}
}

// TestLoad_RejectsInvalidSet keeps the previous set active when a reload
// delivers an invalid rule.
func TestLoad_RejectsInvalidSet(t *testing.T) {
	r := loadedResolver(t, seriesRule("r-series"))

	bad := seriesRule("r-bad")
	bad.Action = "shred" // not in the closed enumeration

	if err := r.Load([]*retention.RetentionRule{bad}); err == nil {
		t.Fatal("Load() with invalid action succeeded, want error")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d after failed reload, want 1 (previous set active)", r.Count())
	}
}

// TestLoad_RejectsDuplicateIDs rejects rule sets with duplicate ids.
func TestLoad_RejectsDuplicateIDs(t *testing.T) {
	r := NewResolver(nil)
	err := r.Load([]*retention.RetentionRule{seriesRule("r-dup"), seriesRule("r-dup")})
	if err == nil {
		t.Fatal("Load() with duplicate ids succeeded, want error")
	}
}
