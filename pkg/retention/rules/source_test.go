package rules

import (
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/saturn/pkg/retention"
)

const validRules = `
rules:
  - id: r-series
    schedule_id: trd-1
    series_id: ser-contratos
    management_years: 5
    central_years: 10
    action: eliminacion
    effective_from: 2010-01-01T00:00:00Z
  - id: r-doctype
    schedule_id: trd-1
    series_id: ser-contratos
    document_type_id: dt-acta
    management_years: 2
    central_years: 8
    action: conservacion_total
    effective_from: 2023-01-01T00:00:00Z
    effective_to: 2024-12-31T00:00:00Z
    priority: 10
`

func writeRules(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	return path
}

// TestLoadFile parses a valid rule file.
func TestLoadFile(t *testing.T) {
	path := writeRules(t, t.TempDir(), "rules.yaml", validRules)

	rs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("LoadFile() returned %d rules, want 2", len(rs))
	}

	if rs[0].ID != "r-series" || rs[0].Level() != retention.LevelSeries {
		t.Errorf("first rule = %s level %s, want r-series at series level", rs[0].ID, rs[0].Level())
	}
	if rs[1].Level() != retention.LevelDocumentType {
		t.Errorf("second rule level = %s, want document_type", rs[1].Level())
	}
	if rs[1].EffectiveTo == nil {
		t.Error("second rule effective_to = nil, want 2024-12-31")
	}
	if rs[1].Action != retention.ActionConservacionTotal {
		t.Errorf("second rule action = %s, want conservacion_total", rs[1].Action)
	}
}

// TestLoadFile_InvalidAction rejects actions outside the closed enumeration.
func TestLoadFile_InvalidAction(t *testing.T) {
	content := `
rules:
  - id: r-bad
    schedule_id: trd-1
    management_years: 1
    action: shred
    effective_from: 2010-01-01T00:00:00Z
`
	path := writeRules(t, t.TempDir(), "bad.yaml", content)

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() with unknown action succeeded, want error")
	}
}

// TestLoadFile_Malformed surfaces YAML parse errors with the file name.
func TestLoadFile_Malformed(t *testing.T) {
	path := writeRules(t, t.TempDir(), "broken.yaml", "rules: [unclosed")

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() with malformed YAML succeeded, want error")
	}
}

// TestFileSource_Directory loads every YAML file under a directory and
// ignores hidden and non-YAML entries.
func TestFileSource_Directory(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, "a.yaml", validRules)
	writeRules(t, dir, "b.yml", `
rules:
  - id: r-other
    schedule_id: trd-2
    management_years: 3
    action: transferencia_historica
    effective_from: 2015-06-01T00:00:00Z
`)
	writeRules(t, dir, ".hidden.yaml", validRules)
	writeRules(t, dir, "notes.txt", "not yaml")

	rs, err := NewFileSource(dir).Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(rs) != 3 {
		t.Errorf("Load() returned %d rules, want 3", len(rs))
	}
}

// TestFileSource_Subdirectories walks nested directories, skipping hidden
// ones.
func TestFileSource_Subdirectories(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, "a.yaml", validRules)

	nested := filepath.Join(dir, "departments", "legal")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeRules(t, nested, "b.yml", `
rules:
  - id: r-nested
    schedule_id: trd-2
    management_years: 3
    action: transferencia_historica
    effective_from: 2015-06-01T00:00:00Z
`)

	hidden := filepath.Join(dir, ".archive")
	if err := os.MkdirAll(hidden, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeRules(t, hidden, "old.yaml", validRules)

	rs, err := NewFileSource(dir).Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(rs) != 3 {
		t.Errorf("Load() returned %d rules, want 3", len(rs))
	}
}

// TestFileSource_MissingPath fails when a configured path does not exist.
func TestFileSource_MissingPath(t *testing.T) {
	if _, err := NewFileSource(filepath.Join(t.TempDir(), "absent.yaml")).Load(); err == nil {
		t.Error("Load() with missing path succeeded, want error")
	}
}

// TestFileSource_FeedsResolver wires the loaded set into a resolver.
func TestFileSource_FeedsResolver(t *testing.T) {
	path := writeRules(t, t.TempDir(), "rules.yaml", validRules)

	rs, err := NewFileSource(path).Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	r := NewResolver(nil)
	if err := r.Load(rs); err != nil {
		t.Fatalf("resolver Load() failed: %v", err)
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
}
