package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/saturn/pkg/retention"
)

// ruleFile is the on-disk YAML shape of a rule set.
type ruleFile struct {
	Rules []*retention.RetentionRule `yaml:"rules"`
}

// FileSource loads retention rules from YAML files. Each path may be a file
// or a directory; directories are scanned for .yaml/.yml files.
type FileSource struct {
	Paths []string
}

// NewFileSource creates a file source for the given paths.
func NewFileSource(paths ...string) *FileSource {
	return &FileSource{Paths: paths}
}

// Load reads and validates all rule files. Loading fails on the first
// malformed file or invalid rule; a partially valid set is never returned.
func (s *FileSource) Load() ([]*retention.RetentionRule, error) {
	var files []string
	for _, path := range s.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat rules path %q: %w", path, err)
		}
		if info.IsDir() {
			dirFiles, err := listRuleFiles(path)
			if err != nil {
				return nil, err
			}
			files = append(files, dirFiles...)
		} else {
			files = append(files, path)
		}
	}

	// Deterministic load order
	sort.Strings(files)

	var rules []*retention.RetentionRule
	for _, file := range files {
		fileRules, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fileRules...)
	}

	return rules, nil
}

// LoadFile reads and validates a single YAML rule file.
func LoadFile(path string) ([]*retention.RetentionRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}

	for _, rule := range rf.Rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rules file %q: %w", path, err)
		}
	}

	return rf.Rules, nil
}

// listRuleFiles returns the YAML files directly under dir and its
// subdirectories, skipping hidden entries.
func listRuleFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != dir {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rules directory %q: %w", dir, err)
	}
	return files, nil
}
