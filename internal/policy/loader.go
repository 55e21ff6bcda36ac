// Package policy loads declarative rule documents and extracts the
// executable rule set for an audit run.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corehq/warden/internal/models"
)

// LoadError reports a malformed or missing policy document. It aborts
// only that document's rules, never the run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("policy load failed for %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadResult carries loaded documents plus per-document failures.
type LoadResult struct {
	Documents []models.PolicyDocument
	Errors    []*LoadError
}

// LoadFile parses one policy document.
func LoadFile(path string) (*models.PolicyDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// LoadDir parses every .yaml/.yml document in a directory. Broken
// documents are collected as errors; good documents still load.
func LoadDir(dir string) (*LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	result := &LoadResult{}
	for _, name := range names {
		doc, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			var loadErr *LoadError
			if le, ok := err.(*LoadError); ok {
				loadErr = le
			} else {
				loadErr = &LoadError{Path: name, Err: err}
			}
			result.Errors = append(result.Errors, loadErr)
			continue
		}
		result.Documents = append(result.Documents, *doc)
	}
	return result, nil
}

// parseDocument decodes and validates one document. Rules that fail
// validation reject the whole document: partially-constructed rules
// never reach the orchestrator.
func parseDocument(data []byte) (*models.PolicyDocument, error) {
	var doc models.PolicyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	if len(doc.Rules) == 0 && doc.Governance == nil {
		return nil, fmt.Errorf("policy must declare rules or governance")
	}

	seen := make(map[string]struct{}, len(doc.Rules))
	for i := range doc.Rules {
		rule := &doc.Rules[i]
		// Document authority is the default for its rules.
		if rule.Authority == "" {
			rule.Authority = doc.Authority
		}
		rule.ApplyDefaults()
		rule.SourcePolicyID = doc.Name
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = struct{}{}
	}
	return &doc, nil
}
