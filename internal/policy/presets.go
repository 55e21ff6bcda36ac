package policy

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/corehq/warden/internal/models"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// presetCache holds loaded presets to avoid re-parsing
var presetCache = map[string]*models.PolicyDocument{}

// presetFiles maps preset names to embedded file paths
var presetFiles = map[string]string{
	"constitution": "presets/constitution.yaml",
	"baseline":     "presets/baseline.yaml",
}

// GetPreset returns a policy preset by name, or nil if not found
func GetPreset(name string) *models.PolicyDocument {
	// Check cache first
	if cached, ok := presetCache[name]; ok {
		return cached
	}

	// Look up file path
	path, ok := presetFiles[name]
	if !ok {
		return nil
	}

	// Load from embedded FS
	data, err := presetFS.ReadFile(path)
	if err != nil {
		return nil
	}

	var doc models.PolicyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	for i := range doc.Rules {
		rule := &doc.Rules[i]
		if rule.Authority == "" {
			rule.Authority = doc.Authority
		}
		rule.ApplyDefaults()
		rule.SourcePolicyID = doc.Name
	}

	// Cache and return
	presetCache[name] = &doc
	return &doc
}

// ListPresetNames returns the names of all available presets
func ListPresetNames() []string {
	names := make([]string, 0, len(presetFiles))
	for name := range presetFiles {
		names = append(names, name)
	}
	return names
}

// MustGetPreset returns a preset or panics (for tests)
func MustGetPreset(name string) *models.PolicyDocument {
	p := GetPreset(name)
	if p == nil {
		panic(fmt.Sprintf("preset %q not found", name))
	}
	return p
}
