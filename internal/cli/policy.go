package cli

import (
	"fmt"
	"os"

	"github.com/corehq/warden/internal/models"
	"github.com/corehq/warden/internal/policy"
)

// loadPolicies resolves each spec as a preset name, a policy file, or a
// directory of policy files, in that order. Per-document failures are
// returned separately so one broken file never aborts the run.
func loadPolicies(specs []string) ([]models.PolicyDocument, []*policy.LoadError, error) {
	var docs []models.PolicyDocument
	var loadErrs []*policy.LoadError

	for _, spec := range specs {
		if preset := policy.GetPreset(spec); preset != nil {
			docs = append(docs, *preset)
			continue
		}

		info, err := os.Stat(spec)
		if err != nil {
			return nil, nil, fmt.Errorf("unknown policy %q: not a preset (%v) and not a path", spec, policy.ListPresetNames())
		}

		if info.IsDir() {
			result, err := policy.LoadDir(spec)
			if err != nil {
				return nil, nil, err
			}
			docs = append(docs, result.Documents...)
			loadErrs = append(loadErrs, result.Errors...)
			continue
		}

		doc, err := policy.LoadFile(spec)
		if err != nil {
			if le, ok := err.(*policy.LoadError); ok {
				loadErrs = append(loadErrs, le)
				continue
			}
			return nil, nil, err
		}
		docs = append(docs, *doc)
	}

	return docs, loadErrs, nil
}
