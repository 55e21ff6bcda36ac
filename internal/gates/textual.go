package gates

import (
	"context"
	"fmt"
	"regexp"
)

// textualGate matches a regular expression per line of the raw file.
//
// Params:
//
//	pattern: regular expression (required)
//	mode:    "forbid" (default) flags every matching line;
//	         "require" flags the file once when nothing matches
//	message: override for the violation message
type textualGate struct{}

func (g *textualGate) Name() string       { return EngineTextual }
func (g *textualGate) ContextLevel() bool { return false }

func (g *textualGate) Evaluate(_ context.Context, target Target, params map[string]any) ([]Violation, error) {
	file := target.File
	if file == nil {
		return nil, fmt.Errorf("%s: no file target", EngineTextual)
	}

	pattern := paramString(params, "pattern")
	if err := requireParam(EngineTextual, "pattern", pattern != ""); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid pattern %q: %w", EngineTextual, pattern, err)
	}

	mode := paramString(params, "mode")
	if mode == "" {
		mode = "forbid"
	}
	message := paramString(params, "message")

	switch mode {
	case "forbid":
		var violations []Violation
		for i, line := range file.Lines {
			if re.MatchString(line) {
				msg := message
				if msg == "" {
					msg = fmt.Sprintf("line matches forbidden pattern %q", pattern)
				}
				violations = append(violations, Violation{
					Message:  msg,
					FilePath: file.Path,
					Line:     i + 1,
				})
			}
		}
		return violations, nil

	case "require":
		for _, line := range file.Lines {
			if re.MatchString(line) {
				return nil, nil
			}
		}
		msg := message
		if msg == "" {
			msg = fmt.Sprintf("file contains no line matching required pattern %q", pattern)
		}
		return []Violation{{Message: msg, FilePath: file.Path, Line: 1}}, nil

	default:
		return nil, fmt.Errorf("%s: unknown mode %q", EngineTextual, mode)
	}
}
