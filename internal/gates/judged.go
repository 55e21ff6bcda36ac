package gates

import (
	"context"
	"fmt"
	"strings"

	"github.com/corehq/warden/internal/judge"
)

// maxExcerptLines caps how much of a file is sent to the judge.
const maxExcerptLines = 200

// judgedGate delegates a semantic question to the reasoning
// collaborator. When the backing service is a stub or unavailable the
// gate returns zero findings; the rule still counts as executed so
// coverage is not falsely reported as a gap.
type judgedGate struct {
	judge judge.Judge
}

func (g *judgedGate) Name() string       { return EngineJudged }
func (g *judgedGate) ContextLevel() bool { return false }

func (g *judgedGate) Evaluate(ctx context.Context, target Target, params map[string]any) ([]Violation, error) {
	file := target.File
	if file == nil {
		return nil, fmt.Errorf("%s: no file target", EngineJudged)
	}

	question := paramString(params, "question")
	if err := requireParam(EngineJudged, "question", question != ""); err != nil {
		return nil, err
	}

	prompt := buildPrompt(question, file.Path, file.Lines)
	verdict, err := g.judge.Verdict(ctx, prompt)
	if err != nil {
		// Degrade gracefully: an unavailable judge never fails the rule.
		return nil, nil
	}

	if isNoFinding(verdict) {
		return nil, nil
	}

	return []Violation{{
		Message:  verdict,
		FilePath: file.Path,
		Line:     1,
		Context:  map[string]any{"verdict": verdict},
	}}, nil
}

func buildPrompt(question, path string, lines []string) string {
	excerpt := lines
	if len(excerpt) > maxExcerptLines {
		excerpt = excerpt[:maxExcerptLines]
	}
	var b strings.Builder
	b.WriteString("Rule: ")
	b.WriteString(question)
	b.WriteString("\nFile: ")
	b.WriteString(path)
	b.WriteString("\n---\n")
	b.WriteString(strings.Join(excerpt, "\n"))
	return b.String()
}

func isNoFinding(verdict string) bool {
	v := strings.ToLower(strings.TrimSpace(verdict))
	return v == "" || v == judge.NoFinding || strings.HasPrefix(v, judge.NoFinding)
}
