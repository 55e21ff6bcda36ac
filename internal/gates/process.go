package gates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/cel-go/cel"
)

// processStateGate checks workflow and freshness properties of files and
// evaluates policy-declared CEL predicates over a file-state map.
//
// Params:
//
//	max_age_days: flag files whose last modification is older
//	predicate:    CEL expression over `state`; false flags the file.
//	              state: {path, age_days, size_bytes, line_count}
//	message:      override for the violation message
type processStateGate struct {
	env *cel.Env
}

func newProcessStateGate() (*processStateGate, error) {
	env, err := cel.NewEnv(
		cel.Variable("state", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &processStateGate{env: env}, nil
}

func (g *processStateGate) Name() string       { return EngineProcessState }
func (g *processStateGate) ContextLevel() bool { return false }

func (g *processStateGate) Evaluate(_ context.Context, target Target, params map[string]any) ([]Violation, error) {
	file := target.File
	if file == nil {
		return nil, fmt.Errorf("%s: no file target", EngineProcessState)
	}

	info, err := os.Stat(filepath.Join(target.RepoRoot, filepath.FromSlash(file.Path)))
	var ageDays float64
	var sizeBytes int64
	if err == nil {
		ageDays = time.Since(info.ModTime()).Hours() / 24
		sizeBytes = info.Size()
	}

	var violations []Violation

	if maxAge := paramInt(params, "max_age_days", 0); maxAge > 0 {
		if err != nil {
			return nil, fmt.Errorf("%s: stat %s: %w", EngineProcessState, file.Path, err)
		}
		if ageDays > float64(maxAge) {
			violations = append(violations, Violation{
				Message:  fmt.Sprintf("file is %.0f days old (max %d)", ageDays, maxAge),
				FilePath: file.Path,
				Line:     1,
				Context:  map[string]any{"age_days": int(ageDays)},
			})
		}
	}

	if predicate := paramString(params, "predicate"); predicate != "" {
		ok, err := g.evalPredicate(predicate, map[string]any{
			"path":       file.Path,
			"age_days":   ageDays,
			"size_bytes": sizeBytes,
			"line_count": len(file.Lines),
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			msg := paramString(params, "message")
			if msg == "" {
				msg = fmt.Sprintf("state predicate %q is false", predicate)
			}
			violations = append(violations, Violation{
				Message:  msg,
				FilePath: file.Path,
				Line:     1,
			})
		}
	}

	return violations, nil
}

// evalPredicate compiles and evaluates one CEL expression. Failures are
// engine errors; the orchestrator contains them to the single rule.
func (g *processStateGate) evalPredicate(expr string, state map[string]any) (bool, error) {
	ast, issues := g.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("%s: CEL compile error: %w", EngineProcessState, issues.Err())
	}

	prg, err := g.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("%s: CEL program error: %w", EngineProcessState, err)
	}

	out, _, err := prg.Eval(map[string]any{"state": state})
	if err != nil {
		return false, fmt.Errorf("%s: CEL evaluation error: %w", EngineProcessState, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%s: predicate must return boolean, got %T", EngineProcessState, out.Value())
	}
	return result, nil
}
