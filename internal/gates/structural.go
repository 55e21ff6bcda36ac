package gates

import (
	"context"
	"fmt"
	"strings"
)

// structuralGate matches rules against parsed syntax: call expressions,
// decorators, imports, and definition shapes.
//
// Recognized params (a rule may combine several):
//
//	callee:               call target name to match (e.g. "open")
//	arg_contains:         substring a string-literal argument must contain
//	forbidden_decorators: decorator names that must not appear
//	forbidden_imports:    import path prefixes that must not appear
//	max_function_lines:   maximum allowed function/method body length
type structuralGate struct{}

func (g *structuralGate) Name() string       { return EngineStructural }
func (g *structuralGate) ContextLevel() bool { return false }

func (g *structuralGate) Evaluate(_ context.Context, target Target, params map[string]any) ([]Violation, error) {
	file := target.File
	if file == nil {
		return nil, fmt.Errorf("%s: no file target", EngineStructural)
	}

	var violations []Violation

	if callee := paramString(params, "callee"); callee != "" {
		argContains := paramString(params, "arg_contains")
		for _, call := range file.Calls {
			if !calleeMatches(call.Callee, callee) {
				continue
			}
			if argContains != "" && !literalArgContains(call.LiteralArgs, argContains) {
				continue
			}
			violations = append(violations, Violation{
				Message:  fmt.Sprintf("call to %s with argument containing %q", call.Callee, argContains),
				FilePath: file.Path,
				Line:     call.Line,
				Context:  map[string]any{"callee": call.Callee},
			})
		}
	}

	if forbidden := paramStringSlice(params, "forbidden_decorators"); len(forbidden) > 0 {
		for _, def := range file.Definitions {
			for _, dec := range def.Decorators {
				for _, f := range forbidden {
					if dec == f {
						violations = append(violations, Violation{
							Message:  fmt.Sprintf("%s %q uses forbidden decorator @%s", def.Kind, def.Name, dec),
							FilePath: file.Path,
							Line:     def.StartLine,
							Context:  map[string]any{"decorator": dec, "symbol": def.Name},
						})
					}
				}
			}
		}
	}

	if forbidden := paramStringSlice(params, "forbidden_imports"); len(forbidden) > 0 {
		for _, imp := range file.Imports {
			for _, f := range forbidden {
				if imp.Path == f || strings.HasPrefix(imp.Path, f+".") || strings.HasPrefix(imp.Path, f+"/") {
					violations = append(violations, Violation{
						Message:  fmt.Sprintf("forbidden import %q", imp.Path),
						FilePath: file.Path,
						Line:     imp.Line,
						Context:  map[string]any{"import": imp.Path},
					})
				}
			}
		}
	}

	if maxLines := paramInt(params, "max_function_lines", 0); maxLines > 0 {
		for _, def := range file.Definitions {
			if def.Kind == "class" {
				continue
			}
			length := def.EndLine - def.StartLine + 1
			if length > maxLines {
				violations = append(violations, Violation{
					Message:  fmt.Sprintf("%s %q is %d lines (max %d)", def.Kind, def.Name, length, maxLines),
					FilePath: file.Path,
					Line:     def.StartLine,
					Context:  map[string]any{"symbol": def.Name, "lines": length},
				})
			}
		}
	}

	return violations, nil
}

// calleeMatches accepts exact names and dotted suffixes, so "open"
// matches both "open" and "io.open".
func calleeMatches(callee, want string) bool {
	return callee == want || strings.HasSuffix(callee, "."+want)
}

func literalArgContains(args []string, substr string) bool {
	for _, a := range args {
		if strings.Contains(a, substr) {
			return true
		}
	}
	return false
}
