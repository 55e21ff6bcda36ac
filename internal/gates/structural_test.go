package gates

import (
	"context"
	"testing"

	"github.com/corehq/warden/internal/parser"
)

func fileTarget(f *parser.SourceFile) Target {
	return Target{File: f}
}

func TestStructuralGate_CallWithLiteralArg(t *testing.T) {
	file := &parser.SourceFile{
		Path:     "agent/actions.py",
		Language: "python",
		Calls: []parser.Call{
			{Callee: "open", Line: 14, LiteralArgs: []string{".intent/x.yaml"}},
			{Callee: "open", Line: 20, LiteralArgs: []string{"data/input.csv"}},
			{Callee: "print", Line: 25, LiteralArgs: []string{".intent/y.yaml"}},
		},
	}

	g := &structuralGate{}
	violations, err := g.Evaluate(context.Background(), fileTarget(file), map[string]any{
		"callee":       "open",
		"arg_contains": ".intent",
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if len(violations) != 1 {
		t.Fatalf("expected exactly 1 violation, got %d", len(violations))
	}
	if violations[0].Line != 14 {
		t.Errorf("expected violation at line 14, got %d", violations[0].Line)
	}
	if violations[0].FilePath != "agent/actions.py" {
		t.Errorf("unexpected file path %q", violations[0].FilePath)
	}
}

func TestStructuralGate_DottedCalleeSuffix(t *testing.T) {
	file := &parser.SourceFile{
		Path: "a.py",
		Calls: []parser.Call{
			{Callee: "io.open", Line: 3, LiteralArgs: []string{".intent/x"}},
			{Callee: "reopen", Line: 5, LiteralArgs: []string{".intent/x"}},
		},
	}

	g := &structuralGate{}
	violations, err := g.Evaluate(context.Background(), fileTarget(file), map[string]any{
		"callee":       "open",
		"arg_contains": ".intent",
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Line != 3 {
		t.Fatalf("expected only io.open to match, got %+v", violations)
	}
}

func TestStructuralGate_ForbiddenDecorators(t *testing.T) {
	file := &parser.SourceFile{
		Path: "svc.py",
		Definitions: []parser.Definition{
			{Kind: "function", Name: "handler", StartLine: 10, EndLine: 20, Decorators: []string{"deprecated"}},
			{Kind: "function", Name: "ok", StartLine: 30, EndLine: 35, Decorators: []string{"route"}},
		},
	}

	g := &structuralGate{}
	violations, err := g.Evaluate(context.Background(), fileTarget(file), map[string]any{
		"forbidden_decorators": []any{"deprecated"},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Line != 10 {
		t.Fatalf("expected 1 violation at line 10, got %+v", violations)
	}
}

func TestStructuralGate_ForbiddenImports(t *testing.T) {
	file := &parser.SourceFile{
		Path: "svc.py",
		Imports: []parser.Import{
			{Path: "internal.secrets", Line: 1},
			{Path: "internals", Line: 2},
			{Path: "os", Line: 3},
		},
	}

	g := &structuralGate{}
	violations, err := g.Evaluate(context.Background(), fileTarget(file), map[string]any{
		"forbidden_imports": []any{"internal"},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	// Prefix matching is path-segment aware: "internals" is not "internal".
	if len(violations) != 1 || violations[0].Line != 1 {
		t.Fatalf("expected only internal.secrets to match, got %+v", violations)
	}
}

func TestStructuralGate_MaxFunctionLines(t *testing.T) {
	file := &parser.SourceFile{
		Path: "big.py",
		Definitions: []parser.Definition{
			{Kind: "function", Name: "long_one", StartLine: 1, EndLine: 80},
			{Kind: "class", Name: "Huge", StartLine: 100, EndLine: 400},
			{Kind: "function", Name: "short_one", StartLine: 500, EndLine: 510},
		},
	}

	g := &structuralGate{}
	violations, err := g.Evaluate(context.Background(), fileTarget(file), map[string]any{
		"max_function_lines": 50,
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Context["symbol"] != "long_one" {
		t.Fatalf("expected only long_one flagged, got %+v", violations)
	}
}

func TestStructuralGate_NoFileTarget(t *testing.T) {
	g := &structuralGate{}
	if _, err := g.Evaluate(context.Background(), Target{}, nil); err == nil {
		t.Fatal("expected error for missing file target")
	}
}
