package gates

import (
	"context"
	"testing"

	"github.com/corehq/warden/internal/parser"
)

func TestTextualGate_Forbid(t *testing.T) {
	file := &parser.SourceFile{
		Path: "svc.py",
		Lines: []string{
			"import os",
			"print('debug')",
			"x = compute()",
			"print(x)",
		},
	}

	g := &textualGate{}
	violations, err := g.Evaluate(context.Background(), fileTarget(file), map[string]any{
		"pattern": `print\(`,
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(violations))
	}
	if violations[0].Line != 2 || violations[1].Line != 4 {
		t.Errorf("expected lines 2 and 4, got %d and %d", violations[0].Line, violations[1].Line)
	}
}

func TestTextualGate_Require(t *testing.T) {
	missing := &parser.SourceFile{Path: "a.py", Lines: []string{"x = 1"}}
	present := &parser.SourceFile{Path: "b.py", Lines: []string{"# SPDX-License-Identifier: MIT", "x = 1"}}

	g := &textualGate{}
	params := map[string]any{
		"pattern": `SPDX-License-Identifier`,
		"mode":    "require",
		"message": "missing license header",
	}

	violations, err := g.Evaluate(context.Background(), fileTarget(missing), params)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Line != 1 || violations[0].Message != "missing license header" {
		t.Fatalf("expected single violation at line 1, got %+v", violations)
	}

	violations, err = g.Evaluate(context.Background(), fileTarget(present), params)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %+v", violations)
	}
}

func TestTextualGate_EngineErrors(t *testing.T) {
	file := &parser.SourceFile{Path: "a.py", Lines: []string{"x"}}
	g := &textualGate{}

	if _, err := g.Evaluate(context.Background(), fileTarget(file), map[string]any{}); err == nil {
		t.Error("expected error for missing pattern")
	}
	if _, err := g.Evaluate(context.Background(), fileTarget(file), map[string]any{"pattern": "("}); err == nil {
		t.Error("expected error for invalid regex")
	}
	if _, err := g.Evaluate(context.Background(), fileTarget(file), map[string]any{"pattern": "x", "mode": "suggest"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}
