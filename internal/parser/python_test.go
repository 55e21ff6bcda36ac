package parser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

const pySample = `import os
import json as j
from pathlib import Path

@lru_cache(maxsize=8)
def load(path):
    return open(path, "r")

class Store:
    def get(self, key):
        return self.data[key]

    @staticmethod
    def empty():
        return Store()

def main():
    load(".intent/plan.yaml")
`

func parsePython(t *testing.T, src string) *SourceFile {
	t.Helper()
	file, err := NewPythonParser().Parse(context.Background(), "sample.py", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return file
}

func findDef(t *testing.T, file *SourceFile, name string) Definition {
	t.Helper()
	for _, d := range file.Definitions {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("definition %q not found in %v", name, file.Definitions)
	return Definition{}
}

func TestPythonParserDefinitions(t *testing.T) {
	file := parsePython(t, pySample)

	if file.Language != "python" {
		t.Fatalf("language = %q", file.Language)
	}

	load := findDef(t, file, "load")
	if load.Kind != KindFunction {
		t.Errorf("load kind = %q, want function", load.Kind)
	}
	if load.StartLine != 6 {
		t.Errorf("load start line = %d, want 6", load.StartLine)
	}
	if len(load.Decorators) != 1 || load.Decorators[0] != "lru_cache" {
		t.Errorf("load decorators = %v, want [lru_cache]", load.Decorators)
	}

	store := findDef(t, file, "Store")
	if store.Kind != KindClass {
		t.Errorf("Store kind = %q, want class", store.Kind)
	}
	if store.StartLine != 9 {
		t.Errorf("Store start line = %d, want 9", store.StartLine)
	}

	get := findDef(t, file, "get")
	if get.Kind != KindMethod {
		t.Errorf("get kind = %q, want method", get.Kind)
	}

	empty := findDef(t, file, "empty")
	if empty.Kind != KindMethod {
		t.Errorf("empty kind = %q, want method", empty.Kind)
	}
	if len(empty.Decorators) != 1 || empty.Decorators[0] != "staticmethod" {
		t.Errorf("empty decorators = %v, want [staticmethod]", empty.Decorators)
	}
}

func TestPythonParserImports(t *testing.T) {
	file := parsePython(t, pySample)

	want := map[string]int{
		"os":      1,
		"json":    2,
		"pathlib": 3,
	}
	if len(file.Imports) != len(want) {
		t.Fatalf("imports = %v, want %d entries", file.Imports, len(want))
	}
	for _, imp := range file.Imports {
		line, ok := want[imp.Path]
		if !ok {
			t.Errorf("unexpected import %q", imp.Path)
			continue
		}
		if imp.Line != line {
			t.Errorf("import %q line = %d, want %d", imp.Path, imp.Line, line)
		}
	}
}

func TestPythonParserCalls(t *testing.T) {
	file := parsePython(t, pySample)

	var open, load *Call
	for i := range file.Calls {
		switch file.Calls[i].Callee {
		case "open":
			open = &file.Calls[i]
		case "load":
			load = &file.Calls[i]
		}
	}
	if open == nil {
		t.Fatalf("open call not found in %v", file.Calls)
	}
	if open.Line != 7 {
		t.Errorf("open line = %d, want 7", open.Line)
	}
	// open(path, "r"): only the string literal is captured.
	if len(open.LiteralArgs) != 1 || open.LiteralArgs[0] != "r" {
		t.Errorf("open literal args = %v, want [r]", open.LiteralArgs)
	}
	if load == nil {
		t.Fatalf("load call not found")
	}
	if len(load.LiteralArgs) != 1 || load.LiteralArgs[0] != ".intent/plan.yaml" {
		t.Errorf("load literal args = %v, want [.intent/plan.yaml]", load.LiteralArgs)
	}
}

// The registry hands every worker the same parser instance, so Parse
// must hold up under the audit pool's parallelism.
func TestPythonParserConcurrentParse(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("def f(x):\n    return open(\"data.yaml\")\n\n")
	}
	src := []byte(sb.String())

	p := NewPythonParser()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 8; i++ {
				file, err := p.Parse(context.Background(), "big.py", src)
				if err != nil {
					errs <- err
					return
				}
				if len(file.Definitions) != 200 {
					errs <- fmt.Errorf("definitions = %d, want 200", len(file.Definitions))
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent parse: %v", err)
	}
}

func TestStripPyQuotes(t *testing.T) {
	cases := map[string]string{
		`"abc"`:      "abc",
		`'abc'`:      "abc",
		`"""doc"""`:  "doc",
		`r"raw\d"`:   `raw\d`,
		`f"x{y}"`:    "x{y}",
		`unquoted`:   "unquoted",
		`b'payload'`: "payload",
	}
	for in, want := range cases {
		if got := stripPyQuotes(in); got != want {
			t.Errorf("stripPyQuotes(%q) = %q, want %q", in, got, want)
		}
	}
}
