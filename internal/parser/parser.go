// Package parser turns source files into the structural representation
// consumed by enforcement engines. Engines never re-implement parsing.
package parser

import (
	"context"
	"path/filepath"
	"strings"
)

// DefinitionKind classifies a parsed definition node.
type DefinitionKind string

const (
	KindFunction DefinitionKind = "function"
	KindMethod   DefinitionKind = "method"
	KindClass    DefinitionKind = "class"
)

// Definition is one function/class/method node.
type Definition struct {
	Kind       DefinitionKind
	Name       string
	StartLine  int
	EndLine    int
	Decorators []string
}

// Import is one import statement.
type Import struct {
	Path string
	Line int
}

// Call is one call expression with its string-literal arguments resolved.
type Call struct {
	Callee      string
	Line        int
	LiteralArgs []string
}

// SourceFile is the structural representation of one parsed file.
type SourceFile struct {
	Path        string
	Language    string
	Source      []byte
	Lines       []string
	Definitions []Definition
	Imports     []Import
	Calls       []Call
}

// FileParser parses one language.
type FileParser interface {
	Language() string
	Extensions() []string
	Parse(ctx context.Context, path string, src []byte) (*SourceFile, error)
}

// Registry maps file extensions to parsers. Constructed once at process
// start and passed explicitly; it is never mutated after construction.
type Registry struct {
	byExt map[string]FileParser
}

// NewRegistry builds the default registry with all supported languages.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]FileParser)}
	r.register(NewPythonParser())
	r.register(NewGoParser())
	return r
}

func (r *Registry) register(p FileParser) {
	for _, ext := range p.Extensions() {
		r.byExt[ext] = p
	}
}

// ForPath returns the parser for a file path, or false when the
// extension is not a supported source language.
func (r *Registry) ForPath(path string) (FileParser, bool) {
	p, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

// Extensions lists all registered file extensions.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// splitLines keeps raw per-line text for textual engines.
func splitLines(src []byte) []string {
	return strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")
}
