// Package gates implements the enforcement engines behind policy rules.
// The engine namespace is closed: every engine id maps to one Gate
// registered at construction time, and an unknown id is an explicit
// error surfaced as a coverage gap, never a crash.
package gates

import (
	"context"
	"fmt"

	"github.com/corehq/warden/internal/judge"
	"github.com/corehq/warden/internal/knowledge"
	"github.com/corehq/warden/internal/parser"
	"github.com/corehq/warden/internal/similarity"
)

// Engine identifiers. This set is stable; rules reference these names.
const (
	EngineStructural   = "structural-pattern"
	EngineTextual      = "textual-pattern"
	EngineRepoContext  = "repo-context"
	EngineProcessState = "process-state"
	EngineJudged       = "judged"
)

// Violation is one raw violation description returned by a gate.
// The orchestrator turns violations into findings.
type Violation struct {
	Message  string
	FilePath string
	Line     int
	Context  map[string]any
}

// RepoContext is the whole-repository target handed to context-level
// engines. It is read-only for the duration of a run.
type RepoContext struct {
	Root       string
	Files      []string
	Index      knowledge.Index
	Similarity similarity.Searcher
}

// Target is the scope unit a gate evaluates: exactly one of File or
// Repo is set, depending on the engine's input shape. RepoRoot locates
// file targets on disk for gates that need filesystem state.
type Target struct {
	File     *parser.SourceFile
	Repo     *RepoContext
	RepoRoot string
}

// Gate is one pluggable evaluation strategy. Gates are pure with
// respect to the audit: external calls are reads, nothing mutates the
// scanned tree.
type Gate interface {
	Name() string
	ContextLevel() bool
	Evaluate(ctx context.Context, target Target, params map[string]any) ([]Violation, error)
}

// UnknownEngineError reports a rule referencing an unregistered engine.
type UnknownEngineError struct {
	Engine string
	RuleID string
}

func (e *UnknownEngineError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rule %q references unknown engine %q", e.RuleID, e.Engine)
	}
	return fmt.Sprintf("unknown engine %q", e.Engine)
}

// Deps are the external collaborators gates read from.
type Deps struct {
	Index      knowledge.Index
	Similarity similarity.Searcher
	Judge      judge.Judge
}

// Registry is the fixed-name lookup from engine id to Gate.
// Constructed once at process start and passed by reference.
type Registry struct {
	gates map[string]Gate
}

// NewRegistry builds the closed engine set. Missing collaborators fall
// back to safe defaults (empty index, no-op judge).
func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Index == nil {
		deps.Index = knowledge.NewMemoryIndex()
	}
	if deps.Similarity == nil {
		deps.Similarity = similarity.NewMemorySearcher()
	}
	if deps.Judge == nil {
		deps.Judge = judge.NewStub()
	}

	processGate, err := newProcessStateGate()
	if err != nil {
		return nil, fmt.Errorf("build process-state gate: %w", err)
	}

	r := &Registry{gates: make(map[string]Gate)}
	for _, g := range []Gate{
		&structuralGate{},
		&textualGate{},
		newRepoContextGate(deps),
		processGate,
		&judgedGate{judge: deps.Judge},
	} {
		r.gates[g.Name()] = g
	}
	return r, nil
}

// Lookup returns the gate for an engine id.
func (r *Registry) Lookup(engine string) (Gate, error) {
	g, ok := r.gates[engine]
	if !ok {
		return nil, &UnknownEngineError{Engine: engine}
	}
	return g, nil
}

// Known reports whether the engine id is registered.
func (r *Registry) Known(engine string) bool {
	_, ok := r.gates[engine]
	return ok
}

// IsContextLevel reports whether the engine evaluates the whole
// repository context. Unknown engines report false.
func (r *Registry) IsContextLevel(engine string) bool {
	g, ok := r.gates[engine]
	return ok && g.ContextLevel()
}

// EngineIDs lists the registered engine identifiers.
func (r *Registry) EngineIDs() []string {
	ids := make([]string, 0, len(r.gates))
	for id := range r.gates {
		ids = append(ids, id)
	}
	return ids
}
