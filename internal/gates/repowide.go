package gates

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/corehq/warden/internal/knowledge"
	"github.com/corehq/warden/internal/similarity"
)

// defaultSimilarityParallelism bounds concurrent neighbor lookups.
const defaultSimilarityParallelism = 4

// repoContextGate runs knowledge-index-aware checks over the whole
// repository context. It is the only context-level engine.
//
// Params:
//
//	check:        "unused-public-symbols" | "undeclared-capabilities" |
//	              "duplicate-symbols" (required)
//	domains:      domains to check (undeclared-capabilities)
//	threshold:    similarity score in [0,1] treated as duplicate
//	              (duplicate-symbols, default 0.92)
//	max_parallel: concurrent similarity lookups (default 4)
type repoContextGate struct {
	index      knowledge.Index
	similarity similarity.Searcher
}

func newRepoContextGate(deps Deps) *repoContextGate {
	return &repoContextGate{index: deps.Index, similarity: deps.Similarity}
}

func (g *repoContextGate) Name() string       { return EngineRepoContext }
func (g *repoContextGate) ContextLevel() bool { return true }

func (g *repoContextGate) Evaluate(ctx context.Context, target Target, params map[string]any) ([]Violation, error) {
	if target.Repo == nil {
		return nil, fmt.Errorf("%s: no repository target", EngineRepoContext)
	}

	check := paramString(params, "check")
	if err := requireParam(EngineRepoContext, "check", check != ""); err != nil {
		return nil, err
	}

	switch check {
	case "unused-public-symbols":
		return g.unusedPublicSymbols(ctx)
	case "undeclared-capabilities":
		return g.undeclaredCapabilities(ctx, paramStringSlice(params, "domains"))
	case "duplicate-symbols":
		return g.duplicateSymbols(ctx,
			paramFloat(params, "threshold", 0.92),
			paramInt(params, "max_parallel", defaultSimilarityParallelism))
	default:
		return nil, fmt.Errorf("%s: unknown check %q", EngineRepoContext, check)
	}
}

// unusedPublicSymbols flags public symbols with no recorded references.
// Entry-point false positives are reconciled later by the post-processor,
// so this check reports everything it sees.
func (g *repoContextGate) unusedPublicSymbols(ctx context.Context) ([]Violation, error) {
	symbols, err := g.index.PublicSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query public symbols: %w", EngineRepoContext, err)
	}

	var violations []Violation
	for _, sym := range symbols {
		if sym.ReferenceCount > 0 {
			continue
		}
		violations = append(violations, Violation{
			Message:  fmt.Sprintf("public symbol %q has no references", sym.Key),
			FilePath: sym.FilePath,
			Line:     sym.LineNumber,
			Context:  map[string]any{"symbol": sym.Key},
		})
	}
	return violations, nil
}

// undeclaredCapabilities flags domain symbols missing from the domain's
// declared capability set.
func (g *repoContextGate) undeclaredCapabilities(ctx context.Context, domains []string) ([]Violation, error) {
	var violations []Violation
	for _, domain := range domains {
		declared, err := g.index.DomainCapabilities(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("%s: query capabilities for %q: %w", EngineRepoContext, domain, err)
		}
		declaredSet := make(map[string]struct{}, len(declared))
		for _, c := range declared {
			declaredSet[c] = struct{}{}
		}

		symbols, err := g.index.SymbolsInDomain(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("%s: query symbols for %q: %w", EngineRepoContext, domain, err)
		}
		for _, sym := range symbols {
			if !sym.IsPublic {
				continue
			}
			if _, ok := declaredSet[sym.Key]; ok {
				continue
			}
			violations = append(violations, Violation{
				Message:  fmt.Sprintf("symbol %q is not a declared capability of domain %q", sym.Key, domain),
				FilePath: sym.FilePath,
				Line:     sym.LineNumber,
				Context:  map[string]any{"symbol": sym.Key, "domain": domain},
			})
		}
	}
	return violations, nil
}

// duplicateSymbols issues bounded-concurrency similarity lookups, one
// per candidate symbol, and flags near-duplicates above the threshold.
// Each pair is reported once (lexicographically smaller key reports).
func (g *repoContextGate) duplicateSymbols(ctx context.Context, threshold float64, maxParallel int) ([]Violation, error) {
	symbols, err := g.index.PublicSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query public symbols: %w", EngineRepoContext, err)
	}
	if maxParallel < 1 {
		maxParallel = defaultSimilarityParallelism
	}

	byVector := make(map[string]knowledge.SymbolRecord)
	for _, sym := range symbols {
		if sym.VectorID != "" {
			byVector[sym.VectorID] = sym
		}
	}

	var mu sync.Mutex
	var violations []Violation

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxParallel)
	for _, sym := range symbols {
		if sym.VectorID == "" {
			continue
		}
		grp.Go(func() error {
			matches, err := g.similarity.Neighbors(ctx, sym.VectorID, 5)
			if err != nil {
				return fmt.Errorf("similarity lookup for %q: %w", sym.Key, err)
			}
			for _, m := range matches {
				if m.Score < threshold {
					continue
				}
				other, ok := byVector[m.ID]
				if !ok || sym.Key >= other.Key {
					continue
				}
				mu.Lock()
				violations = append(violations, Violation{
					Message:  fmt.Sprintf("symbol %q duplicates %q (similarity %.2f)", sym.Key, other.Key, m.Score),
					FilePath: sym.FilePath,
					Line:     sym.LineNumber,
					Context:  map[string]any{"symbol": sym.Key, "duplicate_of": other.Key, "score": m.Score},
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	// Completion order is nondeterministic; canonicalize before return.
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].FilePath != violations[j].FilePath {
			return violations[i].FilePath < violations[j].FilePath
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Message < violations[j].Message
	})
	return violations, nil
}
