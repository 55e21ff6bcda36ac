// Package similarity provides the vector-similarity collaborator used by
// duplicate-detection rules.
package similarity

import (
	"context"
	"math"
	"sort"
)

// Match is one nearest neighbor with a score in [0,1].
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Searcher answers nearest-neighbor queries by vector id.
type Searcher interface {
	Neighbors(ctx context.Context, vectorID string, k int) ([]Match, error)
}

// MemorySearcher is an in-memory cosine-similarity Searcher. Suitable
// for small indexes and deterministic tests; a remote vector service
// satisfies the same interface in production.
type MemorySearcher struct {
	vectors map[string][]float64
}

// NewMemorySearcher creates an empty searcher.
func NewMemorySearcher() *MemorySearcher {
	return &MemorySearcher{vectors: make(map[string][]float64)}
}

// Add stores a vector under an id.
func (m *MemorySearcher) Add(id string, vec []float64) {
	m.vectors[id] = vec
}

// Neighbors implements Searcher. The queried id itself is excluded.
// Scores are clamped to [0,1]; ties break by id for determinism.
func (m *MemorySearcher) Neighbors(_ context.Context, vectorID string, k int) ([]Match, error) {
	query, ok := m.vectors[vectorID]
	if !ok {
		return nil, nil
	}

	matches := make([]Match, 0, len(m.vectors))
	for id, vec := range m.vectors {
		if id == vectorID {
			continue
		}
		score := cosine(query, vec)
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		matches = append(matches, Match{ID: id, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// cosine similarity of two vectors; 0 for mismatched or zero vectors.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
