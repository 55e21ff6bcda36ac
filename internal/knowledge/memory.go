package knowledge

import (
	"context"
	"sort"
)

// MemoryIndex is an in-memory Index used in tests and when no symbol
// database is configured. A nil or empty index answers every lookup with
// not-found, which downstream components treat as "no metadata".
type MemoryIndex struct {
	Symbols      map[string]SymbolRecord
	Capabilities map[string][]string
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		Symbols:      make(map[string]SymbolRecord),
		Capabilities: make(map[string][]string),
	}
}

// Add stores a symbol record.
func (m *MemoryIndex) Add(rec SymbolRecord) {
	m.Symbols[rec.Key] = rec
}

// SymbolByKey implements Index.
func (m *MemoryIndex) SymbolByKey(_ context.Context, key string) (*SymbolRecord, error) {
	rec, ok := m.Symbols[key]
	if !ok {
		return nil, ErrSymbolNotFound
	}
	return &rec, nil
}

// SymbolsInDomain implements Index.
func (m *MemoryIndex) SymbolsInDomain(_ context.Context, domain string) ([]SymbolRecord, error) {
	var out []SymbolRecord
	for _, rec := range m.Symbols {
		if rec.Domain == domain {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DomainCapabilities implements Index.
func (m *MemoryIndex) DomainCapabilities(_ context.Context, domain string) ([]string, error) {
	caps := append([]string(nil), m.Capabilities[domain]...)
	sort.Strings(caps)
	return caps, nil
}

// PublicSymbols implements Index.
func (m *MemoryIndex) PublicSymbols(_ context.Context) ([]SymbolRecord, error) {
	var out []SymbolRecord
	for _, rec := range m.Symbols {
		if rec.IsPublic {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
