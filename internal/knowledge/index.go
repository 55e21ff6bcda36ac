// Package knowledge provides access to the external symbol index holding
// cross-file relationships and entry-point classifications.
package knowledge

import (
	"context"
	"errors"
)

// ErrSymbolNotFound is returned when a symbol key has no index record.
var ErrSymbolNotFound = errors.New("symbol not found in knowledge index")

// SymbolRecord is the index's view of one symbol.
type SymbolRecord struct {
	Key                     string `json:"key"`
	IsPublic                bool   `json:"is_public"`
	EntryPointType          string `json:"entry_point_type,omitempty"`
	PatternName             string `json:"pattern_name,omitempty"`
	EntryPointJustification string `json:"entry_point_justification,omitempty"`
	FilePath                string `json:"file_path"`
	LineNumber              int    `json:"line_number"`
	Domain                  string `json:"domain,omitempty"`

	// ReferenceCount is the number of inbound references the index has
	// recorded for the symbol. Zero means no other source code calls it.
	ReferenceCount int `json:"reference_count"`

	// VectorID links the symbol to the similarity collaborator, when a
	// vector embedding exists for it.
	VectorID string `json:"vector_id,omitempty"`
}

// Index is the knowledge-index collaborator. Implementations are reads
// only; the audit never mutates the index.
type Index interface {
	// SymbolByKey looks up one symbol record.
	SymbolByKey(ctx context.Context, key string) (*SymbolRecord, error)

	// SymbolsInDomain lists symbols declared under one domain.
	SymbolsInDomain(ctx context.Context, domain string) ([]SymbolRecord, error)

	// DomainCapabilities lists the capability keys declared for a domain.
	DomainCapabilities(ctx context.Context, domain string) ([]string, error)

	// PublicSymbols lists all public symbols known to the index.
	PublicSymbols(ctx context.Context) ([]SymbolRecord, error)
}
