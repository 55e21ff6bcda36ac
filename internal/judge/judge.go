// Package judge provides the reasoning collaborator behind judged rules.
// CI runs use the stub, which always returns "no finding" so judged
// rules stay deterministic offline.
package judge

import "context"

// NoFinding is the verdict meaning the judge saw no violation.
const NoFinding = "no finding"

// Judge answers a semantic question with a short textual verdict.
type Judge interface {
	Verdict(ctx context.Context, prompt string) (string, error)
}

// Stub always reports no finding. It is the default collaborator so an
// unconfigured or offline judge never fails a rule.
type Stub struct{}

// NewStub creates the no-op judge.
func NewStub() Stub { return Stub{} }

// Verdict implements Judge.
func (Stub) Verdict(_ context.Context, _ string) (string, error) {
	return NoFinding, nil
}
