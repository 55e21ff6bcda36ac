package models

import "fmt"

// AuthorityTier of a rule's origin document
type AuthorityTier string

const (
	// AuthorityConstitution rules are always enforced and never suppressible.
	AuthorityConstitution AuthorityTier = "constitution"
	// AuthorityPolicy rules are advisory unless strict mode is active.
	AuthorityPolicy AuthorityTier = "policy"
)

// Enforcement level declared on a rule
type Enforcement string

const (
	EnforcementError   Enforcement = "error"
	EnforcementWarning Enforcement = "warning"
)

// PolicyRule declarative constraint bound to one engine
type PolicyRule struct {
	ID             string         `yaml:"id" json:"id"`
	Statement      string         `yaml:"statement" json:"statement"`
	Authority      AuthorityTier  `yaml:"authority,omitempty" json:"authority"`
	Enforcement    Enforcement    `yaml:"enforcement,omitempty" json:"enforcement"`
	Engine         string         `yaml:"engine" json:"engine"`
	Params         map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Scope          []string       `yaml:"scope,omitempty" json:"scope,omitempty"`
	Exclusions     []string       `yaml:"exclusions,omitempty" json:"exclusions,omitempty"`
	SourcePolicyID string         `yaml:"-" json:"source_policy_id,omitempty"`
}

// ApplyDefaults fills absent attributes per the rule contract:
// authority defaults to policy, enforcement to error, scope to all files.
func (r *PolicyRule) ApplyDefaults() {
	if r.Authority == "" {
		r.Authority = AuthorityPolicy
	}
	if r.Enforcement == "" {
		r.Enforcement = EnforcementError
	}
	if len(r.Scope) == 0 {
		r.Scope = []string{"**/*"}
	}
}

// Validate rejects rules that must never reach the orchestrator.
func (r *PolicyRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if r.Engine == "" {
		return fmt.Errorf("rule %q has no engine", r.ID)
	}
	switch r.Authority {
	case AuthorityConstitution, AuthorityPolicy:
	default:
		return fmt.Errorf("rule %q: unknown authority %q", r.ID, r.Authority)
	}
	switch r.Enforcement {
	case EnforcementError, EnforcementWarning:
	default:
		return fmt.Errorf("rule %q: unknown enforcement %q", r.ID, r.Enforcement)
	}
	return nil
}

// ExecutableRule resolved rule ready for dispatch; immutable per run
type ExecutableRule struct {
	PolicyRule

	// IsContextLevel is true for engines that evaluate the whole
	// repository context instead of one file at a time. Inferred from
	// the engine identifier at extraction time.
	IsContextLevel bool `json:"is_context_level"`

	// DeclOrder is the rule's position in declaration order across all
	// loaded documents, used for deterministic output ordering.
	DeclOrder int `json:"-"`
}

// PolicyDocument one parsed policy file
type PolicyDocument struct {
	Name       string            `yaml:"name"`
	Version    string            `yaml:"version,omitempty"`
	Authority  AuthorityTier     `yaml:"authority,omitempty"`
	Rules      []PolicyRule      `yaml:"rules"`
	Governance *GovernancePolicy `yaml:"governance,omitempty"`

	// EntryPoints overrides the default entry-point allowlist when set.
	EntryPoints []string `yaml:"entry_points,omitempty"`
}
