package execguard

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ArgType is the semantic tag applied to a positional command argument,
// indicating how the caller should treat it.
type ArgType int

const (
	// ArgTypeLiteral marks an argument with no filesystem significance.
	// It is the zero value, so untagged arguments default to Literal.
	ArgTypeLiteral ArgType = iota

	// ArgTypeReadableFile marks an argument as a path read by the command.
	ArgTypeReadableFile

	// ArgTypeWriteableFile marks an argument as a path the command may
	// create, modify, or delete.
	ArgTypeWriteableFile
)

// String returns the wire representation of an ArgType.
func (t ArgType) String() string {
	switch t {
	case ArgTypeLiteral:
		return "Literal"
	case ArgTypeReadableFile:
		return "ReadableFile"
	case ArgTypeWriteableFile:
		return "WriteableFile"
	default:
		return "unknown"
	}
}

// parseArgType converts a wire string into an ArgType.
func parseArgType(s string) (ArgType, error) {
	switch s {
	case "Literal":
		return ArgTypeLiteral, nil
	case "ReadableFile":
		return ArgTypeReadableFile, nil
	case "WriteableFile":
		return ArgTypeWriteableFile, nil
	default:
		return 0, fmt.Errorf("unknown argument type %q", s)
	}
}

// MarshalJSON encodes the ArgType as its wire string.
func (t ArgType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an ArgType from its wire string.
func (t *ArgType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := parseArgType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML encodes the ArgType as its wire string.
func (t ArgType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML decodes an ArgType from its wire string.
func (t *ArgType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := parseArgType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Rule is one declarative classification rule. A rule matches a structured
// command when the program (or one of its SystemPath aliases) matches and
// the leading positional arguments equal Prefix, if any.
type Rule struct {
	// Program is the short program name this rule applies to.
	Program string `yaml:"program" json:"program"`

	// SystemPath lists alternative absolute locations for the binary, so
	// an invocation by absolute path resolves to the same rule.
	SystemPath []string `yaml:"system_path,omitempty" json:"system_path,omitempty"`

	// Prefix lists literal leading positional arguments required for this
	// rule to match (e.g. ["deploy"] for a rule about "applied deploy").
	Prefix []string `yaml:"prefix,omitempty" json:"prefix,omitempty"`

	// ArgTypes maps positional-argument index to a semantic tag.
	ArgTypes map[int]ArgType `yaml:"arg_types,omitempty" json:"arg_types,omitempty"`

	// DefaultArgType tags positions not present in ArgTypes.
	DefaultArgType ArgType `yaml:"default_arg_type,omitempty" json:"default_arg_type,omitempty"`

	// LastArgType, when nonzero, tags the final positional argument.
	// It takes precedence over DefaultArgType, letting variadic commands
	// like cp mark only their destination as writeable.
	LastArgType ArgType `yaml:"last_arg_type,omitempty" json:"last_arg_type,omitempty"`

	// Forbidden, when non-empty, is the reason this command must never
	// run. A forbidden rule wins over all argument-level reasoning.
	Forbidden string `yaml:"forbidden,omitempty" json:"forbidden,omitempty"`

	// ShouldMatch and ShouldNotMatch are literal example argument vectors
	// used to validate the rule at compile time.
	ShouldMatch    [][]string `yaml:"should_match,omitempty" json:"should_match,omitempty"`
	ShouldNotMatch [][]string `yaml:"should_not_match,omitempty" json:"should_not_match,omitempty"`

	// Dominant and DominantRisk record which risk dimension tripped the
	// forbidden threshold during compilation, serialized so a loaded
	// policy reports the same forbidden cause as a freshly compiled one.
	// Hand-authored rules leave them empty.
	Dominant     string  `yaml:"dominant,omitempty" json:"dominant,omitempty"`
	DominantRisk float64 `yaml:"dominant_risk,omitempty" json:"dominant_risk,omitempty"`
}

// argType resolves the tag for positional index i out of n arguments.
func (r *Rule) argType(i, n int) ArgType {
	if t, ok := r.ArgTypes[i]; ok {
		return t
	}
	if r.LastArgType != ArgTypeLiteral && i == n-1 {
		return r.LastArgType
	}
	return r.DefaultArgType
}

// matchesPrefix reports whether the positional arguments start with the
// rule's required literal prefix.
func (r *Rule) matchesPrefix(args []Arg) bool {
	if len(r.Prefix) > len(args) {
		return false
	}
	for i, want := range r.Prefix {
		if args[i].Value != want {
			return false
		}
	}
	return true
}

// Flag is a bare flag token of a structured command (e.g. "-l").
type Flag struct {
	Name string `json:"name"`
}

// Opt is an option with an attached value (e.g. "--mode=fast").
type Opt struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Arg is a positional argument, optionally tagged with a semantic type.
type Arg struct {
	Index int     `json:"index"`
	Type  ArgType `json:"type"`
	Value string  `json:"value"`
}

// MatchInfo is the full structured match reported for safe and match
// verdicts, including per-argument types and system_path alternatives.
type MatchInfo struct {
	Program    string   `json:"program"`
	Flags      []Flag   `json:"flags"`
	Opts       []Opt    `json:"opts"`
	Args       []Arg    `json:"args"`
	SystemPath []string `json:"system_path"`
}

// RuleSet is the immutable, ordered compilation output: forbidden and
// specific rules first, one generic fallback rule, and the configured
// forbidden-risk threshold. A RuleSet is never mutated after Compile; the
// Watcher replaces it atomically on reload.
type RuleSet struct {
	rules     []Rule
	byProgram map[string][]int
	fallback  Rule
	threshold float64
}

// newRuleSet builds the program index over an ordered rule list. Rules for
// the same program keep list order; each SystemPath alias indexes the same
// rule.
func newRuleSet(rules []Rule, fallback Rule, threshold float64) *RuleSet {
	rs := &RuleSet{
		rules:     rules,
		byProgram: make(map[string][]int),
		fallback:  fallback,
		threshold: threshold,
	}
	for i, r := range rules {
		rs.byProgram[r.Program] = append(rs.byProgram[r.Program], i)
		for _, alias := range r.SystemPath {
			rs.byProgram[alias] = append(rs.byProgram[alias], i)
		}
	}
	return rs
}

// Rules returns a copy of the ordered rule list.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Threshold returns the configured forbidden-risk threshold.
func (rs *RuleSet) Threshold() float64 {
	return rs.threshold
}

// Len returns the number of rules, excluding the fallback.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// policyDocument is the serialized form of a RuleSet.
type policyDocument struct {
	Threshold float64 `yaml:"threshold"`
	Rules     []Rule  `yaml:"rules"`
	Fallback  Rule    `yaml:"fallback"`
}

// Encode serializes the RuleSet to canonical YAML. Compiling twice from
// identical input yields byte-identical output, enabling reproducible
// audits and regression tests.
func (rs *RuleSet) Encode() ([]byte, error) {
	doc := policyDocument{
		Threshold: rs.threshold,
		Rules:     rs.rules,
		Fallback:  rs.fallback,
	}
	return yaml.Marshal(&doc)
}

// LoadPolicy reads a precompiled policy document. Any failure is a
// PolicyLoadError: a process must refuse to run with a partial policy.
func LoadPolicy(data []byte, source string) (*RuleSet, error) {
	var doc policyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &PolicyLoadError{Source: source, Reason: err.Error()}
	}
	if doc.Threshold <= 0.0 || doc.Threshold > 1.0 {
		return nil, &PolicyLoadError{Source: source, Reason: fmt.Sprintf("threshold %v outside (0.0, 1.0]", doc.Threshold)}
	}
	for _, r := range doc.Rules {
		if r.Program == "" {
			return nil, &PolicyLoadError{Source: source, Reason: "rule with empty program"}
		}
	}
	rs := newRuleSet(doc.Rules, doc.Fallback, doc.Threshold)
	if err := rs.validateExamples(); err != nil {
		return nil, &PolicyLoadError{Source: source, Reason: err.Error()}
	}
	return rs, nil
}

// sortRules orders rules deterministically: forbidden rules first, then by
// program name, then longer (more specific) prefixes first.
func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		fi, fj := rules[i].Forbidden != "", rules[j].Forbidden != ""
		if fi != fj {
			return fi
		}
		if rules[i].Program != rules[j].Program {
			return rules[i].Program < rules[j].Program
		}
		return len(rules[i].Prefix) > len(rules[j].Prefix)
	})
}
