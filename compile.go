package execguard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultForbiddenThreshold is the baseline risk at or above which the
// compiler emits a forbidden rule. Treated as configuration, not a
// constant of the design.
const DefaultForbiddenThreshold = 0.8

// CompileConfig controls policy compilation.
type CompileConfig struct {
	// ForbiddenThreshold is the risk level at or above which a command's
	// baseline marks it forbidden. Zero selects DefaultForbiddenThreshold.
	ForbiddenThreshold float64 `yaml:"forbidden_threshold"`

	// Overrides are hand-authored rules merged ahead of compiled rules,
	// preserving the ability to hand-write forbidden rules without an
	// embedded rule language.
	Overrides []Rule `yaml:"overrides"`
}

// DefaultCompileConfig returns a CompileConfig with the default threshold
// and no overrides.
func DefaultCompileConfig() CompileConfig {
	return CompileConfig{ForbiddenThreshold: DefaultForbiddenThreshold}
}

// fileArgSpec declares which positional arguments of a known program are
// filesystem paths, and where its binary usually lives.
type fileArgSpec struct {
	defaultArg ArgType
	lastArg    ArgType
	systemPath []string
}

// fileArgSpecs is the declared path metadata for common programs. Programs
// absent from this table compile to an untyped generic rule.
var fileArgSpecs = map[string]fileArgSpec{
	"ls":       {defaultArg: ArgTypeReadableFile, systemPath: []string{"/bin/ls", "/usr/bin/ls"}},
	"cat":      {defaultArg: ArgTypeReadableFile, systemPath: []string{"/bin/cat", "/usr/bin/cat"}},
	"head":     {defaultArg: ArgTypeReadableFile, systemPath: []string{"/usr/bin/head"}},
	"tail":     {defaultArg: ArgTypeReadableFile, systemPath: []string{"/usr/bin/tail"}},
	"wc":       {defaultArg: ArgTypeReadableFile, systemPath: []string{"/usr/bin/wc"}},
	"stat":     {defaultArg: ArgTypeReadableFile, systemPath: []string{"/usr/bin/stat"}},
	"file":     {defaultArg: ArgTypeReadableFile, systemPath: []string{"/usr/bin/file"}},
	"du":       {defaultArg: ArgTypeReadableFile, systemPath: []string{"/usr/bin/du"}},
	"cp":       {defaultArg: ArgTypeReadableFile, lastArg: ArgTypeWriteableFile, systemPath: []string{"/bin/cp", "/usr/bin/cp"}},
	"mv":       {defaultArg: ArgTypeReadableFile, lastArg: ArgTypeWriteableFile, systemPath: []string{"/bin/mv", "/usr/bin/mv"}},
	"install":  {defaultArg: ArgTypeReadableFile, lastArg: ArgTypeWriteableFile, systemPath: []string{"/usr/bin/install"}},
	"rm":       {defaultArg: ArgTypeWriteableFile, systemPath: []string{"/bin/rm", "/usr/bin/rm"}},
	"rmdir":    {defaultArg: ArgTypeWriteableFile, systemPath: []string{"/bin/rmdir", "/usr/bin/rmdir"}},
	"mkdir":    {defaultArg: ArgTypeWriteableFile, systemPath: []string{"/bin/mkdir", "/usr/bin/mkdir"}},
	"touch":    {defaultArg: ArgTypeWriteableFile, systemPath: []string{"/usr/bin/touch"}},
	"tee":      {defaultArg: ArgTypeWriteableFile, systemPath: []string{"/usr/bin/tee"}},
	"truncate": {defaultArg: ArgTypeWriteableFile, systemPath: []string{"/usr/bin/truncate"}},
}

// Compile turns a threat database into an immutable RuleSet.
//
// For each distinct command: if any baseline risk dimension is at or above
// the forbidden threshold, Compile emits a forbidden rule whose reason
// names the dominant dimension. Otherwise it emits a generic rule that
// accepts any arguments, tagged with declared path metadata when known.
// Hand-authored overrides are merged ahead of compiled rules; a compiled
// rule for a program that also has an override is dropped in favor of the
// override. Compilation is deterministic: identical inputs always yield a
// byte-identical RuleSet.
func Compile(db *ThreatDatabase, cfg CompileConfig) (*RuleSet, error) {
	threshold := cfg.ForbiddenThreshold
	if threshold == 0.0 {
		threshold = DefaultForbiddenThreshold
	}
	if threshold < 0.0 || threshold > 1.0 {
		return nil, &PolicyLoadError{Source: "compile config", Reason: fmt.Sprintf("forbidden threshold %v outside [0.0, 1.0]", threshold)}
	}

	overridden := make(map[string]bool, len(cfg.Overrides))
	rules := make([]Rule, 0, len(cfg.Overrides)+db.Len())
	for _, r := range cfg.Overrides {
		if r.Program == "" {
			return nil, &PolicyLoadError{Source: "overrides", Reason: "rule with empty program"}
		}
		rules = append(rules, r)
		overridden[r.Program] = true
	}

	// Commands() is sorted, so identical databases compile identically.
	// Baselines for a command appearing under several shells combine by
	// per-dimension max: the conservative reading wins.
	baselines := make(map[string]RiskVector)
	var order []string
	for _, ck := range db.Commands() {
		baseline, err := ScoreRisk(db, ck.Shell, ck.Command, nil)
		if err != nil {
			// Lookup on a key reported by Commands cannot be empty.
			return nil, err
		}
		if prev, ok := baselines[ck.Command]; ok {
			baselines[ck.Command] = prev.Max(baseline)
			continue
		}
		baselines[ck.Command] = baseline
		order = append(order, ck.Command)
	}

	for _, command := range order {
		if overridden[command] {
			continue
		}
		baseline := baselines[command]
		spec := fileArgSpecs[command]
		rule := Rule{
			Program:        command,
			SystemPath:     append([]string{}, spec.systemPath...),
			DefaultArgType: spec.defaultArg,
			LastArgType:    spec.lastArg,
		}
		if baseline.AnyAtLeast(threshold) {
			dominant, value := baseline.Dominant()
			rule.Forbidden = fmt.Sprintf("%s Risk: baseline risk %.2f for %q meets the forbidden threshold", dominant, value, command)
			rule.Dominant = dominant
			rule.DominantRisk = value
			// A forbidden command carries no argument typing.
			rule.DefaultArgType = ArgTypeLiteral
			rule.LastArgType = ArgTypeLiteral
		}
		rules = append(rules, rule)
	}

	sortRules(rules)
	fallback := Rule{Program: "*"}
	rs := newRuleSet(rules, fallback, threshold)
	if err := rs.validateExamples(); err != nil {
		return nil, &PolicyLoadError{Source: "compiled rule set", Reason: err.Error()}
	}
	return rs, nil
}

// LoadOverrides reads a hand-authored YAML rule list.
func LoadOverrides(data []byte, source string) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, &PolicyLoadError{Source: source, Reason: err.Error()}
	}
	for _, r := range rules {
		if r.Program == "" {
			return nil, &PolicyLoadError{Source: source, Reason: "override rule with empty program"}
		}
	}
	return rules, nil
}

// LoadOverridesFile reads a hand-authored YAML rule list from disk.
func LoadOverridesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PolicyLoadError{Source: path, Reason: err.Error()}
	}
	return LoadOverrides(data, path)
}
