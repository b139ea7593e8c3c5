package execguard

import (
	"fmt"
	"path/filepath"
)

// Verdict is the classification outcome for a proposed command.
type Verdict string

const (
	// VerdictSafe: the command matched a rule and writes no files.
	VerdictSafe Verdict = "safe"

	// VerdictMatch: the command matched a rule but targets at least one
	// writeable path; the caller must judge the write locations.
	VerdictMatch Verdict = "match"

	// VerdictForbidden: the command must not run.
	VerdictForbidden Verdict = "forbidden"

	// VerdictUnverified: no rule covers this command.
	VerdictUnverified Verdict = "unverified"
)

// ForbiddenCause describes which rule forbade a command.
type ForbiddenCause struct {
	Program string   `json:"program"`
	Prefix  []string `json:"prefix,omitempty"`
	// Dominant is the risk dimension that triggered the forbidden rule at
	// compile time, empty for hand-authored rules.
	Dominant string  `json:"dominant,omitempty"`
	Risk     float64 `json:"risk,omitempty"`
}

// Classification is the result of evaluating a structured command against a
// RuleSet. Exactly one of the four verdicts is set; Match is populated for
// safe and match results, Reason and Cause for forbidden results.
type Classification struct {
	Result Verdict         `json:"result"`
	Match  *MatchInfo      `json:"match,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Cause  *ForbiddenCause `json:"cause,omitempty"`
}

// Classify evaluates a structured command against the rule set.
//
// Rule resolution tries the exact program name first, then any rule whose
// system_path aliases contain the program, so a binary invoked by absolute
// path resolves to the same rule as its short name. Rules for the same
// program are tried in compiled order (longest prefix first); the first
// rule whose prefix matches wins.
//
// Evaluation is forbidden-first: a forbidden rule wins unconditionally.
// Otherwise positional arguments are annotated from the rule's type table;
// the verdict is match if any argument is tagged WriteableFile, safe
// otherwise. A command resolving to no rule is unverified.
func (rs *RuleSet) Classify(cmd *StructuredCommand) Classification {
	rule, ok := rs.resolve(cmd)
	if !ok {
		return Classification{Result: VerdictUnverified}
	}

	if rule.Forbidden != "" {
		return Classification{
			Result: VerdictForbidden,
			Reason: rule.Forbidden,
			Cause:  rs.causeFor(rule),
		}
	}

	info := &MatchInfo{
		Program:    rule.Program,
		Flags:      append([]Flag{}, cmd.Flags...),
		Opts:       append([]Opt{}, cmd.Opts...),
		Args:       make([]Arg, len(cmd.Args)),
		SystemPath: append([]string{}, rule.SystemPath...),
	}
	writes := false
	for i, a := range cmd.Args {
		a.Type = rule.argType(i, len(cmd.Args))
		info.Args[i] = a
		if a.Type == ArgTypeWriteableFile {
			writes = true
		}
	}

	if writes {
		return Classification{Result: VerdictMatch, Match: info}
	}
	return Classification{Result: VerdictSafe, Match: info}
}

// resolve finds the first rule matching the command, or false if none.
func (rs *RuleSet) resolve(cmd *StructuredCommand) (*Rule, bool) {
	indices := rs.byProgram[cmd.Program]
	if len(indices) == 0 && filepath.IsAbs(cmd.Program) {
		// Absolute invocations of a known short name fall back to the
		// basename when no alias entry covers the exact path.
		indices = rs.byProgram[filepath.Base(cmd.Program)]
	}
	for _, i := range indices {
		if rs.rules[i].matchesPrefix(cmd.Args) {
			return &rs.rules[i], true
		}
	}
	return nil, false
}

// causeFor builds the ForbiddenCause reported alongside a forbidden verdict.
func (rs *RuleSet) causeFor(rule *Rule) *ForbiddenCause {
	cause := &ForbiddenCause{
		Program: rule.Program,
		Prefix:  append([]string{}, rule.Prefix...),
	}
	if rule.Dominant != "" {
		cause.Dominant = rule.Dominant
		cause.Risk = rule.DominantRisk
	}
	return cause
}

// validateExamples checks every rule's ShouldMatch and ShouldNotMatch
// argument vectors against the evaluator. A ShouldMatch vector must resolve
// to its rule; a ShouldNotMatch vector must not.
func (rs *RuleSet) validateExamples() error {
	for i := range rs.rules {
		rule := &rs.rules[i]
		for _, argv := range rule.ShouldMatch {
			cmd, err := Tokenize(argv)
			if err != nil {
				return fmt.Errorf("rule %q: should_match %v: %w", rule.Program, argv, err)
			}
			got, ok := rs.resolve(cmd)
			if !ok || got != rule {
				return fmt.Errorf("rule %q: should_match example %v did not resolve to it", rule.Program, argv)
			}
		}
		for _, argv := range rule.ShouldNotMatch {
			cmd, err := Tokenize(argv)
			if err != nil {
				return fmt.Errorf("rule %q: should_not_match %v: %w", rule.Program, argv, err)
			}
			if got, ok := rs.resolve(cmd); ok && got == rule {
				return fmt.Errorf("rule %q: should_not_match example %v resolved to it", rule.Program, argv)
			}
		}
	}
	return nil
}
