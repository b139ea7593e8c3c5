package execguard

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// Shell identifies the shell dialect a threat record applies to.
type Shell string

const (
	ShellBash       Shell = "bash"
	ShellCmd        Shell = "cmd"
	ShellPowerShell Shell = "powershell"
)

// ParseShell converts a string into a Shell, rejecting unknown values.
func ParseShell(s string) (Shell, error) {
	switch Shell(s) {
	case ShellBash, ShellCmd, ShellPowerShell:
		return Shell(s), nil
	default:
		return "", fmt.Errorf("unknown shell %q", s)
	}
}

// RiskVector holds the five risk dimensions of a threat record or an
// aggregated invocation. Every dimension lies in [0.0, 1.0].
type RiskVector struct {
	SystemDamage        float64 `json:"system_damage" yaml:"system_damage"`
	DataLoss            float64 `json:"data_loss" yaml:"data_loss"`
	PrivilegeEscalation float64 `json:"privilege_escalation" yaml:"privilege_escalation"`
	DenialOfService     float64 `json:"denial_of_service" yaml:"denial_of_service"`
	CodeInjection       float64 `json:"code_injection" yaml:"code_injection"`
}

// riskDimensionNames are the human-readable dimension names, in column order.
var riskDimensionNames = [5]string{
	"System Damage",
	"Data Loss",
	"Privilege Escalation",
	"Denial of Service",
	"Code Injection",
}

// values returns the dimensions in column order.
func (v RiskVector) values() [5]float64 {
	return [5]float64{
		v.SystemDamage,
		v.DataLoss,
		v.PrivilegeEscalation,
		v.DenialOfService,
		v.CodeInjection,
	}
}

// Max returns the per-dimension maximum of v and o. Risk combination uses
// max rather than average so one high-risk option is never diluted by
// unrelated low-risk options.
func (v RiskVector) Max(o RiskVector) RiskVector {
	m := func(a, b float64) float64 {
		if a >= b {
			return a
		}
		return b
	}
	return RiskVector{
		SystemDamage:        m(v.SystemDamage, o.SystemDamage),
		DataLoss:            m(v.DataLoss, o.DataLoss),
		PrivilegeEscalation: m(v.PrivilegeEscalation, o.PrivilegeEscalation),
		DenialOfService:     m(v.DenialOfService, o.DenialOfService),
		CodeInjection:       m(v.CodeInjection, o.CodeInjection),
	}
}

// Dominant returns the name and value of the highest-valued dimension.
// Ties resolve to the earliest column, keeping the result deterministic.
func (v RiskVector) Dominant() (string, float64) {
	vals := v.values()
	best := 0
	for i := 1; i < len(vals); i++ {
		if vals[i] > vals[best] {
			best = i
		}
	}
	return riskDimensionNames[best], vals[best]
}

// AnyAtLeast reports whether any dimension is >= threshold.
func (v RiskVector) AnyAtLeast(threshold float64) bool {
	for _, val := range v.values() {
		if val >= threshold {
			return true
		}
	}
	return false
}

// validate checks that every dimension lies in [0.0, 1.0].
func (v RiskVector) validate() error {
	for i, val := range v.values() {
		if val < 0.0 || val > 1.0 {
			return fmt.Errorf("%s risk %v outside [0.0, 1.0]", riskDimensionNames[i], val)
		}
	}
	return nil
}

// ThreatRecord is one row of the threat database. An empty Argument denotes
// the baseline (no-option) case for the command. Records are uniquely keyed
// by (Shell, Command, Argument).
type ThreatRecord struct {
	Shell    Shell
	Command  string
	Argument string
	Risk     RiskVector
}

// threatKey uniquely identifies a ThreatRecord.
type threatKey struct {
	shell    Shell
	command  string
	argument string
}

// CommandKey identifies a distinct (shell, command) pair in the database.
type CommandKey struct {
	Shell   Shell
	Command string
}

// threatDBHeader is the required CSV header, in order.
var threatDBHeader = []string{
	"shell", "command", "argument",
	"system_damage", "data_loss", "privilege_escalation",
	"denial_of_service", "code_injection",
}

// ThreatDatabase is an immutable collection of threat records loaded from a
// tabular source. Reloading produces a new instance; a loaded database is
// never mutated.
type ThreatDatabase struct {
	byCommand map[CommandKey][]ThreatRecord
	commands  []CommandKey
}

// LoadThreatDB parses a CSV threat database from r. The first row must be
// the exact header. It fails with a MalformedRowError on the first row with
// a wrong column count, an unknown shell, a non-numeric risk value, a risk
// value outside [0.0, 1.0], or a duplicate (shell, command, argument) key.
func LoadThreatDB(r io.Reader) (*ThreatDatabase, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // column count checked per row for better errors

	header, err := cr.Read()
	if err != nil {
		return nil, &MalformedRowError{Line: 1, Reason: fmt.Sprintf("cannot read header: %v", err)}
	}
	if len(header) != len(threatDBHeader) {
		return nil, &MalformedRowError{Line: 1, Reason: fmt.Sprintf("expected %d header columns, got %d", len(threatDBHeader), len(header))}
	}
	for i, want := range threatDBHeader {
		if header[i] != want {
			return nil, &MalformedRowError{Line: 1, Reason: fmt.Sprintf("header column %d is %q, want %q", i, header[i], want)}
		}
	}

	db := &ThreatDatabase{byCommand: make(map[CommandKey][]ThreatRecord)}
	seen := make(map[threatKey]struct{})
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &MalformedRowError{Line: line, Reason: err.Error()}
		}
		if len(row) != len(threatDBHeader) {
			return nil, &MalformedRowError{Line: line, Reason: fmt.Sprintf("expected %d columns, got %d", len(threatDBHeader), len(row))}
		}

		shell, err := ParseShell(row[0])
		if err != nil {
			return nil, &MalformedRowError{Line: line, Reason: err.Error()}
		}
		if row[1] == "" {
			return nil, &MalformedRowError{Line: line, Reason: "empty command"}
		}

		var risk RiskVector
		dims := []*float64{
			&risk.SystemDamage, &risk.DataLoss, &risk.PrivilegeEscalation,
			&risk.DenialOfService, &risk.CodeInjection,
		}
		for i, dst := range dims {
			val, err := strconv.ParseFloat(row[3+i], 64)
			if err != nil {
				return nil, &MalformedRowError{Line: line, Reason: fmt.Sprintf("column %q: %v", threatDBHeader[3+i], err)}
			}
			*dst = val
		}
		if err := risk.validate(); err != nil {
			return nil, &MalformedRowError{Line: line, Reason: err.Error()}
		}

		rec := ThreatRecord{Shell: shell, Command: row[1], Argument: row[2], Risk: risk}
		key := threatKey{shell: shell, command: rec.Command, argument: rec.Argument}
		if _, dup := seen[key]; dup {
			return nil, &MalformedRowError{Line: line, Reason: fmt.Sprintf("duplicate record for (%s, %s, %q)", shell, rec.Command, rec.Argument)}
		}
		seen[key] = struct{}{}

		ck := CommandKey{Shell: shell, Command: rec.Command}
		if _, ok := db.byCommand[ck]; !ok {
			db.commands = append(db.commands, ck)
		}
		db.byCommand[ck] = append(db.byCommand[ck], rec)
	}

	// Baseline record first, argument-specific records in source order after.
	for ck, recs := range db.byCommand {
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].Argument == "" && recs[j].Argument != ""
		})
		db.byCommand[ck] = recs
	}
	sort.Slice(db.commands, func(i, j int) bool {
		if db.commands[i].Shell != db.commands[j].Shell {
			return db.commands[i].Shell < db.commands[j].Shell
		}
		return db.commands[i].Command < db.commands[j].Command
	})

	return db, nil
}

// LoadThreatDBFile loads a threat database from a CSV file on disk.
func LoadThreatDBFile(path string) (*ThreatDatabase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening threat database: %w", err)
	}
	defer f.Close()
	return LoadThreatDB(f)
}

// Lookup returns the records for (shell, command): the baseline record
// first, then argument-specific records in source order. The returned slice
// must not be mutated.
func (db *ThreatDatabase) Lookup(shell Shell, command string) []ThreatRecord {
	return db.byCommand[CommandKey{Shell: shell, Command: command}]
}

// Commands returns the distinct (shell, command) pairs in the database,
// sorted for deterministic iteration.
func (db *ThreatDatabase) Commands() []CommandKey {
	out := make([]CommandKey, len(db.commands))
	copy(out, db.commands)
	return out
}

// Len returns the number of distinct (shell, command) pairs.
func (db *ThreatDatabase) Len() int {
	return len(db.commands)
}
