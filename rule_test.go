package execguard

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestArgTypeJSON(t *testing.T) {
	data, err := json.Marshal(ArgTypeWriteableFile)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"WriteableFile"` {
		t.Errorf("got %s", data)
	}

	var back ArgType
	if err := json.Unmarshal([]byte(`"ReadableFile"`), &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != ArgTypeReadableFile {
		t.Errorf("got %v, want ReadableFile", back)
	}

	if err := json.Unmarshal([]byte(`"Executable"`), &back); err == nil {
		t.Error("unknown arg type should fail to decode")
	}
}

func TestRuleYAML(t *testing.T) {
	var rule Rule
	err := yaml.Unmarshal([]byte(`
program: cp
system_path: [/bin/cp]
default_arg_type: ReadableFile
last_arg_type: WriteableFile
`), &rule)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rule.Program != "cp" || rule.DefaultArgType != ArgTypeReadableFile || rule.LastArgType != ArgTypeWriteableFile {
		t.Errorf("got %+v", rule)
	}
}

func TestEncodeLoadPolicyRoundTrip(t *testing.T) {
	rs := compiledRules(t)
	data, err := rs.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	back, err := LoadPolicy(data, "roundtrip")
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if back.Len() != rs.Len() {
		t.Fatalf("rule count: got %d, want %d", back.Len(), rs.Len())
	}
	if back.Threshold() != rs.Threshold() {
		t.Errorf("threshold: got %v, want %v", back.Threshold(), rs.Threshold())
	}

	// The reloaded policy classifies identically.
	if c := classify(t, back, "mkfs", "/dev/sda1"); c.Result != VerdictForbidden {
		t.Errorf("mkfs after round trip: got %v, want forbidden", c.Result)
	}
	if c := classify(t, back, "ls", "notes.txt"); c.Result != VerdictSafe {
		t.Errorf("ls after round trip: got %v, want safe", c.Result)
	}
}

func TestPolicyRoundTripKeepsForbiddenCause(t *testing.T) {
	rs := compiledRules(t)
	data, err := rs.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := LoadPolicy(data, "roundtrip")
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}

	c := classify(t, back, "mkfs", "/dev/sda1")
	if c.Result != VerdictForbidden {
		t.Fatalf("got %v, want forbidden", c.Result)
	}
	if c.Cause == nil {
		t.Fatal("forbidden classification has no cause")
	}
	if c.Cause.Dominant != "System Damage" || c.Cause.Risk != 0.95 {
		t.Errorf("cause after round trip: got %+v, want System Damage at 0.95", c.Cause)
	}
}

func TestLoadPolicyErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", ":\t this is not yaml"},
		{"zero threshold", "threshold: 0\nrules: []\n"},
		{"threshold above one", "threshold: 1.5\nrules: []\n"},
		{"empty program", "threshold: 0.8\nrules:\n  - forbidden: nope\n"},
		{
			"failing example",
			"threshold: 0.8\nrules:\n  - program: applied\n    prefix: [deploy]\n    should_match:\n      - [applied, lint]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPolicy([]byte(tt.doc), tt.name)
			if !errors.Is(err, ErrPolicyLoad) {
				t.Errorf("error %v does not wrap ErrPolicyLoad", err)
			}
		})
	}
}

func TestSortRules(t *testing.T) {
	rules := []Rule{
		{Program: "zz"},
		{Program: "applied", Prefix: []string{"deploy"}},
		{Program: "applied", Prefix: []string{"deploy", "prod"}},
		{Program: "bb", Forbidden: "no"},
	}
	sortRules(rules)

	if rules[0].Program != "bb" {
		t.Errorf("forbidden rule should sort first, got %q", rules[0].Program)
	}
	if rules[1].Program != "applied" || len(rules[1].Prefix) != 2 {
		t.Errorf("longer prefix should sort ahead: %+v", rules[1])
	}
	if rules[3].Program != "zz" {
		t.Errorf("got %+v", rules[3])
	}
}
