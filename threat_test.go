package execguard

import (
	"errors"
	"strings"
	"testing"
)

const sampleThreatCSV = `shell,command,argument,system_damage,data_loss,privilege_escalation,denial_of_service,code_injection
bash,ls,,0.0,0.0,0.0,0.0,0.0
bash,ls,-R,0.0,0.0,0.0,0.1,0.0
bash,cp,,0.1,0.2,0.0,0.0,0.0
bash,rm,,0.2,0.6,0.0,0.0,0.0
bash,rm,-rf,0.3,0.95,0.1,0.2,0.0
bash,mkfs,,0.95,0.9,0.2,0.3,0.0
cmd,del,,0.1,0.55,0.0,0.0,0.0
`

func mustDB(t *testing.T, csv string) *ThreatDatabase {
	t.Helper()
	db, err := LoadThreatDB(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadThreatDB: %v", err)
	}
	return db
}

func TestLoadThreatDB(t *testing.T) {
	db := mustDB(t, sampleThreatCSV)

	if got, want := db.Len(), 5; got != want {
		t.Errorf("Len: got %d, want %d", got, want)
	}

	recs := db.Lookup(ShellBash, "rm")
	if len(recs) != 2 {
		t.Fatalf("Lookup(bash, rm): got %d records, want 2", len(recs))
	}
	if recs[0].Argument != "" {
		t.Errorf("baseline record should come first, got argument %q", recs[0].Argument)
	}
	if recs[1].Argument != "-rf" {
		t.Errorf("argument record: got %q, want -rf", recs[1].Argument)
	}
	if recs[1].Risk.DataLoss != 0.95 {
		t.Errorf("rm -rf data loss: got %v, want 0.95", recs[1].Risk.DataLoss)
	}

	if recs := db.Lookup(ShellCmd, "rm"); recs != nil {
		t.Errorf("Lookup(cmd, rm): got %d records, want none", len(recs))
	}
}

func TestLoadThreatDBCommandsSorted(t *testing.T) {
	db := mustDB(t, sampleThreatCSV)
	cmds := db.Commands()
	for i := 1; i < len(cmds); i++ {
		prev, cur := cmds[i-1], cmds[i]
		if prev.Shell > cur.Shell || (prev.Shell == cur.Shell && prev.Command > cur.Command) {
			t.Fatalf("Commands not sorted: %v before %v", prev, cur)
		}
	}
}

func TestLoadThreatDBErrors(t *testing.T) {
	const header = "shell,command,argument,system_damage,data_loss,privilege_escalation,denial_of_service,code_injection\n"

	tests := []struct {
		name string
		csv  string
		line int
	}{
		{"wrong header", "shell,command,argument\n", 1},
		{"misnamed header column", strings.Replace(header, "data_loss", "dataloss", 1), 1},
		{"short row", header + "bash,ls,,0.0\n", 2},
		{"unknown shell", header + "zsh,ls,,0.0,0.0,0.0,0.0,0.0\n", 2},
		{"empty command", header + "bash,,,0.0,0.0,0.0,0.0,0.0\n", 2},
		{"non-numeric risk", header + "bash,ls,,low,0.0,0.0,0.0,0.0\n", 2},
		{"risk above one", header + "bash,ls,,1.5,0.0,0.0,0.0,0.0\n", 2},
		{"negative risk", header + "bash,ls,,-0.1,0.0,0.0,0.0,0.0\n", 2},
		{
			"duplicate key",
			header + "bash,ls,,0.0,0.0,0.0,0.0,0.0\nbash,ls,,0.1,0.0,0.0,0.0,0.0\n",
			3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadThreatDB(strings.NewReader(tt.csv))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformedRow) {
				t.Fatalf("error %v does not wrap ErrMalformedRow", err)
			}
			var rowErr *MalformedRowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("error %v is not a MalformedRowError", err)
			}
			if rowErr.Line != tt.line {
				t.Errorf("line: got %d, want %d", rowErr.Line, tt.line)
			}
		})
	}
}

func TestLoadThreatDBFile(t *testing.T) {
	db, err := LoadThreatDBFile("testdata/threats.csv")
	if err != nil {
		t.Fatalf("LoadThreatDBFile: %v", err)
	}
	if db.Len() == 0 {
		t.Fatal("fixture database is empty")
	}
	recs := db.Lookup(ShellPowerShell, "Remove-Item")
	if len(recs) != 2 || recs[1].Argument != "-Recurse" {
		t.Errorf("Remove-Item records: got %+v", recs)
	}

	if _, err := LoadThreatDBFile("testdata/no-such-file.csv"); err == nil {
		t.Error("missing file should fail")
	}
}

func TestParseShell(t *testing.T) {
	for _, s := range []string{"bash", "cmd", "powershell"} {
		if _, err := ParseShell(s); err != nil {
			t.Errorf("ParseShell(%q): %v", s, err)
		}
	}
	if _, err := ParseShell("fish"); err == nil {
		t.Error("ParseShell(fish): expected error")
	}
}

func TestRiskVectorMax(t *testing.T) {
	a := RiskVector{SystemDamage: 0.9, DataLoss: 0.1}
	b := RiskVector{DataLoss: 0.5, CodeInjection: 0.2}
	got := a.Max(b)
	want := RiskVector{SystemDamage: 0.9, DataLoss: 0.5, CodeInjection: 0.2}
	if got != want {
		t.Errorf("Max: got %+v, want %+v", got, want)
	}
}

func TestRiskVectorDominant(t *testing.T) {
	tests := []struct {
		name  string
		v     RiskVector
		dim   string
		value float64
	}{
		{"single peak", RiskVector{DataLoss: 0.7, DenialOfService: 0.3}, "Data Loss", 0.7},
		{"tie resolves to earliest column", RiskVector{SystemDamage: 0.5, CodeInjection: 0.5}, "System Damage", 0.5},
		{"all zero", RiskVector{}, "System Damage", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dim, value := tt.v.Dominant()
			if dim != tt.dim || value != tt.value {
				t.Errorf("Dominant: got (%q, %v), want (%q, %v)", dim, value, tt.dim, tt.value)
			}
		})
	}
}

func TestRiskVectorAnyAtLeast(t *testing.T) {
	v := RiskVector{PrivilegeEscalation: 0.8}
	if !v.AnyAtLeast(0.8) {
		t.Error("AnyAtLeast(0.8): got false, want true")
	}
	if v.AnyAtLeast(0.81) {
		t.Error("AnyAtLeast(0.81): got true, want false")
	}
}
