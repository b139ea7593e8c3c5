package execguard

import (
	"context"
	"errors"
	"testing"

	"github.com/sangderenard/execguard/sandbox"
)

func TestGuardApprove(t *testing.T) {
	w := newTestWatcher(t, sampleThreatCSV)

	tests := []struct {
		name       string
		argv       []string
		allowMatch bool
		approved   bool
		result     Verdict
	}{
		{"safe approved", []string{"ls", "notes.txt"}, false, true, VerdictSafe},
		{"match refused by default", []string{"cp", "a", "b"}, false, false, VerdictMatch},
		{"match approved when allowed", []string{"cp", "a", "b"}, true, true, VerdictMatch},
		{"forbidden never approved", []string{"mkfs", "/dev/sda1"}, true, false, VerdictForbidden},
		{"unverified never approved", []string{"xyzzy"}, true, false, VerdictUnverified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(w, WithAllowMatch(tt.allowMatch))
			res, err := g.Approve(tt.argv, "")
			if err != nil {
				t.Fatalf("Approve: %v", err)
			}
			if res.Approved != tt.approved {
				t.Errorf("approved: got %v, want %v", res.Approved, tt.approved)
			}
			if res.Classification.Result != tt.result {
				t.Errorf("result: got %v, want %v", res.Classification.Result, tt.result)
			}
		})
	}
}

func TestGuardExecute(t *testing.T) {
	w := newTestWatcher(t, sampleThreatCSV)
	g := NewGuard(w, WithBackend(sandbox.NewDummy()))

	res, err := g.Execute(context.Background(), sandbox.ExecRequest{
		Argv: []string{"ls", "notes.txt"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 0 || res.Stdout == "" {
		t.Errorf("got %+v", res)
	}
}

func TestGuardExecuteRefusesUnapproved(t *testing.T) {
	w := newTestWatcher(t, sampleThreatCSV)
	g := NewGuard(w, WithBackend(sandbox.NewDummy()))

	for _, argv := range [][]string{
		{"mkfs", "/dev/sda1"},
		{"cp", "a", "b"},
		{"xyzzy"},
	} {
		_, err := g.Execute(context.Background(), sandbox.ExecRequest{Argv: argv})
		if !errors.Is(err, ErrNotApproved) {
			t.Errorf("%v: error %v does not wrap ErrNotApproved", argv, err)
		}
	}
}

func TestDeclaredPaths(t *testing.T) {
	rs := compiledRules(t)
	c := classify(t, rs, "cp", "src1", "src2", "dest")

	paths := DeclaredPaths(c.Match, "/srv/agent")
	wantRO := []string{"src1", "src2"}
	wantRW := []string{"/srv/agent", "dest"}
	if len(paths.ReadOnly) != len(wantRO) {
		t.Fatalf("read-only: got %v, want %v", paths.ReadOnly, wantRO)
	}
	for i := range wantRO {
		if paths.ReadOnly[i] != wantRO[i] {
			t.Errorf("read-only: got %v, want %v", paths.ReadOnly, wantRO)
		}
	}
	if len(paths.Writable) != len(wantRW) {
		t.Fatalf("writable: got %v, want %v", paths.Writable, wantRW)
	}
	for i := range wantRW {
		if paths.Writable[i] != wantRW[i] {
			t.Errorf("writable: got %v, want %v", paths.Writable, wantRW)
		}
	}

	empty := DeclaredPaths(nil, "")
	if len(empty.ReadOnly) != 0 || len(empty.Writable) != 0 {
		t.Errorf("nil match: got %+v", empty)
	}
}
