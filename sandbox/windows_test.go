//go:build windows

package sandbox

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestRestrictedShellRunCleansTree(t *testing.T) {
	b := NewCmdRestricted()
	if !b.Available() {
		t.Skip("cmd.exe not on PATH")
	}
	if err := b.Prepare(""); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	root := b.root
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("sandbox tree missing after Prepare: %v", err)
	}

	res, err := b.Run(context.Background(), ExecRequest{Argv: []string{"echo", "hello"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", res.ExitCode)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("sandbox tree %s not removed after Run", root)
	}
	if b.root != "" {
		t.Errorf("root still set after Run: %q", b.root)
	}
}

func TestRestrictedShellRejectsParentEscape(t *testing.T) {
	b := NewCmdRestricted()
	if !b.Available() {
		t.Skip("cmd.exe not on PATH")
	}
	if err := b.Prepare(""); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	root := b.root

	_, err := b.Run(context.Background(), ExecRequest{Argv: []string{"type", `..\secrets.txt`}})
	if !errors.Is(err, ErrConfinementSetup) {
		t.Errorf("error %v does not wrap ErrConfinementSetup", err)
	}
	// Rejection still consumes the tree.
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("sandbox tree %s not removed after rejected Run", root)
	}
}

func TestPrepareMissingAccountCleansTree(t *testing.T) {
	b := NewCmdRestricted()
	b.Account = "execguard-no-such-account-4f9c"

	if err := b.Prepare(""); err == nil {
		t.Fatal("expected error for a missing account")
	}
	if b.root != "" {
		t.Errorf("root still set after failed Prepare: %q", b.root)
	}
}

func TestJoinWindowsCommand(t *testing.T) {
	tests := []struct {
		argv []string
		want string
	}{
		{[]string{"echo", "hello"}, "echo hello"},
		{[]string{"type", "my file.txt"}, `type "my file.txt"`},
		{[]string{"echo", `say "hi"`}, `echo "say \"hi\""`},
		{[]string{"echo", ""}, `echo ""`},
	}
	for _, tt := range tests {
		if got := joinWindowsCommand(tt.argv); got != tt.want {
			t.Errorf("joinWindowsCommand(%v) = %q, want %q", tt.argv, got, tt.want)
		}
	}
}
