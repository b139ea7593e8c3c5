package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveRelative(t *testing.T) {
	dir := t.TempDir()
	got, err := Resolve(dir, "notes.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(dir, "notes.txt")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveNonexistentKeepsCleanPath(t *testing.T) {
	dir := t.TempDir()
	got, err := Resolve(dir, "a/../b/./c")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(dir, "b", "c")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveSymlinkInsideBoundary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privilege on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve("", link)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		t.Fatal(err)
	}
	if got != resolved {
		t.Errorf("got %q, want %q", got, resolved)
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privilege on windows")
	}
	outside := t.TempDir()
	dir := t.TempDir()
	inner := filepath.Join(dir, "inner")
	if err := os.Mkdir(inner, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(inner, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatal(err)
	}

	if _, err := Resolve("", link); err == nil {
		t.Error("expected boundary error for symlink pointing outside its directory")
	}
}

func TestEscapesBoundary(t *testing.T) {
	tests := []struct {
		name     string
		original string
		resolved string
		want     bool
	}{
		{"same directory", "/home/user/link", "/home/user/real", false},
		{"subdirectory", "/home/user/link", "/home/user/sub/real", false},
		{"resolves to boundary itself", "/home/user/link", "/home/user", false},
		{"parent escape", "/home/user/link", "/home/real", true},
		{"unrelated tree", "/home/user/link", "/etc/passwd", true},
		{"root boundary", "/tmp", "/private/tmp", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapesBoundary(tt.original, tt.resolved); got != tt.want {
				t.Errorf("EscapesBoundary(%q, %q) = %v, want %v", tt.original, tt.resolved, got, tt.want)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		root string
		path string
		want bool
	}{
		{"/srv/box", "/srv/box", true},
		{"/srv/box", "/srv/box/work/out.txt", true},
		{"/srv/box", "/srv/boxes/file", false},
		{"/srv/box", "/srv", false},
		{"/srv/box", "/etc/passwd", false},
	}
	for _, tt := range tests {
		if got := IsWithin(tt.root, tt.path); got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.root, tt.path, got, tt.want)
		}
	}
}

func TestHasParentEscape(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"work/out.txt", false},
		{"..", true},
		{"work/../../etc", true},
		{"work/..hidden", false},
		{"./work", false},
	}
	for _, tt := range tests {
		if got := HasParentEscape(tt.path); got != tt.want {
			t.Errorf("HasParentEscape(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
