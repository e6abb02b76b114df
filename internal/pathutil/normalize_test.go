package pathutil

import (
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"/srv/data/":     "/srv/data",
		"/srv/./data/..": "/srv",
		"rel/dir/":       "rel/dir",
	}
	for in, want := range cases {
		if got := Normalize(in); got != filepath.FromSlash(want) {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTilde(t *testing.T) {
	home := filepath.FromSlash("/home/alice")
	cases := []struct {
		in, want string
	}{
		{"/home/alice", "~"},
		{"/home/alice/docs/x", "~/docs/x"},
		{"/home/alicia/docs", "/home/alicia/docs"},
		{"/srv", "/srv"},
	}
	for _, tc := range cases {
		got := Tilde(filepath.FromSlash(tc.in), home)
		if got != filepath.FromSlash(tc.want) {
			t.Fatalf("Tilde(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := Tilde("/x", ""); got != "/x" {
		t.Fatalf("empty home should not change paths, got %q", got)
	}
}

func TestWithin(t *testing.T) {
	if !Within("/a/b/c", "/a/b") || !Within("/a/b", "/a/b/") {
		t.Fatalf("expected nested paths to be within")
	}
	if Within("/a/bc", "/a/b") {
		t.Fatalf("shared prefix is not containment")
	}
	if !Within("/etc", "/") {
		t.Fatalf("everything is within the filesystem root")
	}
}
