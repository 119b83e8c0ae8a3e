// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// SNIPPET TESTS
// =============================================================================

func TestSnippet_Short(t *testing.T) {
	if got := Snippet("hello world"); got != "hello world" {
		t.Errorf("Snippet = %q, want %q", got, "hello world")
	}
}

func TestSnippet_TrimsWhitespace(t *testing.T) {
	if got := Snippet("  hello  "); got != "hello" {
		t.Errorf("Snippet = %q, want %q", got, "hello")
	}
}

func TestSnippet_SquashesNewlines(t *testing.T) {
	got := Snippet("first line\r\nsecond line")
	if strings.ContainsAny(got, "\r\n") {
		t.Errorf("Snippet left newlines in %q", got)
	}
	if got != "first line second line" {
		t.Errorf("Snippet = %q, want %q", got, "first line second line")
	}
}

func TestSnippet_TruncatesWithEllipsis(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := Snippet(long)

	runes := []rune(got)
	if len(runes) != SnippetMax+1 {
		t.Errorf("Snippet length = %d runes, want %d", len(runes), SnippetMax+1)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("Snippet %q missing ellipsis marker", got)
	}
	if !strings.HasPrefix(long, strings.TrimSuffix(got, "…")) {
		t.Errorf("Snippet %q is not a prefix of the input", got)
	}
}

func TestSnippet_ExactBudgetNotTruncated(t *testing.T) {
	exact := strings.Repeat("b", SnippetMax)
	if got := Snippet(exact); got != exact {
		t.Errorf("Snippet = %q, want untruncated %q", got, exact)
	}
}

func TestSnippet_Unicode(t *testing.T) {
	long := strings.Repeat("é", 60)
	got := Snippet(long)
	if len([]rune(got)) != SnippetMax+1 {
		t.Errorf("Snippet rune length = %d, want %d", len([]rune(got)), SnippetMax+1)
	}
}

// =============================================================================
// TRUNCATE TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"abc", 3, "abc"},
		{"abcdef", 3, "abc"},
		{"abc", 0, ""},
		{"héllo wörld", 8, "héllo..."},
	}

	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.json")

	if err := AtomicWriteFile(path, []byte(`{"title":"x"}`), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"title":"x"}` {
		t.Errorf("content = %q", data)
	}
}

func TestAtomicWriteFile_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	if err := AtomicWriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("new"), 0644); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("content = %q, want %q", data, "new")
	}
}

func TestAtomicWriteFile_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := AtomicWriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file %q left behind", e.Name())
		}
	}
}
