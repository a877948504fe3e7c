package fileutils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBackupFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "state.json")

	backed, err := BackupFile(src)
	if err != nil {
		t.Fatalf("backup missing src: %v", err)
	}
	if backed {
		t.Fatalf("expected backed=false for missing src")
	}

	if err := os.WriteFile(src, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if backed, err = BackupFile(src); err != nil || !backed {
		t.Fatalf("backup: backed=%v err=%v", backed, err)
	}

	if err := os.WriteFile(src, []byte("v2"), 0o644); err != nil {
		t.Fatalf("write src2: %v", err)
	}
	if _, err := BackupFile(src); err != nil {
		t.Fatalf("backup overwrite: %v", err)
	}
	b, err := os.ReadFile(src + ".bak")
	if err != nil {
		t.Fatalf("read bak: %v", err)
	}
	if string(b) != "v2" {
		t.Fatalf("bak=%q", string(b))
	}
}

func TestWriteAndReadJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	var missing map[string]int
	found, err := ReadJSONFile(path, &missing)
	if err != nil || found {
		t.Fatalf("missing file: found=%v err=%v", found, err)
	}

	in := map[string]int{"a": 1, "b": 2}
	if err := WriteJSONFileAtomic(path, in, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out map[string]int
	found, err = ReadJSONFile(path, &out)
	if err != nil || !found {
		t.Fatalf("read: found=%v err=%v", found, err)
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Fatalf("out=%v", out)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestReadJSONFile_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var v map[string]any
	found, err := ReadJSONFile(path, &v)
	if !found || err == nil {
		t.Fatalf("found=%v err=%v, want decode error", found, err)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("  hello  ", 10); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello…" {
		t.Fatalf("got %q", got)
	}
	// "é" is two bytes; cutting at 2 must not split it.
	if got := Truncate("aé", 2); got != "a…" {
		t.Fatalf("got %q", got)
	}
}

func TestSingleLine(t *testing.T) {
	t.Parallel()

	if got := SingleLine("a\r\nb\rc\nd"); got != `a\nb\nc\nd` {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeModelJSON(t *testing.T) {
	t.Parallel()

	type out struct {
		Answer string `json:"answer"`
	}

	var v out
	if err := DecodeModelJSON(`{"answer":"yes"}`, &v); err != nil || v.Answer != "yes" {
		t.Fatalf("plain: v=%+v err=%v", v, err)
	}

	v = out{}
	if err := DecodeModelJSON("Here you go:\n```json\n{\"answer\":\"fenced\"}\n```", &v); err != nil || v.Answer != "fenced" {
		t.Fatalf("fenced: v=%+v err=%v", v, err)
	}

	if err := DecodeModelJSON("   ", &v); err == nil {
		t.Fatalf("expected error for empty output")
	}
	if err := DecodeModelJSON("no object here", &v); err == nil {
		t.Fatalf("expected error for missing object")
	}
}
