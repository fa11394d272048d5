package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir())
}

func TestWriteRead(t *testing.T) {
	s := tempStore(t)
	data := []byte("manifest bytes")
	if err := s.Write("builds/v2/meta/ab/cd/abcd1234", data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("builds/v2/meta/ab/cd/abcd1234")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read = %q, want %q", got, data)
	}
}

func TestReadMissing(t *testing.T) {
	s := tempStore(t)
	if _, err := s.Read("chunks/ab/cd/abcd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read missing: want ErrNotFound, got %v", err)
	}
}

func TestWriteLeavesNoTemp(t *testing.T) {
	s := tempStore(t)
	if err := s.Write("a/b/c", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(s.Root(), "a", "b"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "c" {
		t.Errorf("destination dir should contain only the final file, got %v", entries)
	}
}

// Simulates a crash between the temp write and the rename: the final path
// must be either absent or fully equal to previously committed content.
func TestCrashBeforeRenameLeavesCommittedContent(t *testing.T) {
	s := tempStore(t)
	committed := []byte("committed")
	if err := s.Write("blobs/1/main.bin", committed); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// The would-be replacement never makes it past the temp file.
	dir := filepath.Join(s.Root(), "blobs", "1")
	if err := os.WriteFile(filepath.Join(dir, ".tmp-crash"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("seed temp: %v", err)
	}

	got, err := s.Read("blobs/1/main.bin")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, committed) {
		t.Errorf("final path content changed before rename: %q", got)
	}

	if err := s.RemoveStaleTemps(); err != nil {
		t.Fatalf("RemoveStaleTemps: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".tmp-crash")); !os.IsNotExist(err) {
		t.Error("stale temp should have been swept")
	}
	if !s.Exists("blobs/1/main.bin") {
		t.Error("sweep must not remove committed files")
	}
}

func TestVerify(t *testing.T) {
	s := tempStore(t)
	data := []byte("chunk payload")
	if err := s.Write("chunks/ab/cd/abcd", data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	md5sum, err := Hash(data, MD5)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if !s.Verify("chunks/ab/cd/abcd", int64(len(data)), md5sum, MD5) {
		t.Error("Verify should pass for matching size and hash")
	}
	if !s.Verify("chunks/ab/cd/abcd", int64(len(data)), "", MD5) {
		t.Error("Verify should pass with size only")
	}
	if s.Verify("chunks/ab/cd/abcd", int64(len(data))+1, md5sum, MD5) {
		t.Error("Verify should fail on size mismatch")
	}
	// Size matches but hash does not.
	wrong := "d41d8cd98f00b204e9800998ecf8427e"
	if s.Verify("chunks/ab/cd/abcd", int64(len(data)), wrong, MD5) {
		t.Error("Verify should fail on hash mismatch even when size matches")
	}
	if s.Verify("chunks/ab/cd/missing", -1, "", MD5) {
		t.Error("Verify of a missing file should be false, not an error")
	}
}

func TestVerifyHashCaseInsensitive(t *testing.T) {
	s := tempStore(t)
	data := []byte("payload")
	if err := s.Write("f", data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sum, _ := Hash(data, MD5)
	upper := []byte(sum)
	for i, c := range upper {
		if c >= 'a' && c <= 'f' {
			upper[i] = c - 'a' + 'A'
		}
	}
	if !s.Verify("f", -1, string(upper), MD5) {
		t.Error("hash comparison should be case-insensitive")
	}
}

func TestHashAlgorithms(t *testing.T) {
	data := []byte("hello world")
	for _, algo := range []Algorithm{MD5, SHA1, SHA256, BLAKE3} {
		h1, err := Hash(data, algo)
		if err != nil {
			t.Fatalf("Hash(%s): %v", algo, err)
		}
		h2, _ := Hash(data, algo)
		if h1 != h2 {
			t.Errorf("%s not deterministic", algo)
		}
	}
	// Known md5 for regression against the chunk-addressing digest.
	h, _ := Hash(data, MD5)
	if h != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("md5(hello world) = %q", h)
	}
	if _, err := Hash(data, Algorithm("crc32")); err == nil {
		t.Error("unknown algorithm should error")
	}
}

func TestWriteAtResumableWindows(t *testing.T) {
	s := tempStore(t)
	if err := s.WriteAt("big/blob.bin", 0, []byte("aaaa")); err != nil {
		t.Fatalf("WriteAt first window: %v", err)
	}
	if err := s.WriteAt("big/blob.bin", 4, []byte("bbbb")); err != nil {
		t.Fatalf("WriteAt second window: %v", err)
	}

	got, err := s.Read("big/blob.bin")
	if err != nil || string(got) != "aaaabbbb" {
		t.Fatalf("assembled blob = %q, err %v", got, err)
	}

	// Rewriting an existing window keeps the rest intact.
	if err := s.WriteAt("big/blob.bin", 0, []byte("cccc")); err != nil {
		t.Fatalf("WriteAt rewrite: %v", err)
	}
	got, _ = s.Read("big/blob.bin")
	if string(got) != "ccccbbbb" {
		t.Fatalf("after rewrite = %q", got)
	}
}

func TestReadAtWindow(t *testing.T) {
	s := tempStore(t)
	if err := s.Write("blob", []byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.ReadAt("blob", 3, 4)
	if err != nil || string(got) != "3456" {
		t.Fatalf("ReadAt = %q, err %v", got, err)
	}
	if _, err := s.ReadAt("missing", 0, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing file: %v", err)
	}
	if _, err := s.ReadAt("blob", 8, 4); err == nil {
		t.Fatal("window past the end should error")
	}
}
