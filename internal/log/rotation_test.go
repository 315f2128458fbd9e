package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRotatingFile_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wire.log")
	rf, err := NewRotatingFile(path, 10, 2)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	defer rf.Close()

	for _, line := range []string{"first\n", "second\n", "third\n", "fourth\n"} {
		if _, err := rf.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	if got := readFile(t, path); got != "fourth\n" {
		t.Errorf("current = %q", got)
	}
	if got := readFile(t, path+".1"); got != "third\n" {
		t.Errorf("backup 1 = %q", got)
	}
	if got := readFile(t, path+".2"); got != "second\n" {
		t.Errorf("backup 2 = %q", got)
	}
	if _, err := os.Stat(path + ".3"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("backup 3 exists: %v", err)
	}
}

func TestRotatingFile_LargeWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wire.log")
	rf, err := NewRotatingFile(path, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()

	big := strings.Repeat("x", 16)
	if _, err := rf.Write([]byte(big)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := readFile(t, path); got != big {
		t.Errorf("oversized write split or dropped: %q", got)
	}
}

func TestRotatingFile_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wire.log")
	rf, err := NewRotatingFile(path, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("mode = %o, want 600", perm)
	}
	if rf.maxSize != DefaultMaxSize || rf.maxBackups != DefaultMaxBackups {
		t.Errorf("defaults not applied: %d/%d", rf.maxSize, rf.maxBackups)
	}
}

func TestRotatingFile_Close(t *testing.T) {
	rf, err := NewRotatingFile(filepath.Join(t.TempDir(), "wire.log"), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := rf.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rf.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := rf.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
}
