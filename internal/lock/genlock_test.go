package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "gen")
	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	if got := l.Path(); got != filepath.Join(dir, FileName) {
		t.Fatalf("Path() = %q", got)
	}
	if pid := Holder(dir); pid != os.Getpid() {
		t.Fatalf("Holder() = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireHeldElsewhere(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// flock locks belong to the open file description, so a second open
	// in the same process conflicts.
	if _, err := Acquire(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire error = %v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = second.Release()
}

func TestReleaseNil(t *testing.T) {
	t.Parallel()

	var l *GenLock
	if err := l.Release(); err != nil {
		t.Fatalf("nil Release: %v", err)
	}
}

func TestAcquireEmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := Acquire(""); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
