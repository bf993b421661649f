package runlock_test

import (
	"errors"
	"path/filepath"
	"testing"

	"libconv/internal/runlock"
)

func TestAcquireExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "work", ".libconv.lock")
	first, err := runlock.Acquire(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := runlock.Acquire(path); !errors.Is(err, runlock.ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	second, err := runlock.Acquire(path)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = second.Release()
}

func TestReleaseNilLock(t *testing.T) {
	var lock *runlock.Lock
	if err := lock.Release(); err != nil {
		t.Fatalf("expected nil lock release to succeed, got %v", err)
	}
}
