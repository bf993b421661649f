package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"libconv/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProcess, "transcode", "run", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProcess) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcode", "run", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected io marker by default, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindClassification(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrRevert, "revert", "restore", "", nil), "revert"},
		{services.Wrap(services.ErrSpawn, "backup", "start", "", nil), "spawn"},
		{services.Wrap(services.ErrProbe, "probe", "", "", nil), "probe"},
		{fmt.Errorf("outer: %w", services.ErrSchema), "schema"},
		{errors.New("plain"), "unknown"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestRequiresAcknowledgement(t *testing.T) {
	if !services.RequiresAcknowledgement(services.Wrap(services.ErrRevert, "", "", "", nil)) {
		t.Fatal("expected revert errors to require acknowledgement")
	}
	if services.RequiresAcknowledgement(services.Wrap(services.ErrProbe, "", "", "", nil)) {
		t.Fatal("probe errors should not block the run")
	}
}
