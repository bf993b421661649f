package convert

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestPromptOperatorConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"maybe\nno\n", false},
		{"\n\ny\n", true},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		op := NewPromptOperator(strings.NewReader(tt.input), &out)
		got, err := op.Confirm(context.Background(), "Publish 3 converted files")
		if err != nil {
			t.Fatalf("Confirm(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Publish 3 converted files (Y|N)? ") {
			t.Fatalf("unexpected prompt %q", out.String())
		}
	}
}

func TestPromptOperatorAcknowledge(t *testing.T) {
	var out bytes.Buffer
	op := NewPromptOperator(strings.NewReader("\n"), &out)
	if err := op.Acknowledge(context.Background(), "File 3 failed"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !strings.Contains(out.String(), "File 3 failed") {
		t.Fatalf("message not shown: %q", out.String())
	}
}

func TestOperatorForUnattended(t *testing.T) {
	op := OperatorFor(nil, &bytes.Buffer{}, false)
	ok, err := op.Confirm(context.Background(), "publish")
	if err != nil || ok {
		t.Fatalf("non-interactive operator must decline, got %v, %v", ok, err)
	}
}
