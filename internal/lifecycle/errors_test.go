package lifecycle

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfUnwraps(t *testing.T) {
	base := NewError(CodeNotInShift, "an active shift is required")
	wrapped := fmt.Errorf("transition rejected: %w", base)

	if got := CodeOf(wrapped); got != CodeNotInShift {
		t.Fatalf("CodeOf = %q, want %q", got, CodeNotInShift)
	}
	if !IsCode(wrapped, CodeNotInShift) {
		t.Fatal("IsCode must match through wrapping")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != "" {
		t.Fatalf("CodeOf = %q, want empty", got)
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(CodeInvalidTransition, "cannot move from %s to %s", "DONE", "NEW")
	want := "INVALID_TRANSITION: cannot move from DONE to NEW"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
