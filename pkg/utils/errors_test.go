package utils

import (
	"errors"
	"testing"
)

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(cause, "loading program")
	if wrapped == nil {
		t.Fatal("expected non-nil wrapped error")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected wrapped error to unwrap to cause, got %v", wrapped)
	}
	const want = "loading program: boom"
	if wrapped.Error() != want {
		t.Fatalf("expected message %q, got %q", want, wrapped.Error())
	}
}
