package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "polls"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	pauses := Pauses{"polls": true}
	if err := Guard(pauses, "Polls"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected pause error, got %v", err)
	}
	if err := Guard(pauses, "ledger"); err != nil {
		t.Fatalf("unexpected error for unpaused module: %v", err)
	}
	if err := Guard(pauses, ""); err != nil {
		t.Fatalf("empty module must not block: %v", err)
	}
}
