package events

import (
	"math/big"
	"testing"
)

func TestBufferKeepsOnlyPayloadEvents(t *testing.T) {
	var buf Buffer
	buf.Emit(Transfer{Currency: " NATIVE ", Amount: big.NewInt(5)})
	buf.Emit(bareEvent{})
	buf.Emit(nil)
	if buf.Len() != 1 {
		t.Fatalf("expected 1 buffered event, got %d", buf.Len())
	}
	drained := buf.Drain()
	if len(drained) != 1 || buf.Len() != 0 {
		t.Fatalf("drain did not empty buffer")
	}
	evt := drained[0]
	if evt.Type != TypeTransfer {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["currency"] != "native" || evt.Attributes["amount"] != "5" {
		t.Fatalf("unexpected attributes %v", evt.Attributes)
	}
}

func TestBufferReset(t *testing.T) {
	var buf Buffer
	buf.Emit(AssetIssued{AssetID: 3, Amount: big.NewInt(1)})
	buf.Reset()
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer after reset")
	}
}

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }
