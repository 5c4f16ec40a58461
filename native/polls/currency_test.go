package polls

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCurrency(t *testing.T) {
	for _, raw := range []string{"native", " NATIVE ", "asset:7"} {
		c, err := ParseCurrency(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		again, err := ParseCurrency(c.String())
		if err != nil || again != c {
			t.Fatalf("round trip %q: got %v, %v", raw, again, err)
		}
	}
	for _, raw := range []string{"", "asset:", "asset:-1", "asset:99999999999", "gold"} {
		if _, err := ParseCurrency(raw); !errors.Is(err, ErrInvalidPollCurrency) {
			t.Fatalf("expected currency error for %q, got %v", raw, err)
		}
	}
}

func TestClosurePayloadRoundTrip(t *testing.T) {
	payload, err := encodeClosure(Asset{ID: 12}, 34)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	c, id, err := decodeClosure(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c != (Asset{ID: 12}) || id != 34 {
		t.Fatalf("unexpected closure %v/%d", c, id)
	}
}

func TestStatusJSON(t *testing.T) {
	raw, err := json.Marshal(Finished(2, true, 10))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"kind":"finished","end":10,"winningOption":2}` {
		t.Fatalf("unexpected json %s", raw)
	}
	raw, err = json.Marshal(Cancelled(3))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"kind":"cancelled","at":3,"winningOption":null}` {
		t.Fatalf("unexpected json %s", raw)
	}

	var decoded Status
	if err := json.Unmarshal([]byte(`{"kind":"finished","end":10,"winningOption":null}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != Finished(0, false, 10) {
		t.Fatalf("unexpected status %+v", decoded)
	}
	if err := json.Unmarshal([]byte(`{"kind":"paused"}`), &decoded); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}
