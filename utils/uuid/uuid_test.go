package uuid

import "testing"

func TestUUID(t *testing.T) {
	ider := NewUUID()
	a, b := ider.ID(), ider.ID()
	if a == "" || b == "" {
		t.Error("empty ID")
	}
	if a == b {
		t.Error("IDs not unique")
	}
}

func TestSequentialIDs(t *testing.T) {
	ider := NewSequentialIDs("one", "two")
	if want, have := "one", ider.ID(); want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}
	if want, have := "two", ider.ID(); want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic after exhaustion")
		}
	}()
	ider.ID()
}
