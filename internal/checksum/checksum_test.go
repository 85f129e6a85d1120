package checksum

import "testing"

func TestEqual(t *testing.T) {
	d := Sum([]byte(`{"GEN":["1"]}`))
	if len(d) != 64 {
		t.Fatalf("digest length = %d", len(d))
	}
	if !Equal([]byte(`{"GEN":["1"]}`), d) {
		t.Error("same content should match")
	}
	if Equal([]byte(`{"GEN":["2"]}`), d) {
		t.Error("different content matched")
	}
	if Equal(nil, "") {
		t.Error("empty digest must never match")
	}
}
