package serialize

import (
	"bytes"
	"testing"
)

func TestTupleRoundTrip(t *testing.T) {
	a := []byte("alpha")
	b := []byte("b")
	c := []byte("gamma-tail")

	buf := Tuple(a, b, c)
	parts, err := DeserTuple(buf, 3)
	if err != nil {
		t.Fatalf("DeserTuple failed: %v", err)
	}
	for i, want := range [][]byte{a, b, c} {
		if !bytes.Equal(parts[i], want) {
			t.Errorf("field %d: got %q, want %q", i, parts[i], want)
		}
	}
}

func TestTupleArityOne(t *testing.T) {
	buf := Tuple([]byte("solo"))
	parts, err := DeserTuple(buf, 1)
	if err != nil {
		t.Fatalf("DeserTuple failed: %v", err)
	}
	if !bytes.Equal(parts[0], []byte("solo")) {
		t.Errorf("got %q, want %q", parts[0], "solo")
	}
}

func TestVectorRoundTrip(t *testing.T) {
	items := [][]byte{[]byte("one"), {}, []byte("three")}
	buf := Vector(items)
	got, err := DeserVector(buf)
	if err != nil {
		t.Fatalf("DeserVector failed: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	for i := range items {
		if !bytes.Equal(got[i], items[i]) {
			t.Errorf("item %d: got %q, want %q", i, got[i], items[i])
		}
	}
}

func TestVectorEmpty(t *testing.T) {
	got, err := DeserVector(Vector(nil))
	if err != nil {
		t.Fatalf("DeserVector failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d items, want 0", len(got))
	}
}

func TestStringRoundTrip(t *testing.T) {
	s := "configuration-hash-label"
	got, err := DeserString(String(s))
	if err != nil {
		t.Fatalf("DeserString failed: %v", err)
	}
	if got != s {
		t.Errorf("got %q, want %q", got, s)
	}
}

func TestUint32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 24, 0xffffffff} {
		got, err := DeserUint32(Uint32(v))
		if err != nil {
			t.Fatalf("DeserUint32(%d) failed: %v", v, err)
		}
		if got != v {
			t.Errorf("got %d, want %d", got, v)
		}
	}
}

func fixed4(v uint32) []byte { return Uint32(v) }

func unfixed4(b []byte) (uint32, error) { return DeserUint32(b) }

func TestLargeVectorRoundTrip(t *testing.T) {
	n := 600 // spans multiple parallel.ChunkSize chunks
	items := make([]uint32, n)
	for i := range items {
		items[i] = uint32(i * 7)
	}

	buf := LargeVector(items, 4, fixed4)
	got, err := DeserLargeVector(buf, 4, unfixed4)
	if err != nil {
		t.Fatalf("DeserLargeVector failed: %v", err)
	}
	if len(got) != n {
		t.Fatalf("got %d items, want %d", len(got), n)
	}
	for i := range items {
		if got[i] != items[i] {
			t.Errorf("item %d: got %d, want %d", i, got[i], items[i])
		}
	}
}

func TestLargeVectorEmpty(t *testing.T) {
	buf := LargeVector[uint32](nil, 4, fixed4)
	got, err := DeserLargeVector(buf, 4, unfixed4)
	if err != nil {
		t.Fatalf("DeserLargeVector failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d items, want 0", len(got))
	}
}

func TestLargeVectorRejectsBadChunkSize(t *testing.T) {
	buf := LargeVector([]uint32{1, 2, 3}, 4, fixed4)
	buf = append(buf, 0) // corrupt: one extra byte
	if _, err := DeserLargeVector(buf, 4, unfixed4); err == nil {
		t.Errorf("expected error for misaligned LargeVector buffer")
	}
}
