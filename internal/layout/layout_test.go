package layout

import (
	"errors"
	"testing"
)

func TestLayoutOffsets(t *testing.T) {
	var l Layout
	h := l.Add("header", 8)
	o := l.Add("objects", 16)
	e := l.Add("empty", 0)
	m := l.Add("materials", 12)

	if h.Offset != 0 || o.Offset != 8 || e.Offset != 24 || m.Offset != 24 {
		t.Fatalf("offsets = %d %d %d %d", h.Offset, o.Offset, e.Offset, m.Offset)
	}
	if l.Size() != 36 {
		t.Errorf("Size() = %d, want 36", l.Size())
	}
	if got, ok := l.Lookup("objects"); !ok || got != o {
		t.Errorf("Lookup(objects) = %v, %v", got, ok)
	}
	if _, ok := l.Lookup("nope"); ok {
		t.Error("Lookup(nope) succeeded")
	}
}

func TestWriterExactFill(t *testing.T) {
	var l Layout
	l.Add("pad", 2)
	s := l.Add("data", 3)
	b := New(&l)

	w := b.Writer(s)
	w.Put(1, 2)
	if w.Offset() != 4 {
		t.Errorf("Offset() = %d, want 4", w.Offset())
	}
	w.Put(3)
	if err := w.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	want := []float32{0, 0, 1, 2, 3}
	for i, v := range want {
		if b.Data()[i] != v {
			t.Fatalf("data = %v, want %v", b.Data(), want)
		}
	}
}

func TestWriterMismatch(t *testing.T) {
	tests := []struct {
		name string
		puts [][]float32
	}{
		{"overflow", [][]float32{{1, 2}, {3, 4}}},
		{"underflow", [][]float32{{1}}},
		{"overflow then fits", [][]float32{{1, 2, 3, 4}, {1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Layout
			s := l.Add("s", 3)
			b := New(&l)
			w := b.Writer(s)
			for _, p := range tt.puts {
				w.Put(p...)
			}
			if err := w.Err(); !errors.Is(err, ErrCountMismatch) {
				t.Fatalf("Err() = %v, want ErrCountMismatch", err)
			}
		})
	}
}

func TestSetGetBounds(t *testing.T) {
	var l Layout
	l.Add("a", 2)
	s := l.Add("b", 2)
	b := New(&l)

	if err := b.Set(s, 1, 7); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := b.Get(s, 1); err != nil || v != 7 {
		t.Fatalf("Get = %v, %v", v, err)
	}
	if err := b.Set(s, 2, 1); !errors.Is(err, ErrCountMismatch) {
		t.Errorf("Set past end = %v", err)
	}
	if _, err := b.Get(s, -1); !errors.Is(err, ErrCountMismatch) {
		t.Errorf("Get(-1) = %v", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	in := []float32{0, 1.5, -2, 3.25e6}
	out := Decode(Encode(in))
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("Decode(Encode(%v)) = %v", in, out)
		}
	}
	if p := Encode([]float32{1}); p[3] != 0x3f || p[2] != 0x80 {
		t.Errorf("Encode(1) = % x, want little-endian 0x3f800000", p)
	}
}

func TestClone(t *testing.T) {
	var l Layout
	s := l.Add("s", 1)
	b := New(&l)
	c := b.Clone()
	_ = c.Set(s, 0, 5)
	if b.Data()[0] != 0 {
		t.Error("Clone shares backing data")
	}
}
