// Package layout describes the packed float32 buffers shared between the
// program generator, the updater and the kernels.
//
// A Layout is a list of named, contiguous sections. Sizes are fixed when the
// layout is planned; every write is checked against its section so that a
// counting pass and a writing pass that disagree fail loudly instead of
// silently shifting offsets.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrCountMismatch is returned when a section receives more or fewer floats
// than were reserved for it.
var ErrCountMismatch = errors.New("layout: section size mismatch")

// Section is a reserved range of a buffer.
type Section struct {
	Name   string
	Offset int
	Len    int
}

// End returns the offset one past the last float of s.
func (s Section) End() int { return s.Offset + s.Len }

// Layout is an ordered set of sections.
type Layout struct {
	sections []Section
	size     int
}

// Add reserves n floats after the previous section.
func (l *Layout) Add(name string, n int) Section {
	if n < 0 {
		n = 0
	}
	s := Section{Name: name, Offset: l.size, Len: n}
	l.sections = append(l.sections, s)
	l.size += n
	return s
}

// Size returns the total number of floats.
func (l *Layout) Size() int { return l.size }

// Sections returns the sections in order.
func (l *Layout) Sections() []Section { return l.sections }

// Lookup returns the section with the given name.
func (l *Layout) Lookup(name string) (Section, bool) {
	for _, s := range l.sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Buffer is a float32 buffer laid out by a Layout.
type Buffer struct {
	layout *Layout
	data   []float32
}

// New allocates a zeroed buffer for l.
func New(l *Layout) *Buffer {
	return &Buffer{layout: l, data: make([]float32, l.size)}
}

// Layout returns the buffer's layout.
func (b *Buffer) Layout() *Layout { return b.layout }

// Data returns the backing slice.
func (b *Buffer) Data() []float32 { return b.data }

// Len returns the number of floats.
func (b *Buffer) Len() int { return len(b.data) }

// Set writes v at index i of s.
func (b *Buffer) Set(s Section, i int, v float32) error {
	if i < 0 || i >= s.Len {
		return fmt.Errorf("%w: %s[%d] outside %d floats", ErrCountMismatch, s.Name, i, s.Len)
	}
	b.data[s.Offset+i] = v
	return nil
}

// Get reads index i of s.
func (b *Buffer) Get(s Section, i int) (float32, error) {
	if i < 0 || i >= s.Len {
		return 0, fmt.Errorf("%w: %s[%d] outside %d floats", ErrCountMismatch, s.Name, i, s.Len)
	}
	return b.data[s.Offset+i], nil
}

// Writer returns a sequential writer for s.
func (b *Buffer) Writer(s Section) *Writer {
	return &Writer{buf: b, sec: s}
}

// Clone returns a deep copy sharing the layout.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{layout: b.layout, data: append([]float32(nil), b.data...)}
}

// Bytes encodes the buffer as little-endian IEEE 754 floats, the layout GPU
// storage buffers expect.
func (b *Buffer) Bytes() []byte { return Encode(b.data) }

// Encode converts floats to little-endian bytes.
func Encode(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

// Decode converts little-endian bytes to floats. Trailing bytes are ignored.
func Decode(p []byte) []float32 {
	out := make([]float32, len(p)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[4*i:]))
	}
	return out
}

// Writer appends floats to a section. Errors are sticky: after the first
// overflow further writes are dropped and Err reports the mismatch.
type Writer struct {
	buf *Buffer
	sec Section
	n   int
	err error
}

// Put appends floats.
func (w *Writer) Put(v ...float32) {
	if w.err != nil {
		return
	}
	if w.n+len(v) > w.sec.Len {
		w.err = fmt.Errorf("%w: %s overflows %d floats", ErrCountMismatch, w.sec.Name, w.sec.Len)
		return
	}
	copy(w.buf.data[w.sec.Offset+w.n:], v)
	w.n += len(v)
}

// Pos returns the number of floats written so far.
func (w *Writer) Pos() int { return w.n }

// Offset returns the absolute buffer offset of the next write.
func (w *Writer) Offset() int { return w.sec.Offset + w.n }

// Err reports an overflow, or an underflow if the section is not full.
func (w *Writer) Err() error {
	if w.err != nil {
		return w.err
	}
	if w.n != w.sec.Len {
		return fmt.Errorf("%w: %s got %d of %d floats", ErrCountMismatch, w.sec.Name, w.n, w.sec.Len)
	}
	return nil
}
