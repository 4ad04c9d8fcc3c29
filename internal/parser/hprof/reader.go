package hprof

import (
	"encoding/binary"
	"fmt"
)

// Reader is a cursor over an immutable byte buffer. All numeric reads are
// big-endian. Reader is a value type: copying it snapshots the cursor, which
// is how independent parse passes share one buffer without interfering.
type Reader struct {
	data []byte
	off  int
}

// NewReader creates a Reader over data starting at offset zero.
func NewReader(data []byte) Reader {
	return Reader{data: data}
}

// Pos returns the current read offset.
func (r *Reader) Pos() int {
	return r.off
}

// Len returns the declared size of the underlying range.
func (r *Reader) Len() int {
	return len(r.data)
}

// EOF reports whether the cursor has reached the declared size.
func (r *Reader) EOF() bool {
	return r.off == len(r.data)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) ensure(n int) error {
	if n < 0 || r.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrOutOfBounds, n, r.off, len(r.data))
	}
	return nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.ensure(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	if err := r.ensure(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if err := r.ensure(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// U64 reads a big-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.ensure(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

// I32 reads a big-endian int32.
func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// ID reads width bytes, interprets them as a big-endian integer and
// zero-extends the result to 64 bits. Identifier widths above 8 are invalid.
func (r *Reader) ID(width int) (uint64, error) {
	if width > 8 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidWidth, width)
	}
	if err := r.ensure(width); err != nil {
		return 0, err
	}
	var v uint64
	for _, b := range r.data[r.off : r.off+width] {
		v = v<<8 | uint64(b)
	}
	r.off += width
	return v, nil
}

// Skip advances the cursor by n bytes and returns the skipped bytes as a
// sub-slice of the underlying buffer. The view stays valid for as long as the
// buffer does; nothing is copied.
func (r *Reader) Skip(n int) ([]byte, error) {
	if err := r.ensure(n); err != nil {
		return nil, err
	}
	view := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return view, nil
}

// Sub returns a bounded Reader over the next n bytes without advancing the
// cursor. Used to wrap record bodies so that handlers cannot read past the
// declared body size.
func (r *Reader) Sub(n int) (Reader, error) {
	if err := r.ensure(n); err != nil {
		return Reader{}, err
	}
	return Reader{data: r.data[r.off : r.off+n : r.off+n]}, nil
}
