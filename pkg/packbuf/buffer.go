package packbuf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrShrink is returned when Resize is asked for less capacity than the
	// buffer already has.
	ErrShrink = errors.New("packbuf: shrink not allowed")

	// ErrTooLarge is returned when data does not fit the buffer capacity.
	ErrTooLarge = errors.New("packbuf: data exceeds buffer capacity")

	// ErrCorrupt is returned when a length prefix is negative.
	ErrCorrupt = errors.New("packbuf: corrupt length prefix")
)

// MaxBlobSize bounds a single length-prefixed blob.
const MaxBlobSize = math.MaxInt32

// Buffer is a growable pack/unpack buffer.
type Buffer struct {
	data []byte
	off  int
}

// New returns an empty buffer with the given capacity.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// FromBytes wraps b for unpacking. The buffer takes ownership of b.
func FromBytes(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Len returns the logical length.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.off }

// Bytes returns the packed bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Reset empties the buffer but keeps its capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.off = 0
}

// Resize grows the capacity to exactly n bytes. Packed contents are kept.
func (b *Buffer) Resize(n int) error {
	if n < cap(b.data) {
		return fmt.Errorf("%w: have %d, asked %d", ErrShrink, cap(b.data), n)
	}
	if n == cap(b.data) {
		return nil
	}
	grown := make([]byte, len(b.data), n)
	copy(grown, b.data)
	b.data = grown
	return nil
}

// Load replaces the contents with a copy of p and rewinds the read cursor.
// It fails with ErrTooLarge if p does not fit the current capacity.
func (b *Buffer) Load(p []byte) error {
	if len(p) > cap(b.data) {
		return fmt.Errorf("%w: %d > %d", ErrTooLarge, len(p), cap(b.data))
	}
	b.data = b.data[:len(p)]
	copy(b.data, p)
	b.off = 0
	return nil
}

func (b *Buffer) grow(n int) []byte {
	l := len(b.data)
	if l+n > cap(b.data) {
		c := 2*cap(b.data) + n
		grown := make([]byte, l, c)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = b.data[:l+n]
	return b.data[l:]
}

// PutInt32 packs a big-endian int32.
func (b *Buffer) PutInt32(v int32) {
	binary.BigEndian.PutUint32(b.grow(4), uint32(v))
}

// PutUint32 packs a big-endian uint32.
func (b *Buffer) PutUint32(v uint32) {
	binary.BigEndian.PutUint32(b.grow(4), v)
}

// PutInt64 packs a big-endian int64.
func (b *Buffer) PutInt64(v int64) {
	binary.BigEndian.PutUint64(b.grow(8), uint64(v))
}

// PutFloat64 packs an IEEE-754 float64.
func (b *Buffer) PutFloat64(v float64) {
	binary.BigEndian.PutUint64(b.grow(8), math.Float64bits(v))
}

// PutBytes packs an int32 length followed by p.
func (b *Buffer) PutBytes(p []byte) {
	b.PutInt32(int32(len(p)))
	copy(b.grow(len(p)), p)
}

// PutRaw appends p without a length prefix.
func (b *Buffer) PutRaw(p []byte) {
	copy(b.grow(len(p)), p)
}

func (b *Buffer) next(n int) ([]byte, error) {
	if b.Remaining() < n {
		return nil, io.ErrUnexpectedEOF
	}
	p := b.data[b.off : b.off+n]
	b.off += n
	return p, nil
}

// ReadInt32 unpacks an int32.
func (b *Buffer) ReadInt32() (int32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(p)), nil
}

// ReadUint32 unpacks a uint32.
func (b *Buffer) ReadUint32() (uint32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

// ReadInt64 unpacks an int64.
func (b *Buffer) ReadInt64() (int64, error) {
	p, err := b.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(p)), nil
}

// ReadFloat64 unpacks a float64.
func (b *Buffer) ReadFloat64() (float64, error) {
	p, err := b.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
}

// ReadBytes unpacks a length-prefixed byte slice. The result is a copy.
func (b *Buffer) ReadBytes() ([]byte, error) {
	n, err := b.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrCorrupt
	}
	p, err := b.next(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}
