package packbuf

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

func TestBuffer_PackUnpack(t *testing.T) {
	b := New(4)
	b.PutFloat64(-12.5)
	b.PutInt32(7)
	b.PutInt64(1 << 40)
	b.PutBytes([]byte("blob"))
	b.PutBytes(nil)

	if b.Len() != 8+4+8+4+4+4 {
		t.Fatalf("Len = %d, want 32", b.Len())
	}
	if b.Cap() < b.Len() {
		t.Fatalf("Cap = %d < Len = %d", b.Cap(), b.Len())
	}

	r := FromBytes(b.Bytes())
	f, err := r.ReadFloat64()
	if err != nil || f != -12.5 {
		t.Fatalf("ReadFloat64 = %v, %v", f, err)
	}
	i32, err := r.ReadInt32()
	if err != nil || i32 != 7 {
		t.Fatalf("ReadInt32 = %v, %v", i32, err)
	}
	i64, err := r.ReadInt64()
	if err != nil || i64 != 1<<40 {
		t.Fatalf("ReadInt64 = %v, %v", i64, err)
	}
	p, err := r.ReadBytes()
	if err != nil || string(p) != "blob" {
		t.Fatalf("ReadBytes = %q, %v", p, err)
	}
	p, err = r.ReadBytes()
	if err != nil || len(p) != 0 {
		t.Fatalf("ReadBytes(empty) = %q, %v", p, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", r.Remaining())
	}
	if _, err := r.ReadInt32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadInt32 past end err = %v, want ErrUnexpectedEOF", err)
	}
}

func TestBuffer_ResizeNeverShrinks(t *testing.T) {
	b := New(16)
	b.PutInt32(3)

	if err := b.Resize(64); err != nil {
		t.Fatalf("Resize(64): %v", err)
	}
	if b.Cap() != 64 {
		t.Fatalf("Cap = %d, want 64", b.Cap())
	}
	if b.Len() != 4 {
		t.Fatalf("Len after resize = %d, want 4", b.Len())
	}
	if err := b.Resize(8); !errors.Is(err, ErrShrink) {
		t.Fatalf("Resize(8) err = %v, want ErrShrink", err)
	}
}

func TestBuffer_LoadRespectsCapacity(t *testing.T) {
	b := New(4)
	if err := b.Load([]byte{1, 2, 3, 4, 5}); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Load err = %v, want ErrTooLarge", err)
	}
	if err := b.Resize(5); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := b.Load([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("Load after resize: %v", err)
	}
	if b.Remaining() != 5 {
		t.Fatalf("Remaining = %d, want 5", b.Remaining())
	}
}

func TestBuffer_NegativeLength(t *testing.T) {
	b := New(0)
	b.PutInt32(-1)
	if _, err := FromBytes(b.Bytes()).ReadBytes(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("ReadBytes err = %v, want ErrCorrupt", err)
	}
}

func TestStream_RoundTrip(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	w.PutFloat64(math.Inf(1))
	w.PutInt32(-3)
	w.PutInt64(99)
	w.PutBytes([]byte{0xde, 0xad})
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if w.Written() != int64(out.Len()) {
		t.Fatalf("Written = %d, want %d", w.Written(), out.Len())
	}

	r := NewReader(&out)
	if v := r.Float64(); !math.IsInf(v, 1) {
		t.Fatalf("Float64 = %v, want +Inf", v)
	}
	if v := r.Int32(); v != -3 {
		t.Fatalf("Int32 = %d, want -3", v)
	}
	if v := r.Int64(); v != 99 {
		t.Fatalf("Int64 = %d, want 99", v)
	}
	if v := r.Bytes(); !bytes.Equal(v, []byte{0xde, 0xad}) {
		t.Fatalf("Bytes = %x", v)
	}
	if r.Err() != nil {
		t.Fatalf("Err = %v", r.Err())
	}
	_ = r.Int32()
	if !errors.Is(r.Err(), io.ErrUnexpectedEOF) {
		t.Fatalf("Err after end = %v, want ErrUnexpectedEOF", r.Err())
	}
}
