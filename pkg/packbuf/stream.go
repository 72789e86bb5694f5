package packbuf

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// Writer packs values onto a stream.
type Writer struct {
	w       *bufio.Writer
	scratch [8]byte
	n       int64
	err     error
}

// NewWriter returns a Writer that buffers writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	w.err = err
}

// PutInt32 writes a big-endian int32.
func (w *Writer) PutInt32(v int32) {
	binary.BigEndian.PutUint32(w.scratch[:4], uint32(v))
	w.write(w.scratch[:4])
}

// PutInt64 writes a big-endian int64.
func (w *Writer) PutInt64(v int64) {
	binary.BigEndian.PutUint64(w.scratch[:8], uint64(v))
	w.write(w.scratch[:8])
}

// PutFloat64 writes a float64.
func (w *Writer) PutFloat64(v float64) {
	binary.BigEndian.PutUint64(w.scratch[:8], math.Float64bits(v))
	w.write(w.scratch[:8])
}

// PutBytes writes an int32 length followed by p.
func (w *Writer) PutBytes(p []byte) {
	w.PutInt32(int32(len(p)))
	w.write(p)
}

// Flush flushes buffered data and returns the first error seen.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

// Written returns the number of bytes accepted so far.
func (w *Writer) Written() int64 { return w.n }

// Err returns the first error seen.
func (w *Writer) Err() error { return w.err }

// Reader unpacks values from a stream.
type Reader struct {
	r       *bufio.Reader
	scratch [8]byte
	err     error
}

// NewReader returns a buffered Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) read(n int) []byte {
	if r.err != nil {
		return nil
	}
	if _, err := io.ReadFull(r.r, r.scratch[:n]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return nil
	}
	return r.scratch[:n]
}

// Int32 reads an int32. It returns 0 once an error has occurred.
func (r *Reader) Int32() int32 {
	p := r.read(4)
	if p == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(p))
}

// Int64 reads an int64.
func (r *Reader) Int64() int64 {
	p := r.read(8)
	if p == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(p))
}

// Float64 reads a float64.
func (r *Reader) Float64() float64 {
	p := r.read(8)
	if p == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p))
}

// Bytes reads a length-prefixed byte slice.
func (r *Reader) Bytes() []byte {
	n := r.Int32()
	if r.err != nil {
		return nil
	}
	if n < 0 {
		r.err = ErrCorrupt
		return nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r.r, out); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return nil
	}
	return out
}

// Err returns the first error seen.
func (r *Reader) Err() error { return r.err }
