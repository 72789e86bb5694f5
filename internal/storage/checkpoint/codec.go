package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/pkg/packbuf"
)

// Header holds the global scalars at the start of every file.
type Header struct {
	Incumbent float64
	Owner     int
	Counter   int64

	// Payload is the serialized incumbent. It is stored only in the
	// owner's file.
	Payload []byte
}

// Writer streams one checkpoint file. Sections must be written in file
// order: Header, Blob, subproblems, solutions. Nothing is visible under
// the final name until Commit succeeds.
type Writer struct {
	final string
	temp  string
	rank  int
	file  *os.File
	pw    *packbuf.Writer

	pending int
	records int64
}

// Create opens a writer for rank's file of checkpoint number in dir.
func Create(dir, problem string, number, rank int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, domain.ErrCheckpointIO.WithDetailsf("create dir %s", dir).WithCause(err)
	}
	name := FileName(problem, number, rank)
	w := &Writer{
		final: filepath.Join(dir, name),
		temp:  filepath.Join(dir, tempName(name)),
		rank:  rank,
	}
	f, err := os.Create(w.temp)
	if err != nil {
		return nil, domain.ErrCheckpointIO.WithDetailsf("create %s", w.temp).WithCause(err)
	}
	w.file = f
	w.pw = packbuf.NewWriter(f)
	return w, nil
}

// Path returns the final file path.
func (w *Writer) Path() string { return w.final }

// Header writes the global scalars. The payload is written only when this
// file's rank owns the incumbent.
func (w *Writer) Header(h Header) {
	w.pw.PutFloat64(h.Incumbent)
	w.pw.PutInt32(int32(h.Owner))
	w.pw.PutInt64(h.Counter)
	if h.Owner == w.rank {
		w.pw.PutBytes(h.Payload)
	}
}

// Blob writes the application blob.
func (w *Writer) Blob(b []byte) {
	w.pw.PutBytes(b)
}

// Section starts a counted section of n records.
func (w *Writer) Section(n int) error {
	if w.pending != 0 {
		return w.fail(fmt.Errorf("previous section short by %d records", w.pending))
	}
	w.pw.PutInt32(int32(n))
	w.pending = n
	return nil
}

// Record writes one record of the current section.
func (w *Writer) Record(b []byte) error {
	if w.pending == 0 {
		return w.fail(fmt.Errorf("record outside of a section"))
	}
	w.pw.PutBytes(b)
	w.pending--
	w.records++
	return nil
}

// Records returns the number of section records written so far.
func (w *Writer) Records() int64 { return w.records }

func (w *Writer) fail(err error) error {
	return domain.ErrCheckpointIO.WithDetailsf("write %s", w.final).WithCause(err)
}

// Commit flushes, syncs and closes the file and renames it into place. It
// returns the file size.
func (w *Writer) Commit() (int64, error) {
	defer os.Remove(w.temp)

	if w.pending != 0 {
		w.file.Close()
		return 0, w.fail(fmt.Errorf("section short by %d records", w.pending))
	}
	if err := w.pw.Flush(); err != nil {
		w.file.Close()
		return 0, w.fail(err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return 0, w.fail(fmt.Errorf("sync: %w", err))
	}
	if err := w.file.Close(); err != nil {
		return 0, w.fail(fmt.Errorf("close: %w", err))
	}
	size := w.pw.Written()
	if err := os.Rename(w.temp, w.final); err != nil {
		return 0, w.fail(fmt.Errorf("rename: %w", err))
	}
	return size, nil
}

// Abort discards the temporary file.
func (w *Writer) Abort() {
	w.file.Close()
	os.Remove(w.temp)
}

// Reader streams one checkpoint file in file order.
type Reader struct {
	path string
	rank int
	file *os.File
	pr   *packbuf.Reader
}

// Open opens the checkpoint file at path written by rank.
func Open(path string, rank int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.ErrCheckpointIO.WithDetailsf("open %s", path).WithCause(err)
	}
	return &Reader{
		path: path,
		rank: rank,
		file: f,
		pr:   packbuf.NewReader(f),
	}, nil
}

// Path returns the file path.
func (r *Reader) Path() string { return r.path }

func (r *Reader) fail(what string) error {
	err := r.pr.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return domain.ErrCheckpointIO.WithDetailsf("read %s: %s", r.path, what).WithCause(err)
}

// Header reads the global scalars, including the payload when this file's
// rank owned the incumbent.
func (r *Reader) Header() (Header, error) {
	var h Header
	h.Incumbent = r.pr.Float64()
	h.Owner = int(r.pr.Int32())
	h.Counter = r.pr.Int64()
	if r.pr.Err() == nil && h.Owner == r.rank {
		h.Payload = r.pr.Bytes()
	}
	if r.pr.Err() != nil {
		return Header{}, r.fail("header")
	}
	return h, nil
}

// Blob reads the application blob.
func (r *Reader) Blob() ([]byte, error) {
	b := r.pr.Bytes()
	if r.pr.Err() != nil {
		return nil, r.fail("application blob")
	}
	return b, nil
}

// Section reads a section's record count.
func (r *Reader) Section() (int, error) {
	n := r.pr.Int32()
	if r.pr.Err() != nil {
		return 0, r.fail("section count")
	}
	if n < 0 {
		return 0, domain.ErrCheckpointIO.WithDetailsf("read %s: negative section count %d", r.path, n)
	}
	return int(n), nil
}

// Record reads one record.
func (r *Reader) Record() ([]byte, error) {
	b := r.pr.Bytes()
	if r.pr.Err() != nil {
		return nil, r.fail("record")
	}
	return b, nil
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Snapshot is a whole checkpoint file held in memory.
type Snapshot struct {
	Header
	Blob        []byte
	Subproblems [][]byte
	Solutions   [][]byte
}

// WriteFile writes s as rank's file of checkpoint number.
func WriteFile(dir, problem string, number, rank int, s Snapshot) (string, error) {
	w, err := Create(dir, problem, number, rank)
	if err != nil {
		return "", err
	}
	w.Header(s.Header)
	w.Blob(s.Blob)
	for _, section := range [][][]byte{s.Subproblems, s.Solutions} {
		if err := w.Section(len(section)); err != nil {
			w.Abort()
			return "", err
		}
		for _, rec := range section {
			if err := w.Record(rec); err != nil {
				w.Abort()
				return "", err
			}
		}
	}
	if _, err := w.Commit(); err != nil {
		return "", err
	}
	return w.Path(), nil
}

// ReadFile reads a whole checkpoint file written by rank.
func ReadFile(path string, rank int) (*Snapshot, error) {
	r, err := Open(path, rank)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	s := &Snapshot{}
	if s.Header, err = r.Header(); err != nil {
		return nil, err
	}
	if s.Blob, err = r.Blob(); err != nil {
		return nil, err
	}
	for _, dst := range []*[][]byte{&s.Subproblems, &s.Solutions} {
		n, err := r.Section()
		if err != nil {
			return nil, err
		}
		recs := make([][]byte, 0, n)
		for i := 0; i < n; i++ {
			rec, err := r.Record()
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		*dst = recs
	}
	return s, nil
}
