package checkpoint

import (
	"os"
	"path/filepath"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

// Summary describes a checkpoint file without decoding its records.
type Summary struct {
	Path        string  `json:"path"`
	Number      int     `json:"number"`
	Rank        int     `json:"rank"`
	Size        int64   `json:"size"`
	Incumbent   float64 `json:"incumbent"`
	Owner       int     `json:"owner"`
	Counter     int64   `json:"counter"`
	PayloadLen  int     `json:"payload_len"`
	BlobLen     int     `json:"blob_len"`
	Subproblems int     `json:"subproblems"`
	Solutions   int     `json:"solutions"`
	RecordBytes int64   `json:"record_bytes"`
}

// Inspect summarizes the checkpoint file at path. The file name must match
// problem's naming pattern.
func Inspect(path, problem string) (*Summary, error) {
	number, rank, ok, err := MatchFileName(problem, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrMalformedFileName.WithDetailsf("%q is not a checkpoint of %q", filepath.Base(path), problem)
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, domain.ErrCheckpointIO.WithDetailsf("stat %s", path).WithCause(err)
	}

	s, err := ReadFile(path, rank)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		Path:        path,
		Number:      number,
		Rank:        rank,
		Size:        stat.Size(),
		Incumbent:   s.Incumbent,
		Owner:       s.Owner,
		Counter:     s.Counter,
		PayloadLen:  len(s.Payload),
		BlobLen:     len(s.Blob),
		Subproblems: len(s.Subproblems),
		Solutions:   len(s.Solutions),
	}
	for _, section := range [][][]byte{s.Subproblems, s.Solutions} {
		for _, rec := range section {
			sum.RecordBytes += int64(len(rec))
		}
	}
	return sum, nil
}
