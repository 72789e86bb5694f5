package checkpoint

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

func sampleSnapshot(owner int) Snapshot {
	return Snapshot{
		Header: Header{
			Incumbent: 41.5,
			Owner:     owner,
			Counter:   1234,
			Payload:   []byte("best"),
		},
		Blob:        []byte("global"),
		Subproblems: [][]byte{[]byte("sp-a"), {}, []byte("sp-c")},
		Solutions:   [][]byte{[]byte("sol-1")},
	}
}

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()
	want := sampleSnapshot(2)

	path, err := WriteFile(dir, "knap", 4, 2, want)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if filepath.Base(path) != "knap.cp4.p2.bdat" {
		t.Fatalf("path = %s", path)
	}

	got, err := ReadFile(path, 2)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Incumbent != want.Incumbent || got.Owner != want.Owner || got.Counter != want.Counter {
		t.Fatalf("header = %+v, want %+v", got.Header, want.Header)
	}
	if !bytes.Equal(got.Payload, want.Payload) || !bytes.Equal(got.Blob, want.Blob) {
		t.Fatalf("payload %q blob %q", got.Payload, got.Blob)
	}
	if len(got.Subproblems) != 3 || string(got.Subproblems[2]) != "sp-c" || len(got.Subproblems[1]) != 0 {
		t.Fatalf("subproblems = %q", got.Subproblems)
	}
	if len(got.Solutions) != 1 || string(got.Solutions[0]) != "sol-1" {
		t.Fatalf("solutions = %q", got.Solutions)
	}
}

func TestWriteFile_PayloadOnlyOnOwner(t *testing.T) {
	dir := t.TempDir()
	s := sampleSnapshot(0)

	ownerPath, err := WriteFile(dir, "knap", 1, 0, s)
	if err != nil {
		t.Fatal(err)
	}
	otherPath, err := WriteFile(dir, "knap", 1, 1, s)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := os.Stat(ownerPath)
	b, _ := os.Stat(otherPath)
	if a.Size()-b.Size() != int64(4+len(s.Payload)) {
		t.Fatalf("owner size %d, other size %d", a.Size(), b.Size())
	}

	got, err := ReadFile(otherPath, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Payload != nil {
		t.Fatalf("non-owner payload = %q", got.Payload)
	}
}

func TestWriteFile_EmptyRepositorySectionPresent(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteFile(dir, "knap", 1, 1, Snapshot{Header: Header{Owner: -1}})
	if err != nil {
		t.Fatal(err)
	}
	stat, _ := os.Stat(path)
	// value + owner + counter + blob length + two section counts
	if want := int64(8 + 4 + 8 + 4 + 4 + 4); stat.Size() != want {
		t.Fatalf("size = %d, want %d", stat.Size(), want)
	}
}

func TestWriter_SectionAccounting(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, "knap", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	w.Header(Header{Owner: 1})
	w.Blob(nil)
	if err := w.Record([]byte("x")); !errors.Is(err, domain.ErrCheckpointIO) {
		t.Fatalf("record outside section: %v", err)
	}
	if err := w.Section(2); err != nil {
		t.Fatal(err)
	}
	if err := w.Record([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Commit(); !errors.Is(err, domain.ErrCheckpointIO) {
		t.Fatalf("short section commit: %v", err)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Fatalf("final file exists after failed commit: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestWriter_AbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, "knap", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	w.Header(Header{})
	w.Abort()
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestReadFile_Truncated(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteFile(dir, "knap", 1, 0, sampleSnapshot(0))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if err := os.WriteFile(path, data[:len(data)-3], 0640); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path, 0); !errors.Is(err, domain.ErrCheckpointIO) {
		t.Fatalf("ReadFile(truncated) = %v", err)
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteFile(dir, "knap", 6, 0, sampleSnapshot(0))
	if err != nil {
		t.Fatal(err)
	}
	sum, err := Inspect(path, "knap")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if sum.Number != 6 || sum.Rank != 0 || sum.Subproblems != 3 || sum.Solutions != 1 {
		t.Fatalf("Inspect = %+v", sum)
	}
	if sum.PayloadLen != 4 || sum.BlobLen != 6 || sum.RecordBytes != 13 {
		t.Fatalf("Inspect = %+v", sum)
	}

	if _, err := Inspect(path, "other"); !errors.Is(err, domain.ErrMalformedFileName) {
		t.Fatalf("Inspect(wrong problem) = %v", err)
	}
}

func TestAbortFlag_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := AbortFlag{RunID: "01J0000000000000000000000", Problem: "knap", Number: 3, WallSeconds: 12.5, Pending: 77}
	path, err := WriteAbortFlag(dir, want)
	if err != nil {
		t.Fatalf("WriteAbortFlag: %v", err)
	}
	if filepath.Base(path) != AbortFlagName {
		t.Fatalf("path = %s", path)
	}
	got, err := ReadAbortFlag(path)
	if err != nil {
		t.Fatalf("ReadAbortFlag: %v", err)
	}
	if got != want {
		t.Fatalf("ReadAbortFlag = %+v, want %+v", got, want)
	}
}
