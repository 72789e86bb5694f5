package command

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/pebbl-go/internal/storage/checkpoint"
)

const problem = "knap"

// runApp runs pebbl-cp with args and returns its standard output.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"pebbl-cp"}, args...))
	return out.String(), err
}

func writeSet(t *testing.T, dir string, number, ranks int) {
	t.Helper()
	for rank := 0; rank < ranks; rank++ {
		_, err := checkpoint.WriteFile(dir, problem, number, rank, checkpoint.Snapshot{
			Header:      checkpoint.Header{Incumbent: 12.5, Owner: 0, Counter: 40, Payload: []byte("p")},
			Blob:        []byte("blob"),
			Subproblems: [][]byte{[]byte("a"), []byte("bb")},
		})
		if err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestApp_Commands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range App().Commands {
		names[c.Name] = true
	}
	for _, want := range []string{"scan", "inspect", "flag", "watch", "loadlog", "version"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeSet(t, dir, 3, 4)

	out, err := runApp(t, "-d", dir, "-p", problem, "-o", "json", "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var view ScanView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if view.Number != 3 || view.Count != 4 || view.MaxRank != 3 || len(view.Files) != 4 {
		t.Errorf("scan = %+v", view)
	}
}

func TestScan_Mismatch(t *testing.T) {
	dir := t.TempDir()
	writeSet(t, dir, 3, 2)
	writeSet(t, dir, 4, 1)

	if _, err := runApp(t, "-d", dir, "-p", problem, "scan"); err == nil {
		t.Fatal("scan should fail on mixed generations")
	}

	out, err := runApp(t, "-d", dir, "-p", problem, "-o", "json", "scan", "--all")
	if err != nil {
		t.Fatalf("scan --all: %v", err)
	}
	var gens []GenerationView
	if err := json.Unmarshal([]byte(out), &gens); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(gens) != 2 || gens[0].Number != 3 || gens[0].Files != 2 || gens[1].Number != 4 {
		t.Errorf("generations = %+v", gens)
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	writeSet(t, dir, 1, 2)

	out, err := runApp(t, "-d", dir, "-p", problem, "-o", "json", "inspect")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var sums []checkpoint.Summary
	if err := json.Unmarshal([]byte(out), &sums); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d summaries", len(sums))
	}
	if sums[0].PayloadLen != 1 || sums[1].PayloadLen != 0 {
		t.Errorf("payload only belongs to the owner's file: %+v", sums)
	}
	if sums[1].Subproblems != 2 || sums[1].RecordBytes != 3 || sums[1].BlobLen != 4 {
		t.Errorf("summary = %+v", sums[1])
	}

	out, err = runApp(t, "-p", problem, "inspect", filepath.Join(dir, checkpoint.FileName(problem, 1, 1)))
	if err != nil {
		t.Fatalf("inspect file: %v", err)
	}
	if !strings.Contains(out, "SUBPROBLEMS") {
		t.Errorf("table output missing header:\n%s", out)
	}
}

func TestInspect_Empty(t *testing.T) {
	if _, err := runApp(t, "-d", t.TempDir(), "inspect"); err == nil {
		t.Error("inspect should fail without checkpoints")
	}
}

func TestFlag(t *testing.T) {
	dir := t.TempDir()
	if _, err := checkpoint.WriteAbortFlag(dir, checkpoint.AbortFlag{Problem: problem, Number: 2, Pending: 17}); err != nil {
		t.Fatal(err)
	}
	out, err := runApp(t, "-d", dir, "-o", "yaml", "flag")
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	if !strings.Contains(out, "checkpoint: 2") || !strings.Contains(out, "pending: 17") {
		t.Errorf("flag output:\n%s", out)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeSet(t, dir, 5, 1)
	cfgPath := filepath.Join(t.TempDir(), "pebbl.yaml")
	content := "problem:\n  name: " + problem + "\ncheckpoint:\n  dir: " + dir + "\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runApp(t, "-c", cfgPath, "-o", "json", "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, `"number": 5`) {
		t.Errorf("scan output:\n%s", out)
	}
}

func TestBadOutputFormat(t *testing.T) {
	if _, err := runApp(t, "-o", "xml", "version"); err == nil {
		t.Error("unknown output format should fail")
	}
}

func TestVersion(t *testing.T) {
	out, err := runApp(t, "-o", "json", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, `"go_version"`) {
		t.Errorf("version output:\n%s", out)
	}
}

func TestLoadLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "load.log")
	content := "# pebbl load log\n# run: 01ARZ3NDEKTSV4RRFFQ69G5FAV\n# ranks: 2\n# mode: ring\n" +
		"# started: 2026-01-02T03:04:05Z\n" +
		"100 1 4 2.5 0 0\n200 1 3 2.5 1 1\n300 0 9 1 0 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runApp(t, "-o", "json", "loadlog", path)
	if err != nil {
		t.Fatalf("loadlog: %v", err)
	}
	var view LoadLogView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if view.Samples != 3 || view.Ranks != 2 || len(view.PerRank) != 2 {
		t.Fatalf("view = %+v", view)
	}
	if r1 := view.PerRank[1]; r1.Rank != 1 || r1.Samples != 2 || r1.Pending != 3 {
		t.Errorf("rank 1 = %+v", r1)
	}
}
