package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0640); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestScan_AllProcesses(t *testing.T) {
	dir := t.TempDir()
	for r := 0; r < 4; r++ {
		touch(t, dir, FileName("knap", 3, r))
	}
	touch(t, dir, "unrelated.txt")
	touch(t, dir, tempName(FileName("knap", 4, 0)))
	if err := os.Mkdir(filepath.Join(dir, "knap.cp9.p9.bdat"), 0750); err != nil {
		t.Fatal(err)
	}

	res, err := Scan(dir, "knap", AllProcesses, 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Count != 4 || res.Number != 3 || res.MaxRank != 3 {
		t.Fatalf("Scan = %+v", res)
	}
	for i, f := range res.Files {
		if f.Rank != i {
			t.Fatalf("Files[%d].Rank = %d", i, f.Rank)
		}
	}
}

func TestScan_Selector(t *testing.T) {
	dir := t.TempDir()
	for r := 0; r < 3; r++ {
		touch(t, dir, FileName("knap", 5, r))
	}
	res, err := Scan(dir, "knap", 1, 3)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Count != 1 || res.Number != 5 || res.Files[0].Rank != 1 {
		t.Fatalf("Scan = %+v", res)
	}

	res, err = Scan(dir, "knap", 7, 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Count != 0 || res.Number != 0 || res.MaxRank != -1 {
		t.Fatalf("Scan(missing) = %+v", res)
	}
}

func TestScan_Empty(t *testing.T) {
	res, err := Scan(filepath.Join(t.TempDir(), "missing"), "knap", AllProcesses, 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Count != 0 {
		t.Fatalf("Count = %d, want 0", res.Count)
	}
}

func TestScan_Errors(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		selector int
		ceiling  int
		want     error
	}{
		{
			name:     "mismatched numbers",
			files:    []string{FileName("knap", 2, 0), FileName("knap", 3, 1)},
			selector: AllProcesses,
			want:     domain.ErrCheckpointMismatch,
		},
		{
			name:     "number zero",
			files:    []string{FileName("knap", 0, 0)},
			selector: AllProcesses,
			want:     domain.ErrCheckpointZero,
		},
		{
			name:     "gap",
			files:    []string{FileName("knap", 2, 0), FileName("knap", 2, 2)},
			selector: AllProcesses,
			want:     domain.ErrProcessGap,
		},
		{
			name:     "ceiling",
			files:    []string{FileName("knap", 2, 0), FileName("knap", 2, 1)},
			selector: AllProcesses,
			ceiling:  1,
			want:     domain.ErrProcessCeiling,
		},
		{
			name:     "malformed",
			files:    []string{FileName("knap", 2, 0), "knap.cp2.pX.bdat"},
			selector: 0,
			want:     domain.ErrMalformedFileName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				touch(t, dir, f)
			}
			_, err := Scan(dir, "knap", tt.selector, tt.ceiling)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Scan error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScan_GapIgnoredForSingleProcess(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, FileName("knap", 2, 2))
	res, err := Scan(dir, "knap", 2, 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Count != 1 || res.MaxRank != 2 {
		t.Fatalf("Scan = %+v", res)
	}
}

func TestGenerations(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, FileName("knap", 2, 0))
	touch(t, dir, FileName("knap", 2, 1))
	touch(t, dir, FileName("knap", 3, 1))
	touch(t, dir, FileName("knap", 3, 0))

	gens, err := Generations(dir, "knap")
	if err != nil {
		t.Fatalf("Generations: %v", err)
	}
	if len(gens) != 2 || len(gens[2]) != 2 || gens[3][0] != 0 || gens[3][1] != 1 {
		t.Fatalf("Generations = %v", gens)
	}
}
