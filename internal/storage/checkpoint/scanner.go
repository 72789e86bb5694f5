package checkpoint

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

// AllProcesses selects every process's file in Scan.
const AllProcesses = -1

// Entry is one matched checkpoint file.
type Entry struct {
	Rank int
	Path string
}

// ScanResult describes the checkpoint set found in a directory.
type ScanResult struct {
	// Count is the number of matched files.
	Count int

	// Number is the checkpoint number shared by every matched file, or 0
	// when nothing matched.
	Number int

	// MaxRank is the highest process number seen, or -1.
	MaxRank int

	// Files holds the matches ordered by rank.
	Files []Entry
}

// Scan looks for problem's checkpoint files in dir.
//
// selector is either a rank, in which case only that rank's file counts, or
// AllProcesses, in which case the matched ranks must form a dense
// 0..Count-1 range. ceiling bounds the process number; ceiling <= 0 means no
// bound. All matched files must carry the same nonzero checkpoint number.
func Scan(dir, problem string, selector, ceiling int) (ScanResult, error) {
	res := ScanResult{MaxRank: -1}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, domain.ErrCheckpointIO.WithDetailsf("read dir %s", dir).WithCause(err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		number, rank, ok, err := MatchFileName(problem, e.Name())
		if err != nil {
			return res, err
		}
		if !ok {
			continue
		}
		if selector != AllProcesses && rank != selector {
			continue
		}
		if number == 0 {
			return res, domain.ErrCheckpointZero.WithDetailsf("file %s", e.Name())
		}
		if ceiling > 0 && rank >= ceiling {
			return res, domain.ErrProcessCeiling.WithDetailsf("file %s: process %d, ceiling %d", e.Name(), rank, ceiling)
		}
		if res.Count == 0 {
			res.Number = number
		} else if number != res.Number {
			return res, domain.ErrCheckpointMismatch.WithDetailsf("file %s: expected checkpoint %d, got %d", e.Name(), res.Number, number)
		}
		res.Count++
		res.MaxRank = max(res.MaxRank, rank)
		res.Files = append(res.Files, Entry{Rank: rank, Path: filepath.Join(dir, e.Name())})
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Rank < res.Files[j].Rank })

	if selector == AllProcesses && res.Count > 0 && res.MaxRank != res.Count-1 {
		return res, domain.ErrProcessGap.WithDetailsf("checkpoint %d: %d files, highest process %d", res.Number, res.Count, res.MaxRank)
	}
	return res, nil
}

// Generations returns every checkpoint number present in dir for problem,
// with the ranks found for each. Unlike Scan it tolerates several numbers,
// which is the state left by a crash between the barrier and the deletion
// of the previous checkpoint.
func Generations(dir, problem string) (map[int][]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.ErrCheckpointIO.WithDetailsf("read dir %s", dir).WithCause(err)
	}
	gens := make(map[int][]int)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		number, rank, ok, err := MatchFileName(problem, e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			gens[number] = append(gens[number], rank)
		}
	}
	for _, ranks := range gens {
		sort.Ints(ranks)
	}
	return gens, nil
}
