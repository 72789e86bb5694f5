package checkpoint

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

// AbortFlagName is the file written when a run stops at a scheduled
// checkpoint.
const AbortFlagName = "pebbl-cp-abort.flag"

// AbortFlag is the content of the abort flag file.
type AbortFlag struct {
	RunID       string
	Problem     string
	Number      int
	WallSeconds float64
	Pending     int64
}

// WriteAbortFlag writes f as plain text to dir/AbortFlagName.
func WriteAbortFlag(dir string, f AbortFlag) (string, error) {
	path := filepath.Join(dir, AbortFlagName)
	var b strings.Builder
	fmt.Fprintf(&b, "problem: %s\n", f.Problem)
	fmt.Fprintf(&b, "checkpoint: %d\n", f.Number)
	fmt.Fprintf(&b, "wall_seconds: %.3f\n", f.WallSeconds)
	fmt.Fprintf(&b, "pending: %d\n", f.Pending)
	if f.RunID != "" {
		fmt.Fprintf(&b, "run: %s\n", f.RunID)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0640); err != nil {
		return "", domain.ErrCheckpointIO.WithDetailsf("write %s", path).WithCause(err)
	}
	return path, nil
}

// ReadAbortFlag parses an abort flag file.
func ReadAbortFlag(path string) (AbortFlag, error) {
	var f AbortFlag
	file, err := os.Open(path)
	if err != nil {
		return f, domain.ErrCheckpointIO.WithDetailsf("open %s", path).WithCause(err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ": ")
		if !ok {
			continue
		}
		switch key {
		case "problem":
			f.Problem = value
		case "checkpoint":
			f.Number, err = strconv.Atoi(value)
		case "wall_seconds":
			f.WallSeconds, err = strconv.ParseFloat(value, 64)
		case "pending":
			f.Pending, err = strconv.ParseInt(value, 10, 64)
		case "run":
			f.RunID = value
		}
		if err != nil {
			return f, domain.ErrCheckpointIO.WithDetailsf("parse %s: %s", path, key).WithCause(err)
		}
	}
	if err := sc.Err(); err != nil {
		return f, domain.ErrCheckpointIO.WithDetailsf("read %s", path).WithCause(err)
	}
	return f, nil
}
