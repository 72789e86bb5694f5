package loadlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const magic = "# pebbl load log"

type header struct {
	RunID   string
	Ranks   int
	Mode    Mode
	Started time.Time
}

// Log is a parsed load log file.
type Log struct {
	RunID   string
	Ranks   int
	Mode    Mode
	Started time.Time
	Entries []Entry
}

func createLog(path string, h header) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("loadlog: create %s: %w", path, err)
	}
	_, err = fmt.Fprintf(f, "%s\n# run: %s\n# ranks: %d\n# mode: %s\n# started: %s\n",
		magic, h.RunID, h.Ranks, h.Mode, h.Started.UTC().Format(time.RFC3339Nano))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("loadlog: create %s: %w", path, err)
	}
	return nil
}

// writeEntries writes one line per entry:
// unix_nanos rank pending bound sent received
func writeEntries(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		fmt.Fprintf(bw, "%d %d %d %s %d %d\n",
			e.Time.UnixNano(), e.Rank, e.Load.Pending,
			strconv.FormatFloat(e.Load.Bound, 'g', -1, 64),
			e.Load.Sent, e.Load.Received)
	}
	return bw.Flush()
}

// ReadLog parses a load log file.
func ReadLog(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadlog: %w", err)
	}
	defer f.Close()

	l := &Log{}
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if line == 1 {
			if text != magic {
				return nil, fmt.Errorf("loadlog: %s is not a load log", path)
			}
			continue
		}
		if rest, ok := strings.CutPrefix(text, "# "); ok {
			if err := l.parseHeader(rest); err != nil {
				return nil, fmt.Errorf("loadlog: %s:%d: %w", path, line, err)
			}
			continue
		}
		e, err := parseEntry(text)
		if err != nil {
			return nil, fmt.Errorf("loadlog: %s:%d: %w", path, line, err)
		}
		l.Entries = append(l.Entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("loadlog: %w", err)
	}
	if line == 0 {
		return nil, fmt.Errorf("loadlog: %s is empty", path)
	}
	return l, nil
}

func (l *Log) parseHeader(s string) error {
	key, value, ok := strings.Cut(s, ": ")
	if !ok {
		return fmt.Errorf("bad header %q", s)
	}
	var err error
	switch key {
	case "run":
		l.RunID = value
	case "ranks":
		l.Ranks, err = strconv.Atoi(value)
	case "mode":
		l.Mode, err = ParseMode(value)
	case "started":
		l.Started, err = time.Parse(time.RFC3339Nano, value)
	}
	return err
}

func parseEntry(s string) (Entry, error) {
	var e Entry
	f := strings.Fields(s)
	if len(f) != 6 {
		return e, fmt.Errorf("want 6 fields, got %d", len(f))
	}
	ints := make([]int64, 0, 5)
	for _, i := range []int{0, 1, 2, 4, 5} {
		v, err := strconv.ParseInt(f[i], 10, 64)
		if err != nil {
			return e, err
		}
		ints = append(ints, v)
	}
	bound, err := strconv.ParseFloat(f[3], 64)
	if err != nil {
		return e, err
	}
	e.Time = time.Unix(0, ints[0])
	e.Rank = int(ints[1])
	e.Load.Pending = ints[2]
	e.Load.Bound = bound
	e.Load.Sent = ints[3]
	e.Load.Received = ints[4]
	return e, nil
}
