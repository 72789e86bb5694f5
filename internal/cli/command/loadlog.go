package command

import (
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pebbl-go/internal/telemetry/loadlog"
)

// RankView summarizes one rank's samples in a load log.
type RankView struct {
	Rank    int       `json:"rank" yaml:"rank"`
	Samples int       `json:"samples" yaml:"samples"`
	First   time.Time `json:"first" yaml:"first"`
	Last    time.Time `json:"last" yaml:"last"`
	Pending int64     `json:"last_pending" yaml:"last_pending"`
}

// LoadLogView is the result of the loadlog command.
type LoadLogView struct {
	RunID   string     `json:"run_id" yaml:"run_id"`
	Mode    string     `json:"mode" yaml:"mode"`
	Ranks   int        `json:"ranks" yaml:"ranks"`
	Samples int        `json:"samples" yaml:"samples"`
	PerRank []RankView `json:"per_rank" yaml:"per_rank"`
}

// LoadLogCommand summarizes a shared load log.
func LoadLogCommand() *cli.Command {
	return &cli.Command{
		Name:      "loadlog",
		Usage:     "summarize a load log file",
		ArgsUsage: "FILE",
		Action:    showLoadLog,
	}
}

func showLoadLog(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return fmt.Errorf("loadlog takes exactly one file, got %d", c.NArg())
	}
	l, err := loadlog.ReadLog(c.Args().First())
	if err != nil {
		return err
	}

	byRank := make(map[int]*RankView)
	for _, e := range l.Entries {
		v, ok := byRank[e.Rank]
		if !ok {
			v = &RankView{Rank: e.Rank, First: e.Time}
			byRank[e.Rank] = v
		}
		v.Samples++
		if e.Time.Before(v.First) {
			v.First = e.Time
		}
		if !e.Time.Before(v.Last) {
			v.Last = e.Time
			v.Pending = e.Load.Pending
		}
	}
	view := LoadLogView{RunID: l.RunID, Mode: string(l.Mode), Ranks: l.Ranks, Samples: len(l.Entries)}
	for _, v := range byRank {
		view.PerRank = append(view.PerRank, *v)
	}
	sort.Slice(view.PerRank, func(i, j int) bool { return view.PerRank[i].Rank < view.PerRank[j].Rank })

	if g.Output == "table" {
		return render(c, g.Output, view.PerRank)
	}
	return render(c, g.Output, view)
}
