package command

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pebbl-go/internal/storage/checkpoint"
)

// ScanView is the result of the scan command.
type ScanView struct {
	Number  int      `json:"number" yaml:"number"`
	Count   int      `json:"count" yaml:"count"`
	MaxRank int      `json:"max_rank" yaml:"max_rank"`
	Files   []string `json:"files" yaml:"files" table:"-"`
}

// GenerationView is one row of scan --all.
type GenerationView struct {
	Number int   `json:"number" yaml:"number"`
	Files  int   `json:"files" yaml:"files"`
	Ranks  []int `json:"ranks" yaml:"ranks"`
}

// ScanCommand runs the checkpoint scanner over a directory.
func ScanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "find the checkpoint set in the directory",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "rank",
				Usage: "only consider this process's file",
				Value: checkpoint.AllProcesses,
			},
			&cli.IntFlag{
				Name:  "ceiling",
				Usage: "reject process numbers at or above this value (0: no ceiling)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "list every generation present instead of validating one set",
			},
		},
		Action: scan,
	}
}

func scan(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	if c.Bool("all") {
		gens, err := checkpoint.Generations(g.Dir, g.Problem)
		if err != nil {
			return err
		}
		views := make([]GenerationView, 0, len(gens))
		for number, ranks := range gens {
			views = append(views, GenerationView{Number: number, Files: len(ranks), Ranks: ranks})
		}
		sort.Slice(views, func(i, j int) bool { return views[i].Number < views[j].Number })
		return render(c, g.Output, views)
	}

	res, err := checkpoint.Scan(g.Dir, g.Problem, c.Int("rank"), c.Int("ceiling"))
	if err != nil {
		return err
	}
	view := ScanView{Number: res.Number, Count: res.Count, MaxRank: res.MaxRank}
	for _, f := range res.Files {
		view.Files = append(view.Files, f.Path)
	}
	return render(c, g.Output, view)
}

// InspectCommand summarizes checkpoint files.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "summarize checkpoint files",
		ArgsUsage: "[FILE...]",
		Description: "Without arguments every file of the current checkpoint set in --dir is " +
			"inspected.",
		Action: inspect,
	}
}

func inspect(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	paths := c.Args().Slice()
	if len(paths) == 0 {
		res, err := checkpoint.Scan(g.Dir, g.Problem, checkpoint.AllProcesses, 0)
		if err != nil {
			return err
		}
		if res.Count == 0 {
			return fmt.Errorf("no checkpoint of %q in %s", g.Problem, g.Dir)
		}
		for _, f := range res.Files {
			paths = append(paths, f.Path)
		}
	}

	sums := make([]*checkpoint.Summary, 0, len(paths))
	for _, path := range paths {
		s, err := checkpoint.Inspect(path, g.Problem)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		sums = append(sums, s)
	}
	return render(c, g.Output, sums)
}

// FlagView is the abort flag as shown by the flag command.
type FlagView struct {
	Problem     string  `json:"problem" yaml:"problem"`
	Checkpoint  int     `json:"checkpoint" yaml:"checkpoint"`
	WallSeconds float64 `json:"wall_seconds" yaml:"wall_seconds"`
	Pending     int64   `json:"pending" yaml:"pending"`
	RunID       string  `json:"run_id" yaml:"run_id"`
}

// FlagCommand shows the abort flag left by a run stopped at a checkpoint.
func FlagCommand() *cli.Command {
	return &cli.Command{
		Name:   "flag",
		Usage:  "show the abort flag in the directory",
		Action: showFlag,
	}
}

func showFlag(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	f, err := checkpoint.ReadAbortFlag(filepath.Join(g.Dir, checkpoint.AbortFlagName))
	if err != nil {
		return err
	}
	return render(c, g.Output, FlagView{
		Problem:     f.Problem,
		Checkpoint:  f.Number,
		WallSeconds: f.WallSeconds,
		Pending:     f.Pending,
		RunID:       f.RunID,
	})
}
