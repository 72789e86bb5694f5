package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pebbl-go/internal/cli/output"
	"github.com/yndnr/pebbl-go/internal/config"
	"github.com/yndnr/pebbl-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "pebbl-cp",
		Usage:   "inspect pebbl checkpoint directories and load logs",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ScanCommand(),
			InspectCommand(),
			FlagCommand(),
			WatchCommand(),
			LoadLogCommand(),
			VersionCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML run configuration to take the directory and problem from",
			EnvVars: []string{"PEBBL_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "checkpoint directory",
			EnvVars: []string{"PEBBL_CHECKPOINT_DIR"},
			Value:   config.DefaultCheckpointDir,
		},
		&cli.StringFlag{
			Name:    "problem",
			Aliases: []string{"p"},
			Usage:   "problem name used as the checkpoint file prefix",
			EnvVars: []string{"PEBBL_PROBLEM_NAME"},
			Value:   config.DefaultProblemName,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
	}
}

// GlobalFlags holds the resolved global flags.
type GlobalFlags struct {
	Dir     string
	Problem string
	Output  output.Format
}

// ParseGlobalFlags resolves the global flags. Values from --config are
// used unless the flag itself was given.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	g := &GlobalFlags{Dir: c.String("dir"), Problem: c.String("problem"), Output: format}
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path, nil)
		if err != nil {
			return nil, err
		}
		if !c.IsSet("dir") {
			g.Dir = cfg.Checkpoint.Dir
		}
		if !c.IsSet("problem") {
			g.Problem = cfg.Problem.Name
		}
	}
	return g, nil
}

func render(c *cli.Context, format output.Format, data any) error {
	return output.NewFormatter(format).Format(c.App.Writer, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
