package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/pebbl-go/internal/infra/buildinfo"
)

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print build information",
		Action: func(c *cli.Context) error {
			g, err := ParseGlobalFlags(c)
			if err != nil {
				return err
			}
			return render(c, g.Output, buildinfo.Get())
		},
	}
}
