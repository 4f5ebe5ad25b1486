package main

import (
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/redsnap-data/redsnap/cmd"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = ""
)

func main() {
	isDebug := false
	color.NoColor = os.Getenv("NO_COLOR") != ""

	versionCommand := cmd.VersionCmd(commit)

	cli.VersionPrinter = func(cCtx *cli.Context) {
		err := versionCommand.Action(cCtx)
		if err != nil {
			panic(err)
		}
	}

	app := &cli.App{
		Name:     "redsnap",
		Version:  version,
		Usage:    "Keep slowly changing dimension history tables on Redshift, Postgres and DuckDB",
		Compiled: time.Now(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "debug",
				Value:       false,
				Usage:       "show debug information",
				Destination: &isDebug,
			},
		},
		Commands: []*cli.Command{
			cmd.Snapshot(&isDebug),
			cmd.Render(),
			cmd.Test(&isDebug),
			cmd.Compare(&isDebug),
			cmd.Validate(),
			cmd.Connections(&isDebug),
			cmd.Internal(),
			versionCommand,
		},
	}

	_ = app.Run(os.Args)
}
