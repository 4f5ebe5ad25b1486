package cmd

import (
	"fmt"
	"os"

	"github.com/redsnap-data/redsnap/pkg/ansisql"
	"github.com/redsnap-data/redsnap/pkg/connection"
	"github.com/redsnap-data/redsnap/pkg/executor"
	"github.com/urfave/cli/v2"
)

func Test(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "check that the history tables of the snapshots keep their invariants",
		ArgsUsage: "[path to the project]",
		Flags:     workspaceFlags(),
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			logger := makeLogger(*isDebug)
			ws, err := loadWorkspace(fs, workspaceOptionsFromContext(c))
			if err != nil {
				printError(err, "", "Failed to load the project")
				return cli.Exit("", 1)
			}
			logLoaded(logger, ws)

			manager := connection.NewManager(ws.config, logger)
			defer manager.Close()

			runner := executor.NewConcurrent(logger, ansisql.NewCheckOperator(manager), threadsOf(ws))
			results := runner.Run(c.Context, instancesOf(ws))

			failed := failedResults(results)
			fmt.Println()
			if len(failed) == 0 {
				successPrinter.Printf("All checks passed for %d snapshots.\n", len(results))
				return nil
			}

			fmt.Fprintln(os.Stdout, failureTree(failed))
			return cli.Exit("", 1)
		},
	}
}
