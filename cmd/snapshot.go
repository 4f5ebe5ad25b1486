package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/ansisql"
	"github.com/redsnap-data/redsnap/pkg/connection"
	"github.com/redsnap-data/redsnap/pkg/executor"
	"github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
	"go.uber.org/zap"
)

func Snapshot(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:      "snapshot",
		Usage:     "bring the history tables of the snapshots in a project up to date",
		ArgsUsage: "[path to the project]",
		Flags: append(workspaceFlags(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "plan the statements of every snapshot without applying them",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "print the statements that are executed",
			},
			&cli.StringFlag{
				Name:  "query-annotations",
				Usage: "annotate the source queries with a JSON comment, use 'default' for the built-in fields or pass a JSON object to add yours",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "the number of snapshots to run at the same time, defaults to the 'threads' of the connection",
			},
			outputFlag,
		),
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			logger := makeLogger(*isDebug)
			output := c.String("output")

			ws, err := loadWorkspace(fs, workspaceOptionsFromContext(c))
			if err != nil {
				printError(err, output, "Failed to load the project")
				return cli.Exit("", 1)
			}
			logLoaded(logger, ws)

			if len(ws.snapshots) == 0 {
				printSuccessForOutput(output, "No snapshots to run.")
				return nil
			}

			manager := connection.NewManager(ws.config, logger)
			defer manager.Close()

			workers := c.Int("workers")
			if workers == 0 {
				workers = threadsOf(ws)
			}

			ctx := context.WithValue(c.Context, executor.KeyQueryAnnotations, c.String("query-annotations"))
			operator := ansisql.NewSnapshotOperator(manager, logger, c.Bool("dry-run"))

			var out io.Writer = os.Stdout
			if output == "json" {
				out = io.Discard
			}

			if output != "json" {
				infoPrinter.Printf("Running %d snapshots in environment '%s' with %d workers\n\n", len(ws.snapshots), ws.environment, workers)
			}

			runner := executor.NewConcurrent(logger, operator, workers, executor.WithOutput(out), executor.WithVerbose(c.Bool("verbose")))
			results := runner.Run(ctx, instancesOf(ws))

			if output == "json" {
				js, err := json.Marshal(summarize(results))
				if err != nil {
					return errors.Wrap(err, "failed to marshal the output")
				}
				fmt.Println(string(js))
			} else {
				fmt.Println()
				printSummaryTable(os.Stdout, results)
			}

			failed := failedResults(results)
			if len(failed) == 0 {
				return nil
			}

			if output != "json" {
				fmt.Println()
				fmt.Println(failureTree(failed))
			}
			return cli.Exit("", 1)
		},
	}
}

func threadsOf(ws *workspace) int {
	details, err := ws.config.GetConnection(ws.project.Connection)
	if err != nil || details.Threads < 1 {
		return 1
	}
	return details.Threads
}

func instancesOf(ws *workspace) []*executor.TaskInstance {
	instances := make([]*executor.TaskInstance, 0, len(ws.snapshots))
	for _, def := range ws.snapshots {
		instances = append(instances, &executor.TaskInstance{Definition: def, RunAt: ws.startedAt})
	}
	return instances
}

func failedResults(results []*executor.TaskExecutionResult) []*executor.TaskExecutionResult {
	var failed []*executor.TaskExecutionResult
	for _, res := range results {
		if res.Error != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

type snapshotSummary struct {
	Name        string `json:"name"`
	Table       string `json:"table,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	New         int    `json:"new"`
	Changed     int    `json:"changed"`
	Invalidated int    `json:"invalidated"`
	Unchanged   int    `json:"unchanged"`
	Statements  int    `json:"statements"`
	Rows        int64  `json:"rows_affected"`
	DurationMs  int64  `json:"duration_ms"`
}

func summarize(results []*executor.TaskExecutionResult) []snapshotSummary {
	summaries := make([]snapshotSummary, 0, len(results))
	for _, res := range results {
		s := snapshotSummary{
			Name:       res.Instance.GetHumanID(),
			Status:     "succeeded",
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Error != nil {
			s.Status = "failed"
			s.Error = res.Error.Error()
		}
		if res.Result != nil && res.Result.Plan != nil {
			s.Table = res.Result.Table.String()
			s.Statements = len(res.Result.Statements)
			s.Rows = res.Result.RowsAffected
			if c := res.Result.Classification; c != nil {
				s.New = len(c.Inserts)
				s.Changed = len(c.Updates)
				s.Invalidated = len(c.Invalidations)
				s.Unchanged = c.Unchanged
			}
		}
		summaries = append(summaries, s)
	}
	return summaries
}

func printSummaryTable(w io.Writer, results []*executor.TaskExecutionResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Snapshot", "Table", "New", "Changed", "Invalidated", "Unchanged", "Duration", "Status"})

	for i, s := range summarize(results) {
		status := successPrinter.Sprint("OK")
		if s.Status == "failed" {
			status = errorPrinter.Sprint("FAIL")
		}
		t.AppendRow(table.Row{
			s.Name, s.Table, s.New, s.Changed, s.Invalidated, s.Unchanged,
			results[i].Duration.Round(time.Millisecond).String(), status,
		})
	}
	t.Render()
}

func failureTree(failed []*executor.TaskExecutionResult) string {
	tree := treeprint.NewWithRoot(color.New(color.FgRed, color.Bold).Sprintf("%d snapshots failed", len(failed)))
	for _, res := range failed {
		branch := tree.AddBranch(res.Instance.GetHumanID())
		branch.AddNode(faint(res.Instance.Definition.Path))
		branch.AddNode(color.New(color.FgRed).Sprint(res.Error.Error()))
	}
	return tree.String()
}

func logLoaded(logger *zap.SugaredLogger, ws *workspace) {
	for _, def := range ws.snapshots {
		logger.Debugw("snapshot loaded", "name", def.Name, "path", def.Path, "connection", def.Connection)
	}
}
