package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/ansisql"
	"github.com/redsnap-data/redsnap/pkg/connection"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

type compareOutput struct {
	Left        string   `json:"left"`
	Right       string   `json:"right"`
	Columns     []string `json:"columns"`
	OnlyInLeft  int64    `json:"only_in_left"`
	OnlyInRight int64    `json:"only_in_right"`
	Equal       bool     `json:"equal"`
}

func Compare(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "compare the rows of two tables, ignoring the snapshot bookkeeping columns",
		ArgsUsage: "[schema.left_table] [schema.right_table]",
		Flags: []cli.Flag{
			configFileFlag,
			environmentFlag,
			&cli.StringFlag{
				Name:    "connection",
				Aliases: []string{"c"},
				Usage:   "the connection to run the comparison on, defaults to the connection of the project",
			},
			&cli.StringSliceFlag{
				Name:  "columns",
				Usage: "the columns to compare, defaults to every non-bookkeeping column of the left table",
			},
			outputFlag,
		},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := c.String("output")
			if c.Args().Len() != 2 {
				printError(errors.New("exactly two tables are required"), output, "Invalid arguments")
				return cli.Exit("", 1)
			}
			left, right := c.Args().Get(0), c.Args().Get(1)

			proj, cfg, err := loadProjectWithConfig(fs, workspaceOptions{
				configFile:  c.String(configFileFlag.Name),
				environment: c.String(environmentFlag.Name),
			})
			if err != nil {
				printError(err, output, "Failed to load the project")
				return cli.Exit("", 1)
			}

			connectionName := c.String("connection")
			if connectionName == "" {
				connectionName = proj.Connection
			}

			manager := connection.NewManager(cfg, makeLogger(*isDebug))
			defer manager.Close()

			target, err := manager.GetTarget(c.Context, connectionName)
			if err != nil {
				printError(err, output, "Failed to connect")
				return cli.Exit("", 1)
			}

			columns := c.StringSlice("columns")
			if len(columns) == 0 {
				columns, err = comparableColumns(c.Context, target.Client, left)
				if err != nil {
					printError(err, output, "Failed to read the columns")
					return cli.Exit("", 1)
				}
			}

			diff, err := ansisql.CompareTables(c.Context, target.Client, left, right, columns)
			if err != nil {
				printError(err, output, "Failed to compare the tables")
				return cli.Exit("", 1)
			}

			if output == "json" {
				js, err := json.Marshal(compareOutput{
					Left:        left,
					Right:       right,
					Columns:     columns,
					OnlyInLeft:  diff.OnlyInLeft,
					OnlyInRight: diff.OnlyInRight,
					Equal:       diff.Equal(),
				})
				if err != nil {
					return errors.Wrap(err, "failed to marshal the output")
				}
				fmt.Println(string(js))
			} else {
				infoPrinter.Printf("Compared %s and %s on %s\n", left, right, strings.Join(columns, ", "))
				fmt.Printf("  only in %s: %d\n", left, diff.OnlyInLeft)
				fmt.Printf("  only in %s: %d\n", right, diff.OnlyInRight)
			}

			if !diff.Equal() {
				return cli.Exit("", 1)
			}
			if output != "json" {
				successPrinter.Println("The tables are equal.")
			}
			return nil
		},
	}
}

type columnLister interface {
	TableColumns(ctx context.Context, schema, table string) ([]query.Column, error)
}

func comparableColumns(ctx context.Context, client columnLister, table string) ([]string, error) {
	schema, name, ok := strings.Cut(table, ".")
	if !ok {
		return nil, errors.Errorf("table '%s' must be in the form of schema.table", table)
	}

	cols, err := client.TableColumns(ctx, schema, name)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.Errorf("table '%s' does not exist", table)
	}

	names := lo.FilterMap(cols, func(c query.Column, _ int) (string, bool) {
		return c.Name, !snapshot.IsMetadataColumn(c.Name)
	})
	if len(names) == 0 {
		return nil, errors.Errorf("table '%s' has no columns to compare", table)
	}
	return names, nil
}
