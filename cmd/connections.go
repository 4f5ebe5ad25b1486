package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/config"
	"github.com/redsnap-data/redsnap/pkg/connection"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

func Connections(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:  "connections",
		Usage: "inspect the connections defined in the config file",
		Subcommands: []*cli.Command{
			ListConnections(),
			PingConnection(isDebug),
		},
	}
}

type connectionRow struct {
	Environment string `json:"environment"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Schema      string `json:"schema"`
	Threads     int    `json:"threads"`
}

func ListConnections() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "list the connections of every environment",
		ArgsUsage: "[path to the project]",
		Flags:     []cli.Flag{configFileFlag, environmentFlag, outputFlag},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := c.String("output")
			_, cfg, err := loadProjectWithConfig(fs, workspaceOptions{
				path:       c.Args().Get(0),
				configFile: c.String(configFileFlag.Name),
			})
			if err != nil {
				printError(err, output, "Failed to load the project")
				return cli.Exit("", 1)
			}

			rows, err := connectionRows(cfg, c.String(environmentFlag.Name))
			if err != nil {
				printError(err, output, "Failed to list the connections")
				return cli.Exit("", 1)
			}

			if output == "json" {
				js, err := json.Marshal(rows)
				if err != nil {
					return errors.Wrap(err, "failed to marshal the output")
				}
				fmt.Println(string(js))
				return nil
			}

			printConnectionsTable(os.Stdout, rows)
			return nil
		},
	}
}

func connectionRows(cfg *config.Config, environment string) ([]connectionRow, error) {
	envNames := lo.Keys(cfg.Environments)
	sort.Strings(envNames)
	if environment != "" {
		if _, ok := cfg.Environments[environment]; !ok {
			return nil, errors.Errorf("environment '%s' not found in the configuration file", environment)
		}
		envNames = []string{environment}
	}

	var rows []connectionRow
	for _, envName := range envNames {
		conns := cfg.Environments[envName].Connections
		for _, name := range conns.Names() {
			details, _ := conns.Find(name)
			rows = append(rows, connectionRow{
				Environment: envName,
				Name:        name,
				Type:        details.Type,
				Schema:      details.Schema,
				Threads:     max(details.Threads, config.DefaultThreads),
			})
		}
	}

	return rows, nil
}

func printConnectionsTable(w io.Writer, rows []connectionRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Environment", "Name", "Type", "Schema", "Threads"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Environment, r.Name, r.Type, r.Schema, r.Threads})
	}
	t.Render()
}

func PingConnection(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "open a connection and ping it",
		ArgsUsage: "[connection name]",
		Flags:     []cli.Flag{configFileFlag, environmentFlag, outputFlag},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := c.String("output")
			_, cfg, err := loadProjectWithConfig(fs, workspaceOptions{
				configFile:  c.String(configFileFlag.Name),
				environment: c.String(environmentFlag.Name),
			})
			if err != nil {
				printError(err, output, "Failed to load the project")
				return cli.Exit("", 1)
			}

			name := c.Args().First()
			if name == "" {
				printError(errors.New("a connection name is required"), output, "Invalid arguments")
				return cli.Exit("", 1)
			}

			manager := connection.NewManager(cfg, makeLogger(*isDebug))
			defer manager.Close()

			target, err := manager.GetTarget(c.Context, name)
			if err != nil {
				printError(err, output, "Failed to open the connection")
				return cli.Exit("", 1)
			}

			if err := target.Client.Ping(c.Context); err != nil {
				printError(err, output, fmt.Sprintf("Failed to ping connection '%s'", name))
				return cli.Exit("", 1)
			}

			printSuccessForOutput(output, fmt.Sprintf("Connection '%s' (%s) is reachable.", name, target.Type))
			return nil
		},
	}
}
