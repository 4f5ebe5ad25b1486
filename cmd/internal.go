package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/redsnap-data/redsnap/pkg/config"
	"github.com/urfave/cli/v2"
)

func Internal() *cli.Command {
	return &cli.Command{
		Name:   "internal",
		Hidden: true,
		Subcommands: []*cli.Command{
			ConfigSchema(),
			ConnectionSchemas(),
		},
	}
}

func ConfigSchema() *cli.Command {
	return &cli.Command{
		Name:  "config-schema",
		Usage: "print the JSON schema of the .redsnap.yml file",
		Action: func(c *cli.Context) error {
			schema, err := config.JSONSchema()
			if err != nil {
				printErrorJSON(err)
				return cli.Exit("", 1)
			}

			fmt.Println(string(schema))
			return nil
		},
	}
}

func ConnectionSchemas() *cli.Command {
	return &cli.Command{
		Name:  "connections",
		Usage: "return all the possible connection types and their fields",
		Action: func(c *cli.Context) error {
			js, err := json.MarshalIndent(config.ConnectionTypes(), "", "  ")
			if err != nil {
				printErrorJSON(err)
				return cli.Exit("", 1)
			}

			fmt.Println(string(js))
			return nil
		},
	}
}
