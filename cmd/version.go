package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Go      string `json:"go"`
}

func VersionCmd(commit string) *cli.Command {
	return &cli.Command{
		Name: "version",
		Flags: []cli.Flag{
			outputFlag,
		},
		Action: func(c *cli.Context) error {
			info := VersionInfo{
				Version: c.App.Version,
				Commit:  commit,
				Go:      runtime.Version(),
			}

			if c.String("output") == "json" {
				outputString, err := json.Marshal(info)
				if err != nil {
					return errors.Wrap(err, "failed to marshal the output")
				}
				fmt.Println(string(outputString))

				return nil
			}

			fmt.Printf("Current: %s (%s)\n", info.Version, info.Commit)
			fmt.Printf("Built with: %s\n", info.Go)
			return nil
		},
	}
}
