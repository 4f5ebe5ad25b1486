package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/config"
	"github.com/redsnap-data/redsnap/pkg/connection"
	"github.com/redsnap-data/redsnap/pkg/project"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func Validate() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate the configuration and the snapshot definitions of a project without connecting to the warehouse",
		ArgsUsage: "[path to the project]",
		Flags:     append(workspaceFlags(), outputFlag),
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := c.String("output")
			ws, err := loadWorkspace(fs, workspaceOptionsFromContext(c))
			if err != nil {
				printError(err, output, "Failed to load the project")
				return cli.Exit("", 1)
			}

			errs := validateWorkspace(fs, ws)
			if len(errs) > 0 {
				printErrors(errs, output, "The project has issues")
				return cli.Exit("", 1)
			}

			printSuccessForOutput(output, fmt.Sprintf("Successfully validated %d snapshots.", len(ws.snapshots)))
			return nil
		},
	}
}

func validateWorkspace(fs afero.Fs, ws *workspace) []error {
	var errs []error

	buf, err := afero.ReadFile(fs, ws.config.Path())
	if err != nil {
		errs = append(errs, errors.Wrap(err, "failed to read the config file"))
	} else if err := config.ValidateDocument(buf); err != nil {
		errs = append(errs, err)
	}

	validated := map[string]bool{}
	for _, def := range ws.snapshots {
		details, err := ws.config.GetConnection(def.Connection)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "snapshot '%s'", def.Name))
			continue
		}

		if !validated[details.Name] {
			validated[details.Name] = true
			if err := connection.Validate(details); err != nil {
				errs = append(errs, errors.Wrapf(err, "connection '%s'", details.Name))
			}
		}

		if err := validateDefinition(def, details, ws.startedAt); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func validateDefinition(def *project.Definition, details *config.ConnectionDetails, runAt time.Time) error {
	cfg := def.Config
	if cfg.TargetSchema == "" {
		cfg.TargetSchema = details.Schema
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if _, err := connection.DialectFor(details.Type).TableOptions(cfg.Dist, cfg.SortType, cfg.Sort); err != nil {
		return errors.Wrapf(err, "snapshot '%s'", def.Name)
	}

	if _, err := def.RenderSource(runAt); err != nil {
		return err
	}
	return nil
}
