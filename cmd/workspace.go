package cmd

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/config"
	"github.com/redsnap-data/redsnap/pkg/project"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:    "config-file",
		EnvVars: []string{"REDSNAP_CONFIG_FILE"},
		Usage:   "the path to the .redsnap.yml file, defaults to the one in the project root",
	}
	environmentFlag = &cli.StringFlag{
		Name:    "environment",
		Aliases: []string{"e", "env"},
		Usage:   "the environment to use",
	}
	varFlag = &cli.StringSliceFlag{
		Name:  "var",
		Usage: "override a project variable, in the form of key=value",
	}
	selectFlag = &cli.StringSliceFlag{
		Name:    "select",
		Aliases: []string{"s"},
		Usage:   "only run the snapshots with the given names",
	}
	excludeFlag = &cli.StringSliceFlag{
		Name:    "exclude",
		Aliases: []string{"x"},
		Usage:   "skip the snapshots with the given names",
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "the output type, possible values are: plain, json",
	}
)

func workspaceFlags() []cli.Flag {
	return []cli.Flag{configFileFlag, environmentFlag, varFlag, selectFlag, excludeFlag}
}

// workspace is everything a command needs to know before it touches a warehouse.
type workspace struct {
	project     *project.Project
	config      *config.Config
	snapshots   []*project.Definition
	startedAt   time.Time
	environment string
}

type workspaceOptions struct {
	path        string
	configFile  string
	environment string
	vars        []string
	selected    []string
	excluded    []string
	startedAt   time.Time
}

func workspaceOptionsFromContext(c *cli.Context) workspaceOptions {
	return workspaceOptions{
		path:        c.Args().Get(0),
		configFile:  c.String(configFileFlag.Name),
		environment: c.String(environmentFlag.Name),
		vars:        c.StringSlice(varFlag.Name),
		selected:    c.StringSlice(selectFlag.Name),
		excluded:    c.StringSlice(excludeFlag.Name),
		startedAt:   time.Now().UTC(),
	}
}

func loadWorkspace(fs afero.Fs, opts workspaceOptions) (*workspace, error) {
	proj, cfg, err := loadProjectWithConfig(fs, opts)
	if err != nil {
		return nil, err
	}

	targetSchema := ""
	if details, err := cfg.GetConnection(proj.Connection); err == nil {
		targetSchema = details.Schema
	}

	vars, err := project.ParseVarOverrides(opts.vars)
	if err != nil {
		return nil, err
	}

	definitions, err := proj.LoadSnapshots(fs, project.LoadOptions{
		Vars:         vars,
		TargetSchema: targetSchema,
		RunStartedAt: opts.startedAt,
	})
	if err != nil {
		return nil, err
	}

	selected, err := project.Select(definitions, opts.selected, opts.excluded)
	if err != nil {
		return nil, err
	}

	for _, def := range selected {
		if def.Connection == "" {
			return nil, errors.Errorf("snapshot '%s' has no connection, set 'connection' in %s or in the snapshot", def.Name, project.FileName)
		}
	}

	return &workspace{
		project:     proj,
		config:      cfg,
		snapshots:   selected,
		startedAt:   opts.startedAt,
		environment: cfg.SelectedEnvironmentName,
	}, nil
}

// loadProjectWithConfig finds the project around opts.path. An environment with a single connection makes it the
// default connection of the project.
func loadProjectWithConfig(fs afero.Fs, opts workspaceOptions) (*project.Project, *config.Config, error) {
	start := opts.path
	if start == "" {
		start = "."
	}
	start, err := filepath.Abs(start)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to resolve the path '%s'", opts.path)
	}

	root, err := project.FindRoot(fs, start)
	if err != nil {
		return nil, nil, err
	}

	proj, err := project.Load(fs, root)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(fs, root, opts.configFile, opts.environment)
	if err != nil {
		return nil, nil, err
	}

	if proj.Connection == "" {
		if names := cfg.SelectedEnvironment.Connections.Names(); len(names) == 1 {
			proj.Connection = names[0]
		}
	}

	return proj, cfg, nil
}

func loadConfig(fs afero.Fs, root, configFile, environment string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile == "" {
		cfg, err = config.LoadOrCreate(fs, filepath.Join(root, config.DefaultFileName))
	} else {
		cfg, err = config.LoadFromFile(fs, configFile)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load the config file")
	}

	if environment != "" {
		if err := cfg.SelectEnvironment(environment); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
