package project

import (
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/jinja"
	"github.com/redsnap-data/redsnap/pkg/path"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var snapshotFileSuffixes = []string{".sql"}

// Definition is a snapshot defined in the project, with its configuration fully resolved and the source query
// still in its template form.
type Definition struct {
	Name       string
	Path       string
	Connection string
	Config     snapshot.Config
	Source     string

	vars map[string]any
}

// RenderSource renders the source query of the snapshot for a run started at runAt.
func (d *Definition) RenderSource(runAt time.Time) (string, error) {
	rendered, err := jinja.NewSnapshotRenderer(d.vars, d.Config.TargetSchema, runAt).Render(d.Source)
	if err != nil {
		return "", errors.Wrapf(err, "failed to render the source query of snapshot '%s'", d.Name)
	}

	return rendered, nil
}

type LoadOptions struct {
	// Vars override the project variables.
	Vars map[string]any
	// TargetSchema is exposed to templates and used for snapshots that do not configure a target schema.
	TargetSchema string
	RunStartedAt time.Time
}

type definitionConfig struct {
	snapshot.Config `mapstructure:",squash"`
	Connection      string `mapstructure:"connection"`
}

// LoadSnapshots reads every snapshot definition of the project. Names must be unique across the project.
func (p *Project) LoadSnapshots(fs afero.Fs, opts LoadOptions) ([]*Definition, error) {
	vars := lo.Assign(p.Vars, opts.Vars)
	if opts.RunStartedAt.IsZero() {
		opts.RunStartedAt = time.Now().UTC()
	}

	renderer := jinja.NewSnapshotRenderer(vars, opts.TargetSchema, opts.RunStartedAt)
	defaults, err := renderValues(renderer, p.Snapshots)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render the snapshot defaults of the project")
	}

	var definitions []*Definition
	seen := make(map[string]string)
	for _, dir := range p.SnapshotDirs() {
		if !path.DirExists(fs, dir) {
			continue
		}

		files, err := path.GetAllFilesRecursive(fs, dir, snapshotFileSuffixes)
		if err != nil {
			return nil, err
		}

		for _, file := range files {
			def, err := loadDefinition(fs, file, renderer, defaults)
			if err != nil {
				return nil, err
			}

			def.vars = vars
			if def.Config.TargetSchema == "" {
				def.Config.TargetSchema = opts.TargetSchema
			}
			if def.Connection == "" {
				def.Connection = p.Connection
			}
			if rel, err := filepath.Rel(p.Root, file); err == nil {
				def.Path = rel
			}

			if other, ok := seen[def.Name]; ok {
				return nil, errors.Errorf("found two snapshots with the name '%s': '%s' and '%s'", def.Name, other, def.Path)
			}
			seen[def.Name] = def.Path
			definitions = append(definitions, def)
		}
	}

	return definitions, nil
}

func loadDefinition(fs afero.Fs, file string, renderer *jinja.Renderer, defaults map[string]any) (*Definition, error) {
	buf, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %s", file)
	}

	parts, err := splitSnapshotFile(string(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse snapshot file %s", file)
	}

	fileConfig := map[string]any{}
	if strings.TrimSpace(parts.header) != "" {
		header, err := renderer.Render(parts.header)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to render the configuration of %s", file)
		}
		if err := yaml.Unmarshal([]byte(header), &fileConfig); err != nil {
			return nil, errors.Wrapf(err, "invalid snapshot configuration in %s", file)
		}
	}

	merged := lo.Assign(defaults, fileConfig)
	if _, ok := merged["name"]; !ok {
		merged["name"] = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}

	var cfg definitionConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       commaSeparatedListHook,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, errors.Wrapf(err, "invalid snapshot configuration in %s", file)
	}

	if parts.body == "" {
		return nil, errors.Errorf("snapshot file %s has no source query", file)
	}

	return &Definition{
		Name:       cfg.Name,
		Path:       file,
		Connection: cfg.Connection,
		Config:     cfg.Config,
		Source:     parts.body,
	}, nil
}

// commaSeparatedListHook allows list settings such as check_cols to be given as "a, b".
func commaSeparatedListHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}

	raw, _ := data.(string)
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}

	return lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}), nil
}

func renderValues(r *jinja.Renderer, in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for key, value := range in {
		rendered, err := renderValue(r, value)
		if err != nil {
			return nil, errors.Wrapf(err, "key '%s'", key)
		}
		out[key] = rendered
	}

	return out, nil
}

func renderValue(r *jinja.Renderer, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.Render(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			rendered, err := renderValue(r, item)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	case map[string]any:
		return renderValues(r, v)
	default:
		return value, nil
	}
}
