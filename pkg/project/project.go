package project

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/path"
	"github.com/spf13/afero"
)

const (
	FileName            = "redsnap.yml"
	DefaultSnapshotPath = "snapshots"
)

// Project is the content of a redsnap.yml file. Snapshot definitions live under the snapshot paths, relative to the
// directory the file is in.
type Project struct {
	Root string `yaml:"-"`

	Name          string         `yaml:"name" validate:"required"`
	SnapshotPaths []string       `yaml:"snapshot-paths"`
	Connection    string         `yaml:"connection"`
	Vars          map[string]any `yaml:"vars"`
	// Snapshots holds the defaults that apply to every snapshot of the project.
	Snapshots map[string]any `yaml:"snapshots"`
}

// FindRoot looks for the closest directory containing a redsnap.yml, starting from start.
func FindRoot(fs afero.Fs, start string) (string, error) {
	return path.FindRootContaining(fs, start, FileName)
}

func Load(fs afero.Fs, root string) (*Project, error) {
	var p Project
	if err := path.ReadYaml(fs, filepath.Join(root, FileName), &p); err != nil {
		return nil, errors.Wrapf(err, "failed to read the project file in '%s'", root)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get absolute path for %s", root)
	}

	p.Root = abs
	if len(p.SnapshotPaths) == 0 {
		p.SnapshotPaths = []string{DefaultSnapshotPath}
	}
	if p.Vars == nil {
		p.Vars = map[string]any{}
	}

	return &p, nil
}

// SnapshotDirs returns the absolute snapshot directories of the project.
func (p *Project) SnapshotDirs() []string {
	dirs := make([]string, 0, len(p.SnapshotPaths))
	for _, dir := range p.SnapshotPaths {
		if filepath.IsAbs(dir) {
			dirs = append(dirs, filepath.Clean(dir))
			continue
		}
		dirs = append(dirs, filepath.Join(p.Root, dir))
	}

	return dirs
}
