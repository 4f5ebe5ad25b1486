package path

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var SkipDirs = []string{".git", ".github", ".vscode", "node_modules", "dist", "build", "target", "vendor", ".venv", "venv"}

// GetAllFilesRecursive lists the files under root whose names end with one of the suffixes, sorted.
func GetAllFilesRecursive(fs afero.Fs, root string, suffixes []string) ([]string, error) {
	var paths []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != root && slices.Contains(SkipDirs, info.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		for _, s := range suffixes {
			if strings.HasSuffix(path, s) {
				paths = append(paths, path)
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error walking directory %s", root)
	}

	sort.Strings(paths)
	return paths, nil
}

// FindRootContaining walks up from start until it finds a directory that contains fileName.
func FindRootContaining(fs afero.Fs, start, fileName string) (string, error) {
	current, err := filepath.Abs(start)
	if err != nil {
		return "", errors.Wrapf(err, "failed to convert path to absolute path")
	}

	for {
		exists, err := afero.Exists(fs, filepath.Join(current, fileName))
		if err != nil {
			return "", errors.Wrapf(err, "failed to check for %s in %s", fileName, current)
		}
		if exists {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", errors.Errorf("cannot find a '%s' file in '%s' or any of its parents", fileName, start)
		}
		current = parent
	}
}
