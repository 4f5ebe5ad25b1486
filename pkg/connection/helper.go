package connection

import (
	"path/filepath"
)

// resolveFilePath resolves a path from the config file relative to the directory the config file lives in.
func resolveFilePath(configPath, path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) || configPath == "" {
		return path
	}

	return filepath.Join(filepath.Dir(configPath), path)
}
