package duck

import (
	"path/filepath"
)

const DefaultSchema = "main"

type Config struct {
	Path   string
	Schema string
}

// ToDBConnectionURI returns the database file path the duckdb driver opens.
func (c Config) ToDBConnectionURI() string {
	return c.Path
}

func (c Config) GetSchema() string {
	if c.Schema == "" {
		return DefaultSchema
	}
	return c.Schema
}

// lockKey identifies the database file regardless of how its path was spelled.
func (c Config) lockKey() string {
	abs, err := filepath.Abs(c.Path)
	if err != nil {
		return filepath.Clean(c.Path)
	}
	return abs
}
