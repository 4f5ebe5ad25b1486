package config

import (
	"fmt"
)

const (
	TypeRedshift = "redshift"
	TypePostgres = "postgres"
	TypeDuckDB   = "duckdb"

	DefaultThreads = 1
)

type RedshiftConnection struct {
	Name         string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Username     string `yaml:"username" json:"username" mapstructure:"username"`
	Password     string `yaml:"password" json:"password" mapstructure:"password"`
	Host         string `yaml:"host" json:"host" mapstructure:"host"`
	Port         int    `yaml:"port" json:"port,omitempty" mapstructure:"port" jsonschema:"default=5439"`
	Database     string `yaml:"database" json:"database" mapstructure:"database"`
	Schema       string `yaml:"schema" json:"schema,omitempty" mapstructure:"schema"`
	PoolMaxConns int    `yaml:"pool_max_conns,omitempty" json:"pool_max_conns,omitempty" mapstructure:"pool_max_conns" default:"10"`
	SslMode      string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty" mapstructure:"ssl_mode" default:"disable"`
	Threads      int    `yaml:"threads,omitempty" json:"threads,omitempty" mapstructure:"threads" jsonschema:"default=1,minimum=1,maximum=8"`
}

func (c RedshiftConnection) GetName() string {
	return c.Name
}

type PostgresConnection struct {
	Name         string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Username     string `yaml:"username" json:"username" mapstructure:"username"`
	Password     string `yaml:"password" json:"password" mapstructure:"password"`
	Host         string `yaml:"host" json:"host" mapstructure:"host"`
	Port         int    `yaml:"port" json:"port,omitempty" mapstructure:"port" jsonschema:"default=5432"`
	Database     string `yaml:"database" json:"database" mapstructure:"database"`
	Schema       string `yaml:"schema" json:"schema,omitempty" mapstructure:"schema"`
	PoolMaxConns int    `yaml:"pool_max_conns,omitempty" json:"pool_max_conns,omitempty" mapstructure:"pool_max_conns" default:"10"`
	SslMode      string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty" mapstructure:"ssl_mode" default:"disable"`
	Threads      int    `yaml:"threads,omitempty" json:"threads,omitempty" mapstructure:"threads" jsonschema:"default=1,minimum=1"`
}

func (c PostgresConnection) GetName() string {
	return c.Name
}

type DuckDBConnection struct {
	Name    string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Path    string `yaml:"path" json:"path" mapstructure:"path" validate:"required"`
	Schema  string `yaml:"schema,omitempty" json:"schema,omitempty" mapstructure:"schema" jsonschema:"default=main"`
	Threads int    `yaml:"threads,omitempty" json:"threads,omitempty" mapstructure:"threads" jsonschema:"default=1,minimum=1"`
}

func (d DuckDBConnection) GetName() string {
	return d.Name
}

type Connections struct {
	Redshift []RedshiftConnection `yaml:"redshift,omitempty" json:"redshift,omitempty" mapstructure:"redshift" validate:"dive"`
	Postgres []PostgresConnection `yaml:"postgres,omitempty" json:"postgres,omitempty" mapstructure:"postgres" validate:"dive"`
	DuckDB   []DuckDBConnection   `yaml:"duckdb,omitempty" json:"duckdb,omitempty" mapstructure:"duckdb" validate:"dive"`
}

// ConnectionDetails is the type-independent view of a configured connection.
type ConnectionDetails struct {
	Name    string
	Type    string
	Schema  string
	Threads int
	Value   any
}

// Find returns the connection with the given name, or false if there is none.
func (c *Connections) Find(name string) (*ConnectionDetails, bool) {
	if c == nil {
		return nil, false
	}

	for i := range c.Redshift {
		conn := c.Redshift[i]
		if conn.Name == name {
			return &ConnectionDetails{Name: name, Type: TypeRedshift, Schema: conn.Schema, Threads: conn.Threads, Value: &conn}, true
		}
	}

	for i := range c.Postgres {
		conn := c.Postgres[i]
		if conn.Name == name {
			return &ConnectionDetails{Name: name, Type: TypePostgres, Schema: conn.Schema, Threads: orDefault(conn.Threads), Value: &conn}, true
		}
	}

	for i := range c.DuckDB {
		conn := c.DuckDB[i]
		if conn.Name == name {
			schema := conn.Schema
			if schema == "" {
				schema = "main"
			}
			return &ConnectionDetails{Name: name, Type: TypeDuckDB, Schema: schema, Threads: orDefault(conn.Threads), Value: &conn}, true
		}
	}

	return nil, false
}

// Names returns every connection name in declaration order, grouped by type.
func (c *Connections) Names() []string {
	if c == nil {
		return nil
	}

	names := make([]string, 0, len(c.Redshift)+len(c.Postgres)+len(c.DuckDB))
	for _, conn := range c.Redshift {
		names = append(names, conn.Name)
	}
	for _, conn := range c.Postgres {
		names = append(names, conn.Name)
	}
	for _, conn := range c.DuckDB {
		names = append(names, conn.Name)
	}
	return names
}

func (c *Connections) ensureUniqueNames() error {
	seen := make(map[string]bool)
	for _, name := range c.Names() {
		if seen[name] {
			return fmt.Errorf("duplicate connection name '%s'", name)
		}
		seen[name] = true
	}
	return nil
}

func orDefault(threads int) int {
	if threads == 0 {
		return DefaultThreads
	}
	return threads
}
