package redshift

import (
	"context"
	"fmt"

	"github.com/redsnap-data/redsnap/pkg/postgres"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

const (
	ThreadMin = 1
	ThreadMax = 8

	defaultPort = 5439
)

// Config represents a Redshift run-target.
type Config struct {
	Username     string
	Password     string
	Host         string
	Port         int
	Database     string
	Schema       string
	PoolMaxConns int
	SslMode      string
	Threads      int
}

// Validate checks the run-target settings that can be verified without connecting.
func (c Config) Validate() error {
	if c.Threads == 0 {
		return nil
	}
	if c.Threads < ThreadMin || c.Threads > ThreadMax {
		return fmt.Errorf("Invalid value given for \"threads\" in active run-target.\nValue given was %d but it should be an int between %d and %d", c.Threads, ThreadMin, ThreadMax) //nolint:stylecheck
	}
	return nil
}

// GetThreads returns the number of snapshots that may run at the same time, 1 when unset.
func (c Config) GetThreads() int {
	if c.Threads == 0 {
		return ThreadMin
	}
	return c.Threads
}

// ToDSN renders the libpq keyword/value connection string.
func (c Config) ToDSN() string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}

	return fmt.Sprintf("dbname='%s' user='%s' host='%s' password='%s' port='%d'",
		c.Database,
		c.Username,
		c.Host,
		c.Password,
		port,
	)
}

// ToDBConnectionURI returns the DSN extended with the pool and session settings pgx understands.
func (c Config) ToDBConnectionURI() string {
	dsn := c.ToDSN()
	if c.SslMode != "" {
		dsn += fmt.Sprintf(" sslmode='%s'", c.SslMode)
	}
	if c.PoolMaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", c.PoolMaxConns)
	}
	if c.Schema != "" {
		dsn += fmt.Sprintf(" search_path='%s'", c.Schema)
	}
	return dsn
}

func (c Config) GetDatabase() string {
	return c.Database
}

// NewClient validates the run-target and opens a pgx pool against it. Redshift runs every transaction serializable.
func NewClient(ctx context.Context, c Config) (*postgres.Client, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return postgres.NewClient(ctx, c, postgres.WithIsolation(snapshot.IsolationSerializable))
}
