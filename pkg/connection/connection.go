package connection

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/ansisql"
	"github.com/redsnap-data/redsnap/pkg/config"
	duck "github.com/redsnap-data/redsnap/pkg/duckdb"
	"github.com/redsnap-data/redsnap/pkg/logger"
	"github.com/redsnap-data/redsnap/pkg/postgres"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/redsnap-data/redsnap/pkg/redshift"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

// Client is what every warehouse client offers to the snapshot engine, the checks and the CLI.
type Client interface {
	snapshot.Connection
	Select(ctx context.Context, query *query.Query) ([][]interface{}, error)
	RunQueryWithoutResult(ctx context.Context, query *query.Query) error
	Ping(ctx context.Context) error
}

// Target is an opened connection together with the settings snapshots run with.
type Target struct {
	Name    string
	Type    string
	Client  Client
	Dialect snapshot.Dialect
	Schema  string
	Threads int
}

type opener func(ctx context.Context, details *config.ConnectionDetails, configPath string) (Client, func(), error)

type Manager struct {
	config  *config.Config
	logger  logger.Logger
	openers map[string]opener

	mu      sync.Mutex
	targets map[string]*Target
	closers []func()
}

func NewManager(cfg *config.Config, logger logger.Logger) *Manager {
	return &Manager{
		config: cfg,
		logger: logger,
		openers: map[string]opener{
			config.TypeRedshift: openRedshift,
			config.TypePostgres: openPostgres,
			config.TypeDuckDB:   openDuckDB,
		},
		targets: make(map[string]*Target),
	}
}

// GetTarget opens the named connection once and returns it on every later call.
func (m *Manager) GetTarget(ctx context.Context, name string) (*Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.targets[name]; ok {
		return t, nil
	}

	details, err := m.config.GetConnection(name)
	if err != nil {
		return nil, err
	}

	open, ok := m.openers[details.Type]
	if !ok {
		return nil, errors.Errorf("unsupported connection type '%s'", details.Type)
	}

	m.logger.Debugw("opening connection", "name", name, "type", details.Type, "environment", m.config.SelectedEnvironmentName)
	client, closer, err := open(ctx, details, m.config.Path())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open connection '%s'", name)
	}
	m.closers = append(m.closers, closer)

	t := &Target{
		Name:    name,
		Type:    details.Type,
		Client:  client,
		Dialect: DialectFor(details.Type),
		Schema:  details.Schema,
		Threads: details.Threads,
	}
	if t.Threads == 0 {
		t.Threads = config.DefaultThreads
	}
	m.targets[name] = t

	return t, nil
}

// GetSnapshotTarget resolves the named connection for the snapshot and check operators.
func (m *Manager) GetSnapshotTarget(ctx context.Context, name string) (*ansisql.SnapshotTarget, error) {
	t, err := m.GetTarget(ctx, name)
	if err != nil {
		return nil, err
	}

	return &ansisql.SnapshotTarget{Client: t.Client, Dialect: t.Dialect, Schema: t.Schema}, nil
}

// Close releases every connection the manager opened.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.closers) > 0 {
		m.logger.Debugf("closing %d connections", len(m.closers))
	}
	for _, c := range m.closers {
		c()
	}
	m.closers = nil
	m.targets = make(map[string]*Target)
}

func DialectFor(connectionType string) snapshot.Dialect {
	switch connectionType {
	case config.TypeRedshift:
		return redshift.Dialect{}
	case config.TypeDuckDB:
		return duck.Dialect{}
	default:
		return postgres.Dialect{}
	}
}

func openRedshift(ctx context.Context, details *config.ConnectionDetails, _ string) (Client, func(), error) {
	c, ok := details.Value.(*config.RedshiftConnection)
	if !ok {
		return nil, nil, errors.Errorf("unexpected redshift connection value %T", details.Value)
	}

	client, err := redshift.NewClient(ctx, redshiftConfig(c))
	if err != nil {
		return nil, nil, err
	}

	return client, client.Close, nil
}

func redshiftConfig(c *config.RedshiftConnection) redshift.Config {
	return redshift.Config{
		Username:     c.Username,
		Password:     c.Password,
		Host:         c.Host,
		Port:         c.Port,
		Database:     c.Database,
		Schema:       c.Schema,
		PoolMaxConns: c.PoolMaxConns,
		SslMode:      c.SslMode,
		Threads:      c.Threads,
	}
}

// Validate checks the settings of a connection that can be verified without opening it.
func Validate(details *config.ConnectionDetails) error {
	if c, ok := details.Value.(*config.RedshiftConnection); ok {
		return redshiftConfig(c).Validate()
	}
	return nil
}

func openPostgres(ctx context.Context, details *config.ConnectionDetails, _ string) (Client, func(), error) {
	c, ok := details.Value.(*config.PostgresConnection)
	if !ok {
		return nil, nil, errors.Errorf("unexpected postgres connection value %T", details.Value)
	}

	client, err := postgres.NewClient(ctx, postgres.Config{
		Username:     c.Username,
		Password:     c.Password,
		Host:         c.Host,
		Port:         c.Port,
		Database:     c.Database,
		Schema:       c.Schema,
		PoolMaxConns: c.PoolMaxConns,
		SslMode:      c.SslMode,
	})
	if err != nil {
		return nil, nil, err
	}

	return client, client.Close, nil
}

func openDuckDB(ctx context.Context, details *config.ConnectionDetails, configPath string) (Client, func(), error) {
	c, ok := details.Value.(*config.DuckDBConnection)
	if !ok {
		return nil, nil, errors.Errorf("unexpected duckdb connection value %T", details.Value)
	}

	client, err := duck.NewClient(ctx, duck.Config{
		Path:   resolveFilePath(configPath, c.Path),
		Schema: c.Schema,
	})
	if err != nil {
		return nil, nil, err
	}

	return client, func() { _ = client.Close() }, nil
}
