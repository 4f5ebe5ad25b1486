package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/redsnap-data/redsnap/pkg/config"
	duck "github.com/redsnap-data/redsnap/pkg/duckdb"
	"github.com/redsnap-data/redsnap/pkg/postgres"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/redsnap-data/redsnap/pkg/redshift"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	name string
}

func (f *fakeClient) SelectWithSchema(context.Context, *query.Query) (*query.QueryResult, error) {
	return &query.QueryResult{}, nil
}

func (f *fakeClient) ApplyBatch(context.Context, []*query.Query) (int64, error) { return 0, nil }

func (f *fakeClient) TableColumns(context.Context, string, string) ([]query.Column, error) {
	return nil, nil
}

func (f *fakeClient) CreateSchemaIfNotExist(context.Context, string) error { return nil }

func (f *fakeClient) Capabilities() snapshot.Capabilities {
	return snapshot.Capabilities{AtomicBatches: true, Isolation: snapshot.IsolationSerializable}
}

func (f *fakeClient) Select(context.Context, *query.Query) ([][]interface{}, error) { return nil, nil }

func (f *fakeClient) RunQueryWithoutResult(context.Context, *query.Query) error { return nil }

func (f *fakeClient) Ping(context.Context) error { return nil }

const testConfig = `environments:
  default:
    connections:
      redshift:
        - name: warehouse
          username: u
          password: p
          host: h
          database: d
          schema: snapshots
          threads: 4
      duckdb:
        - name: local
          path: data/local.db
`

func loadConfig(t *testing.T) *config.Config {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/project/.redsnap.yml", []byte(testConfig), 0o644))
	cfg, err := config.LoadFromFile(fs, "/project/.redsnap.yml")
	require.NoError(t, err)
	return cfg
}

func TestManager_GetTarget(t *testing.T) {
	t.Parallel()

	m := NewManager(loadConfig(t), zap.NewNop().Sugar())

	opened := 0
	closed := 0
	var duckPath string
	fake := func(_ context.Context, details *config.ConnectionDetails, configPath string) (Client, func(), error) {
		opened++
		if c, ok := details.Value.(*config.DuckDBConnection); ok {
			duckPath = resolveFilePath(configPath, c.Path)
		}
		return &fakeClient{name: details.Name}, func() { closed++ }, nil
	}
	m.openers[config.TypeRedshift] = fake
	m.openers[config.TypeDuckDB] = fake

	target, err := m.GetTarget(context.Background(), "warehouse")
	require.NoError(t, err)
	assert.Equal(t, "redshift", target.Type)
	assert.Equal(t, "snapshots", target.Schema)
	assert.Equal(t, 4, target.Threads)
	assert.IsType(t, redshift.Dialect{}, target.Dialect)

	again, err := m.GetTarget(context.Background(), "warehouse")
	require.NoError(t, err)
	assert.Same(t, target, again)
	assert.Equal(t, 1, opened)

	st, err := m.GetSnapshotTarget(context.Background(), "warehouse")
	require.NoError(t, err)
	assert.Same(t, target.Client, st.Client)
	assert.Equal(t, "snapshots", st.Schema)
	assert.Equal(t, 1, opened)

	local, err := m.GetTarget(context.Background(), "local")
	require.NoError(t, err)
	assert.Equal(t, "main", local.Schema)
	assert.Equal(t, 1, local.Threads)
	assert.Equal(t, "/project/data/local.db", duckPath)

	_, err = m.GetTarget(context.Background(), "missing")
	require.EqualError(t, err, "connection 'missing' not found in config file '/project/.redsnap.yml' under environment 'default'")

	m.Close()
	assert.Equal(t, 2, closed)
}

func TestManager_GetTarget_OpenError(t *testing.T) {
	t.Parallel()

	m := NewManager(loadConfig(t), zap.NewNop().Sugar())
	m.openers[config.TypeRedshift] = func(context.Context, *config.ConnectionDetails, string) (Client, func(), error) {
		return nil, nil, errors.New("connection refused")
	}

	_, err := m.GetTarget(context.Background(), "warehouse")
	require.EqualError(t, err, "failed to open connection 'warehouse': connection refused")
}

func TestDialectFor(t *testing.T) {
	t.Parallel()

	assert.IsType(t, redshift.Dialect{}, DialectFor(config.TypeRedshift))
	assert.IsType(t, postgres.Dialect{}, DialectFor(config.TypePostgres))
	assert.IsType(t, duck.Dialect{}, DialectFor(config.TypeDuckDB))
}

func TestResolveFilePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/project/local.db", resolveFilePath("/project/.redsnap.yml", "local.db"))
	assert.Equal(t, "/abs/local.db", resolveFilePath("/project/.redsnap.yml", "/abs/local.db"))
	assert.Equal(t, ":memory:", resolveFilePath("/project/.redsnap.yml", ":memory:"))
	assert.Equal(t, "local.db", resolveFilePath("", "local.db"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		details *config.ConnectionDetails
		wantErr string
	}{
		{
			name:    "redshift threads in range",
			details: &config.ConnectionDetails{Type: config.TypeRedshift, Value: &config.RedshiftConnection{Name: "w", Threads: 8}},
		},
		{
			name:    "redshift threads unset",
			details: &config.ConnectionDetails{Type: config.TypeRedshift, Value: &config.RedshiftConnection{Name: "w"}},
		},
		{
			name:    "redshift threads out of range",
			details: &config.ConnectionDetails{Type: config.TypeRedshift, Value: &config.RedshiftConnection{Name: "w", Threads: 9}},
			wantErr: "Value given was 9 but it should be an int between 1 and 8",
		},
		{
			name:    "duckdb has nothing to check",
			details: &config.ConnectionDetails{Type: config.TypeDuckDB, Value: &config.DuckDBConnection{Name: "l", Path: "x.db"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tt.details)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
