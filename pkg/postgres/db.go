package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/ansisql"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

type Client struct {
	connection    connection
	config        PgConfig
	schemaCreator *ansisql.SchemaCreator
	typeMap       *pgtype.Map
	isolation     snapshot.IsolationLevel
}

type PgConfig interface {
	ToDBConnectionURI() string
	GetDatabase() string
}

type connection interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type Option func(*Client)

// WithIsolation declares the isolation level the warehouse runs transactions at.
func WithIsolation(level snapshot.IsolationLevel) Option {
	return func(c *Client) {
		c.isolation = level
	}
}

func NewClient(ctx context.Context, c PgConfig, opts ...Option) (*Client, error) {
	conn, err := pgxpool.New(ctx, c.ToDBConnectionURI())
	if err != nil {
		return nil, err
	}

	return newClient(conn, c, opts...), nil
}

func newClient(conn connection, c PgConfig, opts ...Option) *Client {
	client := &Client{
		connection:    conn,
		config:        c,
		schemaCreator: ansisql.NewSchemaCreator(),
		typeMap:       pgtype.NewMap(),
		isolation:     snapshot.IsolationReadCommitted,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client
}

func (c *Client) Close() {
	c.connection.Close()
}

func (c *Client) RunQueryWithoutResult(ctx context.Context, query *query.Query) error {
	_, err := c.connection.Exec(ctx, query.String(), query.Args...)
	if err != nil {
		return err
	}

	return nil
}

// Select runs a query and returns the results.
func (c *Client) Select(ctx context.Context, query *query.Query) ([][]interface{}, error) {
	rows, err := c.connection.Query(ctx, query.String(), query.Args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	collectedRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]interface{}, error) {
		return row.Values()
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to collect row values")
	}

	if len(collectedRows) == 0 {
		return make([][]interface{}, 0), nil
	}

	return collectedRows, nil
}

func (c *Client) SelectWithSchema(ctx context.Context, queryObj *query.Query) (*query.QueryResult, error) {
	rows, err := c.connection.Query(ctx, queryObj.String(), queryObj.Args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	fieldDescriptions := rows.FieldDescriptions()
	if fieldDescriptions == nil {
		return nil, errors.New("field descriptions are not available")
	}

	columns := make([]string, len(fieldDescriptions))
	columnTypes := make([]string, len(fieldDescriptions))
	for i, field := range fieldDescriptions {
		columns[i] = field.Name
		if t, ok := c.typeMap.TypeForOID(field.DataTypeOID); ok {
			columnTypes[i] = t.Name
		}
	}

	collectedRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]interface{}, error) {
		return row.Values()
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to collect row values")
	}

	return &query.QueryResult{
		Columns:     columns,
		ColumnTypes: columnTypes,
		Rows:        collectedRows,
	}, nil
}

// ApplyBatch runs all statements inside a single transaction and returns the total number of affected rows.
func (c *Client) ApplyBatch(ctx context.Context, statements []*query.Query) (int64, error) {
	tx, err := c.connection.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}

	var affected int64
	for i, q := range statements {
		tag, err := tx.Exec(ctx, q.String(), q.Args...)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = errors.Wrapf(err, "rollback failed: %s", rbErr)
			}
			return 0, errors.Wrapf(err, "statement %d of %d failed", i+1, len(statements))
		}
		affected += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "failed to commit transaction")
	}

	return affected, nil
}

const tableColumnsQuery = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// TableColumns lists the columns of a table, an empty result means the table does not exist.
func (c *Client) TableColumns(ctx context.Context, schema, table string) ([]query.Column, error) {
	if schema == "" {
		schema = "public"
	}

	rows, err := c.Select(ctx, &query.Query{Query: tableColumnsQuery, Args: []any{schema, table}})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list the columns of %s.%s", schema, table)
	}

	columns := make([]query.Column, 0, len(rows))
	for _, row := range rows {
		if len(row) != 2 {
			return nil, errors.Errorf("unexpected catalog row: %v", row)
		}
		name, ok := row[0].(string)
		if !ok {
			return nil, errors.Errorf("unexpected column name type %T", row[0])
		}
		dataType, _ := row[1].(string)
		columns = append(columns, query.Column{Name: name, Type: dataType})
	}

	return columns, nil
}

// Ping runs a simple query (SELECT 1) to validate the connection.
func (c *Client) Ping(ctx context.Context) error {
	q := query.Query{
		Query: "SELECT 1",
	}
	err := c.RunQueryWithoutResult(ctx, &q)
	if err != nil {
		return errors.Wrap(err, "failed to run test query on the connection")
	}

	return nil
}

func (c *Client) IsValid(ctx context.Context, query *query.Query) (bool, error) {
	rows, err := c.connection.Query(ctx, query.ToExplainQuery())
	if err == nil {
		err = rows.Err()
	}

	if rows != nil {
		defer rows.Close()
	}

	return err == nil, err
}

func (c *Client) CreateSchemaIfNotExist(ctx context.Context, schema string) error {
	return c.schemaCreator.CreateSchemaIfNotExist(ctx, c, schema)
}

func (c *Client) Capabilities() snapshot.Capabilities {
	return snapshot.Capabilities{
		AtomicBatches: true,
		Isolation:     c.isolation,
	}
}
