//go:build !redsnap_no_duckdb

package duck

import (
	"context"
	"database/sql"
	"math/big"

	"github.com/jmoiron/sqlx"
	"github.com/marcboeker/go-duckdb"
	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/ansisql"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

type Client struct {
	connection    connection
	config        Config
	schemaCreator *ansisql.SchemaCreator
}

type connection interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, sql string, arguments ...any) (sql.Result, error)
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Close() error
}

func NewClient(ctx context.Context, c Config) (*Client, error) {
	conn, err := sqlx.Open("duckdb", c.ToDBConnectionURI())
	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "failed to open duckdb database '%s'", c.Path)
	}

	return &Client{
		connection:    conn,
		config:        c,
		schemaCreator: ansisql.NewSchemaCreator(),
	}, nil
}

func (c *Client) Close() error {
	return c.connection.Close()
}

func (c *Client) RunQueryWithoutResult(ctx context.Context, query *query.Query) error {
	LockDatabase(c.config.lockKey())
	defer UnlockDatabase(c.config.lockKey())

	_, err := c.connection.ExecContext(ctx, query.String(), query.Args...)
	return err
}

// Select runs a query and returns the results.
func (c *Client) Select(ctx context.Context, query *query.Query) ([][]interface{}, error) {
	res, err := c.SelectWithSchema(ctx, query)
	if err != nil {
		return nil, err
	}

	return res.Rows, nil
}

func (c *Client) SelectWithSchema(ctx context.Context, queryObject *query.Query) (*query.QueryResult, error) {
	LockDatabase(c.config.lockKey())
	defer UnlockDatabase(c.config.lockKey())

	rows, err := c.connection.QueryContext(ctx, queryObject.String(), queryObject.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := &query.QueryResult{
		Columns:     cols,
		ColumnTypes: make([]string, len(columnTypes)),
		Rows:        [][]interface{}{},
	}
	for i, ct := range columnTypes {
		result.ColumnTypes[i] = ct.DatabaseTypeName()
	}

	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}

		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		for i, val := range columns {
			columns[i] = convertValue(val)
		}

		result.Rows = append(result.Rows, columns)
	}

	return result, rows.Err()
}

// convertValue turns decimals into their exact text form so that wide values survive comparison and re-insertion.
func convertValue(val interface{}) interface{} {
	if decimal, ok := val.(duckdb.Decimal); ok {
		return decimalString(decimal)
	}

	return val
}

func decimalString(d duckdb.Decimal) string {
	if d.Value == nil {
		return new(big.Rat).FloatString(int(d.Scale))
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil)
	return new(big.Rat).SetFrac(d.Value, scale).FloatString(int(d.Scale))
}

// ApplyBatch runs all statements inside a single transaction and returns the total number of affected rows.
func (c *Client) ApplyBatch(ctx context.Context, statements []*query.Query) (int64, error) {
	LockDatabase(c.config.lockKey())
	defer UnlockDatabase(c.config.lockKey())

	tx, err := c.connection.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}

	var affected int64
	for i, q := range statements {
		res, err := tx.ExecContext(ctx, q.String(), q.Args...)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Wrapf(err, "rollback failed: %s", rbErr)
			}
			return 0, errors.Wrapf(err, "statement %d of %d failed", i+1, len(statements))
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit transaction")
	}

	return affected, nil
}

const tableColumnsQuery = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = ? AND table_name = ?
ORDER BY ordinal_position`

// TableColumns lists the columns of a table, an empty result means the table does not exist.
func (c *Client) TableColumns(ctx context.Context, schema, table string) ([]query.Column, error) {
	if schema == "" {
		schema = c.config.GetSchema()
	}

	rows, err := c.Select(ctx, &query.Query{Query: tableColumnsQuery, Args: []any{schema, table}})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list the columns of %s.%s", schema, table)
	}

	columns := make([]query.Column, 0, len(rows))
	for _, row := range rows {
		name, ok := row[0].(string)
		if !ok {
			return nil, errors.Errorf("unexpected column name type %T", row[0])
		}
		dataType, _ := row[1].(string)
		columns = append(columns, query.Column{Name: name, Type: dataType})
	}

	return columns, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.RunQueryWithoutResult(ctx, &query.Query{Query: "SELECT 1"}); err != nil {
		return errors.Wrap(err, "failed to run test query on the connection")
	}
	return nil
}

func (c *Client) CreateSchemaIfNotExist(ctx context.Context, schema string) error {
	return c.schemaCreator.CreateSchemaIfNotExist(ctx, c, schema)
}

// Capabilities reports DuckDB's snapshot isolation as repeatable read.
func (c *Client) Capabilities() snapshot.Capabilities {
	return snapshot.Capabilities{
		AtomicBatches: true,
		Isolation:     snapshot.IsolationRepeatableRead,
	}
}
