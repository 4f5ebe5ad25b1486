//go:build redsnap_no_duckdb

package duck

import (
	"context"
	"errors"

	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

var errDuckDBNotSupported = errors.New("DuckDB support not available in this build")

type Client struct{}

func NewClient(_ context.Context, _ Config) (*Client, error) {
	return nil, errDuckDBNotSupported
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) RunQueryWithoutResult(context.Context, *query.Query) error {
	return errDuckDBNotSupported
}

func (c *Client) Select(context.Context, *query.Query) ([][]interface{}, error) {
	return nil, errDuckDBNotSupported
}

func (c *Client) SelectWithSchema(context.Context, *query.Query) (*query.QueryResult, error) {
	return nil, errDuckDBNotSupported
}

func (c *Client) ApplyBatch(context.Context, []*query.Query) (int64, error) {
	return 0, errDuckDBNotSupported
}

func (c *Client) TableColumns(context.Context, string, string) ([]query.Column, error) {
	return nil, errDuckDBNotSupported
}

func (c *Client) Ping(context.Context) error {
	return errDuckDBNotSupported
}

func (c *Client) CreateSchemaIfNotExist(context.Context, string) error {
	return errDuckDBNotSupported
}

func (c *Client) Capabilities() snapshot.Capabilities {
	return snapshot.Capabilities{}
}
