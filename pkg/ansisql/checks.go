package ansisql

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/helpers"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

type selector interface {
	Select(ctx context.Context, query *query.Query) ([][]interface{}, error)
}

type CountableQueryCheck struct {
	conn                selector
	expectedQueryResult int64
	queryInstance       *query.Query
	checkName           string
	customError         func(count int64) error
}

func NewCountableQueryCheck(conn selector, expectedQueryResult int64, queryInstance *query.Query, checkName string, customError func(count int64) error) *CountableQueryCheck {
	return &CountableQueryCheck{
		conn:                conn,
		expectedQueryResult: expectedQueryResult,
		queryInstance:       queryInstance,
		checkName:           checkName,
		customError:         customError,
	}
}

func (c *CountableQueryCheck) Name() string {
	return c.checkName
}

func (c *CountableQueryCheck) Check(ctx context.Context) error {
	res, err := c.conn.Select(ctx, c.queryInstance)
	if err != nil {
		return errors.Wrapf(err, "failed '%s' check", c.checkName)
	}

	count, err := helpers.CastResultToInteger(res)
	if err != nil {
		return errors.Wrapf(err, "failed to parse '%s' check result", c.checkName)
	}

	if count != c.expectedQueryResult {
		return c.customError(count)
	}

	return nil
}

// HistoryChecks returns the invariant checks of a history table: at most one current row per key, no version
// starting before its predecessor was closed, and no version closed before it started.
func HistoryChecks(conn selector, table string) []*CountableQueryCheck {
	quoted := QuoteTableName(table)
	key := QuoteIdentifier(snapshot.ColumnUniqueKey)
	validFrom := QuoteIdentifier(snapshot.ColumnValidFrom)
	validTo := QuoteIdentifier(snapshot.ColumnValidTo)

	return []*CountableQueryCheck{
		NewCountableQueryCheck(
			conn,
			0,
			&query.Query{Query: fmt.Sprintf(
				"SELECT COUNT(*) FROM (SELECT %s FROM %s WHERE %s IS NULL GROUP BY %s HAVING COUNT(*) > 1) AS duplicated",
				key, quoted, validTo, key,
			)},
			"single_current",
			func(count int64) error {
				return errors.Errorf("table '%s' has %d keys with more than one current row", table, count)
			},
		),
		NewCountableQueryCheck(
			conn,
			0,
			&query.Query{Query: fmt.Sprintf(
				"SELECT COUNT(*) FROM (SELECT %s AS valid_to, LEAD(%s) OVER (PARTITION BY %s ORDER BY %s) AS next_valid_from FROM %s) AS versions "+
					"WHERE next_valid_from IS NOT NULL AND (valid_to IS NULL OR next_valid_from < valid_to)",
				validTo, validFrom, key, validFrom, quoted,
			)},
			"no_overlaps",
			func(count int64) error {
				return errors.Errorf("table '%s' has %d versions that overlap with the next version of their key", table, count)
			},
		),
		NewCountableQueryCheck(
			conn,
			0,
			&query.Query{Query: fmt.Sprintf(
				"SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s < %s",
				quoted, validTo, validTo, validFrom,
			)},
			"valid_range",
			func(count int64) error {
				return errors.Errorf("table '%s' has %d versions closed before they became valid", table, count)
			},
		),
	}
}
