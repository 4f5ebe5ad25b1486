package ansisql

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/helpers"
	"github.com/redsnap-data/redsnap/pkg/query"
)

// TableDiff counts the rows that exist only on one side of a comparison.
type TableDiff struct {
	OnlyInLeft  int64
	OnlyInRight int64
}

func (d TableDiff) Equal() bool {
	return d.OnlyInLeft == 0 && d.OnlyInRight == 0
}

// BuildCompareQuery renders a symmetric difference of two tables over the given columns.
func BuildCompareQuery(left, right string, columns []string) (*query.Query, error) {
	if len(columns) == 0 {
		return nil, errors.New("at least one column is required to compare tables")
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdentifier(c)
	}
	cols := strings.Join(quoted, ", ")
	l, r := QuoteTableName(left), QuoteTableName(right)

	return &query.Query{Query: fmt.Sprintf(
		"SELECT\n"+
			"    (SELECT COUNT(*) FROM (SELECT %[1]s FROM %[2]s EXCEPT SELECT %[1]s FROM %[3]s) AS only_left) AS only_in_left,\n"+
			"    (SELECT COUNT(*) FROM (SELECT %[1]s FROM %[3]s EXCEPT SELECT %[1]s FROM %[2]s) AS only_right) AS only_in_right",
		cols, l, r,
	)}, nil
}

// CompareTables compares the contents of two tables, ignoring row order and duplicate rows.
func CompareTables(ctx context.Context, conn selector, left, right string, columns []string) (*TableDiff, error) {
	q, err := BuildCompareQuery(left, right, columns)
	if err != nil {
		return nil, err
	}

	res, err := conn.Select(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compare '%s' with '%s'", left, right)
	}
	if len(res) != 1 || len(res[0]) != 2 {
		return nil, errors.Errorf("unexpected comparison result: %v", res)
	}

	onlyLeft, err := helpers.CastResultToInteger([][]interface{}{{res[0][0]}})
	if err != nil {
		return nil, err
	}
	onlyRight, err := helpers.CastResultToInteger([][]interface{}{{res[0][1]}})
	if err != nil {
		return nil, err
	}

	return &TableDiff{OnlyInLeft: onlyLeft, OnlyInRight: onlyRight}, nil
}
