package query

import (
	"strings"
)

type Query struct {
	VariableDefinitions []string
	Query               string
	Args                []any
}

func (q Query) ToExplainQuery() string {
	eq := ""
	if len(q.VariableDefinitions) > 0 {
		eq += strings.Join(q.VariableDefinitions, ";\n") + ";\n"
	}

	eq += "EXPLAIN " + q.Query
	if !strings.HasSuffix(eq, ";") {
		eq += ";"
	}

	return eq
}

func (q Query) String() string {
	return q.Query
}

// Column describes a single column of a relation as reported by the driver or the catalog.
type Column struct {
	Name string
	Type string
}

type QueryResult struct {
	Columns     []string
	ColumnTypes []string
	Rows        [][]interface{}
}

// ColumnIndex returns the position of the given column in the result, case-insensitive, or -1.
func (r *QueryResult) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}

	return -1
}

// TypedColumns zips the column names with their types, types may be empty when the driver does not report them.
func (r *QueryResult) TypedColumns() []Column {
	cols := make([]Column, len(r.Columns))
	for i, name := range r.Columns {
		cols[i] = Column{Name: name}
		if i < len(r.ColumnTypes) {
			cols[i].Type = r.ColumnTypes[i]
		}
	}

	return cols
}

// TrimStatement removes the trailing whitespace and semicolons so that a query can be embedded as a subquery.
func TrimStatement(q string) string {
	return strings.TrimRight(strings.TrimSpace(q), "; \n\t")
}
