package snapshot

import (
	"strings"
)

// Dialect is the part of a warehouse's SQL flavour the statement generator depends on.
type Dialect interface {
	QuoteIdentifier(name string) string
	// Placeholder returns the bind parameter marker for the n-th argument of a statement, starting at 1.
	Placeholder(n int) string
	TextType() string
	TimestampType() string
	// ColumnType maps a type name reported by the driver to the type used in history table DDL.
	ColumnType(driverType string) string
	// TableOptions renders the physical layout clauses appended to CREATE TABLE.
	TableOptions(dist, sortType string, sortKeys []string) (string, error)
	MaxParameters() int
}

// Relation names a table inside a schema.
type Relation struct {
	Schema string
	Table  string
}

func (r Relation) String() string {
	if r.Schema == "" {
		return r.Table
	}
	return r.Schema + "." + r.Table
}

func (r Relation) Quoted(d Dialect) string {
	if r.Schema == "" {
		return d.QuoteIdentifier(r.Table)
	}
	return d.QuoteIdentifier(r.Schema) + "." + d.QuoteIdentifier(r.Table)
}

// QuoteWithDoubleQuotes is the ANSI identifier quoting shared by the supported warehouses.
func QuoteWithDoubleQuotes(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
