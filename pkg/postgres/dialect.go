package postgres

import (
	"errors"
	"strconv"
	"strings"

	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

const (
	DateFunction = "now()"

	maxParameters = 65535
)

// Dialect renders history table SQL for Postgres.
type Dialect struct{}

func (Dialect) QuoteIdentifier(name string) string {
	return snapshot.QuoteWithDoubleQuotes(name)
}

func (Dialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (Dialect) TextType() string {
	return "TEXT"
}

func (Dialect) TimestampType() string {
	return "TIMESTAMP"
}

func (d Dialect) ColumnType(driverType string) string {
	return MapColumnType(driverType, d.TextType())
}

func (Dialect) TableOptions(dist, sortType string, sortKeys []string) (string, error) {
	if dist != "" || sortType != "" || len(sortKeys) > 0 {
		return "", errors.New("distribution and sort keys are only supported on redshift")
	}
	return "", nil
}

func (Dialect) MaxParameters() int {
	return maxParameters
}

// MapColumnType translates a pgx type name into a column type for DDL, textual and unknown types become textType.
func MapColumnType(driverType, textType string) string {
	switch strings.ToLower(driverType) {
	case "int2":
		return "SMALLINT"
	case "int4":
		return "INTEGER"
	case "int8":
		return "BIGINT"
	case "float4":
		return "REAL"
	case "float8":
		return "DOUBLE PRECISION"
	case "numeric":
		return "NUMERIC"
	case "bool":
		return "BOOLEAN"
	case "date":
		return "DATE"
	case "timestamp":
		return "TIMESTAMP"
	case "timestamptz":
		return "TIMESTAMPTZ"
	default:
		return textType
	}
}
