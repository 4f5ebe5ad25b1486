package duck

import (
	"errors"
	"strings"

	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

// Dialect renders history table SQL for DuckDB.
type Dialect struct{}

func (Dialect) QuoteIdentifier(name string) string {
	return snapshot.QuoteWithDoubleQuotes(name)
}

func (Dialect) Placeholder(int) string {
	return "?"
}

func (Dialect) TextType() string {
	return "VARCHAR"
}

func (Dialect) TimestampType() string {
	return "TIMESTAMP"
}

// ColumnType keeps the type name DuckDB reports, it is valid DDL as is.
func (d Dialect) ColumnType(driverType string) string {
	t := strings.ToUpper(strings.TrimSpace(driverType))
	if t == "" || t == "NULL" {
		return d.TextType()
	}
	return t
}

func (Dialect) TableOptions(dist, sortType string, sortKeys []string) (string, error) {
	if dist != "" || sortType != "" || len(sortKeys) > 0 {
		return "", errors.New("distribution and sort keys are only supported on redshift")
	}
	return "", nil
}

func (Dialect) MaxParameters() int {
	return 32767
}
