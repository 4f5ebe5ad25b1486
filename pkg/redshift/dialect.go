package redshift

import (
	"strings"

	"github.com/redsnap-data/redsnap/pkg/postgres"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

// Dialect is the Postgres dialect with Redshift's text type and physical layout clauses.
type Dialect struct {
	postgres.Dialect
}

func (Dialect) TextType() string {
	return "VARCHAR(MAX)"
}

func (d Dialect) ColumnType(driverType string) string {
	if strings.EqualFold(driverType, "numeric") {
		return "NUMERIC(38, 10)"
	}
	return postgres.MapColumnType(driverType, d.TextType())
}

func (Dialect) TableOptions(dist, sortType string, sortKeys []string) (string, error) {
	var clauses []string
	if strings.TrimSpace(dist) != "" {
		clauses = append(clauses, DistQualifier(dist))
	}

	if len(sortKeys) > 0 {
		if sortType == "" {
			sortType = snapshot.SortTypeCompound
		}
		sort, err := SortQualifier(sortType, sortKeys)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, sort)
	}

	return strings.Join(clauses, "\n"), nil
}

func (Dialect) MaxParameters() int {
	return maxParameters
}
