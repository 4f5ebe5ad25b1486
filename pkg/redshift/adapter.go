package redshift

import (
	"fmt"
	"strings"

	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

const (
	DateFunction = "getdate()"

	// Redshift rejects statements with more than 32767 bind parameters.
	maxParameters = 32767
)

var validSortTypes = []string{snapshot.SortTypeCompound, snapshot.SortTypeInterleaved}

func Type() string {
	return "redshift"
}

// DistQualifier renders the distribution style of a table, "all" and "even" are styles, anything else is a key column.
func DistQualifier(dist string) string {
	distKey := strings.ToLower(strings.TrimSpace(dist))
	if distKey == "all" || distKey == "even" {
		return "diststyle " + distKey
	}

	return fmt.Sprintf(`diststyle key distkey("%s")`, distKey)
}

// SortQualifier renders a compound or interleaved sort key over the given columns.
func SortQualifier(sortType string, keys []string) (string, error) {
	valid := false
	for _, t := range validSortTypes {
		if sortType == t {
			valid = true
		}
	}
	if !valid {
		return "", fmt.Errorf("Invalid sort_type given: %s -- must be one of %v", sortType, validSortTypes) //nolint:stylecheck
	}

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = `"` + k + `"`
	}

	return fmt.Sprintf("%s sortkey(%s)", sortType, strings.Join(quoted, ", ")), nil
}
