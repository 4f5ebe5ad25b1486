package project

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/helpers"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Select narrows the definitions down to the selected names, minus the excluded ones. An empty selection keeps
// everything. Naming a snapshot that does not exist is an error in both lists.
func Select(definitions []*Definition, selected, excluded []string) ([]*Definition, error) {
	known := lo.SliceToMap(definitions, func(d *Definition) (string, bool) {
		return d.Name, true
	})

	for _, name := range append(append([]string{}, selected...), excluded...) {
		if !known[name] {
			return nil, errors.Errorf("snapshot '%s' not found in the project", name)
		}
	}

	selectedSet := lo.Keyify(selected)
	excludedSet := lo.Keyify(excluded)

	return lo.Filter(definitions, func(d *Definition, _ int) bool {
		if _, ok := excludedSet[d.Name]; ok {
			return false
		}
		if len(selectedSet) == 0 {
			return true
		}
		_, ok := selectedSet[d.Name]
		return ok
	}), nil
}

// ParseVarOverrides turns repeated --var key=value flags into variables. Values are read as YAML scalars, so
// numbers and booleans keep their type.
func ParseVarOverrides(pairs []string) (map[string]any, error) {
	raw, err := helpers.ParseKeyValues(pairs)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]any, len(raw))
	for key, value := range raw {
		var parsed any
		if strings.TrimSpace(value) == "" || yaml.Unmarshal([]byte(value), &parsed) != nil || parsed == nil {
			vars[key] = value
			continue
		}

		switch parsed.(type) {
		case map[string]any, []any:
			vars[key] = value
		default:
			vars[key] = parsed
		}
	}

	return vars, nil
}
