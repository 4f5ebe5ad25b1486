package snapshot

import (
	"strings"

	"github.com/samber/lo"
)

type StrategyName string

const (
	StrategyTimestamp StrategyName = "timestamp"
	StrategyCheck     StrategyName = "check"

	// CheckAllColumns tracks every non-metadata column of the source.
	CheckAllColumns = "all"

	ValidFromRun       = "run"
	ValidFromUpdatedAt = "updated_at"

	SortTypeCompound    = "compound"
	SortTypeInterleaved = "interleaved"
)

// Config is the per-snapshot configuration surface. It is decoded from the snapshot definition files and validated
// before the engine touches any data.
type Config struct {
	Name         string `yaml:"name" json:"name" mapstructure:"name"`
	TargetSchema string `yaml:"target_schema" json:"target_schema" mapstructure:"target_schema"`
	TargetTable  string `yaml:"target_table,omitempty" json:"target_table,omitempty" mapstructure:"target_table"`

	UniqueKey string       `yaml:"unique_key" json:"unique_key" mapstructure:"unique_key"`
	Strategy  StrategyName `yaml:"strategy" json:"strategy" mapstructure:"strategy"`
	UpdatedAt string       `yaml:"updated_at,omitempty" json:"updated_at,omitempty" mapstructure:"updated_at"`
	CheckCols []string     `yaml:"check_cols,omitempty" json:"check_cols,omitempty" mapstructure:"check_cols"`
	ValidFrom string       `yaml:"valid_from,omitempty" json:"valid_from,omitempty" mapstructure:"valid_from"`

	InvalidateHardDeletes bool `yaml:"invalidate_hard_deletes,omitempty" json:"invalidate_hard_deletes,omitempty" mapstructure:"invalidate_hard_deletes"`
	AllowSchemaDrift      bool `yaml:"allow_schema_drift,omitempty" json:"allow_schema_drift,omitempty" mapstructure:"allow_schema_drift"`

	Dist     string   `yaml:"dist,omitempty" json:"dist,omitempty" mapstructure:"dist"`
	Sort     []string `yaml:"sort,omitempty" json:"sort,omitempty" mapstructure:"sort"`
	SortType string   `yaml:"sort_type,omitempty" json:"sort_type,omitempty" mapstructure:"sort_type"`
}

// Table returns the name of the history table, defaulting to the snapshot name.
func (c Config) Table() string {
	if c.TargetTable != "" {
		return c.TargetTable
	}
	return c.Name
}

// ChecksAllColumns reports whether the check strategy is in "all columns" mode.
func (c Config) ChecksAllColumns() bool {
	return len(c.CheckCols) == 1 && strings.EqualFold(strings.TrimSpace(c.CheckCols[0]), CheckAllColumns)
}

// ValidFromUpdatedAtColumn reports whether new versions take their valid_from from the source updated_at column
// rather than the run timestamp.
func (c Config) ValidFromUpdatedAtColumn() bool {
	if c.ValidFrom == ValidFromUpdatedAt {
		return true
	}
	return c.Strategy == StrategyCheck && c.UpdatedAt != "" && c.ValidFrom != ValidFromRun
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &ConfigurationError{Message: "Snapshots must be configured with a 'name'"}
	}
	if c.Strategy == "" {
		return configErrorf(c.Name, "Snapshots must be configured with a 'strategy'")
	}
	if strings.TrimSpace(c.UniqueKey) == "" {
		return configErrorf(c.Name, "Snapshots must be configured with a 'unique_key'")
	}
	if strings.TrimSpace(c.TargetSchema) == "" {
		return configErrorf(c.Name, "Snapshots must be configured with a 'target_schema'")
	}

	switch c.Strategy {
	case StrategyTimestamp:
		if c.UpdatedAt == "" {
			return configErrorf(c.Name, "the 'timestamp' strategy requires an 'updated_at' column")
		}
		if len(c.CheckCols) > 0 {
			return configErrorf(c.Name, "'check_cols' cannot be used with the 'timestamp' strategy")
		}
	case StrategyCheck:
		if len(c.CheckCols) == 0 {
			return configErrorf(c.Name, "the 'check' strategy requires 'check_cols' to be a list of columns or '%s'", CheckAllColumns)
		}
		if !c.ChecksAllColumns() {
			for _, col := range c.CheckCols {
				if strings.TrimSpace(col) == "" {
					return configErrorf(c.Name, "'check_cols' contains an empty column name")
				}
				if strings.EqualFold(col, CheckAllColumns) {
					return configErrorf(c.Name, "'%s' cannot be combined with other columns in 'check_cols'", CheckAllColumns)
				}
			}
			if dup := lo.FindDuplicates(lo.Map(c.CheckCols, func(s string, _ int) string { return strings.ToLower(s) })); len(dup) > 0 {
				return configErrorf(c.Name, "'check_cols' lists columns more than once: %s", strings.Join(dup, ", "))
			}
		}
	default:
		return configErrorf(c.Name, "invalid strategy '%s', must be one of [%s %s]", c.Strategy, StrategyTimestamp, StrategyCheck)
	}

	switch c.ValidFrom {
	case "", ValidFromRun:
	case ValidFromUpdatedAt:
		if c.UpdatedAt == "" {
			return configErrorf(c.Name, "'valid_from: %s' requires an 'updated_at' column", ValidFromUpdatedAt)
		}
	default:
		return configErrorf(c.Name, "invalid valid_from '%s', must be one of [%s %s]", c.ValidFrom, ValidFromRun, ValidFromUpdatedAt)
	}

	for _, col := range append([]string{c.UpdatedAt}, c.CheckCols...) {
		if IsMetadataColumn(col) {
			return configErrorf(c.Name, "column '%s' is reserved for snapshot metadata", col)
		}
	}

	if c.SortType != "" && len(c.Sort) == 0 {
		return configErrorf(c.Name, "'sort_type' is set but no 'sort' keys are given")
	}

	return nil
}
