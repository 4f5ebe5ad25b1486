package snapshot

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// Strategy decides whether a source row differs from the current version of its key. A strategy is resolved once
// per run and is not modified afterwards.
type Strategy interface {
	Name() StrategyName
	HasChanged(src SourceRow, cur SnapshotRow) bool
	// UpdatedAt is the value stored in the updated_at metadata column of a new version.
	UpdatedAt(src SourceRow, runAt time.Time) *time.Time
	// ValidFrom is the moment a new version of src becomes valid.
	ValidFrom(src SourceRow, runAt time.Time) time.Time
}

type timestampStrategy struct {
	validFromUpdatedAt bool
}

func (s timestampStrategy) Name() StrategyName {
	return StrategyTimestamp
}

func (s timestampStrategy) HasChanged(src SourceRow, cur SnapshotRow) bool {
	if src.UpdatedAt == nil {
		return false
	}
	if cur.UpdatedAt == nil {
		return true
	}

	return src.UpdatedAt.After(*cur.UpdatedAt)
}

func (s timestampStrategy) UpdatedAt(src SourceRow, _ time.Time) *time.Time {
	return src.UpdatedAt
}

func (s timestampStrategy) ValidFrom(src SourceRow, runAt time.Time) time.Time {
	return versionTimestamp(s.validFromUpdatedAt, src, runAt)
}

type checkStrategy struct {
	columns            []string
	useUpdatedAt       bool
	validFromUpdatedAt bool
}

func (s checkStrategy) Name() StrategyName {
	return StrategyCheck
}

func (s checkStrategy) HasChanged(src SourceRow, cur SnapshotRow) bool {
	for _, col := range s.columns {
		if !ValuesEqual(src.Values[col], cur.Values[col]) {
			return true
		}
	}

	return false
}

func (s checkStrategy) UpdatedAt(src SourceRow, runAt time.Time) *time.Time {
	if s.useUpdatedAt && src.UpdatedAt != nil {
		return src.UpdatedAt
	}

	return &runAt
}

func (s checkStrategy) ValidFrom(src SourceRow, runAt time.Time) time.Time {
	return versionTimestamp(s.validFromUpdatedAt, src, runAt)
}

// Columns returns the tracked column set.
func (s checkStrategy) Columns() []string {
	return s.columns
}

func versionTimestamp(fromUpdatedAt bool, src SourceRow, runAt time.Time) time.Time {
	if fromUpdatedAt && src.UpdatedAt != nil {
		return *src.UpdatedAt
	}

	return runAt
}

// NewStrategy resolves the strategy of a validated config against the columns of the source. The tracked column set
// of the check strategy is computed here, once per run.
func NewStrategy(cfg Config, sourceColumns []string) (Strategy, error) {
	available := make(map[string]bool, len(sourceColumns))
	for _, c := range sourceColumns {
		available[strings.ToLower(c)] = true
	}

	if cfg.UpdatedAt != "" && !available[strings.ToLower(cfg.UpdatedAt)] {
		return nil, configErrorf(cfg.Name, "updated_at column '%s' is not present in the source query", cfg.UpdatedAt)
	}

	switch cfg.Strategy {
	case StrategyTimestamp:
		return timestampStrategy{validFromUpdatedAt: cfg.ValidFromUpdatedAtColumn()}, nil
	case StrategyCheck:
		var columns []string
		if cfg.ChecksAllColumns() {
			columns = lo.Filter(lowerAll(sourceColumns), func(c string, _ int) bool {
				return !IsMetadataColumn(c)
			})
		} else {
			columns = lowerAll(cfg.CheckCols)
			for _, c := range columns {
				if !available[c] {
					return nil, configErrorf(cfg.Name, "check column '%s' is not present in the source query", c)
				}
			}
		}

		return checkStrategy{
			columns:            columns,
			useUpdatedAt:       cfg.UpdatedAt != "",
			validFromUpdatedAt: cfg.ValidFromUpdatedAtColumn(),
		}, nil
	}

	return nil, configErrorf(cfg.Name, "invalid strategy '%s'", cfg.Strategy)
}

func lowerAll(in []string) []string {
	return lo.Map(in, func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}
