package snapshot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/samber/lo"
)

const closeChunkSize = 1000

// Generator turns a classification into the statements of one write batch.
type Generator struct {
	Dialect Dialect
	Table   Relation
	// Columns are the data columns of the history table after the batch, in table order.
	Columns  []query.Column
	Strategy Strategy
	RunAt    time.Time
}

// CreateTable renders the DDL of a new history table.
func (g *Generator) CreateTable(cfg Config) (*query.Query, error) {
	defs := make([]string, 0, len(g.Columns)+len(MetadataColumns))
	for _, c := range g.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", g.Dialect.QuoteIdentifier(c.Name), g.Dialect.ColumnType(c.Type)))
	}
	defs = append(defs,
		fmt.Sprintf("%s %s", g.Dialect.QuoteIdentifier(ColumnSCDID), g.Dialect.TextType()),
		fmt.Sprintf("%s %s", g.Dialect.QuoteIdentifier(ColumnUniqueKey), g.Dialect.TextType()),
		fmt.Sprintf("%s %s", g.Dialect.QuoteIdentifier(ColumnUpdatedAt), g.Dialect.TimestampType()),
		fmt.Sprintf("%s %s", g.Dialect.QuoteIdentifier(ColumnValidFrom), g.Dialect.TimestampType()),
		fmt.Sprintf("%s %s", g.Dialect.QuoteIdentifier(ColumnValidTo), g.Dialect.TimestampType()),
	)

	options, err := g.Dialect.TableOptions(cfg.Dist, cfg.SortType, cfg.Sort)
	if err != nil {
		return nil, &ConfigurationError{Snapshot: cfg.Name, Message: err.Error()}
	}

	q := fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", g.Table.Quoted(g.Dialect), strings.Join(defs, ",\n    "))
	if options != "" {
		q += "\n" + options
	}

	return &query.Query{Query: q}, nil
}

// AddColumns renders one ALTER TABLE per column, some warehouses cannot add several columns in one statement.
func (g *Generator) AddColumns(columns []query.Column) []*query.Query {
	return lo.Map(columns, func(c query.Column, _ int) *query.Query {
		return &query.Query{
			Query: fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", g.Table.Quoted(g.Dialect), g.Dialect.QuoteIdentifier(c.Name), g.Dialect.ColumnType(c.Type)),
		}
	})
}

// Closes renders the UPDATE statements that set valid_to on superseded and invalidated versions. Versions closed at
// the same moment share a statement.
func (g *Generator) Closes(c *Classification) []*query.Query {
	byTime := make(map[time.Time][]string)
	for _, change := range append(append([]Change{}, c.Updates...), c.Invalidations...) {
		at := change.At.UTC()
		byTime[at] = append(byTime[at], change.Current.SCDID)
	}

	moments := lo.Keys(byTime)
	sort.Slice(moments, func(i, j int) bool { return moments[i].Before(moments[j]) })

	var out []*query.Query
	for _, at := range moments {
		ids := byTime[at]
		sort.Strings(ids)
		for _, chunk := range lo.Chunk(ids, closeChunkSize) {
			args := make([]any, 0, len(chunk)+1)
			args = append(args, at)
			marks := make([]string, len(chunk))
			for i, id := range chunk {
				marks[i] = g.Dialect.Placeholder(i + 2)
				args = append(args, id)
			}

			out = append(out, &query.Query{
				Query: fmt.Sprintf(
					"UPDATE %s SET %s = %s WHERE %s IS NULL AND %s IN (%s)",
					g.Table.Quoted(g.Dialect),
					g.Dialect.QuoteIdentifier(ColumnValidTo), g.Dialect.Placeholder(1),
					g.Dialect.QuoteIdentifier(ColumnValidTo),
					g.Dialect.QuoteIdentifier(ColumnSCDID), strings.Join(marks, ", "),
				),
				Args: args,
			})
		}
	}

	return out
}

// Inserts renders multi-row INSERT statements for every new version, both first versions and the replacements of
// updated keys. Columns of the history table that the source no longer produces are written as NULL.
func (g *Generator) Inserts(c *Classification) []*query.Query {
	changes := append(append([]Change{}, c.Inserts...), c.Updates...)
	if len(changes) == 0 {
		return nil
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })

	names := make([]string, 0, len(g.Columns)+4)
	for _, col := range g.Columns {
		names = append(names, g.Dialect.QuoteIdentifier(col.Name))
	}
	for _, col := range []string{ColumnSCDID, ColumnUniqueKey, ColumnUpdatedAt, ColumnValidFrom} {
		names = append(names, g.Dialect.QuoteIdentifier(col))
	}

	perRow := len(names)
	rowsPerStatement := g.Dialect.MaxParameters() / perRow
	if rowsPerStatement < 1 {
		rowsPerStatement = 1
	}

	var out []*query.Query
	for _, chunk := range lo.Chunk(changes, rowsPerStatement) {
		args := make([]any, 0, len(chunk)*perRow)
		tuples := make([]string, len(chunk))
		for i, change := range chunk {
			marks := make([]string, perRow)
			for j := range marks {
				marks[j] = g.Dialect.Placeholder(i*perRow + j + 1)
			}
			tuples[i] = "(" + strings.Join(marks, ", ") + ")"
			args = append(args, g.rowValues(change)...)
		}

		out = append(out, &query.Query{
			Query: fmt.Sprintf("INSERT INTO %s (%s) VALUES\n%s", g.Table.Quoted(g.Dialect), strings.Join(names, ", "), strings.Join(tuples, ",\n")),
			Args:  args,
		})
	}

	return out
}

func (g *Generator) rowValues(change Change) []any {
	values := make([]any, 0, len(g.Columns)+4)
	for _, col := range g.Columns {
		values = append(values, change.Source.Values[strings.ToLower(col.Name)])
	}

	var updatedAt any
	if ts := g.Strategy.UpdatedAt(*change.Source, g.RunAt); ts != nil {
		updatedAt = ts.UTC()
	}

	return append(values, SCDID(change.Key, change.At), string(change.Key), updatedAt, change.At.UTC())
}
