package snapshot

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/query"
)

var (
	createPattern = regexp.MustCompile(`(?s)^CREATE TABLE (\S+) \(\n(.*?)\n\)`)
	alterPattern  = regexp.MustCompile(`^ALTER TABLE (\S+) ADD COLUMN (\S+) (.+)$`)
	updatePattern = regexp.MustCompile(`^UPDATE (\S+) SET`)
	insertPattern = regexp.MustCompile(`^INSERT INTO (\S+) \(([^)]*)\) VALUES`)
	currentRegexp = regexp.MustCompile(`^SELECT \* FROM (\S+) WHERE`)
	closedRegexp  = regexp.MustCompile(`^SELECT \S+, MAX\(\S+\) AS \S+ FROM (\S+) WHERE`)
)

type testDialect struct {
	maxParams int
}

func (d testDialect) QuoteIdentifier(name string) string { return QuoteWithDoubleQuotes(name) }
func (d testDialect) Placeholder(n int) string           { return "$" + strconv.Itoa(n) }
func (d testDialect) TextType() string                   { return "TEXT" }
func (d testDialect) TimestampType() string              { return "TIMESTAMP" }

func (d testDialect) ColumnType(driverType string) string {
	if driverType == "" {
		return "TEXT"
	}
	return strings.ToUpper(driverType)
}

func (d testDialect) TableOptions(dist, _ string, sortKeys []string) (string, error) {
	if dist != "" || len(sortKeys) > 0 {
		return "", errors.New("the test dialect has no distribution or sort keys")
	}
	return "", nil
}

func (d testDialect) MaxParameters() int {
	if d.maxParams == 0 {
		return 1000
	}
	return d.maxParams
}

type memoryTable struct {
	columns []query.Column
	rows    []map[string]any
}

func (t *memoryTable) clone() *memoryTable {
	c := &memoryTable{columns: append([]query.Column{}, t.columns...)}
	for _, r := range t.rows {
		row := make(map[string]any, len(r))
		for k, v := range r {
			row[k] = v
		}
		c.rows = append(c.rows, row)
	}
	return c
}

// memoryWarehouse executes the statements the generator produces against in-memory tables.
type memoryWarehouse struct {
	mu sync.Mutex

	keyColumn     string
	sourceColumns []query.Column
	source        []map[string]any

	tables  map[string]*memoryTable
	schemas map[string]bool
	caps    Capabilities

	selects  int
	batches  int
	applyErr error
}

func newMemoryWarehouse(keyColumn string, columns ...query.Column) *memoryWarehouse {
	return &memoryWarehouse{
		keyColumn:     keyColumn,
		sourceColumns: columns,
		tables:        map[string]*memoryTable{},
		schemas:       map[string]bool{},
		caps:          Capabilities{AtomicBatches: true, Isolation: IsolationReadCommitted},
	}
}

func (w *memoryWarehouse) setSource(rows ...map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.source = rows
}

func (w *memoryWarehouse) Capabilities() Capabilities {
	return w.caps
}

func (w *memoryWarehouse) CreateSchemaIfNotExist(_ context.Context, schema string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schemas[schema] = true
	return nil
}

func (w *memoryWarehouse) TableColumns(_ context.Context, schema, table string) ([]query.Column, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tables[schema+"."+table]
	if !ok {
		return nil, nil
	}
	return append([]query.Column{}, t.columns...), nil
}

func (w *memoryWarehouse) SelectWithSchema(_ context.Context, q *query.Query) (*query.QueryResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selects++

	if strings.HasPrefix(q.Query, "SELECT src.*") {
		res := &query.QueryResult{}
		for _, c := range w.sourceColumns {
			res.Columns = append(res.Columns, c.Name)
			res.ColumnTypes = append(res.ColumnTypes, c.Type)
		}
		res.Columns = append(res.Columns, ColumnUniqueKey)
		res.ColumnTypes = append(res.ColumnTypes, "TEXT")

		for _, r := range w.source {
			row := make([]any, 0, len(res.Columns))
			for _, c := range w.sourceColumns {
				row = append(row, r[c.Name])
			}
			var key any
			if v := r[w.keyColumn]; v != nil {
				key = fmt.Sprint(v)
			}
			res.Rows = append(res.Rows, append(row, key))
		}
		return res, nil
	}

	if m := closedRegexp.FindStringSubmatch(q.Query); m != nil {
		t, ok := w.tables[unquote(m[1])]
		if !ok {
			return nil, errors.Errorf("table %s does not exist", m[1])
		}
		latest := map[string]time.Time{}
		for _, r := range t.rows {
			to, ok := r[ColumnValidTo].(time.Time)
			if !ok {
				continue
			}
			key := r[ColumnUniqueKey].(string)
			if to.After(latest[key]) {
				latest[key] = to
			}
		}
		res := &query.QueryResult{Columns: []string{ColumnUniqueKey, ColumnValidTo}, ColumnTypes: []string{"TEXT", "TIMESTAMP"}}
		for key, to := range latest {
			res.Rows = append(res.Rows, []any{key, to})
		}
		return res, nil
	}

	m := currentRegexp.FindStringSubmatch(q.Query)
	if m == nil {
		return nil, errors.Errorf("unexpected query: %s", q.Query)
	}
	t, ok := w.tables[unquote(m[1])]
	if !ok {
		return nil, errors.Errorf("table %s does not exist", m[1])
	}

	res := &query.QueryResult{}
	for _, c := range t.columns {
		res.Columns = append(res.Columns, c.Name)
		res.ColumnTypes = append(res.ColumnTypes, c.Type)
	}
	for _, r := range t.rows {
		if r[ColumnValidTo] != nil {
			continue
		}
		row := make([]any, len(t.columns))
		for i, c := range t.columns {
			row[i] = r[c.Name]
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func (w *memoryWarehouse) ApplyBatch(_ context.Context, statements []*query.Query) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.applyErr != nil {
		return 0, w.applyErr
	}

	tables := make(map[string]*memoryTable, len(w.tables))
	for k, t := range w.tables {
		tables[k] = t.clone()
	}

	var affected int64
	for _, q := range statements {
		n, err := applyStatement(tables, q)
		if err != nil {
			return 0, err
		}
		affected += n
	}

	w.tables = tables
	w.batches++
	return affected, nil
}

func applyStatement(tables map[string]*memoryTable, q *query.Query) (int64, error) {
	switch {
	case strings.HasPrefix(q.Query, "CREATE TABLE"):
		m := createPattern.FindStringSubmatch(q.Query)
		t := &memoryTable{}
		for _, line := range strings.Split(m[2], "\n") {
			fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(line), ","))
			t.columns = append(t.columns, query.Column{Name: unquote(fields[0]), Type: strings.Join(fields[1:], " ")})
		}
		tables[unquote(m[1])] = t
		return 0, nil

	case strings.HasPrefix(q.Query, "ALTER TABLE"):
		m := alterPattern.FindStringSubmatch(q.Query)
		t := tables[unquote(m[1])]
		t.columns = append(t.columns, query.Column{Name: unquote(m[2]), Type: m[3]})
		return 0, nil

	case strings.HasPrefix(q.Query, "UPDATE"):
		m := updatePattern.FindStringSubmatch(q.Query)
		t := tables[unquote(m[1])]
		ids := map[any]bool{}
		for _, id := range q.Args[1:] {
			ids[id] = true
		}
		var n int64
		for _, r := range t.rows {
			if r[ColumnValidTo] == nil && ids[r[ColumnSCDID]] {
				r[ColumnValidTo] = q.Args[0]
				n++
			}
		}
		return n, nil

	case strings.HasPrefix(q.Query, "INSERT INTO"):
		m := insertPattern.FindStringSubmatch(q.Query)
		t := tables[unquote(m[1])]
		columns := strings.Split(m[2], ", ")
		for i := 0; i < len(q.Args); i += len(columns) {
			row := map[string]any{ColumnValidTo: nil}
			for j, c := range columns {
				row[unquote(c)] = q.Args[i+j]
			}
			t.rows = append(t.rows, row)
		}
		return int64(len(q.Args) / len(columns)), nil
	}

	return 0, errors.Errorf("unexpected statement: %s", q.Query)
}

// history returns all rows of a table ordered by key and validity.
func (w *memoryWarehouse) history(table string) []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tables[table]
	if !ok {
		return nil
	}
	rows := t.clone().rows
	sort.SliceStable(rows, func(i, j int) bool {
		ki, kj := rows[i][ColumnUniqueKey].(string), rows[j][ColumnUniqueKey].(string)
		if ki != kj {
			return ki < kj
		}
		return rows[i][ColumnValidFrom].(time.Time).Before(rows[j][ColumnValidFrom].(time.Time))
	})
	return rows
}

func unquote(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}
