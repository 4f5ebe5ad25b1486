package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type IsolationLevel int

const (
	IsolationNone IsolationLevel = iota
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

func (l IsolationLevel) String() string {
	switch l {
	case IsolationReadCommitted:
		return "read committed"
	case IsolationRepeatableRead:
		return "repeatable read"
	case IsolationSerializable:
		return "serializable"
	default:
		return "none"
	}
}

// Capabilities are the guarantees a connection gives for write batches.
type Capabilities struct {
	AtomicBatches bool
	Isolation     IsolationLevel
}

type Connection interface {
	SelectWithSchema(ctx context.Context, q *query.Query) (*query.QueryResult, error)
	// ApplyBatch runs all statements in a single transaction and returns the number of affected rows.
	ApplyBatch(ctx context.Context, statements []*query.Query) (int64, error)
	// TableColumns lists the columns of a table in table order, an empty list means the table does not exist.
	TableColumns(ctx context.Context, schema, table string) ([]query.Column, error)
	CreateSchemaIfNotExist(ctx context.Context, schema string) error
	Capabilities() Capabilities
}

type Engine struct {
	conn       Connection
	dialect    Dialect
	logger     *zap.SugaredLogger
	partitions int
	now        func() time.Time
}

type Option func(*Engine)

// WithPartitions sets the number of goroutines used to classify keys.
func WithPartitions(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.partitions = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(conn Connection, dialect Dialect, logger *zap.SugaredLogger, opts ...Option) *Engine {
	e := &Engine{
		conn:       conn,
		dialect:    dialect,
		logger:     logger,
		partitions: 4,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

type RunInput struct {
	Config Config
	// Source is the rendered source query.
	Source string
	// RunAt is the run timestamp, the engine captures the current time once when it is zero.
	RunAt time.Time
}

type Plan struct {
	RunID          uuid.UUID
	Snapshot       string
	Table          Relation
	Strategy       StrategyName
	RunAt          time.Time
	CreatesTable   bool
	AddedColumns   []query.Column
	Classification *Classification
	Statements     []*query.Query
}

// Empty reports whether applying the plan would write anything.
func (p *Plan) Empty() bool {
	return len(p.Statements) == 0
}

type Result struct {
	*Plan
	RowsAffected int64
	Duration     time.Duration
}

// Run computes the plan of a snapshot and applies it as a single atomic batch.
func (e *Engine) Run(ctx context.Context, in RunInput) (*Result, error) {
	start := time.Now()
	plan, err := e.Plan(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &Result{Plan: plan}
	if plan.Empty() {
		res.Duration = time.Since(start)
		e.logger.Infow("snapshot is up to date, nothing to write", "snapshot", plan.Snapshot, "run_id", plan.RunID, "unchanged", plan.Classification.Unchanged)
		return res, nil
	}

	if plan.CreatesTable {
		if err := e.conn.CreateSchemaIfNotExist(ctx, plan.Table.Schema); err != nil {
			return nil, &ExecutionError{Snapshot: plan.Snapshot, Err: err}
		}
	}

	affected, err := e.conn.ApplyBatch(ctx, plan.Statements)
	if err != nil {
		return nil, &ExecutionError{Snapshot: plan.Snapshot, Err: err}
	}

	res.RowsAffected = affected
	res.Duration = time.Since(start)
	e.logger.Infow(
		"snapshot applied",
		"snapshot", plan.Snapshot,
		"run_id", plan.RunID,
		"inserted", len(plan.Classification.Inserts),
		"updated", len(plan.Classification.Updates),
		"invalidated", len(plan.Classification.Invalidations),
		"unchanged", plan.Classification.Unchanged,
		"rows_affected", affected,
		"duration", res.Duration,
	)

	return res, nil
}

// Plan reads the source and the current history rows, classifies them and renders the write batch without
// applying it.
func (e *Engine) Plan(ctx context.Context, in RunInput) (*Plan, error) {
	cfg := in.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if caps := e.conn.Capabilities(); !caps.AtomicBatches || caps.Isolation < IsolationReadCommitted {
		return nil, configErrorf(cfg.Name, "the connection must run write batches atomically with at least read committed isolation, it offers atomic=%t isolation=%s", caps.AtomicBatches, caps.Isolation)
	}

	source := query.TrimStatement(in.Source)
	if source == "" {
		return nil, configErrorf(cfg.Name, "the source query is empty")
	}

	runAt := in.RunAt
	if runAt.IsZero() {
		runAt = e.now()
	}
	runAt = runAt.UTC().Truncate(time.Microsecond)

	plan := &Plan{
		RunID:    uuid.New(),
		Snapshot: cfg.Name,
		Table:    Relation{Schema: cfg.TargetSchema, Table: cfg.Table()},
		Strategy: cfg.Strategy,
		RunAt:    runAt,
	}
	logger := e.logger.With("snapshot", cfg.Name, "run_id", plan.RunID)

	var (
		sourceResult  *query.QueryResult
		currentResult *query.QueryResult
		closedResult  *query.QueryResult
		tableColumns  []query.Column
	)

	readStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := e.conn.SelectWithSchema(gctx, e.sourceQuery(cfg, source))
		if err != nil {
			return errors.Wrapf(err, "failed to read the source of snapshot '%s'", cfg.Name)
		}
		sourceResult = res
		return nil
	})
	g.Go(func() error {
		cols, err := e.conn.TableColumns(gctx, plan.Table.Schema, plan.Table.Table)
		if err != nil {
			return errors.Wrapf(err, "failed to describe the history table %s", plan.Table)
		}
		tableColumns = cols
		if len(cols) == 0 {
			return nil
		}

		res, err := e.conn.SelectWithSchema(gctx, e.currentQuery(plan.Table))
		if err != nil {
			return errors.Wrapf(err, "failed to read the current rows of %s", plan.Table)
		}
		currentResult = res

		res, err = e.conn.SelectWithSchema(gctx, e.closedQuery(plan.Table))
		if err != nil {
			return errors.Wrapf(err, "failed to read the closed history of %s", plan.Table)
		}
		closedResult = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debugw("read phase completed", "source_rows", len(sourceResult.Rows), "table_exists", len(tableColumns) > 0, "duration", time.Since(readStart))

	sourceColumns, sourceRows, err := e.sourceRows(cfg, sourceResult)
	if err != nil {
		return nil, err
	}

	strategy, err := NewStrategy(cfg, lo.Map(sourceColumns, func(c query.Column, _ int) string { return c.Name }))
	if err != nil {
		return nil, err
	}

	var (
		columns     []query.Column
		currentRows []SnapshotRow
		closedUntil map[Key]time.Time
	)
	if len(tableColumns) == 0 {
		plan.CreatesTable = true
		columns = sourceColumns
	} else {
		historyColumns, err := historyDataColumns(cfg, plan.Table, tableColumns)
		if err != nil {
			return nil, err
		}

		plan.AddedColumns = missingColumns(sourceColumns, historyColumns)
		if len(plan.AddedColumns) > 0 && !cfg.AllowSchemaDrift {
			return nil, &SchemaDriftError{
				Snapshot: cfg.Name,
				Table:    plan.Table.String(),
				Columns:  lo.Map(plan.AddedColumns, func(c query.Column, _ int) string { return c.Name }),
			}
		}
		columns = append(historyColumns, plan.AddedColumns...)

		currentRows, err = snapshotRows(cfg, currentResult)
		if err != nil {
			return nil, err
		}
		closedUntil, err = closedKeys(cfg, closedResult, currentRows)
		if err != nil {
			return nil, err
		}
	}

	classifyStart := time.Now()
	plan.Classification, err = Classify(ctx, ClassifyInput{
		Snapshot:              cfg.Name,
		Source:                sourceRows,
		Current:               currentRows,
		Strategy:              strategy,
		RunAt:                 runAt,
		InvalidateHardDeletes: cfg.InvalidateHardDeletes,
		ClosedUntil:           closedUntil,
		Partitions:            e.partitions,
	})
	if err != nil {
		return nil, err
	}
	logger.Debugw(
		"classification completed",
		"strategy", strategy.Name(),
		"inserts", len(plan.Classification.Inserts),
		"updates", len(plan.Classification.Updates),
		"invalidations", len(plan.Classification.Invalidations),
		"unchanged", plan.Classification.Unchanged,
		"duration", time.Since(classifyStart),
	)

	gen := &Generator{Dialect: e.dialect, Table: plan.Table, Columns: columns, Strategy: strategy, RunAt: runAt}
	if plan.CreatesTable {
		create, err := gen.CreateTable(cfg)
		if err != nil {
			return nil, err
		}
		plan.Statements = append(plan.Statements, create)
	}
	plan.Statements = append(plan.Statements, gen.AddColumns(plan.AddedColumns)...)
	plan.Statements = append(plan.Statements, gen.Closes(plan.Classification)...)
	plan.Statements = append(plan.Statements, gen.Inserts(plan.Classification)...)

	return plan, nil
}

func (e *Engine) sourceQuery(cfg Config, source string) *query.Query {
	return &query.Query{
		Query: fmt.Sprintf(
			"SELECT src.*, CAST((%s) AS %s) AS %s\nFROM (\n%s\n) AS src",
			cfg.UniqueKey, e.dialect.TextType(), e.dialect.QuoteIdentifier(ColumnUniqueKey), source,
		),
	}
}

func (e *Engine) currentQuery(table Relation) *query.Query {
	return &query.Query{
		Query: fmt.Sprintf("SELECT * FROM %s WHERE %s IS NULL", table.Quoted(e.dialect), e.dialect.QuoteIdentifier(ColumnValidTo)),
	}
}

// closedQuery returns the latest valid_to of every key with closed versions.
func (e *Engine) closedQuery(table Relation) *query.Query {
	key, validTo := e.dialect.QuoteIdentifier(ColumnUniqueKey), e.dialect.QuoteIdentifier(ColumnValidTo)
	return &query.Query{
		Query: fmt.Sprintf(
			"SELECT %s, MAX(%s) AS %s FROM %s WHERE %s IS NOT NULL GROUP BY %s",
			key, validTo, validTo, table.Quoted(e.dialect), validTo, key,
		),
	}
}

func (e *Engine) sourceRows(cfg Config, res *query.QueryResult) ([]query.Column, []SourceRow, error) {
	keyIdx := res.ColumnIndex(ColumnUniqueKey)
	if keyIdx < 0 {
		return nil, nil, errors.Errorf("the source query of snapshot '%s' did not return the unique key", cfg.Name)
	}

	var columns []query.Column
	for i, c := range res.TypedColumns() {
		if i == keyIdx {
			continue
		}
		if IsMetadataColumn(c.Name) {
			return nil, nil, configErrorf(cfg.Name, "source column '%s' uses the reserved '%s' prefix", c.Name, metadataPrefix)
		}
		columns = append(columns, c)
	}
	if dup := lo.FindDuplicates(lowerAll(res.Columns)); len(dup) > 0 {
		return nil, nil, configErrorf(cfg.Name, "the source query returns duplicate columns: %s", strings.Join(dup, ", "))
	}

	updatedAtIdx := -1
	if cfg.UpdatedAt != "" {
		updatedAtIdx = res.ColumnIndex(cfg.UpdatedAt)
	}

	rows := make([]SourceRow, 0, len(res.Rows))
	nulls := 0
	for _, values := range res.Rows {
		if values[keyIdx] == nil {
			nulls++
			continue
		}

		row := SourceRow{Key: Key(keyString(values[keyIdx])), Values: make(map[string]any, len(values)-1)}
		for i, v := range values {
			if i == keyIdx {
				continue
			}
			row.Values[strings.ToLower(res.Columns[i])] = v
		}

		if updatedAtIdx >= 0 {
			ts, err := toTime(values[updatedAtIdx])
			if err != nil {
				return nil, nil, errors.Wrapf(err, "invalid '%s' value for key '%s' in snapshot '%s'", cfg.UpdatedAt, row.Key, cfg.Name)
			}
			row.UpdatedAt = ts
		}

		rows = append(rows, row)
	}

	if nulls > 0 {
		return nil, nil, &AmbiguousKeyError{Snapshot: cfg.Name, Relation: "source", Nulls: nulls}
	}

	return columns, rows, nil
}

func historyDataColumns(cfg Config, table Relation, columns []query.Column) ([]query.Column, error) {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[strings.ToLower(c.Name)] = true
	}
	for _, m := range MetadataColumns {
		if !present[m] {
			return nil, configErrorf(cfg.Name, "table %s exists but is not a snapshot table, column '%s' is missing", table, m)
		}
	}

	return lo.Filter(columns, func(c query.Column, _ int) bool {
		return !IsMetadataColumn(c.Name)
	}), nil
}

func missingColumns(source, history []query.Column) []query.Column {
	existing := make(map[string]bool, len(history))
	for _, c := range history {
		existing[strings.ToLower(c.Name)] = true
	}

	return lo.Filter(source, func(c query.Column, _ int) bool {
		return !existing[strings.ToLower(c.Name)]
	})
}

func snapshotRows(cfg Config, res *query.QueryResult) ([]SnapshotRow, error) {
	if res == nil {
		return nil, nil
	}

	idx := make(map[string]int, len(MetadataColumns))
	for _, m := range MetadataColumns {
		i := res.ColumnIndex(m)
		if i < 0 {
			return nil, configErrorf(cfg.Name, "the history table did not return the '%s' column", m)
		}
		idx[m] = i
	}

	rows := make([]SnapshotRow, 0, len(res.Rows))
	for _, values := range res.Rows {
		row := SnapshotRow{
			SCDID:  keyString(values[idx[ColumnSCDID]]),
			Key:    Key(keyString(values[idx[ColumnUniqueKey]])),
			Values: make(map[string]any, len(values)),
		}

		var err error
		if row.UpdatedAt, err = toTime(values[idx[ColumnUpdatedAt]]); err != nil {
			return nil, errors.Wrapf(err, "invalid '%s' value for key '%s'", ColumnUpdatedAt, row.Key)
		}
		validFrom, err := toTime(values[idx[ColumnValidFrom]])
		if err != nil || validFrom == nil {
			return nil, errors.Errorf("invalid '%s' value for key '%s'", ColumnValidFrom, row.Key)
		}
		row.ValidFrom = *validFrom
		if row.ValidTo, err = toTime(values[idx[ColumnValidTo]]); err != nil {
			return nil, errors.Wrapf(err, "invalid '%s' value for key '%s'", ColumnValidTo, row.Key)
		}

		for i, v := range values {
			if !IsMetadataColumn(res.Columns[i]) {
				row.Values[strings.ToLower(res.Columns[i])] = v
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// closedKeys maps the keys that have closed versions but no current one to their latest valid_to.
func closedKeys(cfg Config, res *query.QueryResult, current []SnapshotRow) (map[Key]time.Time, error) {
	if res == nil {
		return nil, nil
	}

	keyIdx, validToIdx := res.ColumnIndex(ColumnUniqueKey), res.ColumnIndex(ColumnValidTo)
	if keyIdx < 0 || validToIdx < 0 {
		return nil, configErrorf(cfg.Name, "the closed history query did not return '%s' and '%s'", ColumnUniqueKey, ColumnValidTo)
	}

	open := make(map[Key]bool, len(current))
	for _, r := range current {
		open[r.Key] = true
	}

	closed := make(map[Key]time.Time, len(res.Rows))
	for _, values := range res.Rows {
		key := Key(keyString(values[keyIdx]))
		if open[key] {
			continue
		}
		validTo, err := toTime(values[validToIdx])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid '%s' value for key '%s'", ColumnValidTo, key)
		}
		if validTo != nil {
			closed[key] = *validTo
		}
	}

	return closed, nil
}

func keyString(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case []byte:
		return string(tv)
	}

	return fmt.Sprint(v)
}
