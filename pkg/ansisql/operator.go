package ansisql

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/executor"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
	"go.uber.org/zap"
)

type TargetClient interface {
	snapshot.Connection
	selector
}

// SnapshotTarget is a resolved connection together with the dialect of its platform.
type SnapshotTarget struct {
	Client  TargetClient
	Dialect snapshot.Dialect
	Schema  string
}

type TargetGetter interface {
	GetSnapshotTarget(ctx context.Context, name string) (*SnapshotTarget, error)
}

func resolveTarget(ctx context.Context, targets TargetGetter, ti *executor.TaskInstance) (*SnapshotTarget, snapshot.Config, error) {
	def := ti.Definition
	target, err := targets.GetSnapshotTarget(ctx, def.Connection)
	if err != nil {
		return nil, snapshot.Config{}, err
	}

	cfg := def.Config
	if cfg.TargetSchema == "" {
		cfg.TargetSchema = target.Schema
	}

	return target, cfg, nil
}

func loggerFrom(ctx context.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if l, ok := ctx.Value(executor.ContextLogger).(*zap.SugaredLogger); ok && l != nil {
		return l
	}
	return fallback
}

type SnapshotOperator struct {
	targets TargetGetter
	logger  *zap.SugaredLogger
	dryRun  bool
}

// NewSnapshotOperator returns an operator that brings the history table of a snapshot up to date. In dry-run mode
// the write batch is planned and printed but never applied.
func NewSnapshotOperator(targets TargetGetter, logger *zap.SugaredLogger, dryRun bool) *SnapshotOperator {
	return &SnapshotOperator{
		targets: targets,
		logger:  logger,
		dryRun:  dryRun,
	}
}

func (o *SnapshotOperator) Run(ctx context.Context, ti *executor.TaskInstance) (*snapshot.Result, error) {
	target, cfg, err := resolveTarget(ctx, o.targets, ti)
	if err != nil {
		return nil, err
	}

	def := *ti.Definition
	def.Config = cfg
	source, err := def.RenderSource(ti.RunAt)
	if err != nil {
		return nil, err
	}

	annotated, err := AddAnnotationComment(ctx, &query.Query{Query: source}, def.Name, string(cfg.Strategy))
	if err != nil {
		return nil, err
	}

	engine := snapshot.NewEngine(target.Client, target.Dialect, loggerFrom(ctx, o.logger))
	in := snapshot.RunInput{Config: cfg, Source: annotated.Query, RunAt: ti.RunAt}
	printer, _ := ctx.Value(executor.KeyPrinter).(io.Writer)

	if o.dryRun {
		plan, err := engine.Plan(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, stmt := range plan.Statements {
			LogQueryIfVerbose(ctx, printer, stmt.String())
		}
		printSummary(printer, "Planned", plan)
		return &snapshot.Result{Plan: plan}, nil
	}

	res, err := engine.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	for _, stmt := range res.Statements {
		LogQueryIfVerbose(ctx, printer, stmt.String())
	}
	printSummary(printer, "Applied", res.Plan)

	return res, nil
}

func printSummary(printer io.Writer, verb string, plan *snapshot.Plan) {
	if printer == nil {
		return
	}

	c := plan.Classification
	fmt.Fprintf(printer, "%s %d statements on %s: %d new, %d changed, %d invalidated, %d unchanged\n",
		verb, len(plan.Statements), plan.Table, len(c.Inserts), len(c.Updates), len(c.Invalidations), c.Unchanged)
}

// CheckOperator runs the history table invariant checks of a snapshot.
type CheckOperator struct {
	targets TargetGetter
}

func NewCheckOperator(targets TargetGetter) *CheckOperator {
	return &CheckOperator{targets: targets}
}

func (o *CheckOperator) Run(ctx context.Context, ti *executor.TaskInstance) (*snapshot.Result, error) {
	target, cfg, err := resolveTarget(ctx, o.targets, ti)
	if err != nil {
		return nil, err
	}

	cols, err := target.Client.TableColumns(ctx, cfg.TargetSchema, cfg.Table())
	if err != nil {
		return nil, err
	}

	table := snapshot.Relation{Schema: cfg.TargetSchema, Table: cfg.Table()}
	if len(cols) == 0 {
		return nil, errors.Errorf("history table %s does not exist, run the snapshot first", table)
	}

	printer, _ := ctx.Value(executor.KeyPrinter).(io.Writer)
	var failed []string
	for _, check := range HistoryChecks(target.Client, table.String()) {
		if err := check.Check(ctx); err != nil {
			failed = append(failed, check.Name())
			if printer != nil {
				fmt.Fprintf(printer, "FAIL %s: %s\n", check.Name(), err)
			}
			continue
		}
		if printer != nil {
			fmt.Fprintf(printer, "PASS %s\n", check.Name())
		}
	}

	if len(failed) > 0 {
		return nil, errors.Errorf("checks failed for %s: %s", table, strings.Join(failed, ", "))
	}

	return nil, nil
}
