package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

var (
	colors = []color.Attribute{
		color.FgBlue,
		color.FgMagenta,
		color.FgCyan,
		color.FgWhite,
		color.FgHiMagenta,
		color.FgHiBlue,
		color.FgHiCyan,
	}
	faint = color.New(color.Faint).SprintFunc()
)

type contextKey int

const (
	KeyPrinter contextKey = iota
	ContextLogger
	KeyVerbose
	// KeyQueryAnnotations holds "default" or a JSON object of extra annotations for the generated queries.
	KeyQueryAnnotations

	timeFormat = "2006-01-02 15:04:05"
)

type Concurrent struct {
	workerCount int
	executor    *Sequential
	logger      *zap.SugaredLogger
	out         io.Writer
	verbose     bool
}

type ConcurrentOption func(*Concurrent)

// WithOutput sends the progress lines and the task output to w instead of stdout.
func WithOutput(w io.Writer) ConcurrentOption {
	return func(c *Concurrent) {
		c.out = w
	}
}

func WithVerbose(verbose bool) ConcurrentOption {
	return func(c *Concurrent) {
		c.verbose = verbose
	}
}

func NewConcurrent(logger *zap.SugaredLogger, operator Operator, workerCount int, opts ...ConcurrentOption) *Concurrent {
	if workerCount < 1 {
		workerCount = 1
	}

	c := &Concurrent{
		workerCount: workerCount,
		executor:    &Sequential{Operator: operator},
		logger:      logger,
		out:         os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run executes the instances on the worker pool and returns one result per instance, in the order of the input.
// Instances that were not started before the context got cancelled are reported as failed.
func (c *Concurrent) Run(ctx context.Context, instances []*TaskInstance) []*TaskExecutionResult {
	input := make(chan int)
	results := make([]*TaskExecutionResult, len(instances))

	var printLock sync.Mutex
	var wg conc.WaitGroup
	for i := range min(c.workerCount, max(len(instances), 1)) {
		w := &worker{
			id:        fmt.Sprintf("worker-%d", i),
			executor:  c.executor,
			logger:    c.logger,
			printer:   color.New(colors[i%len(colors)]),
			printLock: &printLock,
			out:       c.out,
			verbose:   c.verbose,
		}
		wg.Go(func() {
			for idx := range input {
				results[idx] = w.run(ctx, instances[idx])
			}
		})
	}

	for i := range instances {
		input <- i
	}
	close(input)
	wg.Wait()

	return results
}

type worker struct {
	id        string
	executor  *Sequential
	logger    *zap.SugaredLogger
	printer   *color.Color
	printLock *sync.Mutex
	out       io.Writer
	verbose   bool
}

func (w *worker) run(ctx context.Context, task *TaskInstance) *TaskExecutionResult {
	if err := ctx.Err(); err != nil {
		return &TaskExecutionResult{Instance: task, Error: errors.Wrap(err, "snapshot was not started")}
	}

	w.printLock.Lock()
	w.printer.Fprintf(w.out, "[%s] Starting: %s\n", time.Now().Format(timeFormat), task.GetHumanID())
	w.printLock.Unlock()

	start := time.Now()

	printer := &workerWriter{
		w:           w.out,
		task:        task.GetHumanID(),
		sprintfFunc: w.printer.SprintfFunc(),
		lock:        w.printLock,
	}

	executionCtx := context.WithValue(ctx, KeyPrinter, printer)
	executionCtx = context.WithValue(executionCtx, ContextLogger, w.logger)
	executionCtx = context.WithValue(executionCtx, KeyVerbose, w.verbose)
	res, err := w.executor.RunSingleTask(executionCtx, task)

	duration := time.Since(start)
	durationString := fmt.Sprintf("(%s)", duration.Truncate(time.Millisecond).String())

	status := "Finished"
	if err != nil {
		status = "Failed"
		w.logger.Debugw("snapshot failed", "worker", w.id, "snapshot", task.GetHumanID(), "error", err)
	}

	w.printLock.Lock()
	w.printer.Fprintf(w.out, "[%s] %s: %s %s\n", time.Now().Format(timeFormat), status, task.GetHumanID(), faint(durationString))
	w.printLock.Unlock()

	return &TaskExecutionResult{
		Instance: task,
		Result:   res,
		Duration: duration,
		Error:    err,
	}
}

// workerWriter prefixes everything an operator prints with the time and the snapshot name.
type workerWriter struct {
	w           io.Writer
	task        string
	sprintfFunc func(format string, a ...interface{}) string
	lock        *sync.Mutex
}

func (w *workerWriter) Write(p []byte) (int, error) {
	formatted := w.sprintfFunc("[%s] [%s] %s", time.Now().Format(timeFormat), w.task, string(p))

	w.lock.Lock()
	defer w.lock.Unlock()

	n, err := w.w.Write([]byte(formatted))
	if err != nil {
		return n, err
	}
	if n != len(formatted) {
		return n, io.ErrShortWrite
	}
	return len(p), nil
}
