package executor

import (
	"context"
	"time"

	"github.com/redsnap-data/redsnap/pkg/project"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

// TaskInstance is a single snapshot scheduled for a run.
type TaskInstance struct {
	Definition *project.Definition
	RunAt      time.Time
}

func (t *TaskInstance) GetHumanID() string {
	return t.Definition.Name
}

type TaskExecutionResult struct {
	Instance *TaskInstance
	Result   *snapshot.Result
	Duration time.Duration
	Error    error
}

type Operator interface {
	Run(ctx context.Context, ti *TaskInstance) (*snapshot.Result, error)
}
