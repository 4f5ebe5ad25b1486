package executor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
)

type Sequential struct {
	Operator Operator
}

func (s Sequential) RunSingleTask(ctx context.Context, instance *TaskInstance) (*snapshot.Result, error) {
	if instance == nil || instance.Definition == nil {
		return nil, errors.New("cannot run an empty task instance")
	}

	if s.Operator == nil {
		return nil, errors.New("there is no operator configured, snapshot cannot be run: " + instance.GetHumanID())
	}

	return s.Operator.Run(ctx, instance)
}
