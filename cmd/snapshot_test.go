package cmd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/redsnap-data/redsnap/pkg/executor"
	"github.com/redsnap-data/redsnap/pkg/project"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/redsnap-data/redsnap/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executionResults() []*executor.TaskExecutionResult {
	people := &executor.TaskInstance{Definition: &project.Definition{Name: "people", Path: "snapshots/people.sql"}}
	orders := &executor.TaskInstance{Definition: &project.Definition{Name: "orders", Path: "snapshots/orders.sql"}}

	return []*executor.TaskExecutionResult{
		{
			Instance: people,
			Duration: 1500 * time.Millisecond,
			Result: &snapshot.Result{
				Plan: &snapshot.Plan{
					Table: snapshot.Relation{Schema: "history", Table: "people"},
					Classification: &snapshot.Classification{
						Inserts:       make([]snapshot.Change, 2),
						Updates:       make([]snapshot.Change, 1),
						Invalidations: make([]snapshot.Change, 1),
						Unchanged:     7,
					},
					Statements: []*query.Query{{Query: "UPDATE"}, {Query: "INSERT"}},
				},
				RowsAffected: 5,
			},
		},
		{
			Instance: orders,
			Duration: 20 * time.Millisecond,
			Error:    errors.New("source query failed"),
		},
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	got := summarize(executionResults())
	assert.Equal(t, []snapshotSummary{
		{
			Name:        "people",
			Table:       "history.people",
			Status:      "succeeded",
			New:         2,
			Changed:     1,
			Invalidated: 1,
			Unchanged:   7,
			Statements:  2,
			Rows:        5,
			DurationMs:  1500,
		},
		{
			Name:       "orders",
			Status:     "failed",
			Error:      "source query failed",
			DurationMs: 20,
		},
	}, got)
}

func TestFailedResults(t *testing.T) {
	t.Parallel()

	results := executionResults()
	failed := failedResults(results)
	require.Len(t, failed, 1)
	assert.Same(t, results[1], failed[0])

	assert.Empty(t, failedResults(results[:1]))
}

func TestPrintSummaryTable(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printSummaryTable(&out, executionResults())

	rendered := out.String()
	assert.Contains(t, rendered, "SNAPSHOT")
	assert.Contains(t, rendered, "INVALIDATED")
	assert.Contains(t, rendered, "history.people")
	assert.Contains(t, rendered, "1.5s")
	assert.Contains(t, rendered, "orders")
	assert.Contains(t, rendered, "FAIL")
}

func TestFailureTree(t *testing.T) {
	t.Parallel()

	results := executionResults()
	tree := failureTree(failedResults(results))

	assert.Contains(t, tree, "1 snapshots failed")
	assert.Contains(t, tree, "orders")
	assert.Contains(t, tree, "snapshots/orders.sql")
	assert.Contains(t, tree, "source query failed")
	assert.NotContains(t, tree, "people")
}

func TestInstancesOf(t *testing.T) {
	t.Parallel()

	startedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ws := &workspace{
		snapshots: []*project.Definition{{Name: "a"}, {Name: "b"}},
		startedAt: startedAt,
	}

	instances := instancesOf(ws)
	require.Len(t, instances, 2)
	for i, ti := range instances {
		assert.Same(t, ws.snapshots[i], ti.Definition)
		assert.Equal(t, startedAt, ti.RunAt)
	}
}

const redshiftThreadsConfig = `environments:
  default:
    connections:
      redshift:
        - name: warehouse
          host: h
          threads: 4
        - name: unset
          host: h
`

func TestThreadsOf(t *testing.T) {
	t.Parallel()

	memFs := writeFiles(t, map[string]string{
		"/project/redsnap.yml":  "name: warehouse\nconnection: warehouse\n",
		"/project/.redsnap.yml": redshiftThreadsConfig,
	})

	proj, cfg, err := loadProjectWithConfig(memFs, workspaceOptions{path: "/project"})
	require.NoError(t, err)

	ws := &workspace{project: proj, config: cfg}
	assert.Equal(t, 4, threadsOf(ws))

	proj.Connection = "unset"
	assert.Equal(t, 1, threadsOf(ws))

	proj.Connection = "missing"
	assert.Equal(t, 1, threadsOf(ws))
}
