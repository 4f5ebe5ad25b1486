package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSnapshots(t *testing.T) {
	t.Parallel()

	memFs := writeFiles(t, map[string]string{
		"/project/redsnap.yml":          testProjectFile,
		"/project/.redsnap.yml":         singleConnectionConfig,
		"/project/snapshots/people.sql": peopleSnapshot,
		"/project/snapshots/orders.sql": ordersSnapshot,
	})

	ws, err := loadWorkspace(memFs, workspaceOptions{
		path:      "/project",
		vars:      []string{"seed_name=customers"},
		startedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	rendered, err := renderSnapshots(ws.snapshots, ws)
	require.NoError(t, err)
	assert.Equal(t, []renderedSnapshot{
		{
			Name:       "orders",
			Path:       "snapshots/orders.sql",
			Connection: "local",
			Table:      "history.orders",
			Strategy:   "timestamp",
			Query:      "select * from orders",
		},
		{
			Name:       "people",
			Path:       "snapshots/people.sql",
			Connection: "local",
			Table:      "history.people",
			Strategy:   "check",
			Query:      "select * from customers",
		},
	}, rendered)

	var out bytes.Buffer
	printRendered(&out, rendered)
	assert.Contains(t, out.String(), "[table]  history.people")
	assert.Contains(t, out.String(), "select * from customers\n\n")
}

func TestRenderSnapshots_MissingVariable(t *testing.T) {
	t.Parallel()

	memFs := writeFiles(t, map[string]string{
		"/project/redsnap.yml":          "name: warehouse\n",
		"/project/.redsnap.yml":         singleConnectionConfig,
		"/project/snapshots/people.sql": peopleSnapshot,
	})

	ws, err := loadWorkspace(memFs, workspaceOptions{path: "/project"})
	require.NoError(t, err)

	_, err = renderSnapshots(ws.snapshots, ws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render the source query of snapshot 'people'")
}
