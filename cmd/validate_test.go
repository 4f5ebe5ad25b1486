package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const redshiftProjectConfig = `environments:
  default:
    connections:
      redshift:
        - name: warehouse
          username: u
          password: p
          host: h
          database: d
          schema: snapshots
          threads: 12
      postgres:
        - name: pg
          username: u
          password: p
          host: h
          database: d
          schema: public
`

const distributedSnapshot = `/* @snapshot
unique_key: id
strategy: check
check_cols: all
dist: id
sort: [id, name]
sort_type: zigzag
@snapshot */
select * from people
`

const postgresDistributedSnapshot = `/* @snapshot
connection: pg
unique_key: id
strategy: check
check_cols: all
dist: even
@snapshot */
select * from people
`

func TestValidateWorkspace(t *testing.T) {
	t.Parallel()

	t.Run("valid project", func(t *testing.T) {
		t.Parallel()

		memFs := writeFiles(t, map[string]string{
			"/project/redsnap.yml":          testProjectFile,
			"/project/.redsnap.yml":         singleConnectionConfig,
			"/project/snapshots/people.sql": peopleSnapshot,
			"/project/snapshots/orders.sql": ordersSnapshot,
		})

		ws, err := loadWorkspace(memFs, workspaceOptions{path: "/project"})
		require.NoError(t, err)
		assert.Empty(t, validateWorkspace(memFs, ws))
	})

	t.Run("platform specific issues", func(t *testing.T) {
		t.Parallel()

		memFs := writeFiles(t, map[string]string{
			"/project/redsnap.yml":               "name: warehouse\nconnection: warehouse\n",
			"/project/.redsnap.yml":              redshiftProjectConfig,
			"/project/snapshots/distributed.sql": distributedSnapshot,
			"/project/snapshots/pg.sql":          postgresDistributedSnapshot,
		})

		ws, err := loadWorkspace(memFs, workspaceOptions{path: "/project"})
		require.NoError(t, err)

		errs := validateWorkspace(memFs, ws)
		require.Len(t, errs, 4)
		assert.Contains(t, errs[0].Error(), "threads")
		assert.Contains(t, errs[1].Error(), "connection 'warehouse'")
		assert.Contains(t, errs[1].Error(), "Value given was 12")
		assert.Contains(t, errs[2].Error(), "Invalid sort_type given: zigzag")
		assert.Contains(t, errs[3].Error(), "snapshot 'pg'")
		assert.Contains(t, errs[3].Error(), "only supported on redshift")
	})

	t.Run("missing strategy", func(t *testing.T) {
		t.Parallel()

		memFs := writeFiles(t, map[string]string{
			"/project/redsnap.yml":          testProjectFile,
			"/project/.redsnap.yml":         singleConnectionConfig,
			"/project/snapshots/broken.sql": "-- @snapshot.unique_key: id\nselect 1\n",
		})

		ws, err := loadWorkspace(memFs, workspaceOptions{path: "/project"})
		require.NoError(t, err)

		errs := validateWorkspace(memFs, ws)
		require.Len(t, errs, 1)
		assert.Equal(t, "snapshot 'broken': Snapshots must be configured with a 'strategy'", errs[0].Error())
	})
}
