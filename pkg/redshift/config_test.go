package redshift

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		threads     int
		wantThreads int
		wantErr     string
	}{
		{threads: 0, wantThreads: 1},
		{threads: 1, wantThreads: 1},
		{threads: 8, wantThreads: 8},
		{threads: 9, wantErr: "Invalid value given for \"threads\" in active run-target.\nValue given was 9 but it should be an int between 1 and 8"},
		{threads: -1, wantErr: "Invalid value given for \"threads\" in active run-target.\nValue given was -1 but it should be an int between 1 and 8"},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.threads), func(t *testing.T) {
			t.Parallel()

			c := Config{Threads: tt.threads}
			err := c.Validate()
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantThreads, c.GetThreads())
		})
	}
}

func TestConfig_ToDSN(t *testing.T) {
	t.Parallel()

	c := Config{
		Username:     "user",
		Password:     "pass",
		Host:         "cluster.example.com",
		Database:     "analytics",
		Schema:       "snapshots",
		PoolMaxConns: 4,
		SslMode:      "require",
	}

	assert.Equal(t, "dbname='analytics' user='user' host='cluster.example.com' password='pass' port='5439'", c.ToDSN())
	assert.Equal(t,
		"dbname='analytics' user='user' host='cluster.example.com' password='pass' port='5439' sslmode='require' pool_max_conns=4 search_path='snapshots'",
		c.ToDBConnectionURI(),
	)

	c.Port = 5440
	assert.Equal(t, "dbname='analytics' user='user' host='cluster.example.com' password='pass' port='5440'", c.ToDSN())
	assert.Equal(t, "analytics", c.GetDatabase())
}

func TestNewClient_RejectsInvalidThreads(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{Threads: 20})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Value given was 20")
}
