package ansisql

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/redsnap-data/redsnap/pkg/executor"
	"github.com/redsnap-data/redsnap/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAnnotationComment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		annotations string
		expectError bool
		expected    string
	}{
		{
			name:        "default annotations",
			annotations: DefaultQueryAnnotations,
			expected:    "-- @redsnap.config: {\"snapshot\":\"people\",\"strategy\":\"check\",\"type\":\"snapshot\"}\nSELECT * FROM seed",
		},
		{
			name:        "user annotations are merged",
			annotations: `{"team": "finance", "type": "nightly"}`,
			expected:    "-- @redsnap.config: {\"snapshot\":\"people\",\"strategy\":\"check\",\"team\":\"finance\",\"type\":\"nightly\"}\nSELECT * FROM seed",
		},
		{
			name:        "invalid JSON annotations",
			annotations: `{"team": "finance"`,
			expectError: true,
		},
		{
			name:     "no annotations in context",
			expected: "SELECT * FROM seed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			if tt.annotations != "" {
				ctx = context.WithValue(ctx, executor.KeyQueryAnnotations, tt.annotations)
			}

			q := &query.Query{Query: "SELECT * FROM seed", Args: []any{1}}
			got, err := AddAnnotationComment(ctx, q, "people", "check")
			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.Query)
			assert.Equal(t, []any{1}, got.Args)
			assert.Equal(t, "SELECT * FROM seed", q.Query)
		})
	}
}

func TestLogQueryIfVerbose(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	LogQueryIfVerbose(context.Background(), &out, "SELECT 1")
	assert.Empty(t, out.String())

	verbose := context.WithValue(context.Background(), executor.KeyVerbose, true)
	LogQueryIfVerbose(verbose, "not a writer", "SELECT 1")

	LogQueryIfVerbose(verbose, &out, "  SELECT 1  ")
	assert.Equal(t, "Executing SQL query:\nSELECT 1\n\n", out.String())

	out.Reset()
	LogQueryIfVerbose(verbose, &out, strings.Repeat("x", QueryLogCharacterLimit+5))
	assert.Contains(t, out.String(), "\n... (truncated)")
	assert.NotContains(t, out.String(), strings.Repeat("x", QueryLogCharacterLimit+1))
}
