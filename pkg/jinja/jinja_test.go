package jinja

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		args  Context
		want  string
	}{
		{
			name:  "simple variables",
			query: "select * from {{ schema }}.{{ table }} where id = {{ id }}",
			args:  Context{"schema": "raw", "table": "people", "id": 5},
			want:  "select * from raw.people where id = 5",
		},
		{
			name:  "functions in the context",
			query: "select * from {{ ref('people') }}",
			args: Context{
				"ref": func(str string) string {
					return "raw." + str
				},
			},
			want: "select * from raw.people",
		},
		{
			name:  "loops",
			query: "select {% for c in columns %}{{ c }}, {% endfor %}id from t",
			args:  Context{"columns": []string{"a", "b"}},
			want:  "select a, b, id from t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewRenderer(tt.args).Render(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotRenderer(t *testing.T) {
	t.Parallel()

	runStartedAt := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	vars := map[string]any{"seed_name": "seed", "step": 2}

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr string
	}{
		{
			name:  "var lookup",
			query: "select * from {{ target_schema }}.{{ var('seed_name') }} where step = {{ var('step') }}",
			want:  "select * from snapshots.seed where step = 2",
		},
		{
			name:  "var with default",
			query: "{{ var('strategy', 'check') }}",
			want:  "check",
		},
		{
			name:  "vars map",
			query: "{{ vars.seed_name }}",
			want:  "seed",
		},
		{
			name:  "run timestamp",
			query: "{{ run_started_at }}",
			want:  "2021-03-01 10:00:00.000000",
		},
		{
			name:  "add_days filter",
			query: "{{ run_started_at | add_days(1) }}",
			want:  "2021-03-02 10:00:00.000000",
		},
		{
			name:  "date_format filter",
			query: "{{ run_started_at | date_format('%Y/%m/%d') }}",
			want:  "2021/03/01",
		},
		{
			name:    "missing var",
			query:   "select * from {{ var('invalidate_hard_deletes') }}",
			wantErr: "missing variable 'invalidate_hard_deletes', pass it with --var or define it under 'vars' in the project",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewSnapshotRenderer(vars, "snapshots", runStartedAt)
			got, err := r.Render(tt.query)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotRenderer_MissingVarsDoNotLeakIntoNextRender(t *testing.T) {
	t.Parallel()

	r := NewSnapshotRenderer(map[string]any{}, "snapshots", time.Now())

	_, err := r.Render("{{ var('nope') }}")
	require.Error(t, err)

	got, err := r.Render("select 1")
	require.NoError(t, err)
	assert.Equal(t, "select 1", got)
}
