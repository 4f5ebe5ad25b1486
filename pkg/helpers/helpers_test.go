package helpers

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastResultToInteger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		res     [][]interface{}
		want    int64
		wantErr bool
	}{
		{name: "int64", res: [][]interface{}{{int64(5)}}, want: 5},
		{name: "int32", res: [][]interface{}{{int32(7)}}, want: 7},
		{name: "float", res: [][]interface{}{{3.9}}, want: 3},
		{name: "bool", res: [][]interface{}{{true}}, want: 1},
		{name: "string", res: [][]interface{}{{" 12 "}}, want: 12},
		{name: "bytes", res: [][]interface{}{{[]byte("42")}}, want: 42},
		{name: "numeric", res: [][]interface{}{{pgtype.Numeric{Int: big.NewInt(9), Valid: true}}}, want: 9},
		{name: "nil", res: [][]interface{}{{nil}}, wantErr: true},
		{name: "garbage string", res: [][]interface{}{{"abc"}}, wantErr: true},
		{name: "multiple columns", res: [][]interface{}{{1, 2}}, wantErr: true},
		{name: "no rows", res: [][]interface{}{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := CastResultToInteger(tt.res)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeyValues(t *testing.T) {
	t.Parallel()

	got, err := ParseKeyValues([]string{"seed_name=seed", "step=2", "step=3", "empty=", "expr=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"seed_name": "seed", "step": "3", "empty": "", "expr": "a=b"}, got)

	_, err = ParseKeyValues([]string{"novalue"})
	require.EqualError(t, err, "invalid variable 'novalue', expected the format key=value")

	_, err = ParseKeyValues([]string{"=value"})
	require.Error(t, err)
}
