package snapshot

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesEqual(t *testing.T) {
	t.Parallel()

	ts := time.Date(2016, 7, 5, 12, 0, 0, 0, time.UTC)
	name := "ada"

	tests := []struct {
		name string
		a    any
		b    any
		want bool
	}{
		{name: "null equals null", a: nil, b: nil, want: true},
		{name: "null differs from value", a: nil, b: "x", want: false},
		{name: "value differs from null", a: 1, b: nil, want: false},
		{name: "nil pointer is null", a: (*string)(nil), b: nil, want: true},
		{name: "pointer is dereferenced", a: &name, b: "ada", want: true},
		{name: "same strings", a: "a", b: "a", want: true},
		{name: "different strings", a: "a", b: "b", want: false},
		{name: "bytes and string", a: []byte("abc"), b: "abc", want: true},
		{name: "integer widths", a: int32(5), b: int64(5), want: true},
		{name: "integer and float", a: int64(5), b: 5.0, want: true},
		{name: "different numbers", a: int64(5), b: int64(6), want: false},
		{name: "same instant in different zones", a: ts, b: ts.In(time.FixedZone("x", 3600)), want: true},
		{name: "timestamp and text", a: ts, b: "2016-07-05 12:00:00", want: true},
		{name: "text and timestamp", a: "2016-07-05 12:00:01", b: ts, want: false},
		{name: "booleans", a: true, b: false, want: false},
		{name: "numeric and integer", a: pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true}, b: 12.5, want: true},
		{name: "invalid numeric is null", a: pgtype.Numeric{}, b: nil, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ValuesEqual(tt.a, tt.b))
		})
	}
}

func TestSCDID(t *testing.T) {
	t.Parallel()

	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	id := SCDID("1", at)
	assert.Len(t, id, 32)
	assert.Equal(t, id, SCDID("1", at.In(time.FixedZone("x", 7200))))
	assert.NotEqual(t, id, SCDID("1", at.Add(time.Microsecond)))
	assert.NotEqual(t, id, SCDID("2", at))
}

func TestToTime(t *testing.T) {
	t.Parallel()

	ts := time.Date(2016, 7, 5, 12, 0, 0, 0, time.UTC)

	got, err := toTime(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = toTime(ts)
	require.NoError(t, err)
	assert.True(t, ts.Equal(*got))

	got, err = toTime("2016-07-05 12:00:00")
	require.NoError(t, err)
	assert.True(t, ts.Equal(*got))

	got, err = toTime(pgtype.Timestamp{Time: ts, Valid: true})
	require.NoError(t, err)
	assert.True(t, ts.Equal(*got))

	_, err = toTime(42)
	require.Error(t, err)
}

func TestIsMetadataColumn(t *testing.T) {
	t.Parallel()

	assert.True(t, IsMetadataColumn("snap_valid_to"))
	assert.True(t, IsMetadataColumn("SNAP_SCD_ID"))
	assert.False(t, IsMetadataColumn("snapshot_date"))
	assert.False(t, IsMetadataColumn("id"))
}
