package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	assert.Equal(t, `"my ""odd"" column"`, d.QuoteIdentifier(`my "odd" column`))
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "TEXT", d.TextType())
	assert.Equal(t, 65535, d.MaxParameters())

	opts, err := d.TableOptions("", "", nil)
	require.NoError(t, err)
	assert.Empty(t, opts)

	_, err = d.TableOptions("id", "", nil)
	require.EqualError(t, err, "distribution and sort keys are only supported on redshift")
}

func TestMapColumnType(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"int2":        "SMALLINT",
		"int4":        "INTEGER",
		"INT8":        "BIGINT",
		"float8":      "DOUBLE PRECISION",
		"numeric":     "NUMERIC",
		"bool":        "BOOLEAN",
		"date":        "DATE",
		"timestamp":   "TIMESTAMP",
		"timestamptz": "TIMESTAMPTZ",
		"varchar":     "TEXT",
		"":            "TEXT",
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, want, MapColumnType(in, "TEXT"))
		})
	}
}
