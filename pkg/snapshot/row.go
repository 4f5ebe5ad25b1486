package snapshot

import (
	"bytes"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/date"
)

const (
	ColumnSCDID     = "snap_scd_id"
	ColumnUniqueKey = "snap_unique_key"
	ColumnUpdatedAt = "snap_updated_at"
	ColumnValidFrom = "snap_valid_from"
	ColumnValidTo   = "snap_valid_to"

	metadataPrefix = "snap_"
)

// MetadataColumns are the bookkeeping columns appended to every history table, in table order.
var MetadataColumns = []string{ColumnSCDID, ColumnUniqueKey, ColumnUpdatedAt, ColumnValidFrom, ColumnValidTo}

func IsMetadataColumn(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), metadataPrefix)
}

// Key is the logical key of a row, the text form of the unique key expression as evaluated by the warehouse.
type Key string

type SourceRow struct {
	Key       Key
	UpdatedAt *time.Time
	Values    map[string]any
}

// SnapshotRow is a row of the history table. Only current rows, with a nil ValidTo, are loaded by the engine.
type SnapshotRow struct {
	SCDID     string
	Key       Key
	UpdatedAt *time.Time
	ValidFrom time.Time
	ValidTo   *time.Time
	Values    map[string]any
}

// SCDID derives the identifier of a version from its key and the moment it became valid.
func SCDID(key Key, validFrom time.Time) string {
	var buf bytes.Buffer
	for _, part := range []string{string(key), validFrom.UTC().Format(time.RFC3339Nano)} {
		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(len(part)))
		buf.Write(l[:])
		buf.WriteString(part)
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:16])
}

// ValuesEqual compares two column values the way the check strategy needs it: NULL equals NULL, NULL differs from
// any non-NULL value, and values of different Go types that represent the same SQL value are equal.
func ValuesEqual(a, b any) bool {
	a, b = normalizeValue(a), normalizeValue(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Equal(bv)
		}
		if bv, ok := b.(string); ok {
			if t, err := date.ParseTime(bv); err == nil {
				return av.Equal(t)
			}
		}
	case string:
		if bv, ok := b.(time.Time); ok {
			return ValuesEqual(bv, av)
		}
	case *big.Rat:
		if bv, ok := b.(*big.Rat); ok {
			return av.Cmp(bv) == 0
		}
	}

	if reflect.DeepEqual(a, b) {
		return true
	}

	return fmt.Sprint(a) == fmt.Sprint(b)
}

func normalizeValue(v any) any {
	if v == nil {
		return nil
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return normalizeValue(rv.Elem().Interface())
	}

	switch tv := v.(type) {
	case time.Time:
		return tv
	case []byte:
		return string(tv)
	case string:
		return tv
	case bool:
		return tv
	case int:
		return new(big.Rat).SetInt64(int64(tv))
	case int8:
		return new(big.Rat).SetInt64(int64(tv))
	case int16:
		return new(big.Rat).SetInt64(int64(tv))
	case int32:
		return new(big.Rat).SetInt64(int64(tv))
	case int64:
		return new(big.Rat).SetInt64(tv)
	case uint8:
		return new(big.Rat).SetUint64(uint64(tv))
	case uint16:
		return new(big.Rat).SetUint64(uint64(tv))
	case uint32:
		return new(big.Rat).SetUint64(uint64(tv))
	case uint64:
		return new(big.Rat).SetUint64(tv)
	case float32:
		if r, ok := new(big.Rat).SetString(fmt.Sprint(tv)); ok {
			return r
		}
		return tv
	case float64:
		if r := new(big.Rat); r.SetFloat64(tv) != nil {
			return r
		}
		return tv
	case driver.Valuer:
		val, err := tv.Value()
		if err != nil {
			return v
		}
		if val == nil {
			return nil
		}
		if s, ok := val.(string); ok {
			if r, ok := new(big.Rat).SetString(s); ok {
				return r
			}
		}
		return normalizeValue(val)
	}

	return v
}

// toTime converts a driver value to a timestamp. Textual timestamps are parsed.
func toTime(v any) (*time.Time, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &tv, nil
	case *time.Time:
		return tv, nil
	case string:
		t, err := date.ParseTime(tv)
		if err != nil {
			return nil, err
		}
		return &t, nil
	case []byte:
		return toTime(string(tv))
	case driver.Valuer:
		val, err := tv.Value()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read timestamp value")
		}
		if _, ok := val.(driver.Valuer); ok {
			return nil, errors.Errorf("unsupported timestamp value of type %T", v)
		}
		return toTime(val)
	}

	return nil, errors.Errorf("unsupported timestamp value of type %T", v)
}
