package helpers

import (
	"database/sql/driver"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CastResultToInteger reads the single value of a one-row, one-column result as an integer.
func CastResultToInteger(res [][]interface{}) (int64, error) {
	if len(res) != 1 || len(res[0]) != 1 {
		return 0, errors.Errorf("multiple results are returned from query, please make sure your query just expects one value - value: %v", res)
	}

	return castToInteger(res[0][0], res)
}

func castToInteger(value interface{}, res [][]interface{}) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, errors.Errorf("unexpected result from query, result is nil")
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return castToInteger(string(v), res)
	case string:
		if atoi, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return atoi, nil
		}

		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int64(floatValue), nil
		}

		return 0, errors.Errorf("unexpected result from query, cannot cast result string to integer: %v", res)
	case driver.Valuer:
		inner, err := v.Value()
		if err != nil {
			return 0, errors.Wrap(err, "failed to read query result")
		}
		if _, nested := inner.(driver.Valuer); nested {
			break
		}
		return castToInteger(inner, res)
	}

	return 0, errors.Errorf("unexpected result from query, cannot cast result to integer: %v", res)
}

// ParseKeyValues parses repeated "key=value" flags. Later occurrences of a key win.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("invalid variable '%s', expected the format key=value", pair)
		}
		out[key] = value
	}

	return out, nil
}
