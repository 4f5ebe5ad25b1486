package snapshot

import (
	"fmt"
	"strings"
)

// ConfigurationError is returned when a snapshot cannot be run with the given configuration. It is always raised
// before any data is read or written.
type ConfigurationError struct {
	Snapshot string
	Message  string
}

func (e *ConfigurationError) Error() string {
	if e.Snapshot == "" {
		return e.Message
	}

	return fmt.Sprintf("snapshot '%s': %s", e.Snapshot, e.Message)
}

func configErrorf(snapshot, format string, args ...any) error {
	return &ConfigurationError{Snapshot: snapshot, Message: fmt.Sprintf(format, args...)}
}

// AmbiguousKeyError means the unique key does not identify a single row, either in the source query or among the
// current rows of the history table.
type AmbiguousKeyError struct {
	Snapshot string
	Relation string
	Keys     []Key
	Nulls    int
}

func (e *AmbiguousKeyError) Error() string {
	if e.Nulls > 0 {
		return fmt.Sprintf("snapshot '%s': unique key evaluated to NULL for %d %s rows", e.Snapshot, e.Nulls, e.Relation)
	}

	shown := e.Keys
	if len(shown) > 5 {
		shown = shown[:5]
	}
	keys := make([]string, len(shown))
	for i, k := range shown {
		keys[i] = "'" + string(k) + "'"
	}
	msg := fmt.Sprintf("snapshot '%s': unique key is not unique in the %s, %d duplicated keys: %s", e.Snapshot, e.Relation, len(e.Keys), strings.Join(keys, ", "))
	if len(e.Keys) > len(shown) {
		msg += ", ..."
	}

	return msg
}

// SchemaDriftError lists the source columns that do not exist in the history table yet.
type SchemaDriftError struct {
	Snapshot string
	Table    string
	Columns  []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf(
		"snapshot '%s': source has columns that do not exist in %s: %s, set 'allow_schema_drift: true' to add them automatically",
		e.Snapshot, e.Table, strings.Join(e.Columns, ", "),
	)
}

// ExecutionError wraps a failure of the execution layer while applying the write batch. The whole batch is
// considered not applied.
type ExecutionError struct {
	Snapshot string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("snapshot '%s': failed to apply the write batch: %v", e.Snapshot, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
