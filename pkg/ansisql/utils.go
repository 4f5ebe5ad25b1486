package ansisql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/executor"
	"github.com/redsnap-data/redsnap/pkg/query"
)

const (
	DefaultQueryAnnotations = "default"
	QueryLogCharacterLimit  = 10000
)

// AddAnnotationComment prepends a JSON comment that identifies the snapshot to the query, so that the queries can
// be traced in the warehouse query history. Nothing is added unless annotations are enabled in the context.
func AddAnnotationComment(ctx context.Context, q *query.Query, snapshotName, strategy string) (*query.Query, error) {
	annotations, ok := ctx.Value(executor.KeyQueryAnnotations).(string)
	if !ok || annotations == "" {
		return q, nil
	}

	userAnnotations := make(map[string]interface{})
	if annotations != DefaultQueryAnnotations {
		if err := json.Unmarshal([]byte(annotations), &userAnnotations); err != nil {
			return nil, errors.Wrapf(err, "invalid JSON in annotations: %s", annotations)
		}
	}

	finalAnnotations := map[string]interface{}{
		"snapshot": snapshotName,
		"type":     "snapshot",
		"strategy": strategy,
	}
	for k, v := range userAnnotations {
		finalAnnotations[k] = v
	}

	finalJSON, err := json.Marshal(finalAnnotations)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal final annotations")
	}

	return &query.Query{
		VariableDefinitions: q.VariableDefinitions,
		Query:               fmt.Sprintf("-- @redsnap.config: %s\n%s", finalJSON, q.Query),
		Args:                q.Args,
	}, nil
}

// LogQueryIfVerbose writes the query to the writer when verbose mode is enabled in the context, truncated to
// QueryLogCharacterLimit characters.
func LogQueryIfVerbose(ctx context.Context, writer interface{}, queryString string) {
	verbose, _ := ctx.Value(executor.KeyVerbose).(bool)
	if !verbose {
		return
	}

	w, ok := writer.(io.Writer)
	if !ok {
		return
	}

	queryPreview := strings.TrimSpace(queryString)
	if len(queryPreview) > QueryLogCharacterLimit {
		queryPreview = queryPreview[:QueryLogCharacterLimit] + "\n... (truncated)"
	}
	fmt.Fprintf(w, "Executing SQL query:\n%s\n\n", queryPreview)
}
