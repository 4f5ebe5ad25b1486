package ansisql

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/redsnap-data/redsnap/pkg/query"
)

type SchemaCreator struct {
	schemaNameCache *sync.Map
}

func NewSchemaCreator() *SchemaCreator {
	return &SchemaCreator{
		schemaNameCache: &sync.Map{},
	}
}

type queryRunner interface {
	RunQueryWithoutResult(ctx context.Context, query *query.Query) error
}

// CreateSchemaIfNotExist creates the schema once per process, later calls for the same schema are no-ops.
func (sc *SchemaCreator) CreateSchemaIfNotExist(ctx context.Context, qr queryRunner, schemaName string) error {
	if strings.TrimSpace(schemaName) == "" {
		return nil
	}
	if _, exists := sc.schemaNameCache.Load(schemaName); exists {
		return nil
	}

	createQuery := query.Query{
		Query: "CREATE SCHEMA IF NOT EXISTS " + QuoteIdentifier(schemaName),
	}
	if err := qr.RunQueryWithoutResult(ctx, &createQuery); err != nil {
		return errors.Wrapf(err, "failed to create or ensure schema: %s", schemaName)
	}
	sc.schemaNameCache.Store(schemaName, true)

	return nil
}

// QuoteIdentifier quotes a single identifier with double quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteTableName quotes every part of a dotted table name.
func QuoteTableName(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
