// Package neo4j mirrors committed classifications into a graph of
// customers, documents and categories.
package neo4j

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// projectClassificationCypher replaces any previous category edge so a
// document is linked to exactly one category.
const projectClassificationCypher = `
MERGE (c:Customer {id: $customer_id})
MERGE (d:Document {customer_id: $customer_id, filename: $filename})
MERGE (c)-[:OWNS]->(d)
WITH d
OPTIONAL MATCH (d)-[old:CLASSIFIED_AS]->(:Category)
DELETE old
WITH d
MERGE (cat:Category {name: $label})
MERGE (d)-[r:CLASSIFIED_AS]->(cat)
SET r.version = $version, r.updated_at = datetime($updated_at)
`

type queryFunc func(ctx context.Context, cypher string, params map[string]any) error

type Projector struct {
	run    queryFunc
	close  func(context.Context) error
	logger *slog.Logger
}

type Options struct {
	URI      string
	Username string
	Password string
	Database string
	Logger   *slog.Logger
}

func New(ctx context.Context, opts Options) (*Projector, error) {
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	configurers := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithWritersRouting()}
	if opts.Database != "" {
		configurers = append(configurers, neo4j.ExecuteQueryWithDatabase(opts.Database))
	}
	run := func(ctx context.Context, cypher string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, configurers...)
		return err
	}
	return newProjector(run, driver.Close, opts.Logger), nil
}

func newProjector(run queryFunc, closeFn func(context.Context) error, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{run: run, close: closeFn, logger: logger}
}

func (p *Projector) ProjectClassification(ctx context.Context, record domain.DocumentRecord, label string) error {
	params := map[string]any{
		"customer_id": record.CustomerID,
		"filename":    record.Filename,
		"label":       label,
		"version":     record.Version,
		"updated_at":  record.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}
	if err := p.run(ctx, projectClassificationCypher, params); err != nil {
		return fmt.Errorf("project classification: %w", err)
	}
	p.logger.Debug("classification_projected",
		"customer_id", record.CustomerID,
		"filename", record.Filename,
		"file_class", label,
	)
	return nil
}

func (p *Projector) Close(ctx context.Context) error {
	if p.close == nil {
		return nil
	}
	return p.close(ctx)
}
