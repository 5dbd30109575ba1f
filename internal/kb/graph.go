package kb

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/agenthands/cobalt/internal/core/model"
)

// GraphKB serves search and hierarchy lookups from a local knowledge-base
// mirror in a Neo4j-compatible store. Entities are :KBEntity nodes linked
// to :KBType nodes via INSTANCE_OF, and types form a SUBCLASS_OF dag.
type GraphKB struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

func NewGraphKB(uri, username, password string, logger *zap.Logger) (*GraphKB, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphKB{driver: driver, logger: logger}, nil
}

func (g *GraphKB) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// BuildIndices creates the lookup indices the search query depends on.
// Failures are logged and skipped: the index may already exist.
func (g *GraphKB) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :KBEntity(id);",
		"CREATE INDEX ON :KBEntity(label);",
		"CREATE INDEX ON :KBType(id);",
	}
	for _, q := range queries {
		if _, err := neo4j.ExecuteQuery(ctx, g.driver, q, nil, neo4j.EagerResultTransformer); err != nil {
			g.logger.Warn("failed to create knowledge-base index", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}

func (g *GraphKB) Search(ctx context.Context, label string, _ model.EntityType, limit int) ([]Candidate, error) {
	result, err := neo4j.ExecuteQuery(ctx, g.driver, searchEntitiesQuery,
		map[string]any{"label": label, "limit": limit}, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("graph search failed: %w", err)
	}

	candidates := make([]Candidate, 0, len(result.Records))
	for _, record := range result.Records {
		row := record.AsMap()
		c := Candidate{
			ID:          asString(row["id"]),
			Label:       asString(row["label"]),
			Description: asString(row["description"]),
		}
		if c.ID == "" {
			continue
		}
		if rawTypes, ok := row["types"].([]any); ok {
			for _, rt := range rawTypes {
				m, ok := rt.(map[string]any)
				if !ok {
					continue
				}
				ref := model.TypeRef{ID: asString(m["id"]), Label: asString(m["label"])}
				if ref.ID != "" {
					c.Types = append(c.Types, ref)
				}
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (g *GraphKB) Parents(ctx context.Context, typeID string) ([]model.TypeRef, error) {
	result, err := neo4j.ExecuteQuery(ctx, g.driver, typeParentsQuery,
		map[string]any{"id": typeID}, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("graph hierarchy lookup failed: %w", err)
	}

	parents := make([]model.TypeRef, 0, len(result.Records))
	for _, record := range result.Records {
		row := record.AsMap()
		ref := model.TypeRef{ID: asString(row["id"]), Label: asString(row["label"])}
		if ref.ID != "" {
			parents = append(parents, ref)
		}
	}
	return parents, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
