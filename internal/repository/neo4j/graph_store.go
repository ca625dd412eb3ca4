package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

var _ repository.GraphStore = (*GraphStore)(nil)

type GraphStore struct {
	driver neo4j.DriverWithContext
}

// NewGraphStore creates a Neo4j-backed graph store over an existing driver.
// The driver's lifecycle belongs to the caller (created on worker startup,
// closed on shutdown).
func NewGraphStore(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{driver: driver}
}

// NewDriver opens a Bolt driver for the given endpoint.
func NewDriver(uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: new driver: %w", err)
	}
	return driver, nil
}

// MergeServiceNode upserts a service node. Node identity is the exact
// label string; no case normalization is performed.
func (g *GraphStore) MergeServiceNode(ctx context.Context, name string) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver,
		`MERGE (s:Service {name: $name}) RETURN s.name`,
		map[string]any{"name": name},
		neo4j.EagerResultTransformer,
	)
	if err != nil {
		return fmt.Errorf("neo4j: merge service node: %w", err)
	}
	return nil
}

// MergeDependencyEdge upserts the single CALLS relationship for a
// (caller, callee) pair. Method, URL and confidence are properties of the
// edge, so the most recently written call wins; re-running the same
// logical dependency overwrites instead of duplicating.
func (g *GraphStore) MergeDependencyEdge(ctx context.Context, edge *domain.DependencyEdge) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver,
		`MERGE (caller:Service {name: $caller})
		 MERGE (callee:Service {name: $callee})
		 MERGE (caller)-[r:CALLS]->(callee)
		 SET r.method = $method,
		     r.url = $url,
		     r.confidence = $confidence,
		     r.updated_at = datetime()
		 RETURN caller, r, callee`,
		map[string]any{
			"caller":     edge.Caller,
			"callee":     edge.Callee,
			"url":        edge.URL,
			"method":     edge.Method,
			"confidence": edge.Confidence,
		},
		neo4j.EagerResultTransformer,
	)
	if err != nil {
		return fmt.Errorf("neo4j: merge dependency edge: %w", err)
	}
	return nil
}

// ServiceDependencies returns the outgoing CALLS edges of one service.
// Read path for the API layer; the pipeline itself only writes.
func (g *GraphStore) ServiceDependencies(ctx context.Context, name string) ([]domain.DependencyEdge, error) {
	result, err := neo4j.ExecuteQuery(ctx, g.driver,
		`MATCH (s:Service {name: $name})-[r:CALLS]->(target:Service)
		 RETURN target.name AS callee, r.method AS method, r.url AS url, r.confidence AS confidence`,
		map[string]any{"name": name},
		neo4j.EagerResultTransformer,
	)
	if err != nil {
		return nil, fmt.Errorf("neo4j: service dependencies: %w", err)
	}

	edges := make([]domain.DependencyEdge, 0, len(result.Records))
	for _, record := range result.Records {
		edge := domain.DependencyEdge{Caller: name}
		if v, ok := record.Get("callee"); ok {
			edge.Callee, _ = v.(string)
		}
		if v, ok := record.Get("method"); ok {
			edge.Method, _ = v.(string)
		}
		if v, ok := record.Get("url"); ok {
			edge.URL, _ = v.(string)
		}
		if v, ok := record.Get("confidence"); ok {
			edge.Confidence, _ = v.(float64)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}
