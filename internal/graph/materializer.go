// Package graph materializes inferred dependencies into the graph store.
// The graph is a derived, rebuildable projection: the relational records
// stay authoritative, so every failure here degrades instead of aborting.
package graph

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/metrics"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

// Outcome reports what one materialization run wrote.
type Outcome struct {
	// Skipped is true when the graph capability is disabled by
	// configuration; no writes were attempted.
	Skipped  bool
	Nodes    int
	Edges    int
	Failures int
}

// Materializer upserts service nodes and dependency edges.
type Materializer struct {
	store  repository.GraphStore
	logger *zap.Logger
}

// NewMaterializer creates a Materializer. A nil store declares the graph
// capability unavailable: Materialize then returns a skipped outcome.
func NewMaterializer(store repository.GraphStore, logger *zap.Logger) *Materializer {
	return &Materializer{store: store, logger: logger}
}

// Materialize upserts one node per distinct service label and one edge per
// (caller, callee) pair, last write winning for edge properties. All
// writes use MERGE semantics, so re-running the same input leaves node and
// edge counts unchanged. Store errors are logged and counted; they never
// fail the owning job.
func (m *Materializer) Materialize(ctx context.Context, edges []domain.DependencyEdge) Outcome {
	if m.store == nil {
		m.logger.Info("Graph store disabled, skipping materialization")
		return Outcome{Skipped: true}
	}

	outcome := Outcome{}

	for _, name := range distinctServices(edges) {
		if err := m.store.MergeServiceNode(ctx, name); err != nil {
			m.logger.Warn("Failed to upsert service node",
				zap.String("service", name),
				zap.Error(err),
			)
			metrics.GraphWriteFailures.Inc()
			outcome.Failures++
			continue
		}
		outcome.Nodes++
	}

	for i := range edges {
		edge := &edges[i]
		if err := m.store.MergeDependencyEdge(ctx, edge); err != nil {
			m.logger.Warn("Failed to upsert dependency edge",
				zap.String("caller", edge.Caller),
				zap.String("callee", edge.Callee),
				zap.Error(err),
			)
			metrics.GraphWriteFailures.Inc()
			outcome.Failures++
			continue
		}
		outcome.Edges++
	}

	m.logger.Info("Graph materialization finished",
		zap.Int("nodes", outcome.Nodes),
		zap.Int("edges", outcome.Edges),
		zap.Int("failures", outcome.Failures),
	)
	return outcome
}

// distinctServices collects every label seen as caller or callee, sorted
// for deterministic write order. Labels are case-sensitive: no
// normalization is performed, matching node identity in the store.
func distinctServices(edges []domain.DependencyEdge) []string {
	seen := map[string]struct{}{}
	for _, e := range edges {
		seen[e.Caller] = struct{}{}
		seen[e.Callee] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
