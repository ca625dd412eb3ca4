package graph_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/graph"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository/mock"
)

func testEdges() []domain.DependencyEdge {
	return []domain.DependencyEdge{
		{Caller: "service_a", Callee: "payment_service", Method: "post", URL: "http://payment/charge", Confidence: 0.8},
		{Caller: "service_a", Callee: "order_service", Method: "get", URL: "http://orders/list", Confidence: 0.8},
		{Caller: "service_b", Callee: "payment_service", Method: "get", URL: "http://payment/status", Confidence: 0.8},
	}
}

// Test: one node per distinct label (caller or callee), one edge per input.
func TestMaterialize_WritesNodesAndEdges(t *testing.T) {
	store := &mock.GraphStore{}
	m := graph.NewMaterializer(store, zap.NewNop())

	outcome := m.Materialize(context.Background(), testEdges())

	if outcome.Skipped {
		t.Fatal("expected not skipped")
	}
	// service_a, service_b, payment_service, order_service
	if outcome.Nodes != 4 {
		t.Errorf("expected 4 nodes, got %d", outcome.Nodes)
	}
	if outcome.Edges != 3 {
		t.Errorf("expected 3 edges, got %d", outcome.Edges)
	}
	if outcome.Failures != 0 {
		t.Errorf("expected 0 failures, got %d", outcome.Failures)
	}
	if len(store.Nodes) != 4 || len(store.Edges) != 3 {
		t.Errorf("store has %d nodes / %d edges", len(store.Nodes), len(store.Edges))
	}
}

// Test: re-running the same input leaves node and edge counts unchanged.
func TestMaterialize_Idempotent(t *testing.T) {
	store := &mock.GraphStore{}
	m := graph.NewMaterializer(store, zap.NewNop())

	first := m.Materialize(context.Background(), testEdges())
	second := m.Materialize(context.Background(), testEdges())

	if first.Nodes != second.Nodes || first.Edges != second.Edges {
		t.Errorf("outcomes diverged: %+v vs %+v", first, second)
	}
	if len(store.Nodes) != 4 {
		t.Errorf("expected 4 nodes after re-run, got %d", len(store.Nodes))
	}
	if len(store.Edges) != 3 {
		t.Errorf("expected 3 edges after re-run, got %d", len(store.Edges))
	}
}

// Test: two calls for the same (caller, callee) pair collapse into one
// edge carrying the properties of whichever was written last.
func TestMaterialize_LastWriteWinsPerPair(t *testing.T) {
	store := &mock.GraphStore{}
	m := graph.NewMaterializer(store, zap.NewNop())

	edges := []domain.DependencyEdge{
		{Caller: "service_a", Callee: "payment_service", Method: "get", URL: "http://payment/status", Confidence: 0.8},
		{Caller: "service_a", Callee: "payment_service", Method: "post", URL: "http://payment/charge", Confidence: 0.8},
	}
	m.Materialize(context.Background(), edges)

	if len(store.Edges) != 1 {
		t.Fatalf("expected 1 edge for the pair, got %d", len(store.Edges))
	}
	got := store.Edges[mock.EdgeKey{Caller: "service_a", Callee: "payment_service"}]
	if got.Method != "post" || got.URL != "http://payment/charge" {
		t.Errorf("expected last write to win, got %+v", got)
	}
}

// Test: labels are case-sensitive; no normalization happens on write.
func TestMaterialize_CaseSensitiveLabels(t *testing.T) {
	store := &mock.GraphStore{}
	m := graph.NewMaterializer(store, zap.NewNop())

	edges := []domain.DependencyEdge{
		{Caller: "Service_A", Callee: "payment_service", Method: "post", URL: "http://payment/charge", Confidence: 0.8},
		{Caller: "service_a", Callee: "payment_service", Method: "post", URL: "http://payment/charge2", Confidence: 0.8},
	}
	outcome := m.Materialize(context.Background(), edges)

	if outcome.Nodes != 3 {
		t.Errorf("expected 3 distinct nodes, got %d", outcome.Nodes)
	}
	if _, ok := store.Nodes["Service_A"]; !ok {
		t.Error("expected Service_A node preserved as written")
	}
	if _, ok := store.Nodes["service_a"]; !ok {
		t.Error("expected service_a node preserved as written")
	}
}

// Test: a nil store skips without writing anything.
func TestMaterialize_NilStoreSkips(t *testing.T) {
	m := graph.NewMaterializer(nil, zap.NewNop())

	outcome := m.Materialize(context.Background(), testEdges())

	if !outcome.Skipped {
		t.Fatal("expected skipped")
	}
	if outcome.Nodes != 0 || outcome.Edges != 0 || outcome.Failures != 0 {
		t.Errorf("expected zero counts, got %+v", outcome)
	}
}

// Test: store errors are counted per write and never abort the run.
func TestMaterialize_StoreErrorsDegrade(t *testing.T) {
	store := &mock.GraphStore{
		MergeServiceNodeFn: func(ctx context.Context, name string) error {
			if name == "payment_service" {
				return errors.New("neo4j: connection refused")
			}
			return nil
		},
		MergeDependencyEdgeFn: func(ctx context.Context, edge *domain.DependencyEdge) error {
			if edge.URL == "http://orders/list" {
				return errors.New("neo4j: connection refused")
			}
			return nil
		},
	}
	m := graph.NewMaterializer(store, zap.NewNop())

	outcome := m.Materialize(context.Background(), testEdges())

	if outcome.Skipped {
		t.Fatal("expected not skipped")
	}
	if outcome.Nodes != 3 {
		t.Errorf("expected 3 successful nodes, got %d", outcome.Nodes)
	}
	if outcome.Edges != 2 {
		t.Errorf("expected 2 successful edges, got %d", outcome.Edges)
	}
	if outcome.Failures != 2 {
		t.Errorf("expected 2 failures, got %d", outcome.Failures)
	}
}

// Test: empty input writes nothing but is not a skip.
func TestMaterialize_EmptyInput(t *testing.T) {
	store := &mock.GraphStore{}
	m := graph.NewMaterializer(store, zap.NewNop())

	outcome := m.Materialize(context.Background(), nil)

	if outcome.Skipped {
		t.Fatal("expected not skipped")
	}
	if outcome.Nodes != 0 || outcome.Edges != 0 {
		t.Errorf("expected zero writes, got %+v", outcome)
	}
}
