package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

var _ repository.CallStore = (*pgCallStore)(nil)

type pgCallStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCallStore creates a PostgreSQL-backed store for extracted
// calls and inferred dependencies.
func NewPostgresCallStore(pool *pgxpool.Pool) repository.CallStore {
	return &pgCallStore{pool: pool}
}

func (s *pgCallStore) InsertExtractedCalls(ctx context.Context, repositoryID, jobID uuid.UUID, calls []domain.ExtractedCall) ([]domain.ExtractedCall, error) {
	if len(calls) == 0 {
		return calls, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	batch := &pgx.Batch{}

	out := make([]domain.ExtractedCall, len(calls))
	for i, call := range calls {
		call.ID = uuid.New()
		call.RepositoryID = repositoryID
		call.AnalysisJobID = jobID
		out[i] = call

		batch.Queue(`
			INSERT INTO extracted_calls
				(id, repository_id, analysis_job_id, service_name, method, url, file_path, line_number, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
			call.ID, call.RepositoryID, call.AnalysisJobID,
			call.ServiceName, call.Method, call.URL, call.FilePath, call.LineNumber, now,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("postgres: insert extracted calls: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit extracted calls: %w", err)
	}
	return out, nil
}

func (s *pgCallStore) ListExtractedCalls(ctx context.Context, jobID uuid.UUID) ([]domain.ExtractedCall, error) {
	query := `
		SELECT id, repository_id, analysis_job_id, COALESCE(service_name, ''), method, url, file_path, line_number
		FROM extracted_calls
		WHERE analysis_job_id = $1
		ORDER BY file_path, line_number`

	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list extracted calls: %w", err)
	}
	defer rows.Close()

	var calls []domain.ExtractedCall
	for rows.Next() {
		var c domain.ExtractedCall
		if err := rows.Scan(&c.ID, &c.RepositoryID, &c.AnalysisJobID, &c.ServiceName, &c.Method, &c.URL, &c.FilePath, &c.LineNumber); err != nil {
			return nil, fmt.Errorf("postgres: scan extracted call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list extracted calls: %w", err)
	}
	return calls, nil
}

func (s *pgCallStore) InsertInferredDependency(ctx context.Context, dep *domain.InferredDependency) error {
	if dep.ID == uuid.Nil {
		dep.ID = uuid.New()
	}

	query := `
		INSERT INTO inferred_dependencies
			(id, extracted_call_id, caller_service, callee_service, confidence, llm_model, llm_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

	if _, err := s.pool.Exec(ctx, query,
		dep.ID, dep.ExtractedCallID, dep.CallerService, dep.CalleeService,
		dep.Confidence, dep.LLMModel, dep.LLMResponse, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("postgres: insert inferred dependency: %w", err)
	}
	return nil
}

func (s *pgCallStore) CountInferredDependencies(ctx context.Context, jobID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM inferred_dependencies d
		JOIN extracted_calls c ON c.id = d.extracted_call_id
		WHERE c.analysis_job_id = $1`

	var count int
	if err := s.pool.QueryRow(ctx, query, jobID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count inferred dependencies: %w", err)
	}
	return count, nil
}

func (s *pgCallStore) ListDependencyEdges(ctx context.Context, jobID uuid.UUID) ([]domain.DependencyEdge, error) {
	query := `
		SELECT d.caller_service, d.callee_service, c.method, c.url, COALESCE(d.confidence, 0)
		FROM inferred_dependencies d
		JOIN extracted_calls c ON c.id = d.extracted_call_id
		WHERE c.analysis_job_id = $1
		ORDER BY c.file_path, c.line_number`

	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list dependency edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.DependencyEdge
	for rows.Next() {
		var e domain.DependencyEdge
		if err := rows.Scan(&e.Caller, &e.Callee, &e.Method, &e.URL, &e.Confidence); err != nil {
			return nil, fmt.Errorf("postgres: scan dependency edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list dependency edges: %w", err)
	}
	return edges, nil
}
