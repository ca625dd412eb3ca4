package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

var _ repository.JobStore = (*pgJobStore)(nil)

type pgJobStore struct {
	pool *pgxpool.Pool
}

// NewPostgresJobStore creates a PostgreSQL-backed job store for the worker.
func NewPostgresJobStore(pool *pgxpool.Pool) repository.JobStore {
	return &pgJobStore{pool: pool}
}

func (s *pgJobStore) GetRepository(ctx context.Context, id uuid.UUID) (*domain.Repository, error) {
	query := `
		SELECT id, url, COALESCE(name, ''), COALESCE(branch, 'main'), status,
		       COALESCE(error_message, ''), COALESCE(commit_hash, ''), COALESCE(file_count, 0),
		       created_at, updated_at
		FROM repositories WHERE id = $1`

	repo := &domain.Repository{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&repo.ID, &repo.URL, &repo.Name, &repo.Branch, &repo.Status,
		&repo.ErrorMessage, &repo.CommitHash, &repo.FileCount,
		&repo.CreatedAt, &repo.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get repository %s: %w", id, err)
	}
	return repo, nil
}

func (s *pgJobStore) CreateJob(ctx context.Context, repositoryID uuid.UUID) (*domain.AnalysisJob, error) {
	job := &domain.AnalysisJob{
		ID:           uuid.New(),
		RepositoryID: repositoryID,
		Status:       domain.JobQueued,
		Progress:     domain.ProgressQueued,
	}

	query := `
		INSERT INTO analysis_jobs (id, repository_id, status, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`

	now := time.Now().UTC()
	if _, err := s.pool.Exec(ctx, query, job.ID, job.RepositoryID, job.Status, job.Progress, now); err != nil {
		return nil, fmt.Errorf("postgres: create job: %w", err)
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	return job, nil
}

// MarkJobRunning moves job→running and repository→cloning in one
// transaction. COALESCE keeps the original start timestamp on re-entry.
func (s *pgJobStore) MarkJobRunning(ctx context.Context, jobID, repositoryID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	tag, err := tx.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $1, started_at = COALESCE(started_at, $2), updated_at = $2
		WHERE id = $3`,
		domain.JobRunning, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: job not found: %s", jobID)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE repositories SET status = $1, updated_at = $2 WHERE id = $3`,
		domain.RepoCloning, now, repositoryID,
	); err != nil {
		return fmt.Errorf("postgres: mark repository cloning: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdateProgress clamps the incoming value and relies on GREATEST so a
// stale writer can never move progress backwards.
func (s *pgJobStore) UpdateProgress(ctx context.Context, jobID uuid.UUID, progress float64) error {
	query := `
		UPDATE analysis_jobs
		SET progress = GREATEST(progress, $1::float8), updated_at = $2
		WHERE id = $3`

	tag, err := s.pool.Exec(ctx, query, domain.ClampProgress(progress), time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("postgres: update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: job not found: %s", jobID)
	}
	return nil
}

func (s *pgJobStore) SetRepositoryAnalyzing(ctx context.Context, repositoryID uuid.UUID) error {
	query := `UPDATE repositories SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := s.pool.Exec(ctx, query, domain.RepoAnalyzing, time.Now().UTC(), repositoryID); err != nil {
		return fmt.Errorf("postgres: mark repository analyzing: %w", err)
	}
	return nil
}

func (s *pgJobStore) SetCloneMetadata(ctx context.Context, repositoryID uuid.UUID, commitHash string, fileCount int) error {
	query := `
		UPDATE repositories
		SET commit_hash = $1, file_count = $2, updated_at = $3
		WHERE id = $4`

	if _, err := s.pool.Exec(ctx, query, commitHash, fileCount, time.Now().UTC(), repositoryID); err != nil {
		return fmt.Errorf("postgres: set clone metadata: %w", err)
	}
	return nil
}

func (s *pgJobStore) CompleteJob(ctx context.Context, jobID, repositoryID uuid.UUID, summary *domain.ResultSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("postgres: marshal result summary: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	if _, err := tx.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $1, progress = 100.0, completed_at = $2, result_summary = $3, updated_at = $2
		WHERE id = $4`,
		domain.JobCompleted, now, payload, jobID,
	); err != nil {
		return fmt.Errorf("postgres: complete job: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE repositories SET status = $1, updated_at = $2 WHERE id = $3`,
		domain.RepoCompleted, now, repositoryID,
	); err != nil {
		return fmt.Errorf("postgres: complete repository: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *pgJobStore) FailJob(ctx context.Context, jobID, repositoryID uuid.UUID, errMsg string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	if _, err := tx.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $1, error_message = $2, completed_at = $3, updated_at = $3
		WHERE id = $4`,
		domain.JobFailed, errMsg, now, jobID,
	); err != nil {
		return fmt.Errorf("postgres: fail job: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE repositories SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		domain.RepoFailed, errMsg, now, repositoryID,
	); err != nil {
		return fmt.Errorf("postgres: fail repository: %w", err)
	}

	return tx.Commit(ctx)
}

// CancelJob terminalizes a job whose status was set to cancelled by the
// API layer. The repository status vocabulary has no cancelled state, so
// the mirror transition is failed with an explanatory message.
func (s *pgJobStore) CancelJob(ctx context.Context, jobID, repositoryID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	if _, err := tx.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $1, completed_at = COALESCE(completed_at, $2), updated_at = $2
		WHERE id = $3`,
		domain.JobCancelled, now, jobID,
	); err != nil {
		return fmt.Errorf("postgres: cancel job: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE repositories SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		domain.RepoFailed, "analysis cancelled", now, repositoryID,
	); err != nil {
		return fmt.Errorf("postgres: cancel repository: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *pgJobStore) JobStatus(ctx context.Context, jobID uuid.UUID) (domain.JobStatus, error) {
	var status domain.JobStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM analysis_jobs WHERE id = $1`, jobID).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("postgres: job status %s: %w", jobID, err)
	}
	return status, nil
}
