package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/graph"
	"github.com/Aravind0403/ServiceScope-v2/internal/metrics"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

// AnalyzeRepositoryUsecase orchestrates the full analysis pipeline:
// acquisition → extraction → inference → graph materialization, under one
// job's state machine.
type AnalyzeRepositoryUsecase struct {
	jobs             repository.JobStore
	calls            repository.CallStore
	idempotent       repository.IdempotencyStore
	acquirer         repository.SourceAcquirer
	extractor        repository.CallExtractor
	inference        repository.InferenceEngine
	materializer     *graph.Materializer
	inferenceWorkers int
	logger           *zap.Logger
}

// NewAnalyzeRepositoryUsecase creates a new AnalyzeRepositoryUsecase.
func NewAnalyzeRepositoryUsecase(
	jobs repository.JobStore,
	calls repository.CallStore,
	idempotent repository.IdempotencyStore,
	acquirer repository.SourceAcquirer,
	extractor repository.CallExtractor,
	inference repository.InferenceEngine,
	materializer *graph.Materializer,
	inferenceWorkers int,
	logger *zap.Logger,
) *AnalyzeRepositoryUsecase {
	if inferenceWorkers < 1 {
		inferenceWorkers = 1
	}
	return &AnalyzeRepositoryUsecase{
		jobs:             jobs,
		calls:            calls,
		idempotent:       idempotent,
		acquirer:         acquirer,
		extractor:        extractor,
		inference:        inference,
		materializer:     materializer,
		inferenceWorkers: inferenceWorkers,
		logger:           logger,
	}
}

// Execute processes one analysis request end to end.
// Returns (isDuplicate, error).
func (uc *AnalyzeRepositoryUsecase) Execute(ctx context.Context, repositoryID uuid.UUID) (bool, error) {
	// Step 1: Idempotency check. A redelivered message must not start a
	// second pipeline against the same repository.
	acquired, err := uc.idempotent.AcquireLock(ctx, repositoryID)
	if err != nil {
		uc.logger.Error("Failed to acquire idempotency lock", zap.Error(err), zap.String("repository_id", repositoryID.String()))
		return false, err
	}
	if !acquired {
		uc.logger.Info("Duplicate message detected, skipping", zap.String("repository_id", repositoryID.String()))
		return true, nil
	}
	defer func() {
		// The pipeline context may already be cancelled on worker shutdown;
		// the release must still go through or the repository stays locked
		// until the TTL expires.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := uc.idempotent.ReleaseLock(releaseCtx, repositoryID); err != nil {
			uc.logger.Warn("Failed to release idempotency lock",
				zap.String("repository_id", repositoryID.String()),
				zap.Error(err),
			)
		}
	}()

	repo, err := uc.jobs.GetRepository(ctx, repositoryID)
	if err != nil {
		uc.logger.Error("Failed to load repository", zap.Error(err), zap.String("repository_id", repositoryID.String()))
		return false, err
	}

	job, err := uc.jobs.CreateJob(ctx, repo.ID)
	if err != nil {
		uc.logger.Error("Failed to create analysis job", zap.Error(err), zap.String("repository_id", repositoryID.String()))
		return false, err
	}

	if err := uc.runPipeline(ctx, repo, job); err != nil {
		// Any stage error is a single terminal transition; the raw error
		// text is stored verbatim for operator diagnosis.
		if failErr := uc.jobs.FailJob(ctx, job.ID, repo.ID, err.Error()); failErr != nil {
			uc.logger.Error("Failed to record job failure", zap.Error(failErr), zap.String("job_id", job.ID.String()))
		}
		return false, err
	}
	return false, nil
}

// runPipeline drives the stages. Each stage persists its output before the
// next one starts; data flows forward only.
func (uc *AnalyzeRepositoryUsecase) runPipeline(ctx context.Context, repo *domain.Repository, job *domain.AnalysisJob) error {
	if err := uc.jobs.MarkJobRunning(ctx, job.ID, repo.ID); err != nil {
		return err
	}

	// Stage 1: Acquisition. Failure here is fatal; nothing downstream is
	// possible without a snapshot.
	if err := uc.jobs.UpdateProgress(ctx, job.ID, domain.ProgressCloning); err != nil {
		return err
	}
	snapshot, err := uc.acquirer.Acquire(ctx, repo.URL, repo.Branch)
	if err != nil {
		return err
	}
	defer uc.acquirer.Cleanup(snapshot)

	if err := uc.jobs.SetCloneMetadata(ctx, repo.ID, snapshot.CommitHash, snapshot.FileCount); err != nil {
		return err
	}

	// Stage 2: Extraction.
	if cancelled, err := uc.terminalizeIfCancelled(ctx, job.ID, repo.ID); cancelled || err != nil {
		return err
	}
	if err := uc.jobs.UpdateProgress(ctx, job.ID, domain.ProgressExtracting); err != nil {
		return err
	}
	if err := uc.jobs.SetRepositoryAnalyzing(ctx, repo.ID); err != nil {
		return err
	}

	extracted, err := uc.extractor.Extract(snapshot.Path)
	if err != nil {
		return err
	}
	metrics.CallsExtracted.Add(float64(len(extracted)))

	if _, err := uc.calls.InsertExtractedCalls(ctx, repo.ID, job.ID, extracted); err != nil {
		return err
	}

	// Stage 3: Inference. Re-read the persisted calls so inference always
	// runs against durable records.
	if cancelled, err := uc.terminalizeIfCancelled(ctx, job.ID, repo.ID); cancelled || err != nil {
		return err
	}
	if err := uc.jobs.UpdateProgress(ctx, job.ID, domain.ProgressInferring); err != nil {
		return err
	}

	saved, err := uc.calls.ListExtractedCalls(ctx, job.ID)
	if err != nil {
		return err
	}
	uc.inferDependencies(ctx, saved)

	// Stage 4: Materialization. A cancellation observed here must not let
	// partial results complete the job.
	if cancelled, err := uc.terminalizeIfCancelled(ctx, job.ID, repo.ID); cancelled || err != nil {
		return err
	}
	if err := uc.jobs.UpdateProgress(ctx, job.ID, domain.ProgressMaterializing); err != nil {
		return err
	}

	edges, err := uc.calls.ListDependencyEdges(ctx, job.ID)
	if err != nil {
		return err
	}
	outcome := uc.materializer.Materialize(ctx, edges)

	inferredCount, err := uc.calls.CountInferredDependencies(ctx, job.ID)
	if err != nil {
		return err
	}

	summary := &domain.ResultSummary{
		ServicesFound:        distinctCallers(saved),
		APICallsExtracted:    len(saved),
		DependenciesInferred: inferredCount,
		GraphNodesWritten:    outcome.Nodes,
		GraphEdgesWritten:    outcome.Edges,
		GraphSkipped:         outcome.Skipped,
	}

	if err := uc.jobs.CompleteJob(ctx, job.ID, repo.ID, summary); err != nil {
		return err
	}

	uc.logger.Info("Analysis completed",
		zap.String("job_id", job.ID.String()),
		zap.String("repository_id", repo.ID.String()),
		zap.Int("calls", summary.APICallsExtracted),
		zap.Int("services", summary.ServicesFound),
		zap.Int("dependencies", summary.DependenciesInferred),
	)
	return nil
}

// inferDependencies dispatches inference for each saved call with bounded
// parallelism. Each call succeeds or fails on its own: a failed inference
// just means that call gets no InferredDependency row.
func (uc *AnalyzeRepositoryUsecase) inferDependencies(ctx context.Context, saved []domain.ExtractedCall) {
	sem := make(chan struct{}, uc.inferenceWorkers)
	var wg sync.WaitGroup

	for i := range saved {
		call := saved[i]

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			// Worker is shutting down; stop issuing new inference calls
			// and let the in-flight ones drain.
			wg.Wait()
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			inf, err := uc.inference.Infer(ctx, call.ServiceName, call.URL, call.Method)
			if err != nil {
				uc.logger.Warn("Inference failed for call",
					zap.String("call_id", call.ID.String()),
					zap.String("url", call.URL),
					zap.Error(err),
				)
				metrics.InferenceFailures.Inc()
				return
			}
			if inf == nil {
				uc.logger.Debug("No inference result for call",
					zap.String("call_id", call.ID.String()),
					zap.String("url", call.URL),
				)
				return
			}

			dep := &domain.InferredDependency{
				ID:              uuid.New(),
				ExtractedCallID: call.ID,
				CallerService:   call.ServiceName,
				CalleeService:   inf.Callee,
				Confidence:      inf.Confidence,
				LLMModel:        inf.Model,
				LLMResponse:     inf.RawResponse,
			}
			if err := uc.calls.InsertInferredDependency(ctx, dep); err != nil {
				uc.logger.Error("Failed to persist inferred dependency",
					zap.String("call_id", call.ID.String()),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()
}

// terminalizeIfCancelled checks for an externally-requested cancellation
// between checkpoints. When observed, the job is terminalized and no
// further stage starts.
func (uc *AnalyzeRepositoryUsecase) terminalizeIfCancelled(ctx context.Context, jobID, repositoryID uuid.UUID) (bool, error) {
	status, err := uc.jobs.JobStatus(ctx, jobID)
	if err != nil {
		uc.logger.Warn("Failed to read job status for cancellation check", zap.Error(err), zap.String("job_id", jobID.String()))
		return false, nil
	}
	if status != domain.JobCancelled {
		return false, nil
	}

	uc.logger.Info("Cancellation observed, stopping pipeline", zap.String("job_id", jobID.String()))
	if err := uc.jobs.CancelJob(ctx, jobID, repositoryID); err != nil {
		uc.logger.Error("Failed to terminalize cancelled job", zap.Error(err), zap.String("job_id", jobID.String()))
	}
	return true, nil
}

func distinctCallers(calls []domain.ExtractedCall) int {
	seen := map[string]struct{}{}
	for _, c := range calls {
		seen[c.ServiceName] = struct{}{}
	}
	return len(seen)
}
