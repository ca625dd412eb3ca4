package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
)

// JobStore defines the interface for repository and job state transitions.
// Transitions that touch both the job and its repository row must be
// persisted atomically so the two statuses never diverge across writes.
type JobStore interface {
	// GetRepository loads the repository targeted by an analysis request.
	GetRepository(ctx context.Context, id uuid.UUID) (*domain.Repository, error)

	// CreateJob inserts a new queued job (progress 0) for the repository.
	CreateJob(ctx context.Context, repositoryID uuid.UUID) (*domain.AnalysisJob, error)

	// MarkJobRunning transitions the job to running and the repository to
	// cloning. The start timestamp is set exactly once; re-entering running
	// does not reset the clock.
	MarkJobRunning(ctx context.Context, jobID, repositoryID uuid.UUID) error

	// UpdateProgress advances job progress. Values are clamped to [0,100]
	// and the stored value never decreases.
	UpdateProgress(ctx context.Context, jobID uuid.UUID, progress float64) error

	// SetRepositoryAnalyzing transitions the repository to analyzing.
	SetRepositoryAnalyzing(ctx context.Context, repositoryID uuid.UUID) error

	// SetCloneMetadata records the resolved commit hash and file count.
	SetCloneMetadata(ctx context.Context, repositoryID uuid.UUID, commitHash string, fileCount int) error

	// CompleteJob transitions job and repository to completed, forces
	// progress to 100 and persists the result summary atomically.
	CompleteJob(ctx context.Context, jobID, repositoryID uuid.UUID, summary *domain.ResultSummary) error

	// FailJob transitions job and repository to failed, recording the
	// failure detail verbatim.
	FailJob(ctx context.Context, jobID, repositoryID uuid.UUID, errMsg string) error

	// CancelJob terminalizes an externally-cancelled job and marks the
	// repository failed.
	CancelJob(ctx context.Context, jobID, repositoryID uuid.UUID) error

	// JobStatus returns the current persisted status of a job.
	JobStatus(ctx context.Context, jobID uuid.UUID) (domain.JobStatus, error)
}

// CallStore defines the interface for extracted calls and inferred
// dependencies. Records are insert-only; a re-run writes a new generation.
type CallStore interface {
	// InsertExtractedCalls persists one job's extraction output in a single
	// transaction and returns the calls with their assigned IDs.
	InsertExtractedCalls(ctx context.Context, repositoryID, jobID uuid.UUID, calls []domain.ExtractedCall) ([]domain.ExtractedCall, error)

	// ListExtractedCalls returns the calls persisted for one job.
	ListExtractedCalls(ctx context.Context, jobID uuid.UUID) ([]domain.ExtractedCall, error)

	// InsertInferredDependency persists one inference result (1:1 per call).
	InsertInferredDependency(ctx context.Context, dep *domain.InferredDependency) error

	// CountInferredDependencies counts the dependencies inferred for one job.
	CountInferredDependencies(ctx context.Context, jobID uuid.UUID) (int, error)

	// ListDependencyEdges joins a job's dependencies with their calls'
	// method/URL for graph materialization.
	ListDependencyEdges(ctx context.Context, jobID uuid.UUID) ([]domain.DependencyEdge, error)
}

// IdempotencyStore defines the interface for distributed deduplication locks.
type IdempotencyStore interface {
	// AcquireLock attempts to acquire an exclusive analysis lock for a
	// repository. Returns true if acquired, false if already locked
	// (redelivered message).
	AcquireLock(ctx context.Context, repositoryID uuid.UUID) (bool, error)

	// ReleaseLock releases the lock with a TTL for eventual cleanup.
	ReleaseLock(ctx context.Context, repositoryID uuid.UUID) error
}

// GraphStore defines the interface for the derived dependency graph.
// All writes use MERGE semantics keyed by the exact service label, so
// re-running materialization overwrites rather than duplicates.
type GraphStore interface {
	// MergeServiceNode upserts one service node keyed by label.
	MergeServiceNode(ctx context.Context, name string) error

	// MergeDependencyEdge upserts the single caller→callee CALLS edge,
	// overwriting method, URL, confidence and write timestamp.
	MergeDependencyEdge(ctx context.Context, edge *domain.DependencyEdge) error
}

// SourceAcquirer fetches a disposable snapshot of a remote repository.
type SourceAcquirer interface {
	// Acquire clones the repository at the given branch into scratch
	// storage. Failure is fatal to the owning job.
	Acquire(ctx context.Context, url, branch string) (*domain.RepositorySnapshot, error)

	// Cleanup removes the snapshot best-effort; errors are logged, never
	// returned.
	Cleanup(snapshot *domain.RepositorySnapshot)
}

// CallExtractor statically scans a source tree for HTTP call sites.
type CallExtractor interface {
	// Extract walks the tree rooted at root and returns every detected
	// call site. Unparsable files are skipped, never fatal. Output order
	// is deterministic for a fixed input tree.
	Extract(root string) ([]domain.ExtractedCall, error)
}

// InferenceEngine resolves a raw call to a likely callee service name.
type InferenceEngine interface {
	// Infer returns the inference for one call, (nil, nil) when the model
	// produced no usable answer, or an error for transport-level failures.
	// Either way the failure is scoped to this single call.
	Infer(ctx context.Context, caller, url, method string) (*domain.Inference, error)
}
