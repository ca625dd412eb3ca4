package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

// ---- JobStore mock ----

var _ repository.JobStore = (*JobStore)(nil)

// JobStore is a test double for repository.JobStore.
type JobStore struct {
	mu sync.Mutex

	GetRepositoryFn          func(ctx context.Context, id uuid.UUID) (*domain.Repository, error)
	CreateJobFn              func(ctx context.Context, repositoryID uuid.UUID) (*domain.AnalysisJob, error)
	MarkJobRunningFn         func(ctx context.Context, jobID, repositoryID uuid.UUID) error
	UpdateProgressFn         func(ctx context.Context, jobID uuid.UUID, progress float64) error
	SetRepositoryAnalyzingFn func(ctx context.Context, repositoryID uuid.UUID) error
	SetCloneMetadataFn       func(ctx context.Context, repositoryID uuid.UUID, commitHash string, fileCount int) error
	CompleteJobFn            func(ctx context.Context, jobID, repositoryID uuid.UUID, summary *domain.ResultSummary) error
	FailJobFn                func(ctx context.Context, jobID, repositoryID uuid.UUID, errMsg string) error
	CancelJobFn              func(ctx context.Context, jobID, repositoryID uuid.UUID) error
	JobStatusFn              func(ctx context.Context, jobID uuid.UUID) (domain.JobStatus, error)

	// Recorded calls for assertions.
	ProgressUpdates []float64
	Completions     []*domain.ResultSummary
	Failures        []string
	Cancellations   []uuid.UUID
}

func (m *JobStore) GetRepository(ctx context.Context, id uuid.UUID) (*domain.Repository, error) {
	if m.GetRepositoryFn != nil {
		return m.GetRepositoryFn(ctx, id)
	}
	return &domain.Repository{
		ID:     id,
		URL:    "https://example.com/org/repo.git",
		Name:   "repo",
		Branch: "main",
		Status: domain.RepoPending,
	}, nil
}

func (m *JobStore) CreateJob(ctx context.Context, repositoryID uuid.UUID) (*domain.AnalysisJob, error) {
	if m.CreateJobFn != nil {
		return m.CreateJobFn(ctx, repositoryID)
	}
	return &domain.AnalysisJob{
		ID:           uuid.New(),
		RepositoryID: repositoryID,
		Status:       domain.JobQueued,
		Progress:     domain.ProgressQueued,
	}, nil
}

func (m *JobStore) MarkJobRunning(ctx context.Context, jobID, repositoryID uuid.UUID) error {
	if m.MarkJobRunningFn != nil {
		return m.MarkJobRunningFn(ctx, jobID, repositoryID)
	}
	return nil
}

func (m *JobStore) UpdateProgress(ctx context.Context, jobID uuid.UUID, progress float64) error {
	m.mu.Lock()
	m.ProgressUpdates = append(m.ProgressUpdates, progress)
	m.mu.Unlock()
	if m.UpdateProgressFn != nil {
		return m.UpdateProgressFn(ctx, jobID, progress)
	}
	return nil
}

func (m *JobStore) SetRepositoryAnalyzing(ctx context.Context, repositoryID uuid.UUID) error {
	if m.SetRepositoryAnalyzingFn != nil {
		return m.SetRepositoryAnalyzingFn(ctx, repositoryID)
	}
	return nil
}

func (m *JobStore) SetCloneMetadata(ctx context.Context, repositoryID uuid.UUID, commitHash string, fileCount int) error {
	if m.SetCloneMetadataFn != nil {
		return m.SetCloneMetadataFn(ctx, repositoryID, commitHash, fileCount)
	}
	return nil
}

func (m *JobStore) CompleteJob(ctx context.Context, jobID, repositoryID uuid.UUID, summary *domain.ResultSummary) error {
	m.mu.Lock()
	m.Completions = append(m.Completions, summary)
	m.mu.Unlock()
	if m.CompleteJobFn != nil {
		return m.CompleteJobFn(ctx, jobID, repositoryID, summary)
	}
	return nil
}

func (m *JobStore) FailJob(ctx context.Context, jobID, repositoryID uuid.UUID, errMsg string) error {
	m.mu.Lock()
	m.Failures = append(m.Failures, errMsg)
	m.mu.Unlock()
	if m.FailJobFn != nil {
		return m.FailJobFn(ctx, jobID, repositoryID, errMsg)
	}
	return nil
}

func (m *JobStore) CancelJob(ctx context.Context, jobID, repositoryID uuid.UUID) error {
	m.mu.Lock()
	m.Cancellations = append(m.Cancellations, jobID)
	m.mu.Unlock()
	if m.CancelJobFn != nil {
		return m.CancelJobFn(ctx, jobID, repositoryID)
	}
	return nil
}

func (m *JobStore) JobStatus(ctx context.Context, jobID uuid.UUID) (domain.JobStatus, error) {
	if m.JobStatusFn != nil {
		return m.JobStatusFn(ctx, jobID)
	}
	return domain.JobRunning, nil
}

// ---- CallStore mock ----

var _ repository.CallStore = (*CallStore)(nil)

// CallStore is a test double for repository.CallStore. By default it keeps
// inserted calls in memory so list and count reflect prior inserts.
type CallStore struct {
	mu sync.Mutex

	InsertExtractedCallsFn      func(ctx context.Context, repositoryID, jobID uuid.UUID, calls []domain.ExtractedCall) ([]domain.ExtractedCall, error)
	ListExtractedCallsFn        func(ctx context.Context, jobID uuid.UUID) ([]domain.ExtractedCall, error)
	InsertInferredDependencyFn  func(ctx context.Context, dep *domain.InferredDependency) error
	CountInferredDependenciesFn func(ctx context.Context, jobID uuid.UUID) (int, error)
	ListDependencyEdgesFn       func(ctx context.Context, jobID uuid.UUID) ([]domain.DependencyEdge, error)

	Calls        []domain.ExtractedCall
	Dependencies []*domain.InferredDependency
}

func (m *CallStore) InsertExtractedCalls(ctx context.Context, repositoryID, jobID uuid.UUID, calls []domain.ExtractedCall) ([]domain.ExtractedCall, error) {
	if m.InsertExtractedCallsFn != nil {
		return m.InsertExtractedCallsFn(ctx, repositoryID, jobID, calls)
	}
	saved := make([]domain.ExtractedCall, len(calls))
	copy(saved, calls)
	for i := range saved {
		saved[i].ID = uuid.New()
		saved[i].RepositoryID = repositoryID
		saved[i].AnalysisJobID = jobID
	}
	m.mu.Lock()
	m.Calls = append(m.Calls, saved...)
	m.mu.Unlock()
	return saved, nil
}

func (m *CallStore) ListExtractedCalls(ctx context.Context, jobID uuid.UUID) ([]domain.ExtractedCall, error) {
	if m.ListExtractedCallsFn != nil {
		return m.ListExtractedCallsFn(ctx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExtractedCall
	for _, c := range m.Calls {
		if c.AnalysisJobID == jobID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *CallStore) InsertInferredDependency(ctx context.Context, dep *domain.InferredDependency) error {
	m.mu.Lock()
	m.Dependencies = append(m.Dependencies, dep)
	m.mu.Unlock()
	if m.InsertInferredDependencyFn != nil {
		return m.InsertInferredDependencyFn(ctx, dep)
	}
	return nil
}

func (m *CallStore) CountInferredDependencies(ctx context.Context, jobID uuid.UUID) (int, error) {
	if m.CountInferredDependenciesFn != nil {
		return m.CountInferredDependenciesFn(ctx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Dependencies), nil
}

func (m *CallStore) ListDependencyEdges(ctx context.Context, jobID uuid.UUID) ([]domain.DependencyEdge, error) {
	if m.ListDependencyEdgesFn != nil {
		return m.ListDependencyEdgesFn(ctx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byCallID := map[uuid.UUID]domain.ExtractedCall{}
	for _, c := range m.Calls {
		byCallID[c.ID] = c
	}
	var edges []domain.DependencyEdge
	for _, dep := range m.Dependencies {
		call, ok := byCallID[dep.ExtractedCallID]
		if !ok || call.AnalysisJobID != jobID {
			continue
		}
		edges = append(edges, domain.DependencyEdge{
			Caller:     dep.CallerService,
			Callee:     dep.CalleeService,
			Method:     call.Method,
			URL:        call.URL,
			Confidence: dep.Confidence,
		})
	}
	return edges, nil
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
type IdempotencyStore struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, repositoryID uuid.UUID) (bool, error)
	ReleaseLockFn func(ctx context.Context, repositoryID uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, repositoryID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, repositoryID)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, repositoryID)
	}
	return true, nil // default: lock acquired
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, repositoryID uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, repositoryID)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, repositoryID)
	}
	return nil
}

// ---- GraphStore mock ----

var _ repository.GraphStore = (*GraphStore)(nil)

// GraphStore is a test double for repository.GraphStore. Upserts are keyed
// the same way the real store keys them, so repeated merges of the same
// input leave the maps unchanged.
type GraphStore struct {
	mu sync.Mutex

	MergeServiceNodeFn    func(ctx context.Context, name string) error
	MergeDependencyEdgeFn func(ctx context.Context, edge *domain.DependencyEdge) error

	Nodes map[string]struct{}
	Edges map[EdgeKey]domain.DependencyEdge
}

// EdgeKey mirrors the real store's edge identity: (caller, callee).
type EdgeKey struct {
	Caller string
	Callee string
}

func (m *GraphStore) MergeServiceNode(ctx context.Context, name string) error {
	if m.MergeServiceNodeFn != nil {
		if err := m.MergeServiceNodeFn(ctx, name); err != nil {
			return err
		}
	}
	m.mu.Lock()
	if m.Nodes == nil {
		m.Nodes = map[string]struct{}{}
	}
	m.Nodes[name] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *GraphStore) MergeDependencyEdge(ctx context.Context, edge *domain.DependencyEdge) error {
	if m.MergeDependencyEdgeFn != nil {
		if err := m.MergeDependencyEdgeFn(ctx, edge); err != nil {
			return err
		}
	}
	m.mu.Lock()
	if m.Edges == nil {
		m.Edges = map[EdgeKey]domain.DependencyEdge{}
	}
	m.Edges[EdgeKey{Caller: edge.Caller, Callee: edge.Callee}] = *edge
	m.mu.Unlock()
	return nil
}

// ---- SourceAcquirer mock ----

var _ repository.SourceAcquirer = (*SourceAcquirer)(nil)

// SourceAcquirer is a test double for repository.SourceAcquirer.
type SourceAcquirer struct {
	mu sync.Mutex

	AcquireFn func(ctx context.Context, url, branch string) (*domain.RepositorySnapshot, error)

	AcquireCalls []string
	Cleanups     []*domain.RepositorySnapshot
}

func (m *SourceAcquirer) Acquire(ctx context.Context, url, branch string) (*domain.RepositorySnapshot, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, url)
	m.mu.Unlock()
	if m.AcquireFn != nil {
		return m.AcquireFn(ctx, url, branch)
	}
	return &domain.RepositorySnapshot{
		URL:        url,
		Branch:     branch,
		Path:       "/tmp/servicescope/repos/repo_test",
		CommitHash: "0123456789abcdef0123456789abcdef01234567",
		FileCount:  3,
	}, nil
}

func (m *SourceAcquirer) Cleanup(snapshot *domain.RepositorySnapshot) {
	m.mu.Lock()
	m.Cleanups = append(m.Cleanups, snapshot)
	m.mu.Unlock()
}

// ---- CallExtractor mock ----

var _ repository.CallExtractor = (*CallExtractor)(nil)

// CallExtractor is a test double for repository.CallExtractor.
type CallExtractor struct {
	mu sync.Mutex

	ExtractFn func(root string) ([]domain.ExtractedCall, error)

	ExtractCalls []string
}

func (m *CallExtractor) Extract(root string) ([]domain.ExtractedCall, error) {
	m.mu.Lock()
	m.ExtractCalls = append(m.ExtractCalls, root)
	m.mu.Unlock()
	if m.ExtractFn != nil {
		return m.ExtractFn(root)
	}
	return []domain.ExtractedCall{
		{
			ServiceName: "service_a",
			Method:      "post",
			URL:         "http://payment-service/api/v1/charge",
			FilePath:    "service_a/payment.py",
			LineNumber:  42,
		},
	}, nil
}

// ---- InferenceEngine mock ----

var _ repository.InferenceEngine = (*InferenceEngine)(nil)

// InferenceEngine is a test double for repository.InferenceEngine.
type InferenceEngine struct {
	mu sync.Mutex

	InferFn func(ctx context.Context, caller, url, method string) (*domain.Inference, error)

	InferCalls []string
}

func (m *InferenceEngine) Infer(ctx context.Context, caller, url, method string) (*domain.Inference, error) {
	m.mu.Lock()
	m.InferCalls = append(m.InferCalls, url)
	m.mu.Unlock()
	if m.InferFn != nil {
		return m.InferFn(ctx, caller, url, method)
	}
	return &domain.Inference{
		Callee:      "payment_service",
		Confidence:  0.8,
		Model:       "gemma2:latest",
		RawResponse: "payment_service",
	}, nil
}
