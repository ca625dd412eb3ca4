package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of an analysis job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// RepositoryStatus is the coarser repository-level projection of job phase.
type RepositoryStatus string

const (
	RepoPending   RepositoryStatus = "pending"
	RepoCloning   RepositoryStatus = "cloning"
	RepoAnalyzing RepositoryStatus = "analyzing"
	RepoCompleted RepositoryStatus = "completed"
	RepoFailed    RepositoryStatus = "failed"
)

// Progress checkpoints. The orchestrator advances progress only at these
// fixed points; writes are clamped to [0,100] and never decrease.
const (
	ProgressQueued        = 0.0
	ProgressCloning       = 10.0
	ProgressExtracting    = 30.0
	ProgressInferring     = 60.0
	ProgressMaterializing = 90.0
	ProgressDone          = 100.0
)

// ClampProgress bounds a progress value to the valid percentage range.
func ClampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Repository is a git repository submitted for dependency analysis.
// The CRUD layer owns the row; the pipeline reads it and writes status,
// commit hash and file count as stages advance.
type Repository struct {
	ID           uuid.UUID
	URL          string
	Name         string
	Branch       string
	Status       RepositoryStatus
	ErrorMessage string
	CommitHash   string
	FileCount    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AnalysisJob is one execution of the pipeline against one repository.
type AnalysisJob struct {
	ID            uuid.UUID
	RepositoryID  uuid.UUID
	Status        JobStatus
	Progress      float64
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ErrorMessage  string
	ResultSummary *ResultSummary
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ResultSummary is persisted as JSON with the completed transition.
type ResultSummary struct {
	ServicesFound        int  `json:"services_found"`
	APICallsExtracted    int  `json:"api_calls_extracted"`
	DependenciesInferred int  `json:"dependencies_inferred"`
	GraphNodesWritten    int  `json:"graph_nodes_written"`
	GraphEdgesWritten    int  `json:"graph_edges_written"`
	GraphSkipped         bool `json:"graph_skipped,omitempty"`
}

// RepositorySnapshot is a local, disposable checkout of one repository at
// one branch. Owned by a single orchestrator run; removed on completion.
type RepositorySnapshot struct {
	URL        string
	Branch     string
	Path       string
	CommitHash string
	FileCount  int
}

// ExtractedCall is one statically-detected HTTP call site.
type ExtractedCall struct {
	ID            uuid.UUID
	RepositoryID  uuid.UUID
	AnalysisJobID uuid.UUID
	ServiceName   string
	Method        string
	URL           string
	FilePath      string
	LineNumber    int
}

// InferredDependency holds the model's answer for exactly one extracted
// call (1:1, unique on ExtractedCallID). Never mutated after creation.
type InferredDependency struct {
	ID              uuid.UUID
	ExtractedCallID uuid.UUID
	CallerService   string
	CalleeService   string
	Confidence      float64
	LLMModel        string
	LLMResponse     string
}

// Inference is the engine's per-call output before persistence.
type Inference struct {
	Callee      string
	Confidence  float64
	Model       string
	RawResponse string
}

// DependencyEdge is an inferred dependency joined with its call's
// method/URL, ready for graph materialization.
type DependencyEdge struct {
	Caller     string
	Callee     string
	Method     string
	URL        string
	Confidence float64
}

// AnalysisRequest is the queue message body published by the API layer.
type AnalysisRequest struct {
	RepositoryID uuid.UUID `json:"repository_id"`
}

// AnalysisMessage wraps a queue delivery with its ACK callbacks so the
// worker pool acknowledges only after the job reaches a terminal state.
type AnalysisMessage struct {
	RepositoryID uuid.UUID
	Ack          func() error
	Nack         func(requeue bool) error
}
