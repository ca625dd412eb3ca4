package pool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/graph"
	"github.com/Aravind0403/ServiceScope-v2/internal/pool"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository/mock"
	"github.com/Aravind0403/ServiceScope-v2/internal/usecase"
)

func newTestPool(t *testing.T, poolSize int, idem *mock.IdempotencyStore, acq *mock.SourceAcquirer) (chan *domain.AnalysisMessage, *pool.WorkerPool, context.CancelFunc) {
	t.Helper()

	logger := zap.NewNop()
	if idem == nil {
		idem = &mock.IdempotencyStore{}
	}
	if acq == nil {
		acq = &mock.SourceAcquirer{}
	}
	uc := usecase.NewAnalyzeRepositoryUsecase(
		&mock.JobStore{},
		&mock.CallStore{},
		idem,
		acq,
		&mock.CallExtractor{},
		&mock.InferenceEngine{},
		graph.NewMaterializer(&mock.GraphStore{}, logger),
		1,
		logger,
	)

	ch := make(chan *domain.AnalysisMessage, 16)
	ctx, cancel := context.WithCancel(context.Background())
	wp := pool.NewWorkerPool(poolSize, ch, uc, logger)
	wp.Start(ctx)

	return ch, wp, cancel
}

func sendRequest(ch chan<- *domain.AnalysisMessage, acked *atomic.Int32, nacked *atomic.Int32) {
	ch <- &domain.AnalysisMessage{
		RepositoryID: uuid.New(),
		Ack: func() error {
			acked.Add(1)
			return nil
		},
		Nack: func(requeue bool) error {
			nacked.Add(1)
			return nil
		},
	}
}

// Test: pool processes analysis requests and ACKs them.
func TestPool_ProcessAndAck(t *testing.T) {
	ch, wp, cancel := newTestPool(t, 2, nil, nil)

	var acked, nacked atomic.Int32

	for i := 0; i < 5; i++ {
		sendRequest(ch, &acked, &nacked)
	}

	// Give workers time to process.
	time.Sleep(200 * time.Millisecond)

	cancel()
	wp.Stop()

	if acked.Load() != 5 {
		t.Errorf("expected 5 ACKs, got %d", acked.Load())
	}
	if nacked.Load() != 0 {
		t.Errorf("expected 0 NACKs, got %d", nacked.Load())
	}
}

// Test: pool NACKs (without requeue) requests whose analysis fails.
func TestPool_NacksOnFailure(t *testing.T) {
	acq := &mock.SourceAcquirer{
		AcquireFn: func(ctx context.Context, url, branch string) (*domain.RepositorySnapshot, error) {
			return nil, errors.New("acquirer: clone: repository not found")
		},
	}
	ch, wp, cancel := newTestPool(t, 1, nil, acq)

	var acked, nacked atomic.Int32
	sendRequest(ch, &acked, &nacked)

	time.Sleep(200 * time.Millisecond)

	cancel()
	wp.Stop()

	if nacked.Load() != 1 {
		t.Errorf("expected 1 NACK, got %d", nacked.Load())
	}
	if acked.Load() != 0 {
		t.Errorf("expected 0 ACKs, got %d", acked.Load())
	}
}

// Test: duplicate requests are ACKed so they leave the queue.
func TestPool_DuplicateIsAcked(t *testing.T) {
	idem := &mock.IdempotencyStore{
		AcquireLockFn: func(ctx context.Context, repositoryID uuid.UUID) (bool, error) {
			return false, nil // duplicate
		},
	}
	ch, wp, cancel := newTestPool(t, 1, idem, nil)

	var acked, nacked atomic.Int32
	sendRequest(ch, &acked, &nacked)

	time.Sleep(200 * time.Millisecond)
	cancel()
	wp.Stop()

	if acked.Load() != 1 {
		t.Errorf("expected 1 ACK for duplicate, got %d", acked.Load())
	}
	if nacked.Load() != 0 {
		t.Errorf("expected 0 NACKs, got %d", nacked.Load())
	}
}

// Test: pool shuts down gracefully on context cancellation.
func TestPool_GracefulShutdown(t *testing.T) {
	ch, wp, cancel := newTestPool(t, 4, nil, nil)

	var acked, nacked atomic.Int32
	sendRequest(ch, &acked, &nacked)
	sendRequest(ch, &acked, &nacked)

	// Small delay so at least one request gets picked up.
	time.Sleep(50 * time.Millisecond)
	cancel()
	wp.Stop()
	close(ch)

	total := acked.Load() + nacked.Load()
	if total < 1 {
		t.Errorf("expected at least 1 processed request, got %d", total)
	}
}
