package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/metrics"
	"github.com/Aravind0403/ServiceScope-v2/internal/usecase"
)

// WorkerPool manages a fixed-size pool of goroutines that process analysis
// requests. One job occupies one worker for its full duration.
type WorkerPool struct {
	size      int
	requests  <-chan *domain.AnalysisMessage
	analyzeUC *usecase.AnalyzeRepositoryUsecase
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, requests <-chan *domain.AnalysisMessage, analyzeUC *usecase.AnalyzeRepositoryUsecase, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:      size,
		requests:  requests,
		analyzeUC: analyzeUC,
		logger:    logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current jobs and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.Any("panic", r),
			)
		}
	}()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.requests:
			if !ok {
				p.logger.Debug("Request channel closed", zap.Int("worker_id", id))
				return
			}

			p.logger.Info("Worker processing analysis request",
				zap.Int("worker_id", id),
				zap.String("repository_id", msg.RepositoryID.String()),
			)

			metrics.WorkersActive.Inc()
			startTime := time.Now()

			isDuplicate, err := p.analyzeUC.Execute(ctx, msg.RepositoryID)
			elapsed := time.Since(startTime).Seconds()

			metrics.WorkersActive.Dec()

			if err != nil {
				p.logger.Error("Analysis failed",
					zap.Int("worker_id", id),
					zap.String("repository_id", msg.RepositoryID.String()),
					zap.Error(err),
				)

				// Nack without requeue — failed analyses go to the DLQ.
				// Requeuing a deterministic failure would loop forever.
				if nackErr := msg.Nack(false); nackErr != nil {
					p.logger.Error("Failed to NACK message",
						zap.String("repository_id", msg.RepositoryID.String()),
						zap.Error(nackErr),
					)
				}

				metrics.AnalysesTotal.WithLabelValues("failed").Inc()
				metrics.AnalysisDuration.Observe(elapsed)
				continue
			}

			if isDuplicate {
				p.logger.Debug("Duplicate request skipped",
					zap.Int("worker_id", id),
					zap.String("repository_id", msg.RepositoryID.String()),
				)
				// Duplicate → still ACK so the message leaves the queue.
				if ackErr := msg.Ack(); ackErr != nil {
					p.logger.Error("Failed to ACK duplicate message",
						zap.String("repository_id", msg.RepositoryID.String()),
						zap.Error(ackErr),
					)
				}
				metrics.AnalysesTotal.WithLabelValues("duplicate").Inc()
				continue
			}

			if ackErr := msg.Ack(); ackErr != nil {
				p.logger.Error("Failed to ACK message after analysis",
					zap.String("repository_id", msg.RepositoryID.String()),
					zap.Error(ackErr),
				)
			}

			metrics.AnalysesTotal.WithLabelValues("processed").Inc()
			metrics.AnalysisDuration.Observe(elapsed)
		}
	}
}
