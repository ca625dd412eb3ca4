package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/acquirer"
	"github.com/Aravind0403/ServiceScope-v2/internal/config"
	amqpdelivery "github.com/Aravind0403/ServiceScope-v2/internal/delivery/amqp"
	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/extractor"
	"github.com/Aravind0403/ServiceScope-v2/internal/graph"
	"github.com/Aravind0403/ServiceScope-v2/internal/inference"
	"github.com/Aravind0403/ServiceScope-v2/internal/pool"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
	neo4jrepo "github.com/Aravind0403/ServiceScope-v2/internal/repository/neo4j"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository/postgres"
	redisrepo "github.com/Aravind0403/ServiceScope-v2/internal/repository/redis"
	"github.com/Aravind0403/ServiceScope-v2/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting ServiceScope Analysis Worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Connect to Neo4j. The graph is a best-effort projection: an
	// unreachable store must not prevent the worker from starting, and a
	// disabled one turns materialization into a skipped stage.
	var graphStore repository.GraphStore
	if cfg.Graph.Enabled {
		driver, err := neo4jrepo.NewDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password)
		if err != nil {
			logger.Fatal("Invalid Neo4j configuration", zap.Error(err))
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			logger.Warn("Neo4j not reachable at startup, graph writes will be retried per job", zap.Error(err))
		} else {
			logger.Info("Connected to Neo4j")
		}
		graphStore = neo4jrepo.NewGraphStore(driver)
	} else {
		logger.Info("Graph store disabled by configuration")
	}

	// Initialize repositories
	jobStore := postgres.NewPostgresJobStore(dbPool)
	callStore := postgres.NewPostgresCallStore(dbPool)
	idempotencyStore := redisrepo.NewRedisIdempotencyStore(redisClient)

	// Initialize pipeline stages
	sourceAcquirer := acquirer.New(
		cfg.Clone.Dir,
		time.Duration(cfg.Clone.TimeoutSeconds)*time.Second,
		logger,
	)
	callExtractor := extractor.New(logger)
	inferenceEngine := inference.NewEngine(
		cfg.Inference.OllamaBaseURL,
		cfg.Inference.OllamaModel,
		cfg.Inference.Confidence,
		time.Duration(cfg.Inference.TimeoutSeconds)*time.Second,
		logger,
	)
	materializer := graph.NewMaterializer(graphStore, logger)

	// Initialize use case
	analyzeUC := usecase.NewAnalyzeRepositoryUsecase(
		jobStore,
		callStore,
		idempotencyStore,
		sourceAcquirer,
		callExtractor,
		inferenceEngine,
		materializer,
		cfg.Inference.Concurrency,
		logger,
	)

	// Create buffered request channel
	requests := make(chan *domain.AnalysisMessage, cfg.Worker.PoolSize*2)

	// Initialize AMQP consumer
	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, requests, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	// Start worker pool
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, requests, analyzeUC, logger)
	workerPool.Start(ctx)

	// Start AMQP consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight analyses
	workerPool.Stop()

	logger.Info("Worker stopped")
}
