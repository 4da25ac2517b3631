package main

import (
	"alcyxob/plansync/internal/config"
	"alcyxob/plansync/internal/jobs"
	"alcyxob/plansync/internal/observability"
	"alcyxob/plansync/internal/repository/mongo"
	"alcyxob/plansync/internal/service"
	"alcyxob/plansync/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// The worker drains the plan sync queue: it claims jobs, applies their diffs
// through the same service layer the API uses, and archives dead letters to
// object storage. It shares the database with the server but runs as its own
// process so queue pressure never slows the API down.
func main() {
	log.Println("Starting Plan Sync Worker...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// The claim query needs its indexes before the first dequeue.
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 1*time.Minute)
	if err := jobs.EnsureJobIndexes(indexCtx, appDB.Collection("sync_jobs")); err != nil {
		log.Printf("ERROR: Failed to ensure job indexes: %v", err)
	}
	cancelIndex()

	// --- Initialize Queue ---
	queue := jobs.NewMongoQueue(appDB, jobs.MongoQueueConfig{
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		MaxAttempts:       cfg.Queue.MaxAttempts,
		RetryBaseDelay:    cfg.Queue.RetryBaseDelay,
		MaxRetryDelay:     cfg.Queue.MaxRetryDelay,
		CompletedTTL:      cfg.Queue.CompletedTTL,
		DeadTTL:           cfg.Queue.DeadTTL,
	})

	// --- Initialize Services ---
	log.Println("Initializing services...")
	planRepo := mongo.NewMongoWorkoutPlanRepository(appDB)
	phaseRepo := mongo.NewMongoPlanPhaseRepository(appDB)
	sessionRepo := mongo.NewMongoPlanSessionRepository(appDB)
	planExerciseRepo := mongo.NewMongoPlanExerciseRepository(appDB)
	txRunner := mongo.NewMongoTxRunner(dbClient)
	syncService := service.NewSyncService(txRunner, planRepo, phaseRepo, sessionRepo, planExerciseRepo)

	// --- Dead Letter Archive ---
	log.Println("Initializing archive storage...")
	objectStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}
	archiver := jobs.NewObjectArchiver(objectStorage, cfg.Worker.ArchivePrefix)

	// --- Metrics ---
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("FATAL: Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("ERROR: Failed to shutdown metrics: %v", err)
		}
	}()

	meter := otel.Meter("plansync-worker")
	workerMetrics, err := jobs.NewMetrics(meter)
	if err != nil {
		log.Fatalf("FATAL: Failed to register worker metrics: %v", err)
	}

	// An observable gauge queries the queue depth only when scraped.
	_, err = meter.Int64ObservableGauge("plansync.jobs.queue_depth",
		metric.WithDescription("Jobs waiting or in flight on the plan sync queue"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			depth, err := queue.Depth(ctx, jobs.QueuePlanSync)
			if err != nil {
				log.Printf("ERROR: Failed to read queue depth: %v", err)
				return nil // don't fail the scrape on a DB error
			}
			obs.Observe(depth)
			return nil
		}),
	)
	if err != nil {
		log.Printf("ERROR: Failed to register queue depth metric: %v", err)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metricsHandler)
	metricsServer := &http.Server{Addr: cfg.Worker.MetricsAddress, Handler: metricsMux}
	go func() {
		log.Printf("Metrics listening on %s", cfg.Worker.MetricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: Metrics server: %v", err)
		}
	}()

	// --- Worker ---
	processor := jobs.NewProcessor(syncService, jobs.ProcessorConfig{
		DependencyRetryDelay: cfg.Worker.DependencyRetryDelay,
	})
	worker := jobs.NewWorker(queue, processor, archiver, workerMetrics, jobs.WorkerConfig{
		Queue:        jobs.QueuePlanSync,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		MaxBackoff:   cfg.Worker.MaxBackoff,
	})

	worker.Start(context.Background())
	log.Printf("Worker draining queue %q with concurrency %d", jobs.QueuePlanSync, cfg.Worker.Concurrency)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down worker...")

	// Stop waits for in-flight jobs to settle.
	worker.Stop()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Metrics server forced to shutdown: %v", err)
	}

	log.Println("Worker exiting.")
}
