package main

import (
	"alcyxob/plansync/internal/api"
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
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// @title Plan Sync API
// @version 1.0
// @description API for workout plan management and synchronization: plan trees, structured diffs, background sync jobs.
// @contact.name API Support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting Plan Sync Server...")
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if strings.HasPrefix(pair[0], "DATABASE_") || strings.HasPrefix(pair[0], "SERVER_") || strings.HasPrefix(pair[0], "QUEUE_") {
			log.Printf("ENV: %s = %s", pair[0], pair[1])
		}
	}

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

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsureExerciseIndexes(ctx, appDB.Collection("exercises"))
		mongo.EnsureWorkoutPlanIndexes(ctx, appDB.Collection("workout_plans"))
		mongo.EnsurePlanPhaseIndexes(ctx, appDB.Collection("plan_phases"))
		mongo.EnsurePlanSessionIndexes(ctx, appDB.Collection("plan_sessions"))
		mongo.EnsurePlanExerciseIndexes(ctx, appDB.Collection("plan_exercises"))
		if err := jobs.EnsureJobIndexes(ctx, appDB.Collection("sync_jobs")); err != nil {
			log.Printf("ERROR: Failed to ensure job indexes: %v", err)
		}
		log.Println("Index creation process completed.")
	}()

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

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	userRepo := mongo.NewMongoUserRepository(appDB)
	exerciseRepo := mongo.NewMongoExerciseRepository(appDB)
	planRepo := mongo.NewMongoWorkoutPlanRepository(appDB)
	phaseRepo := mongo.NewMongoPlanPhaseRepository(appDB)
	sessionRepo := mongo.NewMongoPlanSessionRepository(appDB)
	planExerciseRepo := mongo.NewMongoPlanExerciseRepository(appDB)
	txRunner := mongo.NewMongoTxRunner(dbClient)

	// --- Initialize Queue ---
	queue := jobs.NewMongoQueue(appDB, jobs.MongoQueueConfig{
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		MaxAttempts:       cfg.Queue.MaxAttempts,
		RetryBaseDelay:    cfg.Queue.RetryBaseDelay,
		MaxRetryDelay:     cfg.Queue.MaxRetryDelay,
		CompletedTTL:      cfg.Queue.CompletedTTL,
		DeadTTL:           cfg.Queue.DeadTTL,
	})

	// --- Dead Letter Archive ---
	// The admin surface serves presigned downloads of archived dead letters,
	// so the server needs the same object storage the worker writes to.
	objectStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}
	archive := jobs.NewObjectArchiver(objectStorage, cfg.Worker.ArchivePrefix)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	trainerService := service.NewTrainerService(userRepo)
	exerciseService := service.NewExerciseService(exerciseRepo)
	planService := service.NewPlanService(planRepo, phaseRepo, sessionRepo, planExerciseRepo, exerciseRepo, userRepo)
	syncService := service.NewSyncService(txRunner, planRepo, phaseRepo, sessionRepo, planExerciseRepo)

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware
	router.GET("/metrics", gin.WrapH(metricsHandler))

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, trainerService, planService, syncService, exerciseService, queue, archive)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
