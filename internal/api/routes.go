package api

import (
	"alcyxob/plansync/internal/domain"
	"alcyxob/plansync/internal/jobs"
	"alcyxob/plansync/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes mounts the full API surface under /api/v1. Mutating routes are
// trainer-only; the plan tree read is shared with the assigned client, and
// the service layer enforces per-plan ownership on top of the role check.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	trainerService service.TrainerService,
	planService service.PlanService,
	syncService service.SyncService,
	exerciseService service.ExerciseService,
	queue jobs.Queue,
	archive jobs.DeadLetterArchive,
) {
	authHandler := NewAuthHandler(authService)
	trainerHandler := NewTrainerHandler(trainerService)
	exerciseHandler := NewExerciseHandler(exerciseService)
	planHandler := NewPlanHandler(planService)
	syncHandler := NewSyncHandler(syncService, queue, archive)

	authMiddleware := AuthMiddleware(jwtSecret)
	trainerOnly := RoleMiddleware(domain.RoleTrainer)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Exercise Library ---
		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.POST("", trainerOnly, exerciseHandler.CreateExercise)
			exerciseGroup.GET("", trainerOnly, exerciseHandler.GetTrainerExercises)
			exerciseGroup.PUT("/:id", trainerOnly, exerciseHandler.UpdateExercise)
			exerciseGroup.DELETE("/:id", trainerOnly, exerciseHandler.DeleteExercise)
		}

		// --- Client Roster ---
		// Assignment is the precondition for the plan endpoints below.
		protected.POST("/clients", trainerOnly, trainerHandler.AddClient)
		protected.GET("/clients", trainerOnly, trainerHandler.GetManagedClients)

		// --- Plans ---
		protected.POST("/clients/:clientId/plans", trainerOnly, planHandler.CreatePlan)
		protected.GET("/clients/:clientId/plans", trainerOnly, planHandler.GetPlansForClient)

		planGroup := protected.Group("/plans/:planId")
		{
			planGroup.GET("", planHandler.GetPlanTree)
			planGroup.PATCH("", trainerOnly, planHandler.UpdatePlanMeta)

			// --- Synchronization ---
			planGroup.GET("/version", syncHandler.CheckPlanVersion)
			planGroup.POST("/changes", trainerOnly, syncHandler.ApplyChanges)
			planGroup.POST("/changes/async", trainerOnly, syncHandler.EnqueueChanges)
		}

		// Set operations come from both sides: the trainer editing the plan
		// and the client logging against it. Ownership is checked in the
		// service against the plan itself.
		protected.POST("/sync/operations", syncHandler.ApplySetOperation)
		protected.GET("/sync/jobs/:jobId", syncHandler.GetJob)

		// --- Dead Letter Administration ---
		adminGroup := protected.Group("/admin/sync")
		adminGroup.Use(trainerOnly)
		{
			adminGroup.GET("/dead", syncHandler.ListDeadJobs)
			adminGroup.GET("/dead/:jobId/archive", syncHandler.GetDeadJobArchive)
			adminGroup.POST("/dead/:jobId/requeue", syncHandler.RequeueDeadJob)
		}
	}
}
