// internal/api/sync_handler.go
package api

import (
	"alcyxob/plansync/internal/jobs"
	"alcyxob/plansync/internal/service"
	"alcyxob/plansync/pkg/planchange"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncHandler serves the plan synchronization surface: version pre-flight,
// inline and queued diff application, job status, the single set-operation
// path, and dead letter administration.
type SyncHandler struct {
	syncService service.SyncService
	queue       jobs.Queue
	archive     jobs.DeadLetterArchive
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncService service.SyncService, queue jobs.Queue, archive jobs.DeadLetterArchive) *SyncHandler {
	return &SyncHandler{syncService: syncService, queue: queue, archive: archive}
}

// --- DTOs ---

// ApplyChangesRequest carries one structured diff plus the plan updatedAt the
// client last saw. A nil ExpectedUpdatedAt skips the version check (used for
// the first save of a brand-new plan).
type ApplyChangesRequest struct {
	ExpectedUpdatedAt *time.Time         `json:"expectedUpdatedAt"`
	Changes           planchange.Changes `json:"changes"`
}

// EnqueuedResponse acknowledges an async submission with the job to poll.
type EnqueuedResponse struct {
	JobID string `json:"jobId"`
}

// DeadJobArchiveResponse carries a presigned download URL for an archived
// dead letter document.
type DeadJobArchiveResponse struct {
	URL string `json:"url"`
}

// SetOperationRequest is one set edit from the client operation queue.
type SetOperationRequest struct {
	Type       string         `json:"type" binding:"required,oneof=create update delete"`
	ExerciseID string         `json:"exerciseId" binding:"required"`
	SetID      string         `json:"setId"`
	Data       map[string]any `json:"data"`
}

// --- Handlers ---

// CheckPlanVersion godoc
// @Summary Check a plan's version against a client-held timestamp
// @Description Advisory pre-flight: reports ok, conflict, or missing without touching the plan. The authoritative check runs again inside the apply transaction.
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param knownUpdatedAt query string false "Client-held updatedAt (RFC 3339)"
// @Success 200 {object} service.VersionCheck "Version status"
// @Failure 400 {object} gin.H "Invalid plan ID or timestamp"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /plans/{planId}/version [get]
func (h *SyncHandler) CheckPlanVersion(c *gin.Context) {
	planID, err := primitive.ObjectIDFromHex(c.Param("planId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid plan ID format.")
		return
	}

	var known *time.Time
	if raw := c.Query("knownUpdatedAt"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid knownUpdatedAt; expected RFC 3339.")
			return
		}
		known = &t
	}

	check, err := h.syncService.CheckPlanVersion(c.Request.Context(), planID, known)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to check plan version.")
		return
	}

	c.JSON(http.StatusOK, check)
}

// ApplyChanges godoc
// @Summary Apply a structured diff to a plan
// @Description Applies the diff in one transaction guarded by the expected updatedAt. A version conflict is reported as 409 with the server timestamp, not as a plain error.
// @Tags sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param changes body ApplyChangesRequest true "Diff and expected timestamp"
// @Success 200 {object} planchange.ApplyResult "Diff applied"
// @Failure 400 {object} gin.H "Invalid diff"
// @Failure 403 {object} gin.H "Forbidden (not the plan's trainer)"
// @Failure 404 {object} gin.H "Plan not found"
// @Failure 409 {object} planchange.ApplyResult "Version conflict"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /plans/{planId}/changes [post]
func (h *SyncHandler) ApplyChanges(c *gin.Context) {
	planID, err := primitive.ObjectIDFromHex(c.Param("planId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid plan ID format.")
		return
	}

	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req ApplyChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.syncService.ApplyChanges(c.Request.Context(), actor, planID, req.ExpectedUpdatedAt, req.Changes)
	if err != nil {
		switch {
		case errors.Is(err, planchange.ErrInvalidChanges), errors.Is(err, service.ErrUnresolvedRef):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPlanAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrDuplicateSequence):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to apply plan changes.")
		}
		return
	}

	if result.Status == planchange.StatusConflict {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EnqueueChanges godoc
// @Summary Queue a structured diff for background application
// @Description Accepts the diff immediately and applies it via the job queue. Returns the job id to poll. Single-entity diffs without a version expectation ship as narrow entity jobs that wait for the plan to exist.
// @Tags sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param changes body ApplyChangesRequest true "Diff and expected timestamp"
// @Success 202 {object} EnqueuedResponse "Diff queued"
// @Failure 400 {object} gin.H "Invalid diff"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /plans/{planId}/changes/async [post]
func (h *SyncHandler) EnqueueChanges(c *gin.Context) {
	planID, err := primitive.ObjectIDFromHex(c.Param("planId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid plan ID format.")
		return
	}

	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req ApplyChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Changes.IsEmpty() {
		abortWithError(c, http.StatusBadRequest, "Changes payload is empty.")
		return
	}

	msgType := jobs.TypePlanSave
	var payload any = jobs.PlanSavePayload{
		PlanID:            planID.Hex(),
		ActorID:           actor.Hex(),
		ExpectedUpdatedAt: req.ExpectedUpdatedAt,
		Changes:           req.Changes,
	}
	var meta map[string]string

	// Entity jobs apply without a version expectation, so a diff that carries
	// one must stay a plan.save to preserve it.
	if req.ExpectedUpdatedAt == nil {
		if t, entity, ok := entityMessage(req.Changes); ok {
			entity.PlanID = planID.Hex()
			entity.ActorID = actor.Hex()
			msgType, payload = t, entity
			meta = map[string]string{jobs.MetaDependsOn: jobs.DependsOnPlan}
		}
	}

	jobID, err := h.queue.Enqueue(c.Request.Context(), jobs.QueuePlanSync, msgType, payload, meta)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to queue plan changes.")
		return
	}

	c.JSON(http.StatusAccepted, EnqueuedResponse{JobID: jobID.Hex()})
}

// GetJob godoc
// @Summary Get a sync job's status and result
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param jobId path string true "Job ID"
// @Success 200 {object} jobs.Job "Job state"
// @Failure 400 {object} gin.H "Invalid job ID"
// @Failure 404 {object} gin.H "Job not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /sync/jobs/{jobId} [get]
func (h *SyncHandler) GetJob(c *gin.Context) {
	jobID, err := primitive.ObjectIDFromHex(c.Param("jobId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid job ID format.")
		return
	}

	job, err := h.queue.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to load job.")
		return
	}

	c.JSON(http.StatusOK, job)
}

// ApplySetOperation godoc
// @Summary Apply one queued set operation
// @Description Applies a single create/update/delete of an exercise set. 410 means the owning exercise was removed on the server and the operation should be dropped, not retried.
// @Tags sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param operation body SetOperationRequest true "Set operation"
// @Success 200 {object} planchange.ApplyResult "Operation applied"
// @Failure 400 {object} gin.H "Invalid operation"
// @Failure 403 {object} gin.H "Forbidden (not the plan's trainer)"
// @Failure 404 {object} gin.H "Plan not found"
// @Failure 410 {object} gin.H "Exercise no longer exists"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /sync/operations [post]
func (h *SyncHandler) ApplySetOperation(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req SetOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	exerciseID, err := primitive.ObjectIDFromHex(req.ExerciseID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid exercise ID format.")
		return
	}

	result, err := h.syncService.ApplyOperation(c.Request.Context(), actor, service.SetOperation{
		Type:       req.Type,
		ExerciseID: exerciseID,
		SetID:      req.SetID,
		Data:       req.Data,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExerciseGone):
			abortWithError(c, http.StatusGone, err.Error())
		case errors.Is(err, service.ErrInvalidOperation):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPlanAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to apply set operation.")
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListDeadJobs godoc
// @Summary List dead sync jobs
// @Description Dead jobs failed past their attempt cap or hit a permanent error. They stay inspectable until their retention window lapses.
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max jobs to return (default 50)"
// @Success 200 {array} jobs.Job "Dead jobs, most recent first"
// @Failure 400 {object} gin.H "Invalid limit"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /admin/sync/dead [get]
func (h *SyncHandler) ListDeadJobs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abortWithError(c, http.StatusBadRequest, "Invalid limit.")
			return
		}
		limit = n
	}

	dead, err := h.queue.ListDead(c.Request.Context(), jobs.QueuePlanSync, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list dead jobs.")
		return
	}
	if dead == nil {
		dead = []jobs.Job{}
	}

	c.JSON(http.StatusOK, dead)
}

// RequeueDeadJob godoc
// @Summary Requeue a dead sync job
// @Description Puts a dead job back in the queue with a fresh attempt budget. The archived copy of the job is discarded, since it no longer reflects a terminal state.
// @Tags sync
// @Security BearerAuth
// @Param jobId path string true "Job ID"
// @Success 204 "Job requeued"
// @Failure 400 {object} gin.H "Invalid job ID"
// @Failure 404 {object} gin.H "No dead job with this ID"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /admin/sync/dead/{jobId}/requeue [post]
func (h *SyncHandler) RequeueDeadJob(c *gin.Context) {
	jobID, err := primitive.ObjectIDFromHex(c.Param("jobId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid job ID format.")
		return
	}

	job, err := h.queue.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			abortWithError(c, http.StatusNotFound, "No dead job with this ID.")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to load job.")
		return
	}

	if err := h.queue.RequeueDead(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			abortWithError(c, http.StatusNotFound, "No dead job with this ID.")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to requeue job.")
		return
	}

	// Best effort: the job is already live again, a stale archive copy is
	// only clutter.
	if h.archive != nil {
		_ = h.archive.Discard(c.Request.Context(), *job)
	}

	c.Status(http.StatusNoContent)
}

// GetDeadJobArchive godoc
// @Summary Get a download link for a dead job's archived document
// @Description Returns a short-lived presigned URL for the JSON document the worker archived when the job died.
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param jobId path string true "Job ID"
// @Success 200 {object} DeadJobArchiveResponse "Presigned download URL"
// @Failure 400 {object} gin.H "Invalid job ID"
// @Failure 404 {object} gin.H "No dead job with this ID"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /admin/sync/dead/{jobId}/archive [get]
func (h *SyncHandler) GetDeadJobArchive(c *gin.Context) {
	jobID, err := primitive.ObjectIDFromHex(c.Param("jobId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid job ID format.")
		return
	}

	job, err := h.queue.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			abortWithError(c, http.StatusNotFound, "No dead job with this ID.")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to load job.")
		return
	}
	if job.Status != jobs.StatusDead {
		abortWithError(c, http.StatusNotFound, "No dead job with this ID.")
		return
	}

	url, err := h.archive.DownloadURL(c.Request.Context(), *job, 0)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to presign archive download.")
		return
	}

	c.JSON(http.StatusOK, DeadJobArchiveResponse{URL: url})
}

// entityMessage maps a diff that touches exactly one phase, session, or
// exercise onto the matching narrow message type. Wider diffs, and any diff
// creating the plan itself, do not qualify and ship as plan.save.
func entityMessage(ch planchange.Changes) (string, jobs.EntityPayload, bool) {
	var p jobs.EntityPayload
	if ch.Plan != nil {
		return "", p, false
	}
	total := len(ch.Created.Phases) + len(ch.Created.Sessions) + len(ch.Created.Exercises) +
		len(ch.Updated.Phases) + len(ch.Updated.Sessions) + len(ch.Updated.Exercises) +
		len(ch.Deleted.Phases) + len(ch.Deleted.Sessions) + len(ch.Deleted.Exercises)
	if total != 1 {
		return "", p, false
	}

	switch {
	case len(ch.Created.Phases) == 1:
		return jobs.TypePhaseCreate, jobs.EntityPayload{Entity: rawJSON(ch.Created.Phases[0])}, true
	case len(ch.Created.Sessions) == 1:
		return jobs.TypeSessionCreate, jobs.EntityPayload{Entity: rawJSON(ch.Created.Sessions[0])}, true
	case len(ch.Created.Exercises) == 1:
		return jobs.TypeExerciseCreate, jobs.EntityPayload{Entity: rawJSON(ch.Created.Exercises[0])}, true
	case len(ch.Updated.Phases) == 1:
		return jobs.TypePhaseUpdate, jobs.EntityPayload{EntityID: ch.Updated.Phases[0].ID, Fields: ch.Updated.Phases[0].Fields}, true
	case len(ch.Updated.Sessions) == 1:
		return jobs.TypeSessionUpdate, jobs.EntityPayload{EntityID: ch.Updated.Sessions[0].ID, Fields: ch.Updated.Sessions[0].Fields}, true
	case len(ch.Updated.Exercises) == 1:
		return jobs.TypeExerciseUpdate, jobs.EntityPayload{EntityID: ch.Updated.Exercises[0].ID, Fields: ch.Updated.Exercises[0].Fields}, true
	case len(ch.Deleted.Phases) == 1:
		return jobs.TypePhaseDelete, jobs.EntityPayload{EntityID: ch.Deleted.Phases[0]}, true
	case len(ch.Deleted.Sessions) == 1:
		return jobs.TypeSessionDelete, jobs.EntityPayload{EntityID: ch.Deleted.Sessions[0]}, true
	default:
		return jobs.TypeExerciseDelete, jobs.EntityPayload{EntityID: ch.Deleted.Exercises[0]}, true
	}
}

// rawJSON marshals a draft for the Entity slot. Draft structs are plain
// data; marshalling them cannot fail.
func rawJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
