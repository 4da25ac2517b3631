package api

import (
	"errors"
	"net/http"
	"time"

	"alcyxob/plansync/internal/domain"
	"alcyxob/plansync/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanHandler serves workout plan management and the tree read.
type PlanHandler struct {
	planService service.PlanService
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

// --- DTOs ---

type CreatePlanRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdatePlanRequest carries a partial plan meta update. Absent fields are
// left unchanged.
type UpdatePlanRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

// PlanResponse is the DTO for returning plan metadata. UpdatedAt doubles
// as the concurrency token clients echo back when saving.
type PlanResponse struct {
	ID          string    `json:"id"`
	TrainerID   string    `json:"trainerId"`
	ClientID    string    `json:"clientId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MapPlanToResponse converts a domain.WorkoutPlan to PlanResponse DTO.
func MapPlanToResponse(plan *domain.WorkoutPlan) PlanResponse {
	if plan == nil {
		return PlanResponse{}
	}
	return PlanResponse{
		ID:          plan.ID.Hex(),
		TrainerID:   plan.TrainerID.Hex(),
		ClientID:    plan.ClientID.Hex(),
		Name:        plan.Name,
		Description: plan.Description,
		IsActive:    plan.IsActive,
		CreatedAt:   plan.CreatedAt,
		UpdatedAt:   plan.UpdatedAt,
	}
}

// MapPlansToResponse converts a slice of domain.WorkoutPlan to DTOs.
func MapPlansToResponse(plans []domain.WorkoutPlan) []PlanResponse {
	responses := make([]PlanResponse, len(plans))
	for i, p := range plans {
		responses[i] = MapPlanToResponse(&p)
	}
	return responses
}

// --- Handler Methods ---

// CreatePlan godoc
// @Summary Create a workout plan for a managed client
// @Description Creates an empty plan shell; phases, sessions and exercises arrive through the sync API.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Param plan body CreatePlanRequest true "Plan details"
// @Success 201 {object} PlanResponse "Plan created"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Forbidden (client not managed by this trainer)"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{clientId}/plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	clientID, err := primitive.ObjectIDFromHex(c.Param("clientId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid client ID format.")
		return
	}
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	trainerID, ok := actorID(c)
	if !ok {
		return
	}

	plan, err := h.planService.CreatePlan(c.Request.Context(), trainerID, clientID, req.Name, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClientNotManaged):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to create plan.")
		}
		return
	}

	c.JSON(http.StatusCreated, MapPlanToResponse(plan))
}

// GetPlansForClient godoc
// @Summary List a managed client's workout plans
// @Description Retrieves all plans the authenticated trainer created for the client.
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Success 200 {array} PlanResponse "List of plans"
// @Failure 400 {object} gin.H "Invalid client ID"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /clients/{clientId}/plans [get]
func (h *PlanHandler) GetPlansForClient(c *gin.Context) {
	clientID, err := primitive.ObjectIDFromHex(c.Param("clientId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid client ID format.")
		return
	}

	trainerID, ok := actorID(c)
	if !ok {
		return
	}

	plans, err := h.planService.GetPlansForClient(c.Request.Context(), trainerID, clientID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve plans.")
		return
	}
	if plans == nil {
		c.JSON(http.StatusOK, []PlanResponse{})
		return
	}

	c.JSON(http.StatusOK, MapPlansToResponse(plans))
}

// GetPlanTree godoc
// @Summary Get the full plan tree
// @Description Retrieves the plan with its phases, sessions and exercises, sequence-sorted. The plan's updatedAt is the baseline for optimistic saves.
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} service.PlanTree "Plan tree"
// @Failure 400 {object} gin.H "Invalid plan ID"
// @Failure 403 {object} gin.H "Forbidden (neither the plan's trainer nor its client)"
// @Failure 404 {object} gin.H "Plan not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /plans/{planId} [get]
func (h *PlanHandler) GetPlanTree(c *gin.Context) {
	planID, err := primitive.ObjectIDFromHex(c.Param("planId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid plan ID format.")
		return
	}

	actor, ok := actorID(c)
	if !ok {
		return
	}

	tree, err := h.planService.GetPlanTree(c.Request.Context(), actor, planID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPlanAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve plan.")
		}
		return
	}

	c.JSON(http.StatusOK, tree)
}

// UpdatePlanMeta godoc
// @Summary Update plan metadata
// @Description Renames, describes or (de)activates a plan. Bumps the plan's updatedAt like any other accepted write.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param plan body UpdatePlanRequest true "Fields to change"
// @Success 200 {object} PlanResponse "Updated plan"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Forbidden (not the plan's trainer)"
// @Failure 404 {object} gin.H "Plan not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /plans/{planId} [patch]
func (h *PlanHandler) UpdatePlanMeta(c *gin.Context) {
	planID, err := primitive.ObjectIDFromHex(c.Param("planId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid plan ID format.")
		return
	}
	var req UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	trainerID, ok := actorID(c)
	if !ok {
		return
	}

	plan, err := h.planService.UpdatePlanMeta(c.Request.Context(), trainerID, planID, service.PlanMetaUpdate{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPlanAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrPlanUpdateInvalid):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to update plan.")
		}
		return
	}

	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}
