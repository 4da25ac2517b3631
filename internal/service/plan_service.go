// internal/service/plan_service.go
package service

import (
	"alcyxob/plansync/internal/domain"
	"alcyxob/plansync/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrClientNotFound    = errors.New("client user not found")
	ErrClientNotManaged  = errors.New("client is not managed by this trainer")
	ErrPlanUpdateInvalid = errors.New("invalid plan update")
)

// PlanMetaUpdate carries the mutable plan-level fields. Nil means "leave
// unchanged". Plans are never removed here; IsActive=false is the retirement
// path.
type PlanMetaUpdate struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// PlanTree is the fully joined read model of one plan: phases in sequence
// order, their sessions, their exercises, with library exercise names joined
// in. The plan's UpdatedAt doubles as the client's sync baseline.
type PlanTree struct {
	Plan   domain.WorkoutPlan `json:"plan"`
	Phases []PhaseNode        `json:"phases"`
}

type PhaseNode struct {
	Phase    domain.PlanPhase `json:"phase"`
	Sessions []SessionNode    `json:"sessions"`
}

type SessionNode struct {
	Session   domain.PlanSession `json:"session"`
	Exercises []ExerciseNode     `json:"exercises"`
}

type ExerciseNode struct {
	Exercise     domain.PlanExercise `json:"exercise"`
	ExerciseName string              `json:"exerciseName,omitempty"`
}

// --- Service Interface ---

// PlanService covers the plain (non-diff) plan surface: creation, listing,
// the tree read, and metadata updates. Structural edits inside a plan go
// through SyncService.
type PlanService interface {
	CreatePlan(ctx context.Context, trainerID, clientID primitive.ObjectID, name, description string) (*domain.WorkoutPlan, error)
	GetPlansForClient(ctx context.Context, trainerID, clientID primitive.ObjectID) ([]domain.WorkoutPlan, error)
	GetPlanTree(ctx context.Context, actorID, planID primitive.ObjectID) (*PlanTree, error)
	UpdatePlanMeta(ctx context.Context, trainerID, planID primitive.ObjectID, update PlanMetaUpdate) (*domain.WorkoutPlan, error)
}

// --- Service Implementation ---

type planService struct {
	planRepo     repository.WorkoutPlanRepository
	phaseRepo    repository.PlanPhaseRepository
	sessionRepo  repository.PlanSessionRepository
	exerciseRepo repository.PlanExerciseRepository
	libraryRepo  repository.ExerciseRepository
	userRepo     repository.UserRepository
}

// NewPlanService creates a new instance of planService.
func NewPlanService(
	planRepo repository.WorkoutPlanRepository,
	phaseRepo repository.PlanPhaseRepository,
	sessionRepo repository.PlanSessionRepository,
	exerciseRepo repository.PlanExerciseRepository,
	libraryRepo repository.ExerciseRepository,
	userRepo repository.UserRepository,
) PlanService {
	return &planService{
		planRepo:     planRepo,
		phaseRepo:    phaseRepo,
		sessionRepo:  sessionRepo,
		exerciseRepo: exerciseRepo,
		libraryRepo:  libraryRepo,
		userRepo:     userRepo,
	}
}

// CreatePlan creates an empty active plan for a managed client.
func (s *planService) CreatePlan(ctx context.Context, trainerID, clientID primitive.ObjectID, name, description string) (*domain.WorkoutPlan, error) {
	if trainerID == primitive.NilObjectID || clientID == primitive.NilObjectID {
		return nil, errors.New("trainer ID and client ID cannot be nil")
	}
	if name == "" {
		return nil, errors.New("plan name cannot be empty")
	}

	if err := s.verifyManagedClient(ctx, trainerID, clientID); err != nil {
		return nil, err
	}

	plan := &domain.WorkoutPlan{
		TrainerID:   trainerID,
		ClientID:    clientID,
		Name:        name,
		Description: description,
		IsActive:    true,
	}
	id, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = id
	return plan, nil
}

// GetPlansForClient lists a managed client's plans, newest first.
func (s *planService) GetPlansForClient(ctx context.Context, trainerID, clientID primitive.ObjectID) ([]domain.WorkoutPlan, error) {
	if err := s.verifyManagedClient(ctx, trainerID, clientID); err != nil {
		return nil, err
	}
	return s.planRepo.GetByClientAndTrainerID(ctx, clientID, trainerID)
}

// GetPlanTree loads the whole plan tree in three plan-scoped queries plus the
// library name join. Both the owning trainer and the assigned client may read.
func (s *planService) GetPlanTree(ctx context.Context, actorID, planID primitive.ObjectID) (*PlanTree, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.TrainerID != actorID && plan.ClientID != actorID {
		return nil, ErrPlanAccessDenied
	}

	phases, err := s.phaseRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}
	exercises, err := s.exerciseRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}

	names, err := s.libraryNames(ctx, exercises)
	if err != nil {
		return nil, err
	}

	exercisesBySession := make(map[primitive.ObjectID][]ExerciseNode)
	for _, ex := range exercises {
		exercisesBySession[ex.SessionID] = append(exercisesBySession[ex.SessionID], ExerciseNode{
			Exercise:     ex,
			ExerciseName: names[ex.ExerciseID],
		})
	}

	sessionsByPhase := make(map[primitive.ObjectID][]SessionNode)
	for _, sess := range sessions {
		node := SessionNode{Session: sess, Exercises: exercisesBySession[sess.ID]}
		if node.Exercises == nil {
			node.Exercises = []ExerciseNode{}
		}
		sessionsByPhase[sess.PhaseID] = append(sessionsByPhase[sess.PhaseID], node)
	}

	tree := &PlanTree{Plan: *plan, Phases: make([]PhaseNode, 0, len(phases))}
	for _, phase := range phases {
		node := PhaseNode{Phase: phase, Sessions: sessionsByPhase[phase.ID]}
		if node.Sessions == nil {
			node.Sessions = []SessionNode{}
		}
		tree.Phases = append(tree.Phases, node)
	}
	return tree, nil
}

// UpdatePlanMeta applies plan-level field changes and bumps the plan's
// timestamp, so meta edits participate in the same concurrency scheme as
// structural edits.
func (s *planService) UpdatePlanMeta(ctx context.Context, trainerID, planID primitive.ObjectID, update PlanMetaUpdate) (*domain.WorkoutPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.TrainerID != trainerID {
		return nil, ErrPlanAccessDenied
	}

	fields := make(map[string]any)
	if update.Name != nil {
		if *update.Name == "" {
			return nil, fmt.Errorf("%w: plan name cannot be empty", ErrPlanUpdateInvalid)
		}
		fields["name"] = *update.Name
		plan.Name = *update.Name
	}
	if update.Description != nil {
		fields["description"] = *update.Description
		plan.Description = *update.Description
	}
	if update.IsActive != nil {
		fields["isActive"] = *update.IsActive
		plan.IsActive = *update.IsActive
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to change", ErrPlanUpdateInvalid)
	}

	stamp := nextStamp(plan.UpdatedAt)
	fields["updatedAt"] = stamp
	if err := s.planRepo.UpdateMeta(ctx, planID, fields); err != nil {
		return nil, err
	}
	plan.UpdatedAt = stamp
	return plan, nil
}

// verifyManagedClient checks the client exists, has the client role, and is
// assigned to this trainer.
func (s *planService) verifyManagedClient(ctx context.Context, trainerID, clientID primitive.ObjectID) error {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClientNotFound
		}
		return err
	}
	if !client.IsClient() {
		return ErrClientNotFound
	}
	if client.TrainerID == nil || *client.TrainerID != trainerID {
		return ErrClientNotManaged
	}
	return nil
}

// libraryNames resolves the distinct library exercise ids referenced by plan
// exercises to their display names. Dangling references resolve to "".
func (s *planService) libraryNames(ctx context.Context, exercises []domain.PlanExercise) (map[primitive.ObjectID]string, error) {
	names := make(map[primitive.ObjectID]string)
	for _, ex := range exercises {
		if _, done := names[ex.ExerciseID]; done {
			continue
		}
		lib, err := s.libraryRepo.GetByID(ctx, ex.ExerciseID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				names[ex.ExerciseID] = ""
				continue
			}
			return nil, err
		}
		names[ex.ExerciseID] = lib.Name
	}
	return names, nil
}
