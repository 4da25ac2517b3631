package repository

import (
	"alcyxob/plansync/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
	ErrDuplicateKey = RepositoryError("duplicate key") // unique index violation, e.g. phase sequence
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// TxRunner executes fn inside one atomic unit of work against the canonical
// store. Repository calls made with the context passed to fn join the
// transaction; if fn returns an error, nothing it wrote is visible.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	AddClientIDToTrainer(ctx context.Context, trainerID, clientID primitive.ObjectID) error
	GetClientsByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error)
	SetTrainerForClient(ctx context.Context, clientID, trainerID primitive.ObjectID) error
}

// ExerciseRepository defines the interface for interacting with the exercise library.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	GetByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Exercise, error)
	Update(ctx context.Context, exercise *domain.Exercise) error
	Delete(ctx context.Context, id primitive.ObjectID, trainerID primitive.ObjectID) error // Ensure trainer owns the exercise
}

// WorkoutPlanRepository defines the interface for interacting with plan roots.
// Create honors a pre-set plan.ID so that a client-generated id survives the
// first save; UpdateTimestamp is the optimistic-concurrency stamp write.
type WorkoutPlanRepository interface {
	Create(ctx context.Context, plan *domain.WorkoutPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutPlan, error)
	GetByClientAndTrainerID(ctx context.Context, clientID, trainerID primitive.ObjectID) ([]domain.WorkoutPlan, error)
	UpdateMeta(ctx context.Context, id primitive.ObjectID, fields map[string]any) error
	UpdateTimestamp(ctx context.Context, id primitive.ObjectID, updatedAt time.Time) error
}

// PlanPhaseRepository defines the interface for interacting with plan phases.
// Mutations are scoped to a plan id in the filter itself, so a diff can never
// touch entities of a foreign plan.
type PlanPhaseRepository interface {
	Create(ctx context.Context, phase *domain.PlanPhase) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanPhase, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanPhase, error)
	UpdateFields(ctx context.Context, id, planID primitive.ObjectID, fields map[string]any) error
	Delete(ctx context.Context, id, planID primitive.ObjectID) error
}

// PlanSessionRepository defines the interface for interacting with plan sessions.
type PlanSessionRepository interface {
	Create(ctx context.Context, session *domain.PlanSession) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanSession, error)
	GetByPhaseID(ctx context.Context, phaseID primitive.ObjectID) ([]domain.PlanSession, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanSession, error)
	UpdateFields(ctx context.Context, id, planID primitive.ObjectID, fields map[string]any) error
	Delete(ctx context.Context, id, planID primitive.ObjectID) error
	DeleteByPhaseID(ctx context.Context, phaseID, planID primitive.ObjectID) error
}

// PlanExerciseRepository defines the interface for interacting with exercises
// placed in plan sessions, including their embedded sets.
type PlanExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.PlanExercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanExercise, error)
	GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.PlanExercise, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanExercise, error)
	UpdateFields(ctx context.Context, id, planID primitive.ObjectID, fields map[string]any) error
	Delete(ctx context.Context, id, planID primitive.ObjectID) error
	DeleteBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID, planID primitive.ObjectID) error

	// Embedded set operations, used by the single-operation sync path.
	// AddSet and RemoveSet return ErrNotFound only when the exercise itself
	// is missing; UpdateSet additionally reports ErrNotFound for a missing
	// exercise while a missing set is a silent no-op.
	AddSet(ctx context.Context, exerciseID, planID primitive.ObjectID, set domain.ExerciseSet) error
	UpdateSet(ctx context.Context, exerciseID, planID primitive.ObjectID, setID string, fields map[string]any) error
	RemoveSet(ctx context.Context, exerciseID, planID primitive.ObjectID, setID string) error
}
