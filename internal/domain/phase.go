// internal/domain/phase.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanPhase is a training block within a WorkoutPlan, e.g. "Phase 1: Hypertrophy".
type PlanPhase struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID    primitive.ObjectID `bson:"planId" json:"planId"`
	Name      string             `bson:"name" json:"name"`
	Sequence  int                `bson:"sequence" json:"sequence"` // Order within the plan, unique per plan
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
