// internal/domain/plan.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutPlan is the root aggregate of the plan tree (plan -> phases ->
// sessions -> exercises). UpdatedAt is the sole concurrency token: it
// strictly increases on every accepted mutation of the tree, and writers
// compare it before writing. Plans are deactivated, never deleted.
type WorkoutPlan struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID   primitive.ObjectID `bson:"trainerId" json:"trainerId"` // Who created the plan
	ClientID    primitive.ObjectID `bson:"clientId" json:"clientId"`   // Who the plan is for
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
