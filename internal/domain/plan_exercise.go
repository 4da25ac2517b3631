// internal/domain/plan_exercise.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanExercise places a library Exercise into a PlanSession with the
// trainer's prescription for it.
type PlanExercise struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID        primitive.ObjectID `bson:"planId" json:"planId"` // Denormalized; writes are scoped to their plan
	SessionID     primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	ExerciseID    primitive.ObjectID `bson:"exerciseId" json:"exerciseId"` // Library exercise reference
	OrderMarker   string             `bson:"orderMarker,omitempty" json:"orderMarker,omitempty"` // e.g., "A1", "B2" for supersets
	TargetArea    string             `bson:"targetArea,omitempty" json:"targetArea,omitempty"`
	TargetMotion  string             `bson:"targetMotion,omitempty" json:"targetMotion,omitempty"`
	SetRange      string             `bson:"setRange,omitempty" json:"setRange,omitempty"` // e.g., "3-4"
	RepRange      string             `bson:"repRange,omitempty" json:"repRange,omitempty"` // e.g., "8-12"
	RestRange     string             `bson:"restRange,omitempty" json:"restRange,omitempty"` // e.g., "60-90s"
	Tempo         string             `bson:"tempo,omitempty" json:"tempo,omitempty"` // e.g., "3010"
	Customization string             `bson:"customization,omitempty" json:"customization,omitempty"` // Free-text notes for this client
	Sets          []ExerciseSet      `bson:"sets,omitempty" json:"sets,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ExerciseSet is one planned set, embedded in its PlanExercise. SetID is a
// client-generated identifier that stays stable across edits so offline set
// operations can address it.
type ExerciseSet struct {
	SetID       string  `bson:"setId" json:"setId"`
	SetNumber   int     `bson:"setNumber" json:"setNumber"`
	Reps        int     `bson:"reps,omitempty" json:"reps,omitempty"`
	Weight      float64 `bson:"weight,omitempty" json:"weight,omitempty"`
	RestSeconds int     `bson:"restSeconds,omitempty" json:"restSeconds,omitempty"`
	Notes       string  `bson:"notes,omitempty" json:"notes,omitempty"`
}
