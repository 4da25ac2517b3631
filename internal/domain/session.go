// internal/domain/session.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanSession is a single training day within a PlanPhase, e.g. "Day 1: Upper Body".
type PlanSession struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID          primitive.ObjectID `bson:"planId" json:"planId"` // Denormalized; writes are scoped to their plan
	PhaseID         primitive.ObjectID `bson:"phaseId" json:"phaseId"`
	Name            string             `bson:"name" json:"name"`
	Sequence        int                `bson:"sequence" json:"sequence"` // Order within the phase, unique per phase
	DurationMinutes int                `bson:"durationMinutes,omitempty" json:"durationMinutes,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
