// Package jobs is the background half of the plan sync engine: a durable
// at-least-once queue of plan edits, the processor that replays them through
// the diff applier, and the worker pool that drains the queue.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"alcyxob/plansync/pkg/planchange"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QueuePlanSync is the queue all plan edit jobs go through.
const QueuePlanSync = "plan_sync"

// Message types discriminate the diff-application variant a job carries.
const (
	TypePlanSave = "plan.save"

	TypePhaseCreate = "phase.create"
	TypePhaseUpdate = "phase.update"
	TypePhaseDelete = "phase.delete"

	TypeSessionCreate = "session.create"
	TypeSessionUpdate = "session.update"
	TypeSessionDelete = "session.delete"

	TypeExerciseCreate = "exercise.create"
	TypeExerciseUpdate = "exercise.update"
	TypeExerciseDelete = "exercise.delete"
)

// Metadata keys. A job tagged dependsOn=plan may legitimately run before the
// plan-creating job has committed; the processor retries it instead of
// failing it.
const (
	MetaDependsOn = "dependsOn"
	DependsOnPlan = "plan"
)

// Status is a job's lifecycle state. Claimed jobs stay pending and are
// hidden by their visibility timeout, so a crashed worker's claim simply
// expires.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDead      Status = "dead" // failed past the attempt cap, kept for inspection
)

var (
	ErrJobNotFound = errors.New("job not found")

	// ErrDependencyNotReady marks a failure caused by ordering, not by the
	// job itself: retry after a short delay.
	ErrDependencyNotReady = errors.New("job dependency not ready")

	// ErrBadPayload marks a job whose payload cannot be decoded. Terminal.
	ErrBadPayload = errors.New("malformed job payload")
)

// Job is the durable envelope: a message type, an opaque JSON payload, and
// string metadata. Delivery is at least once; consumers must tolerate
// redelivery.
type Job struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Queue       string             `bson:"queue" json:"queue"`
	MessageType string             `bson:"messageType" json:"messageType"`
	Payload     json.RawMessage    `bson:"payload" json:"payload"`
	Meta        map[string]string  `bson:"meta,omitempty" json:"meta,omitempty"`

	Status       Status    `bson:"status" json:"status"`
	Attempts     int       `bson:"attempts" json:"attempts"`
	EnqueuedAt   time.Time `bson:"enqueuedAt" json:"enqueuedAt"`
	VisibleAfter time.Time `bson:"visibleAfter" json:"-"`

	LastError   string     `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	PurgeAfter  *time.Time `bson:"purgeAfter,omitempty" json:"-"`
	Result      *JobResult `bson:"result,omitempty" json:"result,omitempty"`
}

// JobResult is the structured outcome stored with a finished job. Success
// false with a nil error means the job reached a final business outcome
// (e.g. a version conflict) that retrying cannot change.
type JobResult struct {
	Success     bool            `bson:"success" json:"success"`
	Message     string          `bson:"message,omitempty" json:"message,omitempty"`
	Data        json.RawMessage `bson:"data,omitempty" json:"data,omitempty"`
	ProcessedAt time.Time       `bson:"processedAt" json:"processedAt"`
}

// Queue is the durable transport. Dequeue claims atomically: a claimed job
// is invisible to other consumers until its visibility timeout lapses.
type Queue interface {
	Enqueue(ctx context.Context, queue, messageType string, payload any, meta map[string]string) (primitive.ObjectID, error)
	Dequeue(ctx context.Context, queue string, limit int) ([]Job, error)
	Get(ctx context.Context, id primitive.ObjectID) (*Job, error)

	// Complete finishes a job and records its result.
	Complete(ctx context.Context, id primitive.ObjectID, result *JobResult) error

	// Fail records a retryable failure. delay <= 0 picks the exponential
	// default. Returns true when the attempt cap made the failure terminal.
	Fail(ctx context.Context, id primitive.ObjectID, errMsg string, delay time.Duration) (bool, error)

	// Bury moves a job straight to the dead letter state, attempts
	// notwithstanding. For failures that can never succeed on retry.
	Bury(ctx context.Context, id primitive.ObjectID, errMsg string) error

	Depth(ctx context.Context, queue string) (int64, error)
	ListDead(ctx context.Context, queue string, limit int) ([]Job, error)
	RequeueDead(ctx context.Context, id primitive.ObjectID) error
}

// PlanSavePayload is the body of a plan.save job: one full diff.
type PlanSavePayload struct {
	PlanID            string             `json:"planId"`
	ActorID           string             `json:"actorId"`
	ExpectedUpdatedAt *time.Time         `json:"expectedUpdatedAt,omitempty"`
	Changes           planchange.Changes `json:"changes"`
}

// EntityPayload is the body of the single-entity message types. Entity holds
// the draft for creates; EntityID and Fields drive updates; EntityID alone
// drives deletes.
type EntityPayload struct {
	PlanID   string          `json:"planId"`
	ActorID  string          `json:"actorId"`
	EntityID string          `json:"entityId,omitempty"`
	Entity   json.RawMessage `json:"entity,omitempty"`
	Fields   map[string]any  `json:"fields,omitempty"`
}
