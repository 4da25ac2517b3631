// Package planchange defines the structured diff that describes an edit to a
// workout plan tree (plan -> phases -> sessions -> exercises). A diff is a
// transient value shared between the editing client and the server; it is
// never persisted as such. Entity ids on the wire are strings: either the
// 24-char hex id of an existing entity or a client-generated placeholder
// (uuid) for an entity created inside the same diff.
package planchange

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidChanges marks a malformed diff. Callers treat it as permanent:
// a diff that fails validation is never retried.
var ErrInvalidChanges = errors.New("invalid plan changes")

// PlanDraft is the payload for creating the plan itself. It is present on a
// Changes value only when the diff is the first save of a brand-new plan.
type PlanDraft struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrainerID   string `json:"trainerId"` // owning trainer (hex id)
	ClientID    string `json:"clientId"`  // assigned client (hex id)
	IsActive    bool   `json:"isActive"`
}

// PhaseDraft is a full payload for a phase created by this diff.
type PhaseDraft struct {
	ID       string `json:"id"` // placeholder or final hex id
	Name     string `json:"name"`
	Sequence int    `json:"sequence"` // order within the plan, unique
	IsActive bool   `json:"isActive"`
}

// SessionDraft is a full payload for a session created by this diff.
// PhaseID may reference a PhaseDraft in the same diff by its placeholder id.
type SessionDraft struct {
	ID              string `json:"id"`
	PhaseID         string `json:"phaseId"`
	Name            string `json:"name"`
	Sequence        int    `json:"sequence"` // order within the phase, unique
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

// ExerciseDraft is a full payload for a plan exercise created by this diff.
// SessionID may reference a SessionDraft in the same diff.
type ExerciseDraft struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"sessionId"`
	ExerciseID    string     `json:"exerciseId"` // library exercise (hex id)
	OrderMarker   string     `json:"orderMarker,omitempty"` // e.g. "A1"
	TargetArea    string     `json:"targetArea,omitempty"`
	TargetMotion  string     `json:"targetMotion,omitempty"`
	SetRange      string     `json:"setRange,omitempty"` // e.g. "3-4"
	RepRange      string     `json:"repRange,omitempty"`
	RestRange     string     `json:"restRange,omitempty"`
	Tempo         string     `json:"tempo,omitempty"`
	Customization string     `json:"customization,omitempty"`
	Sets          []SetDraft `json:"sets,omitempty"`
}

// SetDraft is one planned set embedded in an exercise draft.
type SetDraft struct {
	SetID       string  `json:"setId"` // client-generated uuid, stable across edits
	SetNumber   int     `json:"setNumber"`
	Reps        int     `json:"reps,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	RestSeconds int     `json:"restSeconds,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// Update addresses an existing entity by id and carries only the fields that
// changed. Unknown field names are ignored by the applier.
type Update struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// CreatedSet holds the full payloads of entities this diff creates.
type CreatedSet struct {
	Phases    []PhaseDraft    `json:"phases,omitempty"`
	Sessions  []SessionDraft  `json:"sessions,omitempty"`
	Exercises []ExerciseDraft `json:"exercises,omitempty"`
}

// UpdatedSet holds partial-field updates to existing entities.
type UpdatedSet struct {
	Phases    []Update `json:"phases,omitempty"`
	Sessions  []Update `json:"sessions,omitempty"`
	Exercises []Update `json:"exercises,omitempty"`
}

// DeletedSet holds bare ids of entities this diff deletes. Deleting a phase
// or session deletes its subtree.
type DeletedSet struct {
	Phases    []string `json:"phases,omitempty"`
	Sessions  []string `json:"sessions,omitempty"`
	Exercises []string `json:"exercises,omitempty"`
}

// Changes is one structured plan edit. A valid value references any entity id
// in at most one partition (see Validate).
type Changes struct {
	Plan    *PlanDraft `json:"plan,omitempty"` // non-nil iff the diff creates the plan
	Created CreatedSet `json:"created"`
	Updated UpdatedSet `json:"updated"`
	Deleted DeletedSet `json:"deleted"`
}

// IsEmpty reports whether the diff carries no work at all.
func (c Changes) IsEmpty() bool {
	return c.Plan == nil &&
		len(c.Created.Phases) == 0 && len(c.Created.Sessions) == 0 && len(c.Created.Exercises) == 0 &&
		len(c.Updated.Phases) == 0 && len(c.Updated.Sessions) == 0 && len(c.Updated.Exercises) == 0 &&
		len(c.Deleted.Phases) == 0 && len(c.Deleted.Sessions) == 0 && len(c.Deleted.Exercises) == 0
}

// IsPlaceholderID reports whether id is a client-side placeholder rather than
// the hex id of a persisted entity.
func IsPlaceholderID(id string) bool {
	return !primitive.IsValidObjectID(id)
}

// Status discriminates the outcome of applying a diff.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusConflict Status = "conflict"
)

// ApplyResult is the discriminated outcome of an apply call. On success,
// NewUpdatedAt carries the plan's freshly stamped timestamp and CreatedIDs
// maps every placeholder id in the diff to the generated hex id, so the
// client can patch its local tree. On conflict, ServerUpdatedAt carries the
// timestamp that beat the caller's.
type ApplyResult struct {
	Status          Status            `json:"status"`
	NewUpdatedAt    time.Time         `json:"newUpdatedAt"`
	ServerUpdatedAt time.Time         `json:"serverUpdatedAt"`
	CreatedIDs      map[string]string `json:"createdIds,omitempty"`
}
