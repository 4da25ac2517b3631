package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alcyxob/plansync/internal/service"
	"alcyxob/plansync/pkg/planchange"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanApplier is the slice of the sync service the processor drives. The
// guard inside ApplyChanges is what serializes two workers racing on the
// same plan; the processor adds nothing on top.
type PlanApplier interface {
	ApplyChanges(ctx context.Context, actorID, planID primitive.ObjectID, expectedUpdatedAt *time.Time, changes planchange.Changes) (*planchange.ApplyResult, error)
}

// Outcome is the classified result of one processing attempt.
type Outcome struct {
	Result   *JobResult    // set when the job reached a final outcome
	Err      error         // set when the attempt failed
	Terminal bool          // Err is permanent, retrying cannot help
	Delay    time.Duration // retry delay hint; 0 means the queue default
}

// HandlerFunc turns one job into a result or an error.
type HandlerFunc func(ctx context.Context, job Job) (*JobResult, error)

// ProcessorConfig tunes classification behavior.
type ProcessorConfig struct {
	// DependencyRetryDelay is the short fixed delay for jobs that arrived
	// before their parent plan was created. Default 2s.
	DependencyRetryDelay time.Duration
}

// Processor routes jobs by message type and classifies failures into
// retryable and terminal.
type Processor struct {
	applier  PlanApplier
	handlers map[string]HandlerFunc
	depDelay time.Duration
}

// NewProcessor creates a Processor with handlers for all plan sync message
// types registered.
func NewProcessor(applier PlanApplier, cfg ProcessorConfig) *Processor {
	if cfg.DependencyRetryDelay <= 0 {
		cfg.DependencyRetryDelay = 2 * time.Second
	}
	p := &Processor{
		applier:  applier,
		handlers: make(map[string]HandlerFunc),
		depDelay: cfg.DependencyRetryDelay,
	}
	p.handlers[TypePlanSave] = p.handlePlanSave
	for _, t := range []string{
		TypePhaseCreate, TypePhaseUpdate, TypePhaseDelete,
		TypeSessionCreate, TypeSessionUpdate, TypeSessionDelete,
		TypeExerciseCreate, TypeExerciseUpdate, TypeExerciseDelete,
	} {
		p.handlers[t] = p.handleEntity
	}
	return p
}

// Register adds or replaces the handler for a message type.
func (p *Processor) Register(messageType string, h HandlerFunc) {
	p.handlers[messageType] = h
}

// Process runs the job's handler and classifies the outcome. A version
// conflict is a final business outcome carried in the result, not an error:
// replaying the same stale diff can never succeed.
func (p *Processor) Process(ctx context.Context, job Job) Outcome {
	handler, ok := p.handlers[job.MessageType]
	if !ok {
		return Outcome{
			Err:      fmt.Errorf("%w: no handler for %q", ErrBadPayload, job.MessageType),
			Terminal: true,
		}
	}
	result, err := handler(ctx, job)
	if err != nil {
		return p.classify(job, err)
	}
	return Outcome{Result: result}
}

func (p *Processor) classify(job Job, err error) Outcome {
	// A missing plan is expected ordering noise for jobs that declared the
	// dependency: the plan-creating sibling just has not committed yet.
	if errors.Is(err, service.ErrPlanNotFound) && job.Meta[MetaDependsOn] == DependsOnPlan {
		return Outcome{
			Err:   fmt.Errorf("%w: %v", ErrDependencyNotReady, err),
			Delay: p.depDelay,
		}
	}

	switch {
	case errors.Is(err, ErrBadPayload),
		errors.Is(err, planchange.ErrInvalidChanges),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrPlanAccessDenied),
		errors.Is(err, service.ErrExerciseGone),
		errors.Is(err, service.ErrDuplicateSequence),
		errors.Is(err, service.ErrUnresolvedRef),
		errors.Is(err, service.ErrInvalidOperation):
		return Outcome{Err: err, Terminal: true}
	}
	// Storage and transport errors are presumed transient.
	return Outcome{Err: err}
}

func (p *Processor) handlePlanSave(ctx context.Context, job Job) (*JobResult, error) {
	var payload PlanSavePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	actorID, planID, err := payloadIDs(payload.ActorID, payload.PlanID)
	if err != nil {
		return nil, err
	}

	res, err := p.applier.ApplyChanges(ctx, actorID, planID, payload.ExpectedUpdatedAt, payload.Changes)
	if err != nil {
		return nil, err
	}
	return resultFrom(res), nil
}

// handleEntity translates a single-entity payload into a one-entry diff and
// runs it through the same applier. Entity jobs carry no expected stamp;
// they are autosave traffic, not guarded saves.
func (p *Processor) handleEntity(ctx context.Context, job Job) (*JobResult, error) {
	var payload EntityPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	actorID, planID, err := payloadIDs(payload.ActorID, payload.PlanID)
	if err != nil {
		return nil, err
	}

	changes, err := entityChanges(job.MessageType, payload)
	if err != nil {
		return nil, err
	}

	res, err := p.applier.ApplyChanges(ctx, actorID, planID, nil, changes)
	if err != nil {
		return nil, err
	}
	return resultFrom(res), nil
}

func entityChanges(messageType string, payload EntityPayload) (planchange.Changes, error) {
	var ch planchange.Changes

	needTarget := func() error {
		if payload.EntityID == "" {
			return fmt.Errorf("%w: missing entityId for %s", ErrBadPayload, messageType)
		}
		return nil
	}

	switch messageType {
	case TypePhaseCreate:
		var draft planchange.PhaseDraft
		if err := json.Unmarshal(payload.Entity, &draft); err != nil {
			return ch, fmt.Errorf("%w: phase draft: %v", ErrBadPayload, err)
		}
		ch.Created.Phases = []planchange.PhaseDraft{draft}
	case TypePhaseUpdate:
		if err := needTarget(); err != nil {
			return ch, err
		}
		ch.Updated.Phases = []planchange.Update{{ID: payload.EntityID, Fields: payload.Fields}}
	case TypePhaseDelete:
		if err := needTarget(); err != nil {
			return ch, err
		}
		ch.Deleted.Phases = []string{payload.EntityID}

	case TypeSessionCreate:
		var draft planchange.SessionDraft
		if err := json.Unmarshal(payload.Entity, &draft); err != nil {
			return ch, fmt.Errorf("%w: session draft: %v", ErrBadPayload, err)
		}
		ch.Created.Sessions = []planchange.SessionDraft{draft}
	case TypeSessionUpdate:
		if err := needTarget(); err != nil {
			return ch, err
		}
		ch.Updated.Sessions = []planchange.Update{{ID: payload.EntityID, Fields: payload.Fields}}
	case TypeSessionDelete:
		if err := needTarget(); err != nil {
			return ch, err
		}
		ch.Deleted.Sessions = []string{payload.EntityID}

	case TypeExerciseCreate:
		var draft planchange.ExerciseDraft
		if err := json.Unmarshal(payload.Entity, &draft); err != nil {
			return ch, fmt.Errorf("%w: exercise draft: %v", ErrBadPayload, err)
		}
		ch.Created.Exercises = []planchange.ExerciseDraft{draft}
	case TypeExerciseUpdate:
		if err := needTarget(); err != nil {
			return ch, err
		}
		ch.Updated.Exercises = []planchange.Update{{ID: payload.EntityID, Fields: payload.Fields}}
	case TypeExerciseDelete:
		if err := needTarget(); err != nil {
			return ch, err
		}
		ch.Deleted.Exercises = []string{payload.EntityID}

	default:
		return ch, fmt.Errorf("%w: unsupported message type %q", ErrBadPayload, messageType)
	}
	return ch, nil
}

func payloadIDs(actor, plan string) (primitive.ObjectID, primitive.ObjectID, error) {
	actorID, err := primitive.ObjectIDFromHex(actor)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, fmt.Errorf("%w: bad actorId %q", ErrBadPayload, actor)
	}
	planID, err := primitive.ObjectIDFromHex(plan)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, fmt.Errorf("%w: bad planId %q", ErrBadPayload, plan)
	}
	return actorID, planID, nil
}

func resultFrom(res *planchange.ApplyResult) *JobResult {
	out := &JobResult{ProcessedAt: time.Now().UTC()}
	if res.Status == planchange.StatusConflict {
		out.Message = fmt.Sprintf("conflict: plan changed at %s", res.ServerUpdatedAt.Format(time.RFC3339Nano))
		data, _ := json.Marshal(map[string]any{"serverUpdatedAt": res.ServerUpdatedAt})
		out.Data = data
		return out
	}

	out.Success = true
	data, _ := json.Marshal(map[string]any{
		"newUpdatedAt": res.NewUpdatedAt,
		"createdIds":   res.CreatedIDs,
	})
	out.Data = data
	return out
}
