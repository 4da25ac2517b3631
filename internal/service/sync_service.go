// internal/service/sync_service.go
package service

import (
	"alcyxob/plansync/internal/domain"
	"alcyxob/plansync/internal/repository"
	"alcyxob/plansync/pkg/planchange"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPlanNotFound      = errors.New("workout plan not found")
	ErrPlanAccessDenied  = errors.New("access denied to this plan")
	ErrExerciseGone      = errors.New("plan exercise no longer exists")
	ErrDuplicateSequence = errors.New("duplicate sequence number in plan structure")
	ErrUnresolvedRef     = errors.New("unresolved parent reference in changes")
	ErrInvalidOperation  = errors.New("invalid set operation")
)

// VersionStatus discriminates the outcome of a plan version check.
type VersionStatus string

const (
	VersionOK       VersionStatus = "ok"
	VersionConflict VersionStatus = "conflict"
	VersionMissing  VersionStatus = "missing" // plan needs creation, not a conflict
)

// VersionCheck reports how a client-held updatedAt relates to the stored one.
type VersionCheck struct {
	Status          VersionStatus `json:"status"`
	ServerUpdatedAt time.Time     `json:"serverUpdatedAt"`
}

// Set operation types, the vocabulary of the client operation queue.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// SetOperation is one user-visible set edit (one set's reps/weight/notes)
// arriving through the sync API.
type SetOperation struct {
	Type       string
	ExerciseID primitive.ObjectID
	SetID      string
	Data       map[string]any
}

// --- Service Interface ---

// SyncService is the write path of the plan synchronization engine: the
// optimistic concurrency check, the transactional diff applier, and the
// single-operation applier behind the client operation queue.
//
// Concurrency between writers of the same plan is resolved by the timestamp
// compare alone. There are no locks: a writer that read a stale updatedAt
// gets a conflict result once a newer write has committed.
type SyncService interface {
	CheckPlanVersion(ctx context.Context, planID primitive.ObjectID, knownUpdatedAt *time.Time) (*VersionCheck, error)
	ApplyChanges(ctx context.Context, actorID, planID primitive.ObjectID, expectedUpdatedAt *time.Time, changes planchange.Changes) (*planchange.ApplyResult, error)
	ApplyOperation(ctx context.Context, actorID primitive.ObjectID, op SetOperation) (*planchange.ApplyResult, error)
}

// --- Service Implementation ---

type syncService struct {
	tx           repository.TxRunner
	planRepo     repository.WorkoutPlanRepository
	phaseRepo    repository.PlanPhaseRepository
	sessionRepo  repository.PlanSessionRepository
	exerciseRepo repository.PlanExerciseRepository
}

// NewSyncService creates a new instance of syncService.
func NewSyncService(
	tx repository.TxRunner,
	planRepo repository.WorkoutPlanRepository,
	phaseRepo repository.PlanPhaseRepository,
	sessionRepo repository.PlanSessionRepository,
	exerciseRepo repository.PlanExerciseRepository,
) SyncService {
	return &syncService{
		tx:           tx,
		planRepo:     planRepo,
		phaseRepo:    phaseRepo,
		sessionRepo:  sessionRepo,
		exerciseRepo: exerciseRepo,
	}
}

// CheckPlanVersion compares a client-held updatedAt against the stored one.
// A missing plan is reported as VersionMissing ("needs creation"), not as an
// error. The comparison is strictly greater-than, so an exactly equal stamp
// passes; this avoids false conflicts from clock-resolution ties. The check
// is advisory for pre-flight UI use; the authoritative check runs again
// inside ApplyChanges' transaction.
func (s *syncService) CheckPlanVersion(ctx context.Context, planID primitive.ObjectID, knownUpdatedAt *time.Time) (*VersionCheck, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &VersionCheck{Status: VersionMissing}, nil
		}
		return nil, err
	}
	if knownUpdatedAt != nil && plan.UpdatedAt.After(*knownUpdatedAt) {
		return &VersionCheck{Status: VersionConflict, ServerUpdatedAt: plan.UpdatedAt}, nil
	}
	return &VersionCheck{Status: VersionOK, ServerUpdatedAt: plan.UpdatedAt}, nil
}

// ApplyChanges applies one structured diff to the plan tree as a single
// atomic unit and stamps the plan's updatedAt as its last step. The result
// is discriminated: a stale expectedUpdatedAt yields a conflict result (with
// the winning server timestamp), never an error; errors are reserved for
// invalid diffs and storage failures.
func (s *syncService) ApplyChanges(ctx context.Context, actorID, planID primitive.ObjectID, expectedUpdatedAt *time.Time, changes planchange.Changes) (*planchange.ApplyResult, error) {
	if planID == primitive.NilObjectID {
		return nil, ErrPlanNotFound
	}
	if err := changes.Validate(); err != nil {
		return nil, err
	}

	res, err := s.tx.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return s.applyChangesTx(txCtx, actorID, planID, expectedUpdatedAt, changes)
	})
	if err != nil {
		return nil, err
	}
	return res.(*planchange.ApplyResult), nil
}

func (s *syncService) applyChangesTx(ctx context.Context, actorID, planID primitive.ObjectID, expected *time.Time, ch planchange.Changes) (*planchange.ApplyResult, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if ch.Plan == nil {
			return nil, ErrPlanNotFound
		}
		// First save of a brand-new plan: create the root before any child
		// row, under the id the client already holds.
		plan, err = s.createPlanFromDraft(ctx, actorID, planID, *ch.Plan)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if plan.TrainerID != actorID {
			return nil, ErrPlanAccessDenied
		}
		if expected != nil && plan.UpdatedAt.After(*expected) {
			return &planchange.ApplyResult{
				Status:          planchange.StatusConflict,
				ServerUpdatedAt: plan.UpdatedAt,
			}, nil
		}
	}

	// Deletes run child-to-parent, creates parent-to-child, so ownership
	// integrity holds at every intermediate step. Updates go last and may
	// run in any order.
	if err := s.applyDeletes(ctx, planID, ch.Deleted); err != nil {
		return nil, err
	}
	idMap, err := s.applyCreates(ctx, planID, ch.Created)
	if err != nil {
		return nil, err
	}
	if err := s.applyUpdates(ctx, planID, ch.Updated, idMap); err != nil {
		return nil, err
	}

	stamp := nextStamp(plan.UpdatedAt)
	if err := s.planRepo.UpdateTimestamp(ctx, planID, stamp); err != nil {
		return nil, err
	}

	result := &planchange.ApplyResult{
		Status:       planchange.StatusSuccess,
		NewUpdatedAt: stamp,
	}
	if len(idMap) > 0 {
		result.CreatedIDs = make(map[string]string, len(idMap))
		for placeholder, id := range idMap {
			result.CreatedIDs[placeholder] = id.Hex()
		}
	}
	return result, nil
}

func (s *syncService) createPlanFromDraft(ctx context.Context, actorID, planID primitive.ObjectID, draft planchange.PlanDraft) (*domain.WorkoutPlan, error) {
	trainerID, err := primitive.ObjectIDFromHex(draft.TrainerID)
	if err != nil {
		return nil, fmt.Errorf("%w: plan draft has bad trainerId", planchange.ErrInvalidChanges)
	}
	clientID, err := primitive.ObjectIDFromHex(draft.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%w: plan draft has bad clientId", planchange.ErrInvalidChanges)
	}
	if trainerID != actorID {
		return nil, ErrPlanAccessDenied
	}

	plan := &domain.WorkoutPlan{
		ID:          planID,
		TrainerID:   trainerID,
		ClientID:    clientID,
		Name:        draft.Name,
		Description: draft.Description,
		IsActive:    draft.IsActive,
	}
	if _, err := s.planRepo.Create(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Lost the create race against a sibling job; use the winner's row.
			return s.planRepo.GetByID(ctx, planID)
		}
		return nil, err
	}
	return plan, nil
}

// applyDeletes removes entities child-to-parent. Ids that do not resolve to
// a row of this plan (placeholders, already-deleted ids, foreign ids) are
// skipped silently so redelivered diffs stay harmless.
func (s *syncService) applyDeletes(ctx context.Context, planID primitive.ObjectID, del planchange.DeletedSet) error {
	for _, raw := range del.Exercises {
		id, ok := parseEntityID(raw)
		if !ok {
			continue
		}
		if err := s.exerciseRepo.Delete(ctx, id, planID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}

	for _, raw := range del.Sessions {
		id, ok := parseEntityID(raw)
		if !ok {
			continue
		}
		if err := s.exerciseRepo.DeleteBySessionIDs(ctx, []primitive.ObjectID{id}, planID); err != nil {
			return err
		}
		if err := s.sessionRepo.Delete(ctx, id, planID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}

	for _, raw := range del.Phases {
		id, ok := parseEntityID(raw)
		if !ok {
			continue
		}
		sessions, err := s.sessionRepo.GetByPhaseID(ctx, id)
		if err != nil {
			return err
		}
		sessionIDs := make([]primitive.ObjectID, 0, len(sessions))
		for _, sess := range sessions {
			if sess.PlanID == planID {
				sessionIDs = append(sessionIDs, sess.ID)
			}
		}
		if err := s.exerciseRepo.DeleteBySessionIDs(ctx, sessionIDs, planID); err != nil {
			return err
		}
		if err := s.sessionRepo.DeleteByPhaseID(ctx, id, planID); err != nil {
			return err
		}
		if err := s.phaseRepo.Delete(ctx, id, planID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

// applyCreates inserts drafts parent-to-child and returns the id-remapping
// table (draft id -> generated id). Parent references inside the same diff
// resolve through the table; the diff value itself is never rewritten.
func (s *syncService) applyCreates(ctx context.Context, planID primitive.ObjectID, created planchange.CreatedSet) (map[string]primitive.ObjectID, error) {
	idMap := make(map[string]primitive.ObjectID)

	for _, draft := range created.Phases {
		phase := &domain.PlanPhase{
			PlanID:   planID,
			Name:     draft.Name,
			Sequence: draft.Sequence,
			IsActive: draft.IsActive,
		}
		if oid, err := primitive.ObjectIDFromHex(draft.ID); err == nil {
			phase.ID = oid
		}
		id, err := s.phaseRepo.Create(ctx, phase)
		if err != nil {
			return nil, wrapCreateError(err, "phase", draft.ID)
		}
		idMap[draft.ID] = id
	}

	for _, draft := range created.Sessions {
		phaseID, err := s.resolvePhaseRef(ctx, draft.PhaseID, planID, idMap)
		if err != nil {
			return nil, err
		}
		session := &domain.PlanSession{
			PlanID:          planID,
			PhaseID:         phaseID,
			Name:            draft.Name,
			Sequence:        draft.Sequence,
			DurationMinutes: draft.DurationMinutes,
		}
		if oid, err := primitive.ObjectIDFromHex(draft.ID); err == nil {
			session.ID = oid
		}
		id, err := s.sessionRepo.Create(ctx, session)
		if err != nil {
			return nil, wrapCreateError(err, "session", draft.ID)
		}
		idMap[draft.ID] = id
	}

	for _, draft := range created.Exercises {
		sessionID, err := s.resolveSessionRef(ctx, draft.SessionID, planID, idMap)
		if err != nil {
			return nil, err
		}
		libraryID, err := primitive.ObjectIDFromHex(draft.ExerciseID)
		if err != nil {
			return nil, fmt.Errorf("%w: exercise draft %q has bad exerciseId", planchange.ErrInvalidChanges, draft.ID)
		}
		exercise := &domain.PlanExercise{
			PlanID:        planID,
			SessionID:     sessionID,
			ExerciseID:    libraryID,
			OrderMarker:   draft.OrderMarker,
			TargetArea:    draft.TargetArea,
			TargetMotion:  draft.TargetMotion,
			SetRange:      draft.SetRange,
			RepRange:      draft.RepRange,
			RestRange:     draft.RestRange,
			Tempo:         draft.Tempo,
			Customization: draft.Customization,
			Sets:          setsFromDrafts(draft.Sets),
		}
		if oid, err := primitive.ObjectIDFromHex(draft.ID); err == nil {
			exercise.ID = oid
		}
		id, err := s.exerciseRepo.Create(ctx, exercise)
		if err != nil {
			return nil, wrapCreateError(err, "exercise", draft.ID)
		}
		idMap[draft.ID] = id
	}

	return idMap, nil
}

// applyUpdates applies partial-field updates. Unknown ids are skipped
// silently; field names outside the per-entity whitelist are dropped.
func (s *syncService) applyUpdates(ctx context.Context, planID primitive.ObjectID, upd planchange.UpdatedSet, idMap map[string]primitive.ObjectID) error {
	for _, u := range upd.Phases {
		id, ok := resolveUpdateID(u.ID, idMap)
		if !ok {
			continue
		}
		fields := phaseUpdateFields(u.Fields)
		if len(fields) == 0 {
			continue
		}
		if err := s.phaseRepo.UpdateFields(ctx, id, planID, fields); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if errors.Is(err, repository.ErrDuplicateKey) {
				return fmt.Errorf("%w: phase %s", ErrDuplicateSequence, u.ID)
			}
			return err
		}
	}

	for _, u := range upd.Sessions {
		id, ok := resolveUpdateID(u.ID, idMap)
		if !ok {
			continue
		}
		fields := sessionUpdateFields(u.Fields)
		if raw, ok := u.Fields["phaseId"].(string); ok {
			// Re-parenting stays within the plan; the target phase must exist
			// here already.
			phaseID, err := s.resolvePhaseRef(ctx, raw, planID, idMap)
			if err != nil {
				return err
			}
			fields["phaseId"] = phaseID
		}
		if len(fields) == 0 {
			continue
		}
		if err := s.sessionRepo.UpdateFields(ctx, id, planID, fields); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if errors.Is(err, repository.ErrDuplicateKey) {
				return fmt.Errorf("%w: session %s", ErrDuplicateSequence, u.ID)
			}
			return err
		}
	}

	for _, u := range upd.Exercises {
		id, ok := resolveUpdateID(u.ID, idMap)
		if !ok {
			continue
		}
		fields := exerciseUpdateFields(u.Fields)
		if raw, ok := u.Fields["sessionId"].(string); ok {
			sessionID, err := s.resolveSessionRef(ctx, raw, planID, idMap)
			if err != nil {
				return err
			}
			fields["sessionId"] = sessionID
		}
		if len(fields) == 0 {
			continue
		}
		if err := s.exerciseRepo.UpdateFields(ctx, id, planID, fields); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyOperation applies one client set edit inside its own transaction and
// stamps the plan like a diff apply would. Operations carry no expected
// timestamp; the trainer's own autosave stream does not race itself, and the
// stamp bump still signals other writers.
func (s *syncService) ApplyOperation(ctx context.Context, actorID primitive.ObjectID, op SetOperation) (*planchange.ApplyResult, error) {
	switch op.Type {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, op.Type)
	}
	if op.ExerciseID == primitive.NilObjectID {
		return nil, fmt.Errorf("%w: missing exerciseId", ErrInvalidOperation)
	}
	if op.Type != OpCreate && op.SetID == "" {
		return nil, fmt.Errorf("%w: missing setId", ErrInvalidOperation)
	}

	res, err := s.tx.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return s.applyOperationTx(txCtx, actorID, op)
	})
	if err != nil {
		return nil, err
	}
	return res.(*planchange.ApplyResult), nil
}

func (s *syncService) applyOperationTx(ctx context.Context, actorID primitive.ObjectID, op SetOperation) (*planchange.ApplyResult, error) {
	exercise, err := s.exerciseRepo.GetByID(ctx, op.ExerciseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseGone
		}
		return nil, err
	}
	plan, err := s.planRepo.GetByID(ctx, exercise.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	// Set-level edits are allowed for the plan's trainer and its client.
	if plan.TrainerID != actorID && plan.ClientID != actorID {
		return nil, ErrPlanAccessDenied
	}

	switch op.Type {
	case OpCreate:
		set := setFromOperation(op)
		if existingSetIndex(exercise.Sets, set.SetID) >= 0 {
			// Redelivered create: replace the set's fields instead of
			// appending a duplicate.
			err = s.exerciseRepo.UpdateSet(ctx, exercise.ID, plan.ID, set.SetID, setUpdateFields(op.Data))
		} else {
			err = s.exerciseRepo.AddSet(ctx, exercise.ID, plan.ID, set)
		}
	case OpUpdate:
		fields := setUpdateFields(op.Data)
		if len(fields) > 0 {
			err = s.exerciseRepo.UpdateSet(ctx, exercise.ID, plan.ID, op.SetID, fields)
		}
	case OpDelete:
		err = s.exerciseRepo.RemoveSet(ctx, exercise.ID, plan.ID, op.SetID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseGone
		}
		return nil, err
	}

	stamp := nextStamp(plan.UpdatedAt)
	if err := s.planRepo.UpdateTimestamp(ctx, plan.ID, stamp); err != nil {
		return nil, err
	}
	return &planchange.ApplyResult{Status: planchange.StatusSuccess, NewUpdatedAt: stamp}, nil
}

// --- Helpers ---

// nextStamp returns the new plan timestamp: now, pushed 1ms past prev when
// the clock has not advanced beyond it. Keeps updatedAt strictly increasing
// even under clock-resolution ties.
func nextStamp(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

// parseEntityID converts a wire id to an ObjectID. Placeholders report ok ==
// false: an entity that only ever existed client-side has nothing to delete
// or update here.
func parseEntityID(raw string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

// resolveUpdateID resolves an update target: through the create remap first
// (a merged diff may update an entity created moments earlier), then as a
// concrete id.
func resolveUpdateID(raw string, idMap map[string]primitive.ObjectID) (primitive.ObjectID, bool) {
	if id, ok := idMap[raw]; ok {
		return id, true
	}
	return parseEntityID(raw)
}

func (s *syncService) resolvePhaseRef(ctx context.Context, ref string, planID primitive.ObjectID, idMap map[string]primitive.ObjectID) (primitive.ObjectID, error) {
	if id, ok := idMap[ref]; ok {
		return id, nil
	}
	oid, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: phase %q", ErrUnresolvedRef, ref)
	}
	phase, err := s.phaseRepo.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, fmt.Errorf("%w: phase %q", ErrUnresolvedRef, ref)
		}
		return primitive.NilObjectID, err
	}
	if phase.PlanID != planID {
		return primitive.NilObjectID, fmt.Errorf("%w: phase %q", ErrUnresolvedRef, ref)
	}
	return oid, nil
}

func (s *syncService) resolveSessionRef(ctx context.Context, ref string, planID primitive.ObjectID, idMap map[string]primitive.ObjectID) (primitive.ObjectID, error) {
	if id, ok := idMap[ref]; ok {
		return id, nil
	}
	oid, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: session %q", ErrUnresolvedRef, ref)
	}
	session, err := s.sessionRepo.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, fmt.Errorf("%w: session %q", ErrUnresolvedRef, ref)
		}
		return primitive.NilObjectID, err
	}
	if session.PlanID != planID {
		return primitive.NilObjectID, fmt.Errorf("%w: session %q", ErrUnresolvedRef, ref)
	}
	return oid, nil
}

func wrapCreateError(err error, kind, draftID string) error {
	if errors.Is(err, repository.ErrDuplicateKey) {
		return fmt.Errorf("%w: %s %s", ErrDuplicateSequence, kind, draftID)
	}
	return err
}

func setsFromDrafts(drafts []planchange.SetDraft) []domain.ExerciseSet {
	if len(drafts) == 0 {
		return nil
	}
	sets := make([]domain.ExerciseSet, 0, len(drafts))
	for _, d := range drafts {
		set := domain.ExerciseSet{
			SetID:       d.SetID,
			SetNumber:   d.SetNumber,
			Reps:        d.Reps,
			Weight:      d.Weight,
			RestSeconds: d.RestSeconds,
			Notes:       d.Notes,
		}
		if set.SetID == "" {
			set.SetID = uuid.NewString()
		}
		sets = append(sets, set)
	}
	return sets
}

func setFromOperation(op SetOperation) domain.ExerciseSet {
	set := domain.ExerciseSet{SetID: op.SetID}
	if set.SetID == "" {
		if id, ok := op.Data["setId"].(string); ok && id != "" {
			set.SetID = id
		} else {
			set.SetID = uuid.NewString()
		}
	}
	if n, ok := intValue(op.Data["setNumber"]); ok {
		set.SetNumber = n
	}
	if n, ok := intValue(op.Data["reps"]); ok {
		set.Reps = n
	}
	if f, ok := floatValue(op.Data["weight"]); ok {
		set.Weight = f
	}
	if n, ok := intValue(op.Data["restSeconds"]); ok {
		set.RestSeconds = n
	}
	if s, ok := op.Data["notes"].(string); ok {
		set.Notes = s
	}
	return set
}

func existingSetIndex(sets []domain.ExerciseSet, setID string) int {
	for i := range sets {
		if sets[i].SetID == setID {
			return i
		}
	}
	return -1
}

// Per-entity field whitelists. Wire field names (json) map to bson names;
// anything else in an update is dropped.

func phaseUpdateFields(in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range in {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				out["name"] = s
			}
		case "sequence":
			if n, ok := intValue(v); ok {
				out["sequence"] = n
			}
		case "isActive":
			if b, ok := v.(bool); ok {
				out["isActive"] = b
			}
		}
	}
	return out
}

func sessionUpdateFields(in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range in {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				out["name"] = s
			}
		case "sequence":
			if n, ok := intValue(v); ok {
				out["sequence"] = n
			}
		case "durationMinutes":
			if n, ok := intValue(v); ok {
				out["durationMinutes"] = n
			}
		}
	}
	return out
}

func exerciseUpdateFields(in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range in {
		switch k {
		case "orderMarker", "targetArea", "targetMotion", "setRange", "repRange", "restRange", "tempo", "customization":
			if s, ok := v.(string); ok {
				out[k] = s
			}
		case "exerciseId":
			if s, ok := v.(string); ok {
				if oid, err := primitive.ObjectIDFromHex(s); err == nil {
					out["exerciseId"] = oid
				}
			}
		case "sets":
			if drafts, ok := planchange.AsSetDrafts(v); ok {
				out["sets"] = setsFromDrafts(drafts)
			}
		}
	}
	return out
}

func setUpdateFields(in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range in {
		switch k {
		case "setNumber", "reps", "restSeconds":
			if n, ok := intValue(v); ok {
				out[k] = n
			}
		case "weight":
			if f, ok := floatValue(v); ok {
				out["weight"] = f
			}
		case "notes":
			if s, ok := v.(string); ok {
				out["notes"] = s
			}
		}
	}
	return out
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
