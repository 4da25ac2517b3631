package service

import (
	"alcyxob/plansync/internal/domain"
	"alcyxob/plansync/internal/repository"
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes mirroring the mongo implementations' contract:
// ErrNotFound on missing rows, ErrDuplicateKey on sequence collisions, and
// plan-scoped filters on every mutation.

type memStore struct {
	plans     map[primitive.ObjectID]*domain.WorkoutPlan
	phases    map[primitive.ObjectID]*domain.PlanPhase
	sessions  map[primitive.ObjectID]*domain.PlanSession
	exercises map[primitive.ObjectID]*domain.PlanExercise
	users     map[primitive.ObjectID]*domain.User
	library   map[primitive.ObjectID]*domain.Exercise
}

func newMemStore() *memStore {
	return &memStore{
		plans:     make(map[primitive.ObjectID]*domain.WorkoutPlan),
		phases:    make(map[primitive.ObjectID]*domain.PlanPhase),
		sessions:  make(map[primitive.ObjectID]*domain.PlanSession),
		exercises: make(map[primitive.ObjectID]*domain.PlanExercise),
		users:     make(map[primitive.ObjectID]*domain.User),
		library:   make(map[primitive.ObjectID]*domain.Exercise),
	}
}

type memTxRunner struct{}

func (memTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return fn(ctx)
}

// --- WorkoutPlanRepository ---

type fakePlanRepo struct{ s *memStore }

func (r *fakePlanRepo) Create(ctx context.Context, plan *domain.WorkoutPlan) (primitive.ObjectID, error) {
	cp := *plan
	if cp.ID.IsZero() {
		cp.ID = primitive.NewObjectID()
	} else if _, exists := r.s.plans[cp.ID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicateKey
	}
	now := time.Now().UTC()
	cp.CreatedAt = now
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}
	r.s.plans[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakePlanRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutPlan, error) {
	p, ok := r.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePlanRepo) GetByClientAndTrainerID(ctx context.Context, clientID, trainerID primitive.ObjectID) ([]domain.WorkoutPlan, error) {
	var out []domain.WorkoutPlan
	for _, p := range r.s.plans {
		if p.ClientID == clientID && p.TrainerID == trainerID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakePlanRepo) UpdateMeta(ctx context.Context, id primitive.ObjectID, fields map[string]any) error {
	p, ok := r.s.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			p.Name = v.(string)
		case "description":
			p.Description = v.(string)
		case "isActive":
			p.IsActive = v.(bool)
		case "updatedAt":
			p.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

func (r *fakePlanRepo) UpdateTimestamp(ctx context.Context, id primitive.ObjectID, updatedAt time.Time) error {
	p, ok := r.s.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = updatedAt
	return nil
}

// --- PlanPhaseRepository ---

type fakePhaseRepo struct{ s *memStore }

func (r *fakePhaseRepo) Create(ctx context.Context, phase *domain.PlanPhase) (primitive.ObjectID, error) {
	for _, p := range r.s.phases {
		if p.PlanID == phase.PlanID && p.Sequence == phase.Sequence {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	cp := *phase
	if cp.ID.IsZero() {
		cp.ID = primitive.NewObjectID()
	} else if _, exists := r.s.phases[cp.ID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicateKey
	}
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.s.phases[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakePhaseRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanPhase, error) {
	p, ok := r.s.phases[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePhaseRepo) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanPhase, error) {
	var out []domain.PlanPhase
	for _, p := range r.s.phases {
		if p.PlanID == planID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *fakePhaseRepo) UpdateFields(ctx context.Context, id, planID primitive.ObjectID, fields map[string]any) error {
	p, ok := r.s.phases[id]
	if !ok || p.PlanID != planID {
		return repository.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			p.Name = v.(string)
		case "sequence":
			seq := v.(int)
			for _, other := range r.s.phases {
				if other.ID != p.ID && other.PlanID == p.PlanID && other.Sequence == seq {
					return repository.ErrDuplicateKey
				}
			}
			p.Sequence = seq
		case "isActive":
			p.IsActive = v.(bool)
		}
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakePhaseRepo) Delete(ctx context.Context, id, planID primitive.ObjectID) error {
	p, ok := r.s.phases[id]
	if !ok || p.PlanID != planID {
		return repository.ErrNotFound
	}
	delete(r.s.phases, id)
	return nil
}

// --- PlanSessionRepository ---

type fakeSessionRepo struct{ s *memStore }

func (r *fakeSessionRepo) Create(ctx context.Context, session *domain.PlanSession) (primitive.ObjectID, error) {
	for _, sess := range r.s.sessions {
		if sess.PhaseID == session.PhaseID && sess.Sequence == session.Sequence {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	cp := *session
	if cp.ID.IsZero() {
		cp.ID = primitive.NewObjectID()
	} else if _, exists := r.s.sessions[cp.ID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicateKey
	}
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.s.sessions[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanSession, error) {
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r *fakeSessionRepo) GetByPhaseID(ctx context.Context, phaseID primitive.ObjectID) ([]domain.PlanSession, error) {
	var out []domain.PlanSession
	for _, sess := range r.s.sessions {
		if sess.PhaseID == phaseID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *fakeSessionRepo) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanSession, error) {
	var out []domain.PlanSession
	for _, sess := range r.s.sessions {
		if sess.PlanID == planID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *fakeSessionRepo) UpdateFields(ctx context.Context, id, planID primitive.ObjectID, fields map[string]any) error {
	sess, ok := r.s.sessions[id]
	if !ok || sess.PlanID != planID {
		return repository.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			sess.Name = v.(string)
		case "sequence":
			seq := v.(int)
			for _, other := range r.s.sessions {
				if other.ID != sess.ID && other.PhaseID == sess.PhaseID && other.Sequence == seq {
					return repository.ErrDuplicateKey
				}
			}
			sess.Sequence = seq
		case "durationMinutes":
			sess.DurationMinutes = v.(int)
		case "phaseId":
			sess.PhaseID = v.(primitive.ObjectID)
		}
	}
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id, planID primitive.ObjectID) error {
	sess, ok := r.s.sessions[id]
	if !ok || sess.PlanID != planID {
		return repository.ErrNotFound
	}
	delete(r.s.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteByPhaseID(ctx context.Context, phaseID, planID primitive.ObjectID) error {
	for id, sess := range r.s.sessions {
		if sess.PhaseID == phaseID && sess.PlanID == planID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

// --- PlanExerciseRepository ---

type fakePlanExerciseRepo struct{ s *memStore }

func (r *fakePlanExerciseRepo) Create(ctx context.Context, exercise *domain.PlanExercise) (primitive.ObjectID, error) {
	cp := *exercise
	if cp.ID.IsZero() {
		cp.ID = primitive.NewObjectID()
	} else if _, exists := r.s.exercises[cp.ID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicateKey
	}
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.s.exercises[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakePlanExerciseRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanExercise, error) {
	ex, ok := r.s.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ex
	cp.Sets = append([]domain.ExerciseSet(nil), ex.Sets...)
	return &cp, nil
}

func (r *fakePlanExerciseRepo) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.PlanExercise, error) {
	var out []domain.PlanExercise
	for _, ex := range r.s.exercises {
		if ex.SessionID == sessionID {
			out = append(out, *ex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderMarker < out[j].OrderMarker })
	return out, nil
}

func (r *fakePlanExerciseRepo) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanExercise, error) {
	var out []domain.PlanExercise
	for _, ex := range r.s.exercises {
		if ex.PlanID == planID {
			out = append(out, *ex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderMarker < out[j].OrderMarker })
	return out, nil
}

func (r *fakePlanExerciseRepo) UpdateFields(ctx context.Context, id, planID primitive.ObjectID, fields map[string]any) error {
	ex, ok := r.s.exercises[id]
	if !ok || ex.PlanID != planID {
		return repository.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "orderMarker":
			ex.OrderMarker = v.(string)
		case "targetArea":
			ex.TargetArea = v.(string)
		case "targetMotion":
			ex.TargetMotion = v.(string)
		case "setRange":
			ex.SetRange = v.(string)
		case "repRange":
			ex.RepRange = v.(string)
		case "restRange":
			ex.RestRange = v.(string)
		case "tempo":
			ex.Tempo = v.(string)
		case "customization":
			ex.Customization = v.(string)
		case "exerciseId":
			ex.ExerciseID = v.(primitive.ObjectID)
		case "sessionId":
			ex.SessionID = v.(primitive.ObjectID)
		case "sets":
			ex.Sets = v.([]domain.ExerciseSet)
		}
	}
	ex.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakePlanExerciseRepo) Delete(ctx context.Context, id, planID primitive.ObjectID) error {
	ex, ok := r.s.exercises[id]
	if !ok || ex.PlanID != planID {
		return repository.ErrNotFound
	}
	delete(r.s.exercises, id)
	return nil
}

func (r *fakePlanExerciseRepo) DeleteBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID, planID primitive.ObjectID) error {
	for id, ex := range r.s.exercises {
		if ex.PlanID != planID {
			continue
		}
		for _, sid := range sessionIDs {
			if ex.SessionID == sid {
				delete(r.s.exercises, id)
				break
			}
		}
	}
	return nil
}

func (r *fakePlanExerciseRepo) AddSet(ctx context.Context, exerciseID, planID primitive.ObjectID, set domain.ExerciseSet) error {
	ex, ok := r.s.exercises[exerciseID]
	if !ok || ex.PlanID != planID {
		return repository.ErrNotFound
	}
	ex.Sets = append(ex.Sets, set)
	ex.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakePlanExerciseRepo) UpdateSet(ctx context.Context, exerciseID, planID primitive.ObjectID, setID string, fields map[string]any) error {
	ex, ok := r.s.exercises[exerciseID]
	if !ok || ex.PlanID != planID {
		return repository.ErrNotFound
	}
	for i := range ex.Sets {
		if ex.Sets[i].SetID != setID {
			continue
		}
		for k, v := range fields {
			switch k {
			case "setNumber":
				ex.Sets[i].SetNumber = v.(int)
			case "reps":
				ex.Sets[i].Reps = v.(int)
			case "weight":
				ex.Sets[i].Weight = v.(float64)
			case "restSeconds":
				ex.Sets[i].RestSeconds = v.(int)
			case "notes":
				ex.Sets[i].Notes = v.(string)
			}
		}
		break
	}
	// A missing set is a silent no-op, like the arrayFilters update.
	ex.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakePlanExerciseRepo) RemoveSet(ctx context.Context, exerciseID, planID primitive.ObjectID, setID string) error {
	ex, ok := r.s.exercises[exerciseID]
	if !ok || ex.PlanID != planID {
		return repository.ErrNotFound
	}
	kept := ex.Sets[:0]
	for _, set := range ex.Sets {
		if set.SetID != setID {
			kept = append(kept, set)
		}
	}
	ex.Sets = kept
	ex.UpdatedAt = time.Now().UTC()
	return nil
}

// --- UserRepository ---

type fakeUserRepo struct{ s *memStore }

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	cp := *user
	if cp.ID.IsZero() {
		cp.ID = primitive.NewObjectID()
	}
	r.s.users[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) AddClientIDToTrainer(ctx context.Context, trainerID, clientID primitive.ObjectID) error {
	t, ok := r.s.users[trainerID]
	if !ok {
		return repository.ErrNotFound
	}
	t.ClientIDs = append(t.ClientIDs, clientID)
	return nil
}

func (r *fakeUserRepo) GetClientsByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.s.users {
		if u.TrainerID != nil && *u.TrainerID == trainerID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) SetTrainerForClient(ctx context.Context, clientID, trainerID primitive.ObjectID) error {
	c, ok := r.s.users[clientID]
	if !ok {
		return repository.ErrNotFound
	}
	c.TrainerID = &trainerID
	return nil
}

// --- ExerciseRepository (library) ---

type fakeLibraryRepo struct{ s *memStore }

func (r *fakeLibraryRepo) Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	cp := *exercise
	if cp.ID.IsZero() {
		cp.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.s.library[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakeLibraryRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	ex, ok := r.s.library[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ex
	return &cp, nil
}

func (r *fakeLibraryRepo) GetByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Exercise, error) {
	var out []domain.Exercise
	for _, ex := range r.s.library {
		if ex.TrainerID == trainerID {
			out = append(out, *ex)
		}
	}
	return out, nil
}

func (r *fakeLibraryRepo) Update(ctx context.Context, exercise *domain.Exercise) error {
	if _, ok := r.s.library[exercise.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *exercise
	cp.UpdatedAt = time.Now().UTC()
	r.s.library[exercise.ID] = &cp
	return nil
}

func (r *fakeLibraryRepo) Delete(ctx context.Context, id primitive.ObjectID, trainerID primitive.ObjectID) error {
	ex, ok := r.s.library[id]
	if !ok || ex.TrainerID != trainerID {
		return repository.ErrNotFound
	}
	delete(r.s.library, id)
	return nil
}

var (
	_ repository.TxRunner               = memTxRunner{}
	_ repository.WorkoutPlanRepository  = (*fakePlanRepo)(nil)
	_ repository.PlanPhaseRepository    = (*fakePhaseRepo)(nil)
	_ repository.PlanSessionRepository  = (*fakeSessionRepo)(nil)
	_ repository.PlanExerciseRepository = (*fakePlanExerciseRepo)(nil)
	_ repository.UserRepository         = (*fakeUserRepo)(nil)
	_ repository.ExerciseRepository     = (*fakeLibraryRepo)(nil)
)

func newSyncFixture() (*memStore, SyncService) {
	store := newMemStore()
	svc := NewSyncService(
		memTxRunner{},
		&fakePlanRepo{s: store},
		&fakePhaseRepo{s: store},
		&fakeSessionRepo{s: store},
		&fakePlanExerciseRepo{s: store},
	)
	return store, svc
}

func newPlanFixture() (*memStore, PlanService) {
	store := newMemStore()
	svc := NewPlanService(
		&fakePlanRepo{s: store},
		&fakePhaseRepo{s: store},
		&fakeSessionRepo{s: store},
		&fakePlanExerciseRepo{s: store},
		&fakeLibraryRepo{s: store},
		&fakeUserRepo{s: store},
	)
	return store, svc
}
