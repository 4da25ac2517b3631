package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"alcyxob/plansync/internal/service"
	"alcyxob/plansync/pkg/planchange"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeApplier scripts ApplyChanges per call and records the diffs it saw.
type fakeApplier struct {
	mu    sync.Mutex
	calls int
	seen  []planchange.Changes
	fn    func(call int, actorID, planID primitive.ObjectID, expected *time.Time, ch planchange.Changes) (*planchange.ApplyResult, error)
}

func (f *fakeApplier) ApplyChanges(ctx context.Context, actorID, planID primitive.ObjectID, expected *time.Time, ch planchange.Changes) (*planchange.ApplyResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.seen = append(f.seen, ch)
	fn := f.fn
	f.mu.Unlock()
	return fn(call, actorID, planID, expected, ch)
}

func (f *fakeApplier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func succeedingApplier() *fakeApplier {
	return &fakeApplier{
		fn: func(int, primitive.ObjectID, primitive.ObjectID, *time.Time, planchange.Changes) (*planchange.ApplyResult, error) {
			return &planchange.ApplyResult{
				Status:       planchange.StatusSuccess,
				NewUpdatedAt: time.Now().UTC(),
				CreatedIDs:   map[string]string{"ph-1": primitive.NewObjectID().Hex()},
			}, nil
		},
	}
}

func erroringApplier(err error) *fakeApplier {
	return &fakeApplier{
		fn: func(int, primitive.ObjectID, primitive.ObjectID, *time.Time, planchange.Changes) (*planchange.ApplyResult, error) {
			return nil, err
		},
	}
}

func makeJob(t *testing.T, messageType string, payload any, meta map[string]string) Job {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return Job{
		ID:          primitive.NewObjectID(),
		Queue:       QueuePlanSync,
		MessageType: messageType,
		Payload:     body,
		Meta:        meta,
		Status:      StatusPending,
		Attempts:    1,
	}
}

func planSavePayload() PlanSavePayload {
	return PlanSavePayload{
		PlanID:  primitive.NewObjectID().Hex(),
		ActorID: primitive.NewObjectID().Hex(),
		Changes: planchange.Changes{
			Created: planchange.CreatedSet{
				Phases: []planchange.PhaseDraft{{ID: "ph-1", Name: "Base", Sequence: 1}},
			},
		},
	}
}

func TestProcessPlanSaveSuccess(t *testing.T) {
	applier := succeedingApplier()
	p := NewProcessor(applier, ProcessorConfig{})

	outcome := p.Process(context.Background(), makeJob(t, TypePlanSave, planSavePayload(), nil))
	require.NoError(t, outcome.Err)
	require.NotNil(t, outcome.Result)
	require.True(t, outcome.Result.Success)

	var data map[string]any
	require.NoError(t, json.Unmarshal(outcome.Result.Data, &data))
	require.Contains(t, data, "createdIds")
	require.Equal(t, 1, applier.callCount())
}

func TestProcessConflictIsFinalResult(t *testing.T) {
	serverStamp := time.Now().UTC()
	applier := &fakeApplier{
		fn: func(int, primitive.ObjectID, primitive.ObjectID, *time.Time, planchange.Changes) (*planchange.ApplyResult, error) {
			return &planchange.ApplyResult{Status: planchange.StatusConflict, ServerUpdatedAt: serverStamp}, nil
		},
	}
	p := NewProcessor(applier, ProcessorConfig{})

	outcome := p.Process(context.Background(), makeJob(t, TypePlanSave, planSavePayload(), nil))
	require.NoError(t, outcome.Err)
	require.NotNil(t, outcome.Result)
	require.False(t, outcome.Result.Success)
	require.Contains(t, outcome.Result.Message, "conflict")
}

func TestProcessDependencyNotReady(t *testing.T) {
	applier := erroringApplier(service.ErrPlanNotFound)
	p := NewProcessor(applier, ProcessorConfig{DependencyRetryDelay: 2 * time.Second})

	// Tagged job: the missing plan is ordering noise, retry shortly.
	tagged := makeJob(t, TypePhaseCreate, EntityPayload{
		PlanID:  primitive.NewObjectID().Hex(),
		ActorID: primitive.NewObjectID().Hex(),
		Entity:  json.RawMessage(`{"id":"ph-1","name":"Base","sequence":1}`),
	}, map[string]string{MetaDependsOn: DependsOnPlan})

	outcome := p.Process(context.Background(), tagged)
	require.ErrorIs(t, outcome.Err, ErrDependencyNotReady)
	require.False(t, outcome.Terminal)
	require.Equal(t, 2*time.Second, outcome.Delay)

	// Untagged job: a missing plan is a real, permanent failure.
	untagged := makeJob(t, TypePlanSave, planSavePayload(), nil)
	outcome = p.Process(context.Background(), untagged)
	require.ErrorIs(t, outcome.Err, service.ErrPlanNotFound)
	require.True(t, outcome.Terminal)
}

func TestProcessTerminalClassification(t *testing.T) {
	for _, cause := range []error{
		planchange.ErrInvalidChanges,
		service.ErrDuplicateSequence,
		service.ErrUnresolvedRef,
		service.ErrPlanAccessDenied,
		service.ErrExerciseGone,
	} {
		p := NewProcessor(erroringApplier(cause), ProcessorConfig{})
		outcome := p.Process(context.Background(), makeJob(t, TypePlanSave, planSavePayload(), nil))
		require.ErrorIs(t, outcome.Err, cause)
		require.True(t, outcome.Terminal, "expected %v to be terminal", cause)
	}
}

func TestProcessTransientErrorRetries(t *testing.T) {
	p := NewProcessor(erroringApplier(errors.New("connection reset by peer")), ProcessorConfig{})

	outcome := p.Process(context.Background(), makeJob(t, TypePlanSave, planSavePayload(), nil))
	require.Error(t, outcome.Err)
	require.False(t, outcome.Terminal)
	require.Zero(t, outcome.Delay)
}

func TestProcessBadPayload(t *testing.T) {
	p := NewProcessor(succeedingApplier(), ProcessorConfig{})

	job := Job{
		ID:          primitive.NewObjectID(),
		MessageType: TypePlanSave,
		Payload:     json.RawMessage(`{not json`),
	}
	outcome := p.Process(context.Background(), job)
	require.ErrorIs(t, outcome.Err, ErrBadPayload)
	require.True(t, outcome.Terminal)

	unknown := makeJob(t, "plan.rewind", planSavePayload(), nil)
	outcome = p.Process(context.Background(), unknown)
	require.ErrorIs(t, outcome.Err, ErrBadPayload)
	require.True(t, outcome.Terminal)
}

func TestEntityPayloadTranslation(t *testing.T) {
	applier := succeedingApplier()
	p := NewProcessor(applier, ProcessorConfig{})
	planID := primitive.NewObjectID().Hex()
	actorID := primitive.NewObjectID().Hex()

	t.Run("create carries a one-entry draft", func(t *testing.T) {
		job := makeJob(t, TypeSessionCreate, EntityPayload{
			PlanID:  planID,
			ActorID: actorID,
			Entity:  json.RawMessage(`{"id":"se-1","phaseId":"ph-1","name":"Push A","sequence":1}`),
		}, nil)
		outcome := p.Process(context.Background(), job)
		require.NoError(t, outcome.Err)

		seen := applier.seen[len(applier.seen)-1]
		require.Len(t, seen.Created.Sessions, 1)
		require.Equal(t, "se-1", seen.Created.Sessions[0].ID)
		require.Equal(t, "ph-1", seen.Created.Sessions[0].PhaseID)
	})

	t.Run("update carries id and fields", func(t *testing.T) {
		job := makeJob(t, TypeExerciseUpdate, EntityPayload{
			PlanID:   planID,
			ActorID:  actorID,
			EntityID: primitive.NewObjectID().Hex(),
			Fields:   map[string]any{"tempo": "3-1-1"},
		}, nil)
		outcome := p.Process(context.Background(), job)
		require.NoError(t, outcome.Err)

		seen := applier.seen[len(applier.seen)-1]
		require.Len(t, seen.Updated.Exercises, 1)
		require.Equal(t, "3-1-1", seen.Updated.Exercises[0].Fields["tempo"])
	})

	t.Run("delete carries just the id", func(t *testing.T) {
		target := primitive.NewObjectID().Hex()
		job := makeJob(t, TypePhaseDelete, EntityPayload{
			PlanID:   planID,
			ActorID:  actorID,
			EntityID: target,
		}, nil)
		outcome := p.Process(context.Background(), job)
		require.NoError(t, outcome.Err)

		seen := applier.seen[len(applier.seen)-1]
		require.Equal(t, []string{target}, seen.Deleted.Phases)
	})

	t.Run("update without target is terminal", func(t *testing.T) {
		job := makeJob(t, TypePhaseUpdate, EntityPayload{
			PlanID:  planID,
			ActorID: actorID,
			Fields:  map[string]any{"name": "x"},
		}, nil)
		outcome := p.Process(context.Background(), job)
		require.ErrorIs(t, outcome.Err, ErrBadPayload)
		require.True(t, outcome.Terminal)
	})
}
