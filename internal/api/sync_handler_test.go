package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"alcyxob/plansync/internal/domain"
	"alcyxob/plansync/internal/jobs"
	"alcyxob/plansync/internal/service"
	"alcyxob/plansync/pkg/planchange"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Fakes ---

type fakeSyncService struct {
	checkFn func(planID primitive.ObjectID, known *time.Time) (*service.VersionCheck, error)
	applyFn func(actorID, planID primitive.ObjectID, expected *time.Time, ch planchange.Changes) (*planchange.ApplyResult, error)
	opFn    func(actorID primitive.ObjectID, op service.SetOperation) (*planchange.ApplyResult, error)
}

func (f *fakeSyncService) CheckPlanVersion(_ context.Context, planID primitive.ObjectID, known *time.Time) (*service.VersionCheck, error) {
	if f.checkFn == nil {
		return nil, errors.New("checkFn not set")
	}
	return f.checkFn(planID, known)
}

func (f *fakeSyncService) ApplyChanges(_ context.Context, actorID, planID primitive.ObjectID, expected *time.Time, ch planchange.Changes) (*planchange.ApplyResult, error) {
	if f.applyFn == nil {
		return nil, errors.New("applyFn not set")
	}
	return f.applyFn(actorID, planID, expected, ch)
}

func (f *fakeSyncService) ApplyOperation(_ context.Context, actorID primitive.ObjectID, op service.SetOperation) (*planchange.ApplyResult, error) {
	if f.opFn == nil {
		return nil, errors.New("opFn not set")
	}
	return f.opFn(actorID, op)
}

type enqueuedJob struct {
	queue       string
	messageType string
	payload     []byte
	meta        map[string]string
	id          primitive.ObjectID
}

// fakeJobQueue records enqueues and serves lookups from a fixed job map.
type fakeJobQueue struct {
	mu         sync.Mutex
	enqueued   []enqueuedJob
	enqueueErr error
	jobs       map[primitive.ObjectID]*jobs.Job
	dead       []jobs.Job
	requeued   []primitive.ObjectID
}

func (q *fakeJobQueue) Enqueue(_ context.Context, queue, messageType string, payload any, meta map[string]string) (primitive.ObjectID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return primitive.NilObjectID, q.enqueueErr
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return primitive.NilObjectID, err
	}
	job := enqueuedJob{queue: queue, messageType: messageType, payload: body, meta: meta, id: primitive.NewObjectID()}
	q.enqueued = append(q.enqueued, job)
	return job.id, nil
}

func (q *fakeJobQueue) Dequeue(context.Context, string, int) ([]jobs.Job, error) { return nil, nil }

func (q *fakeJobQueue) Get(_ context.Context, id primitive.ObjectID) (*jobs.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, jobs.ErrJobNotFound
	}
	return job, nil
}

func (q *fakeJobQueue) Complete(context.Context, primitive.ObjectID, *jobs.JobResult) error {
	return nil
}

func (q *fakeJobQueue) Fail(context.Context, primitive.ObjectID, string, time.Duration) (bool, error) {
	return false, nil
}

func (q *fakeJobQueue) Bury(context.Context, primitive.ObjectID, string) error { return nil }

func (q *fakeJobQueue) Depth(context.Context, string) (int64, error) { return 0, nil }

func (q *fakeJobQueue) ListDead(_ context.Context, _ string, limit int) ([]jobs.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit > len(q.dead) {
		limit = len(q.dead)
	}
	return append([]jobs.Job(nil), q.dead[:limit]...), nil
}

func (q *fakeJobQueue) RequeueDead(_ context.Context, id primitive.ObjectID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, d := range q.dead {
		if d.ID == id {
			q.requeued = append(q.requeued, id)
			return nil
		}
	}
	return jobs.ErrJobNotFound
}

var _ jobs.Queue = (*fakeJobQueue)(nil)

// fakeArchive records discards and serves canned download URLs.
type fakeArchive struct {
	mu        sync.Mutex
	urls      map[primitive.ObjectID]string
	urlErr    error
	discarded []primitive.ObjectID
}

func (a *fakeArchive) Archive(context.Context, jobs.Job, string) error { return nil }

func (a *fakeArchive) DownloadURL(_ context.Context, job jobs.Job, _ time.Duration) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.urlErr != nil {
		return "", a.urlErr
	}
	return a.urls[job.ID], nil
}

func (a *fakeArchive) Discard(_ context.Context, job jobs.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discarded = append(a.discarded, job.ID)
	return nil
}

var _ jobs.DeadLetterArchive = (*fakeArchive)(nil)

// newSyncRouter mounts the sync routes behind a stub auth context.
func newSyncRouter(svc service.SyncService, q jobs.Queue, actor primitive.ObjectID) *gin.Engine {
	return newSyncRouterWithArchive(svc, q, &fakeArchive{}, actor)
}

func newSyncRouterWithArchive(svc service.SyncService, q jobs.Queue, archive jobs.DeadLetterArchive, actor primitive.ObjectID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserIDKey, actor.Hex())
		c.Set(ContextUserRoleKey, domain.RoleTrainer)
	})
	h := NewSyncHandler(svc, q, archive)
	r.GET("/plans/:planId/version", h.CheckPlanVersion)
	r.POST("/plans/:planId/changes", h.ApplyChanges)
	r.POST("/plans/:planId/changes/async", h.EnqueueChanges)
	r.GET("/sync/jobs/:jobId", h.GetJob)
	r.POST("/sync/operations", h.ApplySetOperation)
	r.GET("/admin/sync/dead", h.ListDeadJobs)
	r.GET("/admin/sync/dead/:jobId/archive", h.GetDeadJobArchive)
	r.POST("/admin/sync/dead/:jobId/requeue", h.RequeueDeadJob)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func getPath(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// --- Version check ---

func TestCheckPlanVersionEndpoint(t *testing.T) {
	serverStamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var gotKnown *time.Time
	svc := &fakeSyncService{
		checkFn: func(_ primitive.ObjectID, known *time.Time) (*service.VersionCheck, error) {
			gotKnown = known
			return &service.VersionCheck{Status: service.VersionConflict, ServerUpdatedAt: serverStamp}, nil
		},
	}
	r := newSyncRouter(svc, &fakeJobQueue{}, primitive.NewObjectID())

	planID := primitive.NewObjectID().Hex()
	known := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := getPath(r, "/plans/"+planID+"/version?knownUpdatedAt="+known.Format(time.RFC3339))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotKnown)
	require.True(t, gotKnown.Equal(known))

	var check service.VersionCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	require.Equal(t, service.VersionConflict, check.Status)
	require.True(t, check.ServerUpdatedAt.Equal(serverStamp))
}

func TestCheckPlanVersionRejectsBadInput(t *testing.T) {
	svc := &fakeSyncService{
		checkFn: func(primitive.ObjectID, *time.Time) (*service.VersionCheck, error) {
			return &service.VersionCheck{Status: service.VersionOK}, nil
		},
	}
	r := newSyncRouter(svc, &fakeJobQueue{}, primitive.NewObjectID())

	rec := getPath(r, "/plans/not-a-hex-id/version")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = getPath(r, "/plans/"+primitive.NewObjectID().Hex()+"/version?knownUpdatedAt=yesterday")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Inline apply ---

func TestApplyChangesEndpointSuccess(t *testing.T) {
	actor := primitive.NewObjectID()
	planID := primitive.NewObjectID()
	expected := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	newStamp := expected.Add(time.Minute)

	var gotActor, gotPlan primitive.ObjectID
	var gotExpected *time.Time
	svc := &fakeSyncService{
		applyFn: func(actorID, pID primitive.ObjectID, exp *time.Time, ch planchange.Changes) (*planchange.ApplyResult, error) {
			gotActor, gotPlan, gotExpected = actorID, pID, exp
			return &planchange.ApplyResult{
				Status:       planchange.StatusSuccess,
				NewUpdatedAt: newStamp,
				CreatedIDs:   map[string]string{"ph-1": primitive.NewObjectID().Hex()},
			}, nil
		},
	}
	r := newSyncRouter(svc, &fakeJobQueue{}, actor)

	rec := postJSON(t, r, "/plans/"+planID.Hex()+"/changes", ApplyChangesRequest{
		ExpectedUpdatedAt: &expected,
		Changes: planchange.Changes{
			Created: planchange.CreatedSet{Phases: []planchange.PhaseDraft{{ID: "ph-1", Name: "Base", Sequence: 1}}},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, actor, gotActor)
	require.Equal(t, planID, gotPlan)
	require.NotNil(t, gotExpected)
	require.True(t, gotExpected.Equal(expected))

	var result planchange.ApplyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, planchange.StatusSuccess, result.Status)
	require.Contains(t, result.CreatedIDs, "ph-1")
}

func TestApplyChangesEndpointConflict(t *testing.T) {
	serverStamp := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	svc := &fakeSyncService{
		applyFn: func(_, _ primitive.ObjectID, _ *time.Time, _ planchange.Changes) (*planchange.ApplyResult, error) {
			return &planchange.ApplyResult{Status: planchange.StatusConflict, ServerUpdatedAt: serverStamp}, nil
		},
	}
	r := newSyncRouter(svc, &fakeJobQueue{}, primitive.NewObjectID())

	rec := postJSON(t, r, "/plans/"+primitive.NewObjectID().Hex()+"/changes", ApplyChangesRequest{
		Changes: planchange.Changes{Deleted: planchange.DeletedSet{Phases: []string{primitive.NewObjectID().Hex()}}},
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	var result planchange.ApplyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, planchange.StatusConflict, result.Status)
	require.True(t, result.ServerUpdatedAt.Equal(serverStamp))
}

func TestApplyChangesEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid diff", planchange.ErrInvalidChanges, http.StatusBadRequest},
		{"unresolved parent", service.ErrUnresolvedRef, http.StatusBadRequest},
		{"plan missing", service.ErrPlanNotFound, http.StatusNotFound},
		{"not the owner", service.ErrPlanAccessDenied, http.StatusForbidden},
		{"sequence taken", service.ErrDuplicateSequence, http.StatusConflict},
		{"backend failure", errors.New("socket closed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeSyncService{
				applyFn: func(_, _ primitive.ObjectID, _ *time.Time, _ planchange.Changes) (*planchange.ApplyResult, error) {
					return nil, tc.err
				},
			}
			r := newSyncRouter(svc, &fakeJobQueue{}, primitive.NewObjectID())
			rec := postJSON(t, r, "/plans/"+primitive.NewObjectID().Hex()+"/changes", ApplyChangesRequest{
				Changes: planchange.Changes{Deleted: planchange.DeletedSet{Sessions: []string{primitive.NewObjectID().Hex()}}},
			})
			require.Equal(t, tc.code, rec.Code)
		})
	}
}

// --- Async apply ---

func TestEnqueueChangesShipsFullDiffAsPlanSave(t *testing.T) {
	actor := primitive.NewObjectID()
	planID := primitive.NewObjectID()
	q := &fakeJobQueue{}
	r := newSyncRouter(&fakeSyncService{}, q, actor)

	rec := postJSON(t, r, "/plans/"+planID.Hex()+"/changes/async", ApplyChangesRequest{
		Changes: planchange.Changes{
			Created: planchange.CreatedSet{Phases: []planchange.PhaseDraft{
				{ID: "ph-1", Name: "Base", Sequence: 1},
				{ID: "ph-2", Name: "Peak", Sequence: 2},
			}},
		},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.enqueued, 1)
	job := q.enqueued[0]
	require.Equal(t, jobs.QueuePlanSync, job.queue)
	require.Equal(t, jobs.TypePlanSave, job.messageType)
	require.Nil(t, job.meta)

	var payload jobs.PlanSavePayload
	require.NoError(t, json.Unmarshal(job.payload, &payload))
	require.Equal(t, planID.Hex(), payload.PlanID)
	require.Equal(t, actor.Hex(), payload.ActorID)
	require.Len(t, payload.Changes.Created.Phases, 2)

	var ack EnqueuedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	require.Equal(t, job.id.Hex(), ack.JobID)
}

func TestEnqueueChangesNarrowsSingleEntityDiff(t *testing.T) {
	actor := primitive.NewObjectID()
	planID := primitive.NewObjectID()
	q := &fakeJobQueue{}
	r := newSyncRouter(&fakeSyncService{}, q, actor)

	rec := postJSON(t, r, "/plans/"+planID.Hex()+"/changes/async", ApplyChangesRequest{
		Changes: planchange.Changes{
			Created: planchange.CreatedSet{Sessions: []planchange.SessionDraft{
				{ID: "se-1", PhaseID: primitive.NewObjectID().Hex(), Name: "Day 1", Sequence: 1},
			}},
		},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.enqueued, 1)
	job := q.enqueued[0]
	require.Equal(t, jobs.TypeSessionCreate, job.messageType)
	require.Equal(t, map[string]string{jobs.MetaDependsOn: jobs.DependsOnPlan}, job.meta)

	var payload jobs.EntityPayload
	require.NoError(t, json.Unmarshal(job.payload, &payload))
	require.Equal(t, planID.Hex(), payload.PlanID)
	require.Equal(t, actor.Hex(), payload.ActorID)

	var draft planchange.SessionDraft
	require.NoError(t, json.Unmarshal(payload.Entity, &draft))
	require.Equal(t, "se-1", draft.ID)
	require.Equal(t, "Day 1", draft.Name)
}

func TestEnqueueChangesKeepsVersionedDiffWide(t *testing.T) {
	// A version expectation only survives on the plan.save payload, so even a
	// one-entity diff must not be narrowed when one is present.
	expected := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeJobQueue{}
	r := newSyncRouter(&fakeSyncService{}, q, primitive.NewObjectID())

	rec := postJSON(t, r, "/plans/"+primitive.NewObjectID().Hex()+"/changes/async", ApplyChangesRequest{
		ExpectedUpdatedAt: &expected,
		Changes: planchange.Changes{
			Updated: planchange.UpdatedSet{Phases: []planchange.Update{
				{ID: primitive.NewObjectID().Hex(), Fields: map[string]any{"name": "Deload"}},
			}},
		},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.enqueued, 1)
	require.Equal(t, jobs.TypePlanSave, q.enqueued[0].messageType)

	var payload jobs.PlanSavePayload
	require.NoError(t, json.Unmarshal(q.enqueued[0].payload, &payload))
	require.NotNil(t, payload.ExpectedUpdatedAt)
	require.True(t, payload.ExpectedUpdatedAt.Equal(expected))
}

func TestEnqueueChangesDeleteBecomesEntityJob(t *testing.T) {
	q := &fakeJobQueue{}
	r := newSyncRouter(&fakeSyncService{}, q, primitive.NewObjectID())
	target := primitive.NewObjectID().Hex()

	rec := postJSON(t, r, "/plans/"+primitive.NewObjectID().Hex()+"/changes/async", ApplyChangesRequest{
		Changes: planchange.Changes{Deleted: planchange.DeletedSet{Exercises: []string{target}}},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.enqueued, 1)
	require.Equal(t, jobs.TypeExerciseDelete, q.enqueued[0].messageType)

	var payload jobs.EntityPayload
	require.NoError(t, json.Unmarshal(q.enqueued[0].payload, &payload))
	require.Equal(t, target, payload.EntityID)
}

func TestEnqueueChangesRejectsEmptyDiff(t *testing.T) {
	q := &fakeJobQueue{}
	r := newSyncRouter(&fakeSyncService{}, q, primitive.NewObjectID())

	rec := postJSON(t, r, "/plans/"+primitive.NewObjectID().Hex()+"/changes/async", ApplyChangesRequest{})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, q.enqueued)
}

// --- Job status ---

func TestGetJobEndpoint(t *testing.T) {
	jobID := primitive.NewObjectID()
	done := time.Now().UTC().Truncate(time.Millisecond)
	q := &fakeJobQueue{jobs: map[primitive.ObjectID]*jobs.Job{
		jobID: {
			ID:          jobID,
			Queue:       jobs.QueuePlanSync,
			MessageType: jobs.TypePlanSave,
			Status:      jobs.StatusCompleted,
			Attempts:    1,
			CompletedAt: &done,
			Result:      &jobs.JobResult{Success: true, ProcessedAt: done},
		},
	}}
	r := newSyncRouter(&fakeSyncService{}, q, primitive.NewObjectID())

	rec := getPath(r, "/sync/jobs/"+jobID.Hex())
	require.Equal(t, http.StatusOK, rec.Code)

	var got jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, jobs.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	require.True(t, got.Result.Success)

	rec = getPath(r, "/sync/jobs/"+primitive.NewObjectID().Hex())
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Set operations ---

func TestApplySetOperationEndpoint(t *testing.T) {
	actor := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()
	var gotOp service.SetOperation
	svc := &fakeSyncService{
		opFn: func(actorID primitive.ObjectID, op service.SetOperation) (*planchange.ApplyResult, error) {
			require.Equal(t, actor, actorID)
			gotOp = op
			return &planchange.ApplyResult{Status: planchange.StatusSuccess, NewUpdatedAt: time.Now().UTC()}, nil
		},
	}
	r := newSyncRouter(svc, &fakeJobQueue{}, actor)

	rec := postJSON(t, r, "/sync/operations", SetOperationRequest{
		Type:       service.OpUpdate,
		ExerciseID: exerciseID.Hex(),
		SetID:      "set-abc",
		Data:       map[string]any{"reps": 10},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, service.OpUpdate, gotOp.Type)
	require.Equal(t, exerciseID, gotOp.ExerciseID)
	require.Equal(t, "set-abc", gotOp.SetID)
}

func TestApplySetOperationGoneExercise(t *testing.T) {
	svc := &fakeSyncService{
		opFn: func(primitive.ObjectID, service.SetOperation) (*planchange.ApplyResult, error) {
			return nil, service.ErrExerciseGone
		},
	}
	r := newSyncRouter(svc, &fakeJobQueue{}, primitive.NewObjectID())

	rec := postJSON(t, r, "/sync/operations", SetOperationRequest{
		Type:       service.OpDelete,
		ExerciseID: primitive.NewObjectID().Hex(),
		SetID:      "set-abc",
	})

	require.Equal(t, http.StatusGone, rec.Code)
}

func TestApplySetOperationRejectsBadRequests(t *testing.T) {
	svc := &fakeSyncService{
		opFn: func(primitive.ObjectID, service.SetOperation) (*planchange.ApplyResult, error) {
			return nil, service.ErrInvalidOperation
		},
	}
	r := newSyncRouter(svc, &fakeJobQueue{}, primitive.NewObjectID())

	// Unknown type fails binding before the service sees it.
	rec := postJSON(t, r, "/sync/operations", map[string]any{
		"type": "merge", "exerciseId": primitive.NewObjectID().Hex(), "setId": "s",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, r, "/sync/operations", map[string]any{"type": "update", "setId": "s"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, r, "/sync/operations", SetOperationRequest{
		Type: service.OpUpdate, ExerciseID: "wat", SetID: "s",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The service's own validation also lands on 400.
	rec = postJSON(t, r, "/sync/operations", SetOperationRequest{
		Type: service.OpUpdate, ExerciseID: primitive.NewObjectID().Hex(),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Dead letters ---

func TestDeadLetterEndpoints(t *testing.T) {
	deadID := primitive.NewObjectID()
	deadJob := jobs.Job{ID: deadID, Queue: jobs.QueuePlanSync, MessageType: jobs.TypePlanSave, Status: jobs.StatusDead, LastError: "duplicate sequence"}
	q := &fakeJobQueue{
		dead: []jobs.Job{deadJob},
		jobs: map[primitive.ObjectID]*jobs.Job{deadID: &deadJob},
	}
	archive := &fakeArchive{}
	r := newSyncRouterWithArchive(&fakeSyncService{}, q, archive, primitive.NewObjectID())

	rec := getPath(r, "/admin/sync/dead")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, deadID, listed[0].ID)

	rec = getPath(r, "/admin/sync/dead?limit=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, r, "/admin/sync/dead/"+deadID.Hex()+"/requeue", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []primitive.ObjectID{deadID}, q.requeued)
	// The archived copy goes away with the requeue.
	require.Equal(t, []primitive.ObjectID{deadID}, archive.discarded)

	rec = postJSON(t, r, "/admin/sync/dead/"+primitive.NewObjectID().Hex()+"/requeue", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeadJobArchiveEndpoint(t *testing.T) {
	deadID := primitive.NewObjectID()
	liveID := primitive.NewObjectID()
	q := &fakeJobQueue{jobs: map[primitive.ObjectID]*jobs.Job{
		deadID: {ID: deadID, Queue: jobs.QueuePlanSync, Status: jobs.StatusDead},
		liveID: {ID: liveID, Queue: jobs.QueuePlanSync, Status: jobs.StatusPending},
	}}
	archive := &fakeArchive{urls: map[primitive.ObjectID]string{
		deadID: "https://archive.example.com/dead-letters/" + deadID.Hex() + ".json?sig=abc",
	}}
	r := newSyncRouterWithArchive(&fakeSyncService{}, q, archive, primitive.NewObjectID())

	rec := getPath(r, "/admin/sync/dead/"+deadID.Hex()+"/archive")
	require.Equal(t, http.StatusOK, rec.Code)
	var got DeadJobArchiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Contains(t, got.URL, deadID.Hex())

	// Only dead jobs have archived documents.
	rec = getPath(r, "/admin/sync/dead/"+liveID.Hex()+"/archive")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = getPath(r, "/admin/sync/dead/"+primitive.NewObjectID().Hex()+"/archive")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = getPath(r, "/admin/sync/dead/not-a-hex/archive")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
