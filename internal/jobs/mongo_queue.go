package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const jobCollection = "sync_jobs"

// MongoQueueConfig tunes the mongo-backed queue. Zero values pick defaults.
type MongoQueueConfig struct {
	VisibilityTimeout time.Duration // how long a claim hides a job
	MaxAttempts       int           // failures past this mark the job dead
	RetryBaseDelay    time.Duration // first retry delay, doubled per attempt
	MaxRetryDelay     time.Duration // backoff cap
	CompletedTTL      time.Duration // completed jobs purge after this
	DeadTTL           time.Duration // dead jobs stay longer for inspection
}

func (c MongoQueueConfig) withDefaults() MongoQueueConfig {
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 5 * time.Second
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 5 * time.Minute
	}
	if c.CompletedTTL <= 0 {
		c.CompletedTTL = 24 * time.Hour
	}
	if c.DeadTTL <= 0 {
		c.DeadTTL = 7 * 24 * time.Hour
	}
	return c
}

// mongoQueue implements Queue on a single jobs collection. Claims use
// FindOneAndUpdate so each job goes to exactly one consumer per visibility
// window.
type mongoQueue struct {
	collection *mongo.Collection
	cfg        MongoQueueConfig
}

// NewMongoQueue creates a Queue backed by the given mongo database.
func NewMongoQueue(db *mongo.Database, cfg MongoQueueConfig) Queue {
	return &mongoQueue{
		collection: db.Collection(jobCollection),
		cfg:        cfg.withDefaults(),
	}
}

func (q *mongoQueue) Enqueue(ctx context.Context, queue, messageType string, payload any, meta map[string]string) (primitive.ObjectID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("marshaling job payload: %w", err)
	}

	now := time.Now().UTC()
	job := Job{
		Queue:        queue,
		MessageType:  messageType,
		Payload:      body,
		Meta:         meta,
		Status:       StatusPending,
		EnqueuedAt:   now,
		VisibleAfter: now,
	}

	result, err := q.collection.InsertOne(ctx, job)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("enqueueing job: %w", err)
	}
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID to ObjectID")
	}
	return id, nil
}

// Dequeue claims up to limit due jobs, oldest first. Each claim bumps the
// attempt counter and pushes the visibility timeout, so a worker crash just
// lets the claim lapse back into the queue.
func (q *mongoQueue) Dequeue(ctx context.Context, queue string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 1
	}

	var claimed []Job
	for len(claimed) < limit {
		now := time.Now().UTC()
		filter := bson.M{
			"queue":        queue,
			"status":       StatusPending,
			"visibleAfter": bson.M{"$lte": now},
		}
		update := bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"visibleAfter": now.Add(q.cfg.VisibilityTimeout)},
		}
		opts := options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "enqueuedAt", Value: 1}}).
			SetReturnDocument(options.After)

		var job Job
		err := q.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				break
			}
			return nil, fmt.Errorf("claiming job: %w", err)
		}
		claimed = append(claimed, job)
	}
	return claimed, nil
}

func (q *mongoQueue) Get(ctx context.Context, id primitive.ObjectID) (*Job, error) {
	var job Job
	err := q.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return &job, nil
}

func (q *mongoQueue) Complete(ctx context.Context, id primitive.ObjectID, result *JobResult) error {
	now := time.Now().UTC()
	purge := now.Add(q.cfg.CompletedTTL)
	update := bson.M{"$set": bson.M{
		"status":      StatusCompleted,
		"result":      result,
		"completedAt": now,
		"purgeAfter":  purge,
	}}

	res, err := q.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (q *mongoQueue) Fail(ctx context.Context, id primitive.ObjectID, errMsg string, delay time.Duration) (bool, error) {
	// Only the claiming worker touches a claimed job, so read-then-update is
	// safe here.
	job, err := q.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if job.Attempts >= q.cfg.MaxAttempts {
		return true, q.Bury(ctx, id, errMsg)
	}

	if delay <= 0 {
		delay = q.cfg.RetryBaseDelay
		for i := 1; i < job.Attempts && delay < q.cfg.MaxRetryDelay; i++ {
			delay *= 2
		}
	}
	if delay > q.cfg.MaxRetryDelay {
		delay = q.cfg.MaxRetryDelay
	}

	update := bson.M{"$set": bson.M{
		"visibleAfter": time.Now().UTC().Add(delay),
		"lastError":    errMsg,
	}}
	res, err := q.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return false, fmt.Errorf("rescheduling job: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, ErrJobNotFound
	}
	return false, nil
}

func (q *mongoQueue) Bury(ctx context.Context, id primitive.ObjectID, errMsg string) error {
	now := time.Now().UTC()
	purge := now.Add(q.cfg.DeadTTL)
	update := bson.M{"$set": bson.M{
		"status":      StatusDead,
		"lastError":   errMsg,
		"completedAt": now,
		"purgeAfter":  purge,
	}}

	res, err := q.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("burying job: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (q *mongoQueue) Depth(ctx context.Context, queue string) (int64, error) {
	count, err := q.collection.CountDocuments(ctx, bson.M{"queue": queue, "status": StatusPending})
	if err != nil {
		return 0, fmt.Errorf("counting queue depth: %w", err)
	}
	return count, nil
}

func (q *mongoQueue) ListDead(ctx context.Context, queue string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "completedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := q.collection.Find(ctx, bson.M{"queue": queue, "status": StatusDead}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing dead jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var jobs []Job
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("decoding dead jobs: %w", err)
	}
	return jobs, nil
}

// RequeueDead puts a dead job back in the queue with a fresh attempt budget.
func (q *mongoQueue) RequeueDead(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$set": bson.M{
			"status":       StatusPending,
			"attempts":     0,
			"visibleAfter": time.Now().UTC(),
			"lastError":    "",
		},
		"$unset": bson.M{"completedAt": "", "purgeAfter": "", "result": ""},
	}

	res, err := q.collection.UpdateOne(ctx, bson.M{"_id": id, "status": StatusDead}, update)
	if err != nil {
		return fmt.Errorf("requeueing dead job: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrJobNotFound
	}
	return nil
}

// EnsureJobIndexes creates the claim, dead-letter, and purge indexes.
func EnsureJobIndexes(ctx context.Context, collection *mongo.Collection) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "queue", Value: 1},
				{Key: "status", Value: 1},
				{Key: "visibleAfter", Value: 1},
				{Key: "enqueuedAt", Value: 1},
			},
			Options: options.Index().SetName("idx_claim"),
		},
		{
			Keys: bson.D{
				{Key: "queue", Value: 1},
				{Key: "status", Value: 1},
				{Key: "completedAt", Value: -1},
			},
			Options: options.Index().SetName("idx_dead_letter"),
		},
		{
			// Date-valued TTL: each job carries its own purge deadline.
			Keys:    bson.D{{Key: "purgeAfter", Value: 1}},
			Options: options.Index().SetName("idx_purge").SetExpireAfterSeconds(0),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("failed to create job indexes: %w", err)
	}
	return nil
}
