// internal/repository/mongo/session_repo.go
package mongo

import (
	"alcyxob/plansync/internal/domain"
	"alcyxob/plansync/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planSessionCollectionName = "plan_sessions"

// mongoPlanSessionRepository implements repository.PlanSessionRepository
type mongoPlanSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanSessionRepository creates a new PlanSession repository.
func NewMongoPlanSessionRepository(db *mongo.Database) repository.PlanSessionRepository {
	return &mongoPlanSessionRepository{
		collection: db.Collection(planSessionCollectionName),
	}
}

// Create inserts a new session. The unique (phaseId, sequence) index rejects
// a duplicate order number within one phase.
func (r *mongoPlanSessionRepository) Create(ctx context.Context, session *domain.PlanSession) (primitive.ObjectID, error) {
	if session.PlanID == primitive.NilObjectID || session.PhaseID == primitive.NilObjectID || session.Name == "" {
		return primitive.NilObjectID, errors.New("session requires planId, phaseId, and name")
	}
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted session ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single session by its ID.
func (r *mongoPlanSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanSession, error) {
	var session domain.PlanSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetByPhaseID retrieves all sessions of a phase, ordered by sequence.
func (r *mongoPlanSessionRepository) GetByPhaseID(ctx context.Context, phaseID primitive.ObjectID) ([]domain.PlanSession, error) {
	return r.findSorted(ctx, bson.M{"phaseId": phaseID})
}

// GetByPlanID retrieves every session of a plan in one query; the plan tree
// read groups them under their phases in memory.
func (r *mongoPlanSessionRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanSession, error) {
	return r.findSorted(ctx, bson.M{"planId": planID})
}

func (r *mongoPlanSessionRepository) findSorted(ctx context.Context, filter bson.M) ([]domain.PlanSession, error) {
	var sessions []domain.PlanSession
	findOptions := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateFields sets the given bson fields and bumps the session's own
// updatedAt. Scoped to planID like the phase repository.
func (r *mongoPlanSessionRepository) UpdateFields(ctx context.Context, id, planID primitive.ObjectID, fields map[string]any) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "planId": planID}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a single session of the given plan.
func (r *mongoPlanSessionRepository) Delete(ctx context.Context, id, planID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "planId": planID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByPhaseID removes every session under a phase. Deleting zero
// sessions is not an error; phase deletes cascade through here.
func (r *mongoPlanSessionRepository) DeleteByPhaseID(ctx context.Context, phaseID, planID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"phaseId": phaseID, "planId": planID})
	return err
}

// EnsurePlanSessionIndexes creates necessary indexes. Call during startup.
func EnsurePlanSessionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Order numbers are unique within a phase
			Keys:    bson.D{{Key: "phaseId", Value: 1}, {Key: "sequence", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "planId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
