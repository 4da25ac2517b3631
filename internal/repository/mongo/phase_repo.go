// internal/repository/mongo/phase_repo.go
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

const planPhaseCollectionName = "plan_phases"

// mongoPlanPhaseRepository implements repository.PlanPhaseRepository
type mongoPlanPhaseRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanPhaseRepository creates a new PlanPhase repository.
func NewMongoPlanPhaseRepository(db *mongo.Database) repository.PlanPhaseRepository {
	return &mongoPlanPhaseRepository{
		collection: db.Collection(planPhaseCollectionName),
	}
}

// Create inserts a new phase. The unique (planId, sequence) index rejects a
// duplicate order number within one plan.
func (r *mongoPlanPhaseRepository) Create(ctx context.Context, phase *domain.PlanPhase) (primitive.ObjectID, error) {
	if phase.PlanID == primitive.NilObjectID || phase.Name == "" {
		return primitive.NilObjectID, errors.New("phase requires planId and name")
	}
	if phase.ID.IsZero() {
		phase.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	phase.CreatedAt = now
	phase.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, phase)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted phase ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single phase by its ID.
func (r *mongoPlanPhaseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanPhase, error) {
	var phase domain.PlanPhase
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&phase)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &phase, nil
}

// GetByPlanID retrieves all phases of a plan, ordered by sequence.
func (r *mongoPlanPhaseRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanPhase, error) {
	var phases []domain.PlanPhase
	findOptions := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &phases); err != nil {
		return nil, err
	}
	return phases, nil
}

// UpdateFields sets the given bson fields and bumps the phase's own
// updatedAt. The filter includes planID, so an id belonging to another plan
// reports ErrNotFound instead of being touched.
func (r *mongoPlanPhaseRepository) UpdateFields(ctx context.Context, id, planID primitive.ObjectID, fields map[string]any) error {
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

// Delete removes a single phase of the given plan. Sessions under it are the
// caller's problem; the sync service cascades before calling this.
func (r *mongoPlanPhaseRepository) Delete(ctx context.Context, id, planID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "planId": planID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePlanPhaseIndexes creates necessary indexes. Call during startup.
func EnsurePlanPhaseIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Order numbers are unique within a plan
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "sequence", Value: 1}},
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
