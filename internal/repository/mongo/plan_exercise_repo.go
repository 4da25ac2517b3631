// internal/repository/mongo/plan_exercise_repo.go
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

const planExerciseCollectionName = "plan_exercises"

// mongoPlanExerciseRepository implements repository.PlanExerciseRepository
type mongoPlanExerciseRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanExerciseRepository creates a new PlanExercise repository.
func NewMongoPlanExerciseRepository(db *mongo.Database) repository.PlanExerciseRepository {
	return &mongoPlanExerciseRepository{
		collection: db.Collection(planExerciseCollectionName),
	}
}

// Create inserts a new plan exercise.
func (r *mongoPlanExerciseRepository) Create(ctx context.Context, exercise *domain.PlanExercise) (primitive.ObjectID, error) {
	if exercise.PlanID == primitive.NilObjectID || exercise.SessionID == primitive.NilObjectID || exercise.ExerciseID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("plan exercise requires planId, sessionId, and exerciseId")
	}
	if exercise.ID.IsZero() {
		exercise.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	exercise.CreatedAt = now
	exercise.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, exercise)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan exercise ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single plan exercise by its ID.
func (r *mongoPlanExerciseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanExercise, error) {
	var exercise domain.PlanExercise
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&exercise)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &exercise, nil
}

// GetBySessionID retrieves all exercises of a session, in order-marker order.
func (r *mongoPlanExerciseRepository) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.PlanExercise, error) {
	return r.findSorted(ctx, bson.M{"sessionId": sessionID})
}

// GetByPlanID retrieves every exercise of a plan in one query; the plan tree
// read groups them under their sessions in memory.
func (r *mongoPlanExerciseRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanExercise, error) {
	return r.findSorted(ctx, bson.M{"planId": planID})
}

func (r *mongoPlanExerciseRepository) findSorted(ctx context.Context, filter bson.M) ([]domain.PlanExercise, error) {
	var exercises []domain.PlanExercise
	findOptions := options.Find().SetSort(bson.D{{Key: "orderMarker", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}

// UpdateFields sets the given bson fields and bumps the exercise's own
// updatedAt. Scoped to planID like the phase repository.
func (r *mongoPlanExerciseRepository) UpdateFields(ctx context.Context, id, planID primitive.ObjectID, fields map[string]any) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "planId": planID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a single plan exercise of the given plan.
func (r *mongoPlanExerciseRepository) Delete(ctx context.Context, id, planID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "planId": planID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteBySessionIDs removes the exercises of several sessions in one query;
// session and phase deletes cascade through here.
func (r *mongoPlanExerciseRepository) DeleteBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID, planID primitive.ObjectID) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{
		"sessionId": bson.M{"$in": sessionIDs},
		"planId":    planID,
	})
	return err
}

// AddSet appends one embedded set to an exercise.
func (r *mongoPlanExerciseRepository) AddSet(ctx context.Context, exerciseID, planID primitive.ObjectID, set domain.ExerciseSet) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": exerciseID, "planId": planID},
		bson.M{
			"$push": bson.M{"sets": set},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateSet sets fields on the embedded set matching setID. A missing
// exercise is ErrNotFound; a missing set matches zero array elements and is
// a silent no-op, which keeps redelivered operations harmless.
func (r *mongoPlanExerciseRepository) UpdateSet(ctx context.Context, exerciseID, planID primitive.ObjectID, setID string, fields map[string]any) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set["sets.$[elem]."+k] = v
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []any{bson.M{"elem.setId": setID}},
	})

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": exerciseID, "planId": planID}, bson.M{"$set": set}, opts)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RemoveSet pulls the embedded set matching setID. Pulling a set that is
// already gone is a silent no-op.
func (r *mongoPlanExerciseRepository) RemoveSet(ctx context.Context, exerciseID, planID primitive.ObjectID, setID string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": exerciseID, "planId": planID},
		bson.M{
			"$pull": bson.M{"sets": bson.M{"setId": setID}},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePlanExerciseIndexes creates necessary indexes. Call during startup.
func EnsurePlanExerciseIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "planId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "exerciseId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
