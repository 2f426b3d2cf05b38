package mongo

import (
	"context"
	"errors"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	workoutCollectionName    = "valid_workouts"
	workoutLogCollectionName = "workout_logs"
)

// mongoWorkoutRepository implements repository.WorkoutRepository
type mongoWorkoutRepository struct {
	catalog *mongo.Collection
	logs    *mongo.Collection
}

// NewMongoWorkoutRepository creates a new Workout repository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		catalog: db.Collection(workoutCollectionName),
		logs:    db.Collection(workoutLogCollectionName),
	}
}

// Upsert creates or replaces a catalog entry, keeping its original createdAt.
func (r *mongoWorkoutRepository) Upsert(ctx context.Context, workout *domain.ValidWorkout) error {
	if workout.ID == "" {
		return errors.New("workout id is required")
	}
	now := time.Now().UTC()
	workout.UpdatedAt = now

	update := bson.M{
		"$set": bson.M{
			"title":      workout.Title,
			"duration":   workout.Duration,
			"difficulty": workout.Difficulty,
			"points":     workout.Points,
			"active":     workout.Active,
			"updatedAt":  now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	_, err := r.catalog.UpdateOne(ctx, bson.M{"_id": workout.ID}, update, options.Update().SetUpsert(true))
	return err
}

// GetByID retrieves a single catalog entry, active or not.
func (r *mongoWorkoutRepository) GetByID(ctx context.Context, id string) (*domain.ValidWorkout, error) {
	var workout domain.ValidWorkout
	err := r.catalog.FindOne(ctx, bson.M{"_id": id}).Decode(&workout)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &workout, nil
}

func (r *mongoWorkoutRepository) SetActive(ctx context.Context, id string, active bool) error {
	update := bson.M{"$set": bson.M{"active": active, "updatedAt": time.Now().UTC()}}
	result, err := r.catalog.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoWorkoutRepository) ListActive(ctx context.Context) ([]domain.ValidWorkout, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.catalog.Find(ctx, bson.M{"active": true}, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.ValidWorkout](ctx, cursor)
}

func (r *mongoWorkoutRepository) Count(ctx context.Context) (int64, error) {
	return r.catalog.CountDocuments(ctx, bson.M{})
}

func (r *mongoWorkoutRepository) AppendLog(ctx context.Context, entry *domain.WorkoutLog) error {
	entry.ID = primitive.NewObjectID()
	_, err := r.logs.InsertOne(ctx, entry)
	return err
}

// ListLogs returns the newest entries first.
func (r *mongoWorkoutRepository) ListLogs(ctx context.Context, userID primitive.ObjectID, limit int) ([]domain.WorkoutLog, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	cursor, err := r.logs.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.WorkoutLog](ctx, cursor)
}

// EnsureWorkoutIndexes creates necessary indexes on the workout log. Call during startup.
func EnsureWorkoutIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "submittedAt", Value: -1}},
	})
	return err
}
