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

const profileCollectionName = "profiles"

type mongoProfileRepository struct {
	collection *mongo.Collection
}

// NewMongoProfileRepository creates the core registry repository. Profiles are
// keyed by the owning user's ID, so a second registration is a duplicate key.
func NewMongoProfileRepository(db *mongo.Database) repository.ProfileRepository {
	return &mongoProfileRepository{collection: db.Collection(profileCollectionName)}
}

func (r *mongoProfileRepository) Create(ctx context.Context, profile *domain.UserProfile) error {
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, profile); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoProfileRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *mongoProfileRepository) UpdateProgress(ctx context.Context, userID primitive.ObjectID, totalWorkouts, level int, points int64, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"totalWorkouts": totalWorkouts,
			"level":         level,
			"points":        points,
			"lastWorkoutAt": at.UTC(),
			"updatedAt":     time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoProfileRepository) SetWallet(ctx context.Context, userID primitive.ObjectID, wallet string) error {
	update := bson.M{"$set": bson.M{"walletAddress": wallet, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoProfileRepository) ListTop(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	findOptions := options.Find().
		SetSort(bson.D{
			{Key: "points", Value: -1},
			{Key: "totalWorkouts", Value: -1},
			{Key: "createdAt", Value: 1},
			{Key: "_id", Value: 1},
		}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"isActive": true}, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.UserProfile](ctx, cursor)
}

// EnsureProfileIndexes backs the leaderboard sort.
func EnsureProfileIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "isActive", Value: 1},
			{Key: "points", Value: -1},
			{Key: "totalWorkouts", Value: -1},
			{Key: "createdAt", Value: 1},
		},
	})
	return err
}
