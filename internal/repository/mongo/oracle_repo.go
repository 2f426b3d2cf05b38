package mongo

import (
	"context"
	"errors"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	oracleNodeCollectionName = "oracle_nodes"
	submissionCollectionName = "fitness_submissions"
)

type mongoOracleRepository struct {
	nodes       *mongo.Collection
	submissions *mongo.Collection
}

func NewMongoOracleRepository(db *mongo.Database) repository.OracleRepository {
	return &mongoOracleRepository{
		nodes:       db.Collection(oracleNodeCollectionName),
		submissions: db.Collection(submissionCollectionName),
	}
}

func (r *mongoOracleRepository) AddNode(ctx context.Context, node *domain.OracleNode) error {
	if _, err := r.nodes.InsertOne(ctx, node); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoOracleRepository) RemoveNode(ctx context.Context, userID primitive.ObjectID) error {
	result, err := r.nodes.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoOracleRepository) IsNode(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	n, err := r.nodes.CountDocuments(ctx, bson.M{"_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *mongoOracleRepository) ListNodes(ctx context.Context) ([]domain.OracleNode, error) {
	cursor, err := r.nodes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "addedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.OracleNode](ctx, cursor)
}

// UpsertSubmission replaces any pending submission for the same (user, workout).
func (r *mongoOracleRepository) UpsertSubmission(ctx context.Context, sub *domain.FitnessSubmission) error {
	filter := bson.M{"userId": sub.UserID, "workoutId": sub.WorkoutID}
	_, err := r.submissions.ReplaceOne(ctx, filter, sub, options.Replace().SetUpsert(true))
	return err
}

func (r *mongoOracleRepository) GetSubmission(ctx context.Context, userID primitive.ObjectID, workoutID string) (*domain.FitnessSubmission, error) {
	var sub domain.FitnessSubmission
	err := r.submissions.FindOne(ctx, bson.M{"userId": userID, "workoutId": workoutID}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *mongoOracleRepository) DeleteSubmission(ctx context.Context, userID primitive.ObjectID, workoutID string) error {
	result, err := r.submissions.DeleteOne(ctx, bson.M{"userId": userID, "workoutId": workoutID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureOracleIndexes keeps one pending submission per (user, workout).
func EnsureOracleIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "workoutId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
