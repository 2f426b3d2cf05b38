package mongo

import (
	"context"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const redemptionCollectionName = "redemptions"

type mongoRedemptionRepository struct {
	collection *mongo.Collection
}

func NewMongoRedemptionRepository(db *mongo.Database) repository.RedemptionRepository {
	return &mongoRedemptionRepository{collection: db.Collection(redemptionCollectionName)}
}

func (r *mongoRedemptionRepository) Create(ctx context.Context, red *domain.Redemption) error {
	if _, err := r.collection.InsertOne(ctx, red); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoRedemptionRepository) HasUnlock(ctx context.Context, unlockKey string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"unlockKey": unlockKey}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *mongoRedemptionRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Redemption, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "redeemedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Redemption](ctx, cursor)
}

// EnsureRedemptionIndexes makes unlockKey unique. It is sparse because
// repeatable rewards carry no key.
func EnsureRedemptionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "unlockKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "redeemedAt", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
