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
	nftCollectionName     = "progress_nfts"
	counterCollectionName = "counters"

	nftCounterID = "nft_token_id"
)

type mongoNFTRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

// NewMongoNFTRepository creates the milestone NFT repository.
func NewMongoNFTRepository(db *mongo.Database) repository.NFTRepository {
	return &mongoNFTRepository{
		collection: db.Collection(nftCollectionName),
		counters:   db.Collection(counterCollectionName),
	}
}

// NextTokenID atomically increments the token counter. IDs start at 1.
func (r *mongoNFTRepository) NextTokenID(ctx context.Context) (uint64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx, bson.M{"_id": nftCounterID}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return uint64(counter.Seq), nil
}

func (r *mongoNFTRepository) Create(ctx context.Context, nft *domain.ProgressNFT) error {
	if _, err := r.collection.InsertOne(ctx, nft); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoNFTRepository) GetByTokenID(ctx context.Context, tokenID uint64) (*domain.ProgressNFT, error) {
	var nft domain.ProgressNFT
	err := r.collection.FindOne(ctx, bson.M{"_id": tokenID}).Decode(&nft)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &nft, nil
}

func (r *mongoNFTRepository) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]domain.ProgressNFT, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"owner": owner}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.ProgressNFT](ctx, cursor)
}

func (r *mongoNFTRepository) HasMilestone(ctx context.Context, owner primitive.ObjectID, milestone int) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"owner": owner, "workoutsMilestone": milestone}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *mongoNFTRepository) SetTokenURI(ctx context.Context, tokenID uint64, uri string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": tokenID}, bson.M{"$set": bson.M{"tokenUri": uri}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkRedeemed flips isRedeemed only while it is still false.
func (r *mongoNFTRepository) MarkRedeemed(ctx context.Context, tokenID uint64, rewardID string, at time.Time) error {
	filter := bson.M{"_id": tokenID, "isRedeemed": false}
	update := bson.M{"$set": bson.M{"isRedeemed": true, "redeemedFor": rewardID, "redeemedAt": at.UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetByTokenID(ctx, tokenID); err != nil {
			return err
		}
		return repository.ErrConditionFailed
	}
	return nil
}

// EnsureNFTIndexes enforces one NFT per owner and milestone.
func EnsureNFTIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "workoutsMilestone", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner", Value: 1}, {Key: "isRedeemed", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
