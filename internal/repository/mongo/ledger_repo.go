package mongo

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	accountCollectionName   = "token_accounts"
	allowanceCollectionName = "token_allowances"
	ledgerMetaCollection    = "token_meta"

	supplyDocID = "supply"
)

// accountDocument is the stored form of domain.TokenAccount. Amounts are base
// units kept as Decimal128 so that $inc and range filters stay server side.
type accountDocument struct {
	Address      string               `bson:"_id"`
	Balance      primitive.Decimal128 `bson:"balance"`
	TotalEarned  primitive.Decimal128 `bson:"totalEarned"`
	Streak       int                  `bson:"streak"`
	LastRewardAt *time.Time           `bson:"lastRewardAt,omitempty"`
}

type supplyDocument struct {
	ID    string               `bson:"_id"`
	Total primitive.Decimal128 `bson:"total"`
	Cap   primitive.Decimal128 `bson:"cap"`
}

type allowanceDocument struct {
	ID      string               `bson:"_id"`
	Owner   string               `bson:"owner"`
	Spender string               `bson:"spender"`
	Amount  primitive.Decimal128 `bson:"amount"`
}

func toDecimal(v *big.Int) (primitive.Decimal128, error) {
	if v == nil {
		v = new(big.Int)
	}
	d, ok := primitive.ParseDecimal128FromBigInt(v, 0)
	if !ok {
		return primitive.Decimal128{}, fmt.Errorf("amount %s does not fit decimal128", v.String())
	}
	return d, nil
}

func mustDecimal(v *big.Int) primitive.Decimal128 {
	d, err := toDecimal(v)
	if err != nil {
		panic(err)
	}
	return d
}

func fromDecimal(d primitive.Decimal128) (*big.Int, error) {
	bi, exp, err := d.BigInt()
	if err != nil {
		return nil, err
	}
	switch {
	case exp > 0:
		bi.Mul(bi, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	case exp < 0:
		bi.Quo(bi, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil))
	}
	return bi, nil
}

func negate(v *big.Int) *big.Int {
	return new(big.Int).Neg(v)
}

type mongoLedgerRepository struct {
	accounts   *mongo.Collection
	allowances *mongo.Collection
	meta       *mongo.Collection
}

// NewMongoLedgerRepository creates the CRUSH ledger repository.
func NewMongoLedgerRepository(db *mongo.Database) repository.LedgerRepository {
	return &mongoLedgerRepository{
		accounts:   db.Collection(accountCollectionName),
		allowances: db.Collection(allowanceCollectionName),
		meta:       db.Collection(ledgerMetaCollection),
	}
}

func (r *mongoLedgerRepository) GetAccount(ctx context.Context, addr domain.Address) (*domain.TokenAccount, error) {
	var doc accountDocument
	err := r.accounts.FindOne(ctx, bson.M{"_id": string(addr)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	balance, err := fromDecimal(doc.Balance)
	if err != nil {
		return nil, err
	}
	earned, err := fromDecimal(doc.TotalEarned)
	if err != nil {
		return nil, err
	}
	return &domain.TokenAccount{
		Address:      addr,
		Balance:      balance,
		TotalEarned:  earned,
		Streak:       doc.Streak,
		LastRewardAt: doc.LastRewardAt,
	}, nil
}

func (r *mongoLedgerRepository) Credit(ctx context.Context, addr domain.Address, amount *big.Int) error {
	inc, err := toDecimal(amount)
	if err != nil {
		return err
	}
	update := bson.M{
		"$inc":         bson.M{"balance": inc},
		"$setOnInsert": bson.M{"totalEarned": mustDecimal(nil), "streak": 0},
	}
	_, err = r.accounts.UpdateOne(ctx, bson.M{"_id": string(addr)}, update, options.Update().SetUpsert(true))
	return err
}

func (r *mongoLedgerRepository) Debit(ctx context.Context, addr domain.Address, amount *big.Int) error {
	floor, err := toDecimal(amount)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": string(addr), "balance": bson.M{"$gte": floor}}
	update := bson.M{"$inc": bson.M{"balance": mustDecimal(negate(amount))}}

	result, err := r.accounts.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

func (r *mongoLedgerRepository) RecordReward(ctx context.Context, addr domain.Address, earned *big.Int, streak int, at time.Time) error {
	inc, err := toDecimal(earned)
	if err != nil {
		return err
	}
	update := bson.M{
		"$inc":         bson.M{"totalEarned": inc},
		"$set":         bson.M{"streak": streak, "lastRewardAt": at.UTC()},
		"$setOnInsert": bson.M{"balance": mustDecimal(nil)},
	}
	_, err = r.accounts.UpdateOne(ctx, bson.M{"_id": string(addr)}, update, options.Update().SetUpsert(true))
	return err
}

func (r *mongoLedgerRepository) OpenAccount(ctx context.Context, addr domain.Address, balance *big.Int) error {
	amount, err := toDecimal(balance)
	if err != nil {
		return err
	}
	_, err = r.accounts.InsertOne(ctx, accountDocument{Address: string(addr), Balance: amount, TotalEarned: mustDecimal(nil)})
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func allowanceID(owner, spender domain.Address) string {
	return string(owner) + "->" + string(spender)
}

func (r *mongoLedgerRepository) GetAllowance(ctx context.Context, owner, spender domain.Address) (*big.Int, error) {
	var doc allowanceDocument
	err := r.allowances.FindOne(ctx, bson.M{"_id": allowanceID(owner, spender)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return new(big.Int), nil
		}
		return nil, err
	}
	return fromDecimal(doc.Amount)
}

func (r *mongoLedgerRepository) SetAllowance(ctx context.Context, owner, spender domain.Address, amount *big.Int) error {
	value, err := toDecimal(amount)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{"owner": string(owner), "spender": string(spender), "amount": value}}
	_, err = r.allowances.UpdateOne(ctx, bson.M{"_id": allowanceID(owner, spender)}, update, options.Update().SetUpsert(true))
	return err
}

func (r *mongoLedgerRepository) SpendAllowance(ctx context.Context, owner, spender domain.Address, amount *big.Int) error {
	floor, err := toDecimal(amount)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": allowanceID(owner, spender), "amount": bson.M{"$gte": floor}}
	update := bson.M{"$inc": bson.M{"amount": mustDecimal(negate(amount))}}

	result, err := r.allowances.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

func (r *mongoLedgerRepository) InitSupply(ctx context.Context, supply domain.Supply) error {
	total, err := toDecimal(supply.Total)
	if err != nil {
		return err
	}
	capacity, err := toDecimal(supply.Cap)
	if err != nil {
		return err
	}
	_, err = r.meta.InsertOne(ctx, supplyDocument{ID: supplyDocID, Total: total, Cap: capacity})
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (r *mongoLedgerRepository) GetSupply(ctx context.Context) (*domain.Supply, error) {
	var doc supplyDocument
	err := r.meta.FindOne(ctx, bson.M{"_id": supplyDocID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	total, err := fromDecimal(doc.Total)
	if err != nil {
		return nil, err
	}
	capacity, err := fromDecimal(doc.Cap)
	if err != nil {
		return nil, err
	}
	return &domain.Supply{Total: total, Cap: capacity}, nil
}

// IncreaseSupply only matches while total+amount stays within the cap.
func (r *mongoLedgerRepository) IncreaseSupply(ctx context.Context, amount *big.Int) error {
	inc, err := toDecimal(amount)
	if err != nil {
		return err
	}
	filter := bson.M{
		"_id":   supplyDocID,
		"$expr": bson.M{"$lte": bson.A{bson.M{"$add": bson.A{"$total", inc}}, "$cap"}},
	}
	result, err := r.meta.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"total": inc}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if n, cerr := r.meta.CountDocuments(ctx, bson.M{"_id": supplyDocID}); cerr == nil && n == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrConditionFailed
	}
	return nil
}

// EnsureLedgerIndexes indexes allowances by owner for listing approvals.
func EnsureLedgerIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}, {Key: "spender", Value: 1}},
	})
	return err
}
