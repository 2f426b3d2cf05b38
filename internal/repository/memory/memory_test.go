package memory

import (
	"context"
	"math/big"
	"testing"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserEmailIsUnique(t *testing.T) {
	users := NewStore().Users()
	ctx := context.Background()

	id, err := users.Create(ctx, &domain.User{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = users.Create(ctx, &domain.User{Name: "A2", Email: "A@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	got, err := users.GetByEmail(ctx, "A@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	_, err = users.GetByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLedgerConditionalUpdates(t *testing.T) {
	ledger := NewStore().Ledger()
	ctx := context.Background()
	alice := domain.Address(primitive.NewObjectID().Hex())

	assert.ErrorIs(t, ledger.Debit(ctx, alice, big.NewInt(1)), repository.ErrConditionFailed)
	require.NoError(t, ledger.Credit(ctx, alice, big.NewInt(10)))
	assert.ErrorIs(t, ledger.Debit(ctx, alice, big.NewInt(11)), repository.ErrConditionFailed)
	require.NoError(t, ledger.Debit(ctx, alice, big.NewInt(10)))

	acc, err := ledger.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, acc.Balance.Sign())

	// Returned accounts are copies.
	acc.Balance.SetInt64(99)
	acc, err = ledger.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, acc.Balance.Sign())

	require.NoError(t, ledger.SetAllowance(ctx, alice, domain.RewardsStoreAddress, big.NewInt(5)))
	assert.ErrorIs(t, ledger.SpendAllowance(ctx, alice, domain.RewardsStoreAddress, big.NewInt(6)), repository.ErrConditionFailed)
	require.NoError(t, ledger.SpendAllowance(ctx, alice, domain.RewardsStoreAddress, big.NewInt(5)))
	allowance, err := ledger.GetAllowance(ctx, alice, domain.RewardsStoreAddress)
	require.NoError(t, err)
	assert.Zero(t, allowance.Sign())
}

func TestSupplyCap(t *testing.T) {
	ledger := NewStore().Ledger()
	ctx := context.Background()

	assert.ErrorIs(t, ledger.IncreaseSupply(ctx, big.NewInt(1)), repository.ErrNotFound)
	require.NoError(t, ledger.InitSupply(ctx, domain.Supply{Total: big.NewInt(90), Cap: big.NewInt(100)}))
	assert.ErrorIs(t, ledger.InitSupply(ctx, domain.Supply{Total: big.NewInt(0), Cap: big.NewInt(1)}), repository.ErrDuplicate)

	require.NoError(t, ledger.IncreaseSupply(ctx, big.NewInt(10)))
	assert.ErrorIs(t, ledger.IncreaseSupply(ctx, big.NewInt(1)), repository.ErrConditionFailed)

	supply, err := ledger.GetSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), supply.Total.Int64())
}

func TestListTopOrdering(t *testing.T) {
	profiles := NewStore().Profiles()
	ctx := context.Background()
	ids := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()}

	for _, id := range ids {
		require.NoError(t, profiles.Create(ctx, &domain.UserProfile{UserID: id, Name: "n", CreatureName: "c", Level: 1, IsActive: true}))
	}
	assert.ErrorIs(t, profiles.Create(ctx, &domain.UserProfile{UserID: ids[0]}), repository.ErrDuplicate)

	now := time.Now()
	require.NoError(t, profiles.UpdateProgress(ctx, ids[1], 2, 1, 300, now))
	require.NoError(t, profiles.UpdateProgress(ctx, ids[2], 3, 1, 300, now))
	require.NoError(t, profiles.UpdateProgress(ctx, ids[3], 1, 1, 500, now))

	top, err := profiles.ListTop(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, ids[3], top[0].UserID)
	assert.Equal(t, ids[2], top[1].UserID)
	assert.Equal(t, ids[1], top[2].UserID)
}

func TestWorkoutLogsNewestFirst(t *testing.T) {
	workouts := NewStore().Workouts()
	ctx := context.Background()
	user := primitive.NewObjectID()

	for i := 1; i <= 3; i++ {
		require.NoError(t, workouts.AppendLog(ctx, &domain.WorkoutLog{UserID: user, WorkoutNumber: i}))
	}
	require.NoError(t, workouts.AppendLog(ctx, &domain.WorkoutLog{UserID: primitive.NewObjectID(), WorkoutNumber: 9}))

	logs, err := workouts.ListLogs(ctx, user, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 3, logs[0].WorkoutNumber)
	assert.Equal(t, 2, logs[1].WorkoutNumber)

	require.NoError(t, workouts.Upsert(ctx, &domain.ValidWorkout{ID: "w", Title: "W", Active: true}))
	require.NoError(t, workouts.SetActive(ctx, "w", false))
	active, err := workouts.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.ErrorIs(t, workouts.SetActive(ctx, "missing", true), repository.ErrNotFound)
}

func TestNFTRedemptionIsOneWay(t *testing.T) {
	nfts := NewStore().NFTs()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	id, err := nfts.NextTokenID(ctx)
	require.NoError(t, err)
	require.NoError(t, nfts.Create(ctx, &domain.ProgressNFT{TokenID: id, Owner: owner, WorkoutsMilestone: 30}))

	next, err := nfts.NextTokenID(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, nfts.Create(ctx, &domain.ProgressNFT{TokenID: next, Owner: owner, WorkoutsMilestone: 30}), repository.ErrDuplicate)

	has, err := nfts.HasMilestone(ctx, owner, 30)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, nfts.MarkRedeemed(ctx, id, "premium-workout", time.Now()))
	assert.ErrorIs(t, nfts.MarkRedeemed(ctx, id, "premium-workout", time.Now()), repository.ErrConditionFailed)
}

func TestRedemptionUnlockKey(t *testing.T) {
	redemptions := NewStore().Redemptions()
	ctx := context.Background()
	user := primitive.NewObjectID()
	key := domain.UnlockKeyFor(user, "premium-workout")

	require.NoError(t, redemptions.Create(ctx, &domain.Redemption{ID: "1", UserID: user, RewardID: "premium-workout", UnlockKey: key}))
	assert.ErrorIs(t, redemptions.Create(ctx, &domain.Redemption{ID: "2", UserID: user, RewardID: "premium-workout", UnlockKey: key}), repository.ErrDuplicate)
	require.NoError(t, redemptions.Create(ctx, &domain.Redemption{ID: "3", UserID: user, RewardID: "streak-booster"}))
	require.NoError(t, redemptions.Create(ctx, &domain.Redemption{ID: "4", UserID: user, RewardID: "streak-booster"}))

	ok, err := redemptions.HasUnlock(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := redemptions.ListByUser(ctx, user)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestOpenAccountOnlyOnce(t *testing.T) {
	ledger := NewStore().Ledger()
	ctx := context.Background()

	require.NoError(t, ledger.OpenAccount(ctx, domain.TreasuryAddress, big.NewInt(100)))
	assert.ErrorIs(t, ledger.OpenAccount(ctx, domain.TreasuryAddress, big.NewInt(100)), repository.ErrDuplicate)

	acc, err := ledger.GetAccount(ctx, domain.TreasuryAddress)
	require.NoError(t, err)
	assert.Equal(t, int64(100), acc.Balance.Int64())
}

func TestWorkoutCountIncludesInactive(t *testing.T) {
	workouts := NewStore().Workouts()
	ctx := context.Background()

	n, err := workouts.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, workouts.Upsert(ctx, &domain.ValidWorkout{ID: "yoga", Title: "Yoga", Difficulty: 1, Active: true}))
	require.NoError(t, workouts.SetActive(ctx, "yoga", false))
	n, err = workouts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
