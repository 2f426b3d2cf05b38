package service

import (
	"context"
	"strings"
	"testing"

	"wodgachi/rewards-api/internal/config"
	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newPlayer(t, "alice@example.com")

	profile, err := f.Core.GetUserProfile(ctx, id)
	require.NoError(t, err)
	assert.True(t, profile.IsActive)
	assert.Equal(t, 1, profile.Level)
	assert.Equal(t, "Test Creature", profile.CreatureName)
	assert.Zero(t, profile.TotalWorkouts)

	_, _, err = f.Core.RegisterUser(ctx, id, "Again", "Again")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, _, err = f.Core.RegisterUser(ctx, primitive.NewObjectID(), "", "Blob")
	assert.ErrorIs(t, err, ErrInvalidProfileName)
	_, _, err = f.Core.RegisterUser(ctx, primitive.NewObjectID(), "Name", strings.Repeat("x", 65))
	assert.ErrorIs(t, err, ErrInvalidProfileName)

	_, err = f.Core.GetUserProfile(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrUserNotRegistered)
	assert.Len(t, f.events.OfType(events.UserRegistered), 1)
}

func TestSubmitWorkoutRewardsUser(t *testing.T) {
	f := newFixture(t)
	id := f.newPlayer(t, "alice@example.com")

	res := f.workouts(t, id, 1)
	assert.Equal(t, "150", res.Reward)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 1, res.Profile.TotalWorkouts)
	assert.Equal(t, int64(150), res.Profile.Points)
	assert.False(t, res.LeveledUp)
	assert.Nil(t, res.NFT)
	assert.True(t, domain.IsTxHash(res.Receipt.TxHash))

	assert.Equal(t, int64(150), f.balance(t, domain.AddressOf(id)))

	history, err := f.Core.ListWorkoutHistory(context.Background(), id, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, testWorkout, history[0].WorkoutID)
	assert.Equal(t, "150", history[0].Reward)
	assert.Equal(t, res.Receipt.TxHash, history[0].TxHash)
}

func TestLevelUpAfterTenWorkouts(t *testing.T) {
	f := newFixture(t)
	id := f.newPlayer(t, "alice@example.com")

	f.workouts(t, id, 9)
	res := f.workouts(t, id, 1)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.Profile.Level)
	assert.Equal(t, 10, res.Profile.TotalWorkouts)
}

func TestMilestoneNFTMintedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newPlayer(t, "alice@example.com")

	f.workouts(t, id, 29)
	res := f.workouts(t, id, 1)
	require.NotNil(t, res.NFT)
	assert.Equal(t, uint64(1), res.NFT.TokenID)
	assert.Equal(t, 30, res.NFT.WorkoutsMilestone)
	assert.Equal(t, 30, res.NFT.Metadata.TotalWorkouts)
	assert.Equal(t, 4, res.NFT.Metadata.Level)
	assert.Equal(t, int64(4500), res.NFT.Metadata.TokensEarned)
	assert.Equal(t, 2, res.NFT.Metadata.CreatureLevel)
	assert.Contains(t, res.NFT.Metadata.Achievements, "Committed")
	assert.Equal(t, "s3://test-bucket/nfts/1.json", res.NFT.TokenURI)

	_, stored := f.objects.get("nfts/1.json")
	assert.True(t, stored)

	f.workouts(t, id, 5)
	nfts, err := f.NFTs.GetUserNFTs(ctx, id)
	require.NoError(t, err)
	require.Len(t, nfts, 1)
	assert.Equal(t, 30, nfts[0].Metadata.TotalWorkouts)
	assert.Equal(t, 30, nfts[0].WorkoutsMilestone)

	history, err := f.Core.ListWorkoutHistory(ctx, id, 100)
	require.NoError(t, err)
	require.Len(t, history, 35)
	// Newest first: entry for workout #30 sits at index 5.
	require.NotNil(t, history[5].MintedNFTTokenID)
	assert.Equal(t, uint64(1), *history[5].MintedNFTTokenID)
}

func TestSubmitWorkoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newPlayer(t, "alice@example.com")

	_, err := f.Core.SubmitWorkout(ctx, primitive.NewObjectID(), testWorkout, 30, 2)
	assert.ErrorIs(t, err, ErrUserNotRegistered)

	_, err = f.Core.SubmitWorkout(ctx, id, "made-up", 30, 2)
	assert.ErrorIs(t, err, ErrInvalidWorkout)

	for _, tc := range []struct{ duration, difficulty int }{{0, 2}, {601, 2}, {30, 0}, {30, 4}} {
		_, err = f.Core.SubmitWorkout(ctx, id, testWorkout, tc.duration, tc.difficulty)
		assert.ErrorIs(t, err, ErrInvalidWorkoutParams)
	}

	require.NoError(t, f.Core.RemoveValidWorkout(ctx, testWorkout))
	_, err = f.Core.SubmitWorkout(ctx, id, testWorkout, 30, 2)
	assert.ErrorIs(t, err, ErrInvalidWorkout)
	assert.ErrorIs(t, f.Core.RemoveValidWorkout(ctx, "made-up"), ErrInvalidWorkout)

	profile, err := f.Core.GetUserProfile(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, profile.TotalWorkouts)
	assert.Zero(t, f.balance(t, domain.AddressOf(id)))
}

func TestValidWorkoutCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.Core.AddValidWorkout(ctx, domain.ValidWorkout{ID: "core-crusher", Title: "Core Crusher", Duration: 15, Difficulty: 1, Points: 100})
	require.NoError(t, err)
	_, err = f.Core.AddValidWorkout(ctx, domain.ValidWorkout{ID: "bad", Title: "Bad", Difficulty: 5})
	assert.ErrorIs(t, err, ErrInvalidCatalogEntry)

	list, err := f.Core.ListValidWorkouts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "core-crusher", list[0].ID)
	assert.Equal(t, testWorkout, list[1].ID)
}

func TestBootstrapDoesNotReviveRemovedWorkouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.Core.RemoveValidWorkout(ctx, testWorkout))
	_, err := f.Bootstrap(ctx, config.DefaultSeedWorkouts())
	require.NoError(t, err)

	list, err := f.Core.ListValidWorkouts(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.newPlayer(t, "alice@example.com")
	bob := f.newPlayer(t, "bob@example.com")
	carol := f.newPlayer(t, "carol@example.com")

	f.workouts(t, alice, 2)
	f.workouts(t, bob, 3)

	board, err := f.Core.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.Hex(), alice.Hex(), carol.Hex()}, board.Users)
	assert.Equal(t, []int64{450, 300, 0}, board.Points)
	assert.Equal(t, []int{3, 2, 0}, board.Workouts)
	assert.Equal(t, []int{1, 1, 1}, board.Levels)
	assert.Len(t, board.Names, 3)
	assert.Equal(t, 1, board.Entries[0].Rank)

	board, err = f.Core.GetLeaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.Hex()}, board.Users)
}

func TestGetProgress(t *testing.T) {
	f := newFixture(t)
	id := f.newPlayer(t, "alice@example.com")
	f.workouts(t, id, 12)

	p, err := f.Core.GetProgress(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 12, p.WorkoutsCompleted)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, "1800", p.TokensEarned)
	assert.Equal(t, "1800", p.Balance)
	assert.Equal(t, 12, p.StreakDays)
	assert.Equal(t, 30, p.NextMilestone)
	assert.Equal(t, 18, p.WorkoutsUntilNextNFT)
	assert.Zero(t, p.NFTsOwned)
}

func TestLinkWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newPlayer(t, "alice@example.com")

	profile, err := f.Core.LinkWallet(ctx, id, "xdc742d35cc6634c0532925a3b8d4c9db96c4b5da5a")
	require.NoError(t, err)
	assert.True(t, strings.EqualFold("0x742d35cc6634c0532925a3b8d4c9db96c4b5da5a", profile.WalletAddress))

	_, err = f.Core.LinkWallet(ctx, id, "not-a-wallet")
	assert.ErrorIs(t, err, domain.ErrInvalidWalletAddress)
	_, err = f.Core.LinkWallet(ctx, primitive.NewObjectID(), "0x742d35cc6634c0532925a3b8d4c9db96c4b5da5a")
	assert.ErrorIs(t, err, ErrUserNotRegistered)
}

func TestMilestoneMetadataRepublishedAfterUploadFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newPlayer(t, "alice@example.com")

	f.workouts(t, id, 29)
	f.objects.failPuts = 1
	res := f.workouts(t, id, 1)
	require.NotNil(t, res.NFT)
	assert.Equal(t, 30, res.NFT.WorkoutsMilestone)
	assert.Empty(t, res.NFT.TokenURI)
	_, err := f.NFTs.MetadataURL(ctx, res.NFT.TokenID)
	assert.ErrorIs(t, err, ErrMetadataNotPublished)

	res = f.workouts(t, id, 1)
	assert.Nil(t, res.NFT)
	nfts, err := f.NFTs.GetUserNFTs(ctx, id)
	require.NoError(t, err)
	require.Len(t, nfts, 1)
	assert.Equal(t, "s3://test-bucket/nfts/1.json", nfts[0].TokenURI)
	_, stored := f.objects.get("nfts/1.json")
	assert.True(t, stored)

	url, err := f.NFTs.MetadataURL(ctx, nfts[0].TokenID)
	require.NoError(t, err)
	assert.Contains(t, url, "nfts/1.json")
}

func TestMissedMilestoneMintedOnNextWorkout(t *testing.T) {
	var nftRepo *flakyNFTs
	f := newFixtureWithRepos(t, func(r *Repositories) {
		nftRepo = &flakyNFTs{NFTRepository: r.NFTs}
		r.NFTs = nftRepo
	})
	ctx := context.Background()
	id := f.newPlayer(t, "alice@example.com")

	f.workouts(t, id, 29)
	nftRepo.failCreates = 1
	res := f.workouts(t, id, 1)
	assert.Nil(t, res.NFT)
	assert.Equal(t, 30, res.Profile.TotalWorkouts)
	nfts, err := f.NFTs.GetUserNFTs(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, nfts)

	res = f.workouts(t, id, 1)
	require.NotNil(t, res.NFT)
	assert.Equal(t, 30, res.NFT.WorkoutsMilestone)
	assert.Equal(t, 30, res.NFT.Metadata.TotalWorkouts)
	assert.Equal(t, 4, res.NFT.Metadata.Level)

	history, err := f.Core.ListWorkoutHistory(ctx, id, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].MintedNFTTokenID)
	assert.Equal(t, res.NFT.TokenID, *history[0].MintedNFTTokenID)

	f.workouts(t, id, 29)
	nfts, err = f.NFTs.GetUserNFTs(ctx, id)
	require.NoError(t, err)
	require.Len(t, nfts, 2)
	assert.Equal(t, 30, nfts[0].WorkoutsMilestone)
	assert.Equal(t, 60, nfts[1].WorkoutsMilestone)
}
