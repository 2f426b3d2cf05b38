package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/events"
	"wodgachi/rewards-api/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenesisMintsInitialSupplyToTreasury(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	supply, err := f.Tokens.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10000000", domain.FormatCRUSH(supply.Total))
	assert.Equal(t, "100000000", domain.FormatCRUSH(supply.Cap))
	assert.Equal(t, int64(10_000_000), f.balance(t, domain.TreasuryAddress))

	// A second genesis changes nothing.
	_, err = f.Tokens.Genesis(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), f.balance(t, domain.TreasuryAddress))
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := domain.AddressOf(primitive.NewObjectID())

	receipt, err := f.Tokens.Transfer(ctx, domain.TreasuryAddress, alice, domain.CRUSH(1000))
	require.NoError(t, err)
	assert.True(t, domain.IsTxHash(receipt.TxHash))
	assert.Equal(t, int64(1000), f.balance(t, alice))
	assert.Equal(t, int64(10_000_000-1000), f.balance(t, domain.TreasuryAddress))

	_, err = f.Tokens.Transfer(ctx, alice, domain.TreasuryAddress, domain.CRUSH(1001))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = f.Tokens.Transfer(ctx, alice, domain.TreasuryAddress, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, int64(1000), f.balance(t, alice))
	assert.Len(t, f.events.OfType(events.TokensTransferred), 1)
}

func TestApproveAndTransferFrom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := domain.AddressOf(primitive.NewObjectID())
	bob := domain.AddressOf(primitive.NewObjectID())

	_, err := f.Tokens.Transfer(ctx, domain.TreasuryAddress, alice, domain.CRUSH(100))
	require.NoError(t, err)

	_, err = f.Tokens.TransferFrom(ctx, bob, alice, bob, domain.CRUSH(10))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	_, err = f.Tokens.Approve(ctx, alice, bob, domain.CRUSH(500))
	require.NoError(t, err)

	// Allowance covers it but the balance does not: the allowance is left intact.
	_, err = f.Tokens.TransferFrom(ctx, bob, alice, bob, domain.CRUSH(200))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	allowance, err := f.Tokens.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, allowance.Cmp(domain.CRUSH(500)))

	_, err = f.Tokens.TransferFrom(ctx, bob, alice, bob, domain.CRUSH(60))
	require.NoError(t, err)
	assert.Equal(t, int64(40), f.balance(t, alice))
	assert.Equal(t, int64(60), f.balance(t, bob))

	allowance, err = f.Tokens.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, allowance.Cmp(domain.CRUSH(440)))
}

func TestMintRequiresMinterAndRespectsCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := domain.AddressOf(primitive.NewObjectID())

	_, err := f.Tokens.Mint(ctx, "stranger", alice, domain.CRUSH(1))
	assert.ErrorIs(t, err, ErrNotMinter)

	_, err = f.Tokens.Mint(ctx, domain.PrincipalAdmin, alice, domain.CRUSH(90_000_000))
	require.NoError(t, err)
	_, err = f.Tokens.Mint(ctx, domain.PrincipalAdmin, alice, domain.CRUSH(1))
	assert.ErrorIs(t, err, ErrSupplyCapExceeded)

	supply, err := f.Tokens.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Zero(t, supply.Total.Cmp(supply.Cap))

	f.Tokens.RevokeMinter(domain.PrincipalAdmin)
	assert.False(t, f.Tokens.IsMinter(domain.PrincipalAdmin))
	assert.True(t, f.Tokens.IsMinter(domain.PrincipalCore))
}

func TestRewardWorkoutStreak(t *testing.T) {
	store := memory.NewStore()
	cfg := DefaultTokenConfig()
	cfg.StreakResetAfter = 48 * time.Hour
	tokens := NewTokenService(store.Ledger(), nil, quietLogger(), cfg)
	ctx := context.Background()
	_, err := tokens.Genesis(ctx)
	require.NoError(t, err)

	user := domain.AddressOf(primitive.NewObjectID())
	_, err = tokens.RewardWorkout(ctx, domain.PrincipalCore, user, time.Now())
	assert.ErrorIs(t, err, ErrNotMinter)

	tokens.AuthorizeMinter(domain.PrincipalCore)
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	res, err := tokens.RewardWorkout(ctx, domain.PrincipalCore, user, start)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, "150", domain.FormatCRUSH(res.Amount))

	res, err = tokens.RewardWorkout(ctx, domain.PrincipalCore, user, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Streak)
	assert.Equal(t, "300", domain.FormatCRUSH(res.TotalEarned))

	// More than 48h later the streak restarts.
	res, err = tokens.RewardWorkout(ctx, domain.PrincipalCore, user, start.Add(96*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)

	streak, err := tokens.GetUserStreak(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
	bal, err := tokens.BalanceOf(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "450", domain.FormatCRUSH(bal))
}

func TestGenesisCompletesAfterFailedTreasuryOpen(t *testing.T) {
	store := memory.NewStore()
	ledger := &flakyLedger{LedgerRepository: store.Ledger(), failOpen: true}
	tokens := NewTokenService(ledger, nil, quietLogger(), DefaultTokenConfig())
	ctx := context.Background()

	_, err := tokens.Genesis(ctx)
	require.ErrorIs(t, err, errWriteTimeout)

	supply, err := tokens.Genesis(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10000000", domain.FormatCRUSH(supply.Total))
	treasury, err := tokens.BalanceOf(ctx, domain.TreasuryAddress)
	require.NoError(t, err)
	assert.Equal(t, "10000000", domain.FormatCRUSH(treasury))

	// Further boots neither credit the treasury again nor grow the supply.
	_, err = tokens.Genesis(ctx)
	require.NoError(t, err)
	treasury, err = tokens.BalanceOf(ctx, domain.TreasuryAddress)
	require.NoError(t, err)
	assert.Equal(t, "10000000", domain.FormatCRUSH(treasury))
}

func TestMintRollsBackSupplyWhenCreditFails(t *testing.T) {
	store := memory.NewStore()
	ledger := &flakyLedger{LedgerRepository: store.Ledger()}
	tokens := NewTokenService(ledger, nil, quietLogger(), DefaultTokenConfig())
	tokens.AuthorizeMinter(domain.PrincipalAdmin)
	ctx := context.Background()
	_, err := tokens.Genesis(ctx)
	require.NoError(t, err)

	alice := domain.AddressOf(primitive.NewObjectID())
	ledger.failCreditTo = alice
	_, err = tokens.Mint(ctx, domain.PrincipalAdmin, alice, domain.CRUSH(250))
	require.ErrorIs(t, err, errWriteTimeout)

	supply, err := tokens.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10000000", domain.FormatCRUSH(supply.Total))
	balance, err := tokens.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())

	_, err = tokens.Mint(ctx, domain.PrincipalAdmin, alice, domain.CRUSH(250))
	require.NoError(t, err)
	supply, err = tokens.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10000250", domain.FormatCRUSH(supply.Total))
}

func TestRewardWorkoutReportsStoredBalance(t *testing.T) {
	store := memory.NewStore()
	ledger := &flakyLedger{LedgerRepository: store.Ledger()}
	tokens := NewTokenService(ledger, nil, quietLogger(), DefaultTokenConfig())
	tokens.AuthorizeMinter(domain.PrincipalCore)
	ctx := context.Background()
	_, err := tokens.Genesis(ctx)
	require.NoError(t, err)

	user := domain.AddressOf(primitive.NewObjectID())
	ledger.afterReward = func() {
		_, err := tokens.Transfer(ctx, domain.TreasuryAddress, user, domain.CRUSH(40))
		require.NoError(t, err)
	}

	res, err := tokens.RewardWorkout(ctx, domain.PrincipalCore, user, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "190", domain.FormatCRUSH(res.Balance))
	assert.Equal(t, "150", domain.FormatCRUSH(res.TotalEarned))
}
