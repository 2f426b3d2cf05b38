package service

import (
	"context"
	"testing"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func addNode(t *testing.T, f *fixture, email string) primitive.ObjectID {
	t.Helper()
	ctx := context.Background()
	admin, err := f.Auth.EnsureAdmin(ctx, "Admin", "admin@example.com", "password123")
	require.NoError(t, err)
	node, err := f.Auth.Register(ctx, "Watch Bridge", email, "password123", domain.RoleUser)
	require.NoError(t, err)
	_, err = f.Oracle.AddOracleNode(ctx, admin.ID, node.ID)
	require.NoError(t, err)
	return node.ID
}

func TestOracleNodeManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := addNode(t, f, "node@example.com")

	ok, err := f.Oracle.IsOracleNode(ctx, node)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.Oracle.AddOracleNode(ctx, primitive.NewObjectID(), node)
	assert.ErrorIs(t, err, ErrOracleNodeExists)
	_, err = f.Oracle.AddOracleNode(ctx, primitive.NewObjectID(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrUserNotFound)

	nodes, err := f.Oracle.ListOracleNodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	require.NoError(t, f.Oracle.RemoveOracleNode(ctx, node))
	assert.ErrorIs(t, f.Oracle.RemoveOracleNode(ctx, node), ErrOracleNodeNotFound)
	ok, err = f.Oracle.IsOracleNode(ctx, node)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitFitnessDataValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := addNode(t, f, "node@example.com")
	user := f.newPlayer(t, "alice@example.com")

	_, err := f.Oracle.SubmitFitnessData(ctx, user, user, testWorkout, 150, 300, 2500)
	assert.ErrorIs(t, err, ErrNotOracleNode)
	_, err = f.Oracle.SubmitFitnessData(ctx, node, user, " ", 150, 300, 2500)
	assert.ErrorIs(t, err, ErrWorkoutIDRequired)
	_, err = f.Oracle.SubmitFitnessData(ctx, node, user, testWorkout, 20, 300, 2500)
	assert.ErrorIs(t, err, ErrInvalidFitnessData)
	_, err = f.Oracle.SubmitFitnessData(ctx, node, user, testWorkout, 150, -1, 2500)
	assert.ErrorIs(t, err, ErrInvalidFitnessData)

	receipt, err := f.Oracle.SubmitFitnessData(ctx, node, user, testWorkout, 150, 300, 2500)
	require.NoError(t, err)
	assert.True(t, domain.IsTxHash(receipt.TxHash))
	assert.Len(t, f.events.OfType(events.FitnessDataReceived), 1)
}

func TestVerifiedWorkoutConsumesSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := addNode(t, f, "node@example.com")
	user := f.newPlayer(t, "alice@example.com")

	_, err := f.Oracle.SubmitFitnessData(ctx, node, user, testWorkout, 150, 300, 2500)
	require.NoError(t, err)

	ok, err := f.Oracle.VerifyWorkout(ctx, user, testWorkout, 30, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := f.Core.SubmitWorkout(ctx, user, testWorkout, 30, 2)
	require.NoError(t, err)
	assert.True(t, res.Verified)

	// The submission was consumed: the next workout is unverified but accepted.
	ok, err = f.Oracle.VerifyWorkout(ctx, user, testWorkout, 30, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	res, err = f.Core.SubmitWorkout(ctx, user, testWorkout, 30, 2)
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestWeakSubmissionRejectsWorkout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := addNode(t, f, "node@example.com")
	user := f.newPlayer(t, "alice@example.com")

	_, err := f.Oracle.SubmitFitnessData(ctx, node, user, testWorkout, 80, 50, 100)
	require.NoError(t, err)

	ok, err := f.Oracle.VerifyWorkout(ctx, user, testWorkout, 30, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.Core.SubmitWorkout(ctx, user, testWorkout, 30, 3)
	assert.ErrorIs(t, err, ErrWorkoutNotVerified)
	assert.Zero(t, f.balance(t, domain.AddressOf(user)))

	// A better submission replaces the weak one.
	_, err = f.Oracle.SubmitFitnessData(ctx, node, user, testWorkout, 150, 600, 2500)
	require.NoError(t, err)
	res, err := f.Core.SubmitWorkout(ctx, user, testWorkout, 30, 3)
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestRequireSubmission(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RequireSubmission = true })
	user := f.newPlayer(t, "alice@example.com")

	_, err := f.Core.SubmitWorkout(context.Background(), user, testWorkout, 30, 2)
	assert.ErrorIs(t, err, ErrWorkoutNotVerified)
}

func TestConsumeVerificationRequiresAuthorizedCaller(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.Oracle.ConsumeVerification(context.Background(), domain.PrincipalRewards, primitive.NewObjectID(), testWorkout, 30, 2)
	assert.ErrorIs(t, err, ErrCallerNotAuthorized)
}

func TestVerificationRejectsOutOfRangeClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := addNode(t, f, "node@example.com")
	user := f.newPlayer(t, "alice@example.com")

	_, err := f.Oracle.SubmitFitnessData(ctx, node, user, testWorkout, 150, 0, 0)
	require.NoError(t, err)

	for _, c := range []struct{ duration, difficulty int }{
		{-100, 1}, {1 << 62, 1}, {0, 2}, {601, 2}, {30, 0}, {30, 4},
	} {
		ok, err := f.Oracle.VerifyWorkout(ctx, user, testWorkout, c.duration, c.difficulty)
		assert.ErrorIs(t, err, ErrInvalidWorkoutParams, "%d min at d%d", c.duration, c.difficulty)
		assert.False(t, ok)

		ok, found, err := f.Oracle.ConsumeVerification(ctx, domain.PrincipalCore, user, testWorkout, c.duration, c.difficulty)
		assert.ErrorIs(t, err, ErrInvalidWorkoutParams)
		assert.False(t, ok)
		assert.False(t, found)
	}

	// The submission is still pending and fails an in-range claim.
	ok, err := f.Oracle.VerifyWorkout(ctx, user, testWorkout, 30, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
