package domain

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, 1, r.LevelFor(0))
	assert.Equal(t, 1, r.LevelFor(9))
	assert.Equal(t, 2, r.LevelFor(10))
	assert.Equal(t, 4, r.LevelFor(35))
}

func TestMilestones(t *testing.T) {
	r := DefaultRules()
	assert.False(t, r.IsMilestone(0))
	assert.False(t, r.IsMilestone(29))
	assert.True(t, r.IsMilestone(30))
	assert.False(t, r.IsMilestone(35))
	assert.True(t, r.IsMilestone(60))

	assert.Equal(t, 30, r.NextMilestone(0))
	assert.Equal(t, 30, r.NextMilestone(29))
	assert.Equal(t, 60, r.NextMilestone(30))
	assert.Equal(t, 2, r.CreatureLevelFor(30))
}

func TestAchievements(t *testing.T) {
	got := Achievements(ProgressSnapshot{TotalWorkouts: 30, Level: 4, Streak: 30})
	assert.Equal(t, []string{"First Sweat", "Getting Started", "Committed", "Week Warrior", "Streak Legend"}, got)
	assert.Empty(t, Achievements(ProgressSnapshot{}))
}

func TestCRUSHFormatting(t *testing.T) {
	assert.Equal(t, "150", FormatCRUSH(CRUSH(150)))
	assert.Equal(t, int64(150), WholeCRUSH(CRUSH(150)))

	half, err := ParseCRUSH("0.5")
	require.NoError(t, err)
	assert.Equal(t, "0.5", FormatCRUSH(half))

	v, err := ParseCRUSH("500")
	require.NoError(t, err)
	assert.Zero(t, v.Cmp(CRUSH(500)))

	for _, bad := range []string{"", "-1", "abc", "1.", "1.0000000000000000001"} {
		_, err := ParseCRUSH(bad)
		assert.ErrorIs(t, err, ErrInvalidAmountFormat, bad)
	}
	assert.Equal(t, "0", FormatCRUSH(big.NewInt(0)))
}

func TestVerificationThresholds(t *testing.T) {
	th := DefaultVerificationThresholds()
	strong := &FitnessSubmission{HeartRate: 150, Calories: 300, Steps: 2500}
	weak := &FitnessSubmission{HeartRate: 80, Calories: 50, Steps: 100}

	assert.True(t, th.Verify(strong, 30, 2))
	assert.False(t, th.Verify(weak, 30, 3))
	assert.False(t, th.Verify(nil, 30, 1))

	empty := &FitnessSubmission{HeartRate: 150}
	for _, c := range []struct{ duration, difficulty int }{
		{-100, 1}, {0, 1}, {1 << 62, 1}, {601, 1}, {30, 0}, {30, -5}, {30, 4},
	} {
		assert.False(t, th.Verify(empty, c.duration, c.difficulty), "%d min at d%d", c.duration, c.difficulty)
	}
}

func TestNormalizeWalletAddress(t *testing.T) {
	got, err := NormalizeWalletAddress("xdc742d35cc6634c0532925a3b8d4c9db96c4b5da5a")
	require.NoError(t, err)
	assert.True(t, strings.EqualFold("0x742d35cc6634c0532925a3b8d4c9db96c4b5da5a", got))
	again, err := NormalizeWalletAddress(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, "xdc"+got[2:], XDCForm(got))

	_, err = NormalizeWalletAddress("0x8ba1f109551bD432803012645Hac136c9c1495A")
	assert.ErrorIs(t, err, ErrInvalidWalletAddress)
	_, err = NormalizeWalletAddress("742d35cc6634c0532925a3b8d4c9db96c4b5da5a")
	assert.ErrorIs(t, err, ErrInvalidWalletAddress)
	_, err = NormalizeWalletAddress("0x0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidWalletAddress)
}

func TestNewReceipt(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewReceipt(ReceiptWorkout, at, "user", "hiit")
	b := NewReceipt(ReceiptWorkout, at, "user", "hiit")
	assert.True(t, IsTxHash(a.TxHash))
	assert.NotEqual(t, a.TxHash, b.TxHash)
	assert.Equal(t, ReceiptWorkout, a.Kind)
}

func TestParseAddress(t *testing.T) {
	for _, ok := range []string{"treasury", "rewards", "64b7f0c2a1e3d4f5a6b7c8d9"} {
		a, err := ParseAddress(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, Address(ok), a)
	}
	_, err := ParseAddress("alice")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	id, isUser := Address("64b7f0c2a1e3d4f5a6b7c8d9").UserID()
	assert.True(t, isUser)
	assert.Equal(t, "64b7f0c2a1e3d4f5a6b7c8d9", id.Hex())
	_, isUser = TreasuryAddress.UserID()
	assert.False(t, isUser)
}
