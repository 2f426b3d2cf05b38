package repository

import (
	"context"
	"math/big"
	"time"

	"wodgachi/rewards-api/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound        = RepositoryError("not found")
	ErrDuplicate       = RepositoryError("duplicate key")
	ErrConditionFailed = RepositoryError("condition failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository stores authenticated accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// ProfileRepository stores the core registry of game profiles.
type ProfileRepository interface {
	// Create returns ErrDuplicate when the user already has a profile.
	Create(ctx context.Context, profile *domain.UserProfile) error
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.UserProfile, error)
	UpdateProgress(ctx context.Context, userID primitive.ObjectID, totalWorkouts, level int, points int64, at time.Time) error
	SetWallet(ctx context.Context, userID primitive.ObjectID, wallet string) error
	// ListTop returns active profiles ordered by points, workouts, then registration.
	ListTop(ctx context.Context, limit int) ([]domain.UserProfile, error)
}

// LedgerRepository stores CRUSH balances, allowances and supply.
// Debit, SpendAllowance and IncreaseSupply are conditional and return
// ErrConditionFailed instead of going below zero or above the cap.
type LedgerRepository interface {
	GetAccount(ctx context.Context, addr domain.Address) (*domain.TokenAccount, error)
	Credit(ctx context.Context, addr domain.Address, amount *big.Int) error
	Debit(ctx context.Context, addr domain.Address, amount *big.Int) error
	RecordReward(ctx context.Context, addr domain.Address, earned *big.Int, streak int, at time.Time) error
	// OpenAccount creates addr holding balance; ErrDuplicate if the account exists.
	OpenAccount(ctx context.Context, addr domain.Address, balance *big.Int) error

	GetAllowance(ctx context.Context, owner, spender domain.Address) (*big.Int, error)
	SetAllowance(ctx context.Context, owner, spender domain.Address, amount *big.Int) error
	SpendAllowance(ctx context.Context, owner, spender domain.Address, amount *big.Int) error

	// InitSupply creates the supply record; ErrDuplicate if it already exists.
	InitSupply(ctx context.Context, supply domain.Supply) error
	GetSupply(ctx context.Context) (*domain.Supply, error)
	IncreaseSupply(ctx context.Context, amount *big.Int) error
}

// WorkoutRepository stores the valid workout catalog and the workout log.
type WorkoutRepository interface {
	Upsert(ctx context.Context, workout *domain.ValidWorkout) error
	GetByID(ctx context.Context, id string) (*domain.ValidWorkout, error)
	SetActive(ctx context.Context, id string, active bool) error
	ListActive(ctx context.Context) ([]domain.ValidWorkout, error)
	// Count includes deactivated entries.
	Count(ctx context.Context) (int64, error)

	AppendLog(ctx context.Context, entry *domain.WorkoutLog) error
	ListLogs(ctx context.Context, userID primitive.ObjectID, limit int) ([]domain.WorkoutLog, error)
}

// OracleRepository stores oracle nodes and pending fitness submissions.
type OracleRepository interface {
	AddNode(ctx context.Context, node *domain.OracleNode) error
	RemoveNode(ctx context.Context, userID primitive.ObjectID) error
	IsNode(ctx context.Context, userID primitive.ObjectID) (bool, error)
	ListNodes(ctx context.Context) ([]domain.OracleNode, error)

	UpsertSubmission(ctx context.Context, sub *domain.FitnessSubmission) error
	GetSubmission(ctx context.Context, userID primitive.ObjectID, workoutID string) (*domain.FitnessSubmission, error)
	DeleteSubmission(ctx context.Context, userID primitive.ObjectID, workoutID string) error
}

// NFTRepository stores milestone NFTs.
type NFTRepository interface {
	NextTokenID(ctx context.Context) (uint64, error)
	// Create returns ErrDuplicate when the owner already holds the milestone.
	Create(ctx context.Context, nft *domain.ProgressNFT) error
	GetByTokenID(ctx context.Context, tokenID uint64) (*domain.ProgressNFT, error)
	ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]domain.ProgressNFT, error)
	HasMilestone(ctx context.Context, owner primitive.ObjectID, milestone int) (bool, error)
	// SetTokenURI returns ErrNotFound for an unknown token.
	SetTokenURI(ctx context.Context, tokenID uint64, uri string) error
	// MarkRedeemed returns ErrConditionFailed when the NFT is already redeemed.
	MarkRedeemed(ctx context.Context, tokenID uint64, rewardID string, at time.Time) error
}

// RedemptionRepository stores rewards store purchases.
type RedemptionRepository interface {
	// Create returns ErrDuplicate when a one-time unlock already exists.
	Create(ctx context.Context, r *domain.Redemption) error
	HasUnlock(ctx context.Context, unlockKey string) (bool, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Redemption, error)
}
