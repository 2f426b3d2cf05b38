package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxProfileNameLength bounds both the user name and the companion name.
const MaxProfileNameLength = 64

// UserProfile is the game registry entry of a user. Only the core registry mutates it.
type UserProfile struct {
	UserID        primitive.ObjectID `bson:"_id" json:"userId"`
	Name          string             `bson:"name" json:"name"`
	CreatureName  string             `bson:"creatureName" json:"creatureName"`
	Level         int                `bson:"level" json:"level"`
	TotalWorkouts int                `bson:"totalWorkouts" json:"totalWorkouts"`
	Points        int64              `bson:"points" json:"points"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	WalletAddress string             `bson:"walletAddress,omitempty" json:"walletAddress,omitempty"`
	LastWorkoutAt *time.Time         `bson:"lastWorkoutAt,omitempty" json:"lastWorkoutAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Address is the ledger address of the profile owner.
func (p *UserProfile) Address() Address {
	return AddressOf(p.UserID)
}

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	Rank          int                `json:"rank"`
	UserID        primitive.ObjectID `json:"userId"`
	Name          string             `json:"name"`
	CreatureName  string             `json:"creatureName"`
	Points        int64              `json:"points"`
	Level         int                `json:"level"`
	TotalWorkouts int                `json:"totalWorkouts"`
}
