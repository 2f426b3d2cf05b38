package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentMethod is how a redemption was paid for.
type PaymentMethod string

const (
	PaymentCRUSH PaymentMethod = "crush"
	PaymentNFT   PaymentMethod = "nft"
)

// RewardCatalogEntry is a reward that can be bought with CRUSH or, when
// NFTRedeemable, by consuming an unredeemed milestone NFT.
type RewardCatalogEntry struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Category          string `json:"category"`
	Cost              int64  `json:"cost"` // whole CRUSH
	NFTRedeemable     bool   `json:"nftRedeemable"`
	RequiredMilestone int    `json:"requiredMilestone"`
}

// Unlock reports whether the reward is a one-time unlock per user.
func (r RewardCatalogEntry) Unlock() bool {
	return r.NFTRedeemable
}

// DefaultRewardCatalog is the store offered by the app.
func DefaultRewardCatalog() []RewardCatalogEntry {
	return []RewardCatalogEntry{
		{ID: "premium-workout", Title: "Premium Workout Pack", Description: "Unlock 10 exclusive advanced workouts", Category: "Premium Content", Cost: 500, NFTRedeemable: true, RequiredMilestone: 30},
		{ID: "personal-trainer", Title: "1-on-1 Virtual Session", Description: "30-minute session with certified trainer", Category: "Coaching", Cost: 1000, NFTRedeemable: true, RequiredMilestone: 60},
		{ID: "nutrition-guide", Title: "Custom Nutrition Plan", Description: "Personalized meal plans for your goals", Category: "Nutrition", Cost: 750, NFTRedeemable: true, RequiredMilestone: 90},
		{ID: "equipment-discount", Title: "20% Equipment Discount", Description: "Discount code for fitness equipment", Category: "Shopping", Cost: 300},
		{ID: "streak-booster", Title: "Streak Shield", Description: "Protect your streak for 3 days", Category: "Booster", Cost: 200},
		{ID: "double-points", Title: "Double Points Weekend", Description: "Earn 2x points for 48 hours", Category: "Booster", Cost: 400},
	}
}

// Redemption records one purchase from the rewards store.
type Redemption struct {
	ID         string             `bson:"_id" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	RewardID   string             `bson:"rewardId" json:"rewardId"`
	Method     PaymentMethod      `bson:"method" json:"method"`
	Cost       int64              `bson:"cost" json:"cost"` // whole CRUSH spent, 0 for NFT
	NFTTokenID *uint64            `bson:"nftTokenId,omitempty" json:"nftTokenId,omitempty"`
	// UnlockKey is set for one-time unlocks and carries a unique index.
	UnlockKey  string    `bson:"unlockKey,omitempty" json:"-"`
	TxHash     string    `bson:"txHash" json:"txHash"`
	RedeemedAt time.Time `bson:"redeemedAt" json:"redeemedAt"`
}

// UnlockKeyFor builds the uniqueness key of a one-time unlock.
func UnlockKeyFor(userID primitive.ObjectID, rewardID string) string {
	return userID.Hex() + ":" + rewardID
}
