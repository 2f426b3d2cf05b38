package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgressNFT is a milestone token. Everything except the redemption fields is
// immutable after minting, and IsRedeemed only ever goes from false to true.
type ProgressNFT struct {
	TokenID           uint64             `bson:"_id" json:"tokenId"`
	Owner             primitive.ObjectID `bson:"owner" json:"owner"`
	WorkoutsMilestone int                `bson:"workoutsMilestone" json:"workoutsMilestone"`
	Metadata          ProgressMetadata   `bson:"metadata" json:"metadata"`
	TokenURI          string             `bson:"tokenUri,omitempty" json:"tokenUri,omitempty"`
	TxHash            string             `bson:"txHash" json:"transactionHash"`
	MintedAt          time.Time          `bson:"mintedAt" json:"mintedAt"`
	IsRedeemed        bool               `bson:"isRedeemed" json:"isRedeemed"`
	RedeemedFor       string             `bson:"redeemedFor,omitempty" json:"redeemedFor,omitempty"`
	RedeemedAt        *time.Time         `bson:"redeemedAt,omitempty" json:"redeemedAt,omitempty"`
}

// ProgressMetadata is the progress snapshot taken at mint time.
type ProgressMetadata struct {
	TotalWorkouts int      `bson:"totalWorkouts" json:"totalWorkouts"`
	Level         int      `bson:"level" json:"level"`
	Streak        int      `bson:"streak" json:"streak"`
	TokensEarned  int64    `bson:"tokensEarned" json:"tokensEarned"` // whole CRUSH
	CreatureName  string   `bson:"creatureName" json:"creatureName"`
	CreatureLevel int      `bson:"creatureLevel" json:"creatureLevel"`
	Achievements  []string `bson:"achievements" json:"achievements"`
}

// ProgressSnapshot is what the core registry hands to the NFT registry for a mint.
type ProgressSnapshot struct {
	TotalWorkouts int
	Level         int
	Streak        int
	TokensEarned  int64
	CreatureName  string
}
