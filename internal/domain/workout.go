package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Difficulty bounds accepted on submission (beginner..advanced).
const (
	MinDifficulty = 1
	MaxDifficulty = 3

	MinWorkoutDuration = 1   // minutes
	MaxWorkoutDuration = 600 // minutes
)

// ValidWorkoutParams reports whether a claimed duration and difficulty are in range.
func ValidWorkoutParams(durationMin, difficulty int) bool {
	return durationMin >= MinWorkoutDuration && durationMin <= MaxWorkoutDuration &&
		difficulty >= MinDifficulty && difficulty <= MaxDifficulty
}

// ValidWorkout is a catalog entry that may be submitted for rewards.
type ValidWorkout struct {
	ID         string    `bson:"_id" json:"id"` // e.g. "hiit-cardio-blast"
	Title      string    `bson:"title" json:"title"`
	Duration   int       `bson:"duration" json:"duration"`     // suggested minutes
	Difficulty int       `bson:"difficulty" json:"difficulty"` // 1..3
	Points     int       `bson:"points" json:"points"`
	Active     bool      `bson:"active" json:"active"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// WorkoutLog records one rewarded workout submission.
type WorkoutLog struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID `bson:"userId" json:"userId"`
	WorkoutID        string             `bson:"workoutId" json:"workoutId"`
	DurationMin      int                `bson:"durationMin" json:"durationMin"`
	Difficulty       int                `bson:"difficulty" json:"difficulty"`
	Reward           string             `bson:"reward" json:"reward"` // whole CRUSH, decimal string
	OracleVerified   bool               `bson:"oracleVerified" json:"oracleVerified"`
	WorkoutNumber    int                `bson:"workoutNumber" json:"workoutNumber"` // totalWorkouts after this one
	TxHash           string             `bson:"txHash" json:"txHash"`
	MintedNFTTokenID *uint64            `bson:"mintedNftTokenId,omitempty" json:"mintedNftTokenId,omitempty"`
	SubmittedAt      time.Time          `bson:"submittedAt" json:"submittedAt"`
}
