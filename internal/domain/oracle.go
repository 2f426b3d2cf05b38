package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Accepted sensor ranges for a fitness submission.
const (
	MinHeartRate = 30
	MaxHeartRate = 250
)

// FitnessSubmission is sensor data reported by an oracle node for one
// (user, workout) pair. It is replaced on re-submission and deleted once consumed.
type FitnessSubmission struct {
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	WorkoutID   string             `bson:"workoutId" json:"workoutId"`
	HeartRate   int                `bson:"heartRate" json:"heartRate"`
	Calories    int                `bson:"calories" json:"calories"`
	Steps       int                `bson:"steps" json:"steps"`
	Node        primitive.ObjectID `bson:"node" json:"node"`
	SubmittedAt time.Time          `bson:"submittedAt" json:"submittedAt"`
}

// OracleNode is an account allowed to submit fitness data.
type OracleNode struct {
	UserID  primitive.ObjectID `bson:"_id" json:"userId"`
	AddedBy primitive.ObjectID `bson:"addedBy" json:"addedBy"`
	AddedAt time.Time          `bson:"addedAt" json:"addedAt"`
}

// VerificationThresholds is the rule a submission must meet for a claimed workout.
type VerificationThresholds struct {
	HeartRateBase          int
	HeartRatePerDifficulty int
	CaloriesPerMinute      int
	StepsPerMinute         int
}

// DefaultVerificationThresholds: HR >= 90+10d, kcal >= 2*t*d, steps >= 20*t.
func DefaultVerificationThresholds() VerificationThresholds {
	return VerificationThresholds{
		HeartRateBase:          90,
		HeartRatePerDifficulty: 10,
		CaloriesPerMinute:      2,
		StepsPerMinute:         20,
	}
}

// Verify reports whether s supports a workout of durationMin minutes at difficulty.
// Out of range claims never verify.
func (t VerificationThresholds) Verify(s *FitnessSubmission, durationMin, difficulty int) bool {
	if s == nil || !ValidWorkoutParams(durationMin, difficulty) {
		return false
	}
	if s.HeartRate < t.HeartRateBase+t.HeartRatePerDifficulty*difficulty {
		return false
	}
	if s.Calories < t.CaloriesPerMinute*durationMin*difficulty {
		return false
	}
	return s.Steps >= t.StepsPerMinute*durationMin
}
