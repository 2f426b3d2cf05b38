package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/events"
	"wodgachi/rewards-api/internal/observability"
	"wodgachi/rewards-api/internal/repository"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotOracleNode       = errors.New("caller is not an oracle node")
	ErrOracleNodeExists    = errors.New("user is already an oracle node")
	ErrOracleNodeNotFound  = errors.New("oracle node not found")
	ErrInvalidFitnessData  = errors.New("invalid fitness data")
	ErrCallerNotAuthorized = errors.New("caller is not authorized")
	ErrUserNotFound        = errors.New("user not found")
	ErrWorkoutIDRequired   = errors.New("workout id is required")
)

type OracleService interface {
	AddOracleNode(ctx context.Context, addedBy, node primitive.ObjectID) (*domain.OracleNode, error)
	RemoveOracleNode(ctx context.Context, node primitive.ObjectID) error
	ListOracleNodes(ctx context.Context) ([]domain.OracleNode, error)
	IsOracleNode(ctx context.Context, userID primitive.ObjectID) (bool, error)

	// AuthorizeCaller allows principal to consume verifications.
	AuthorizeCaller(principal string)

	SubmitFitnessData(ctx context.Context, node, user primitive.ObjectID, workoutID string, heartRate, calories, steps int) (domain.Receipt, error)
	// VerifyWorkout is read-only and reports false when nothing was submitted.
	VerifyWorkout(ctx context.Context, user primitive.ObjectID, workoutID string, durationMin, difficulty int) (bool, error)
	// ConsumeVerification evaluates the pending submission and deletes it once it verifies.
	ConsumeVerification(ctx context.Context, caller string, user primitive.ObjectID, workoutID string, durationMin, difficulty int) (verified, found bool, err error)
}

type oracleService struct {
	oracleRepo repository.OracleRepository
	userRepo   repository.UserRepository
	publisher  events.Publisher
	log        logrus.FieldLogger
	thresholds domain.VerificationThresholds
	callers    *principalSet
	now        func() time.Time
}

func NewOracleService(oracleRepo repository.OracleRepository, userRepo repository.UserRepository, publisher events.Publisher, logger logrus.FieldLogger, thresholds domain.VerificationThresholds) OracleService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &oracleService{
		oracleRepo: oracleRepo,
		userRepo:   userRepo,
		publisher:  publisher,
		log:        logger.WithField("component", "oracle"),
		thresholds: thresholds,
		callers:    newPrincipalSet(),
		now:        time.Now,
	}
}

func (s *oracleService) AddOracleNode(ctx context.Context, addedBy, node primitive.ObjectID) (*domain.OracleNode, error) {
	if _, err := s.userRepo.GetByID(ctx, node); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	entry := &domain.OracleNode{UserID: node, AddedBy: addedBy, AddedAt: s.now().UTC()}
	if err := s.oracleRepo.AddNode(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrOracleNodeExists
		}
		return nil, fmt.Errorf("add oracle node: %w", err)
	}
	s.log.WithFields(logrus.Fields{"node": node.Hex(), "addedBy": addedBy.Hex()}).Info("oracle node added")
	return entry, nil
}

func (s *oracleService) RemoveOracleNode(ctx context.Context, node primitive.ObjectID) error {
	if err := s.oracleRepo.RemoveNode(ctx, node); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOracleNodeNotFound
		}
		return err
	}
	s.log.WithField("node", node.Hex()).Info("oracle node removed")
	return nil
}

func (s *oracleService) ListOracleNodes(ctx context.Context) ([]domain.OracleNode, error) {
	return s.oracleRepo.ListNodes(ctx)
}

func (s *oracleService) IsOracleNode(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	return s.oracleRepo.IsNode(ctx, userID)
}

func (s *oracleService) AuthorizeCaller(principal string) { s.callers.add(principal) }

func (s *oracleService) SubmitFitnessData(ctx context.Context, node, user primitive.ObjectID, workoutID string, heartRate, calories, steps int) (domain.Receipt, error) {
	ok, err := s.oracleRepo.IsNode(ctx, node)
	if err != nil {
		return domain.Receipt{}, err
	}
	if !ok {
		return domain.Receipt{}, ErrNotOracleNode
	}
	workoutID = strings.TrimSpace(workoutID)
	if workoutID == "" {
		return domain.Receipt{}, ErrWorkoutIDRequired
	}
	if user.IsZero() || heartRate < domain.MinHeartRate || heartRate > domain.MaxHeartRate || calories < 0 || steps < 0 {
		return domain.Receipt{}, ErrInvalidFitnessData
	}

	now := s.now().UTC()
	sub := &domain.FitnessSubmission{
		UserID:      user,
		WorkoutID:   workoutID,
		HeartRate:   heartRate,
		Calories:    calories,
		Steps:       steps,
		Node:        node,
		SubmittedAt: now,
	}
	if err := s.oracleRepo.UpsertSubmission(ctx, sub); err != nil {
		return domain.Receipt{}, fmt.Errorf("store submission: %w", err)
	}

	receipt := domain.NewReceipt(domain.ReceiptOracleData, now, node.Hex(), user.Hex(), workoutID,
		strconv.Itoa(heartRate), strconv.Itoa(calories), strconv.Itoa(steps))
	s.publisher.Publish(ctx, events.New(events.FitnessDataReceived, user.Hex(), receipt.TxHash, map[string]any{
		"workoutId": workoutID, "node": node.Hex(), "heartRate": heartRate, "calories": calories, "steps": steps,
	}))
	return receipt, nil
}

func (s *oracleService) VerifyWorkout(ctx context.Context, user primitive.ObjectID, workoutID string, durationMin, difficulty int) (bool, error) {
	if !domain.ValidWorkoutParams(durationMin, difficulty) {
		return false, ErrInvalidWorkoutParams
	}
	sub, err := s.oracleRepo.GetSubmission(ctx, user, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.thresholds.Verify(sub, durationMin, difficulty), nil
}

func (s *oracleService) ConsumeVerification(ctx context.Context, caller string, user primitive.ObjectID, workoutID string, durationMin, difficulty int) (bool, bool, error) {
	if !s.callers.has(caller) {
		return false, false, ErrCallerNotAuthorized
	}
	if !domain.ValidWorkoutParams(durationMin, difficulty) {
		return false, false, ErrInvalidWorkoutParams
	}
	sub, err := s.oracleRepo.GetSubmission(ctx, user, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			observability.RecordVerification("absent")
			return false, false, nil
		}
		return false, false, err
	}
	if !s.thresholds.Verify(sub, durationMin, difficulty) {
		observability.RecordVerification("failed")
		return false, true, nil
	}
	if err := s.oracleRepo.DeleteSubmission(ctx, user, workoutID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, true, fmt.Errorf("consume submission: %w", err)
	}
	observability.RecordVerification("verified")
	return true, true, nil
}
