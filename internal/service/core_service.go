package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/events"
	"wodgachi/rewards-api/internal/observability"
	"wodgachi/rewards-api/internal/repository"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrAlreadyRegistered    = errors.New("user is already registered")
	ErrUserNotRegistered    = errors.New("user is not registered")
	ErrUserInactive         = errors.New("user is not active")
	ErrInvalidProfileName   = errors.New("name and creature name are required and limited to 64 characters")
	ErrInvalidWorkout       = errors.New("workout is not a valid workout")
	ErrInvalidWorkoutParams = errors.New("duration must be 1..600 minutes and difficulty 1..3")
	ErrWorkoutNotVerified   = errors.New("workout could not be verified by the oracle")
	ErrInvalidCatalogEntry  = errors.New("workout id and title are required, difficulty must be 1..3")
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	DefaultHistoryLimit     = 50
)

// CoreConfig holds the registry rules.
type CoreConfig struct {
	Rules             domain.Rules
	RequireSubmission bool // reject workouts without an oracle submission
}

// WorkoutResult is returned by SubmitWorkout.
type WorkoutResult struct {
	Profile   *domain.UserProfile `json:"profile"`
	Reward    string              `json:"reward"` // whole CRUSH
	Balance   string              `json:"balance"`
	Streak    int                 `json:"streak"`
	LeveledUp bool                `json:"leveledUp"`
	Verified  bool                `json:"oracleVerified"`
	NFT       *domain.ProgressNFT `json:"nft,omitempty"`
	Receipt   domain.Receipt      `json:"receipt"`
}

// Progress is the sync view shown by the app.
type Progress struct {
	WorkoutsCompleted    int    `json:"workoutsCompleted"`
	Level                int    `json:"level"`
	TokensEarned         string `json:"tokensEarned"`
	Balance              string `json:"balance"`
	StreakDays           int    `json:"streakDays"`
	NFTsOwned            int    `json:"nftsOwned"`
	NextMilestone        int    `json:"nextMilestone"`
	WorkoutsUntilNextNFT int    `json:"workoutsUntilNextNFT"`
}

// Leaderboard keeps the parallel array shape of the registry's getLeaderboard
// alongside ranked entries.
type Leaderboard struct {
	Users    []string                  `json:"users"`
	Names    []string                  `json:"names"`
	Points   []int64                   `json:"points"`
	Levels   []int                     `json:"levels"`
	Workouts []int                     `json:"workouts"`
	Entries  []domain.LeaderboardEntry `json:"entries"`
}

type CoreService interface {
	RegisterUser(ctx context.Context, userID primitive.ObjectID, name, creatureName string) (*domain.UserProfile, domain.Receipt, error)
	GetUserProfile(ctx context.Context, userID primitive.ObjectID) (*domain.UserProfile, error)

	AddValidWorkout(ctx context.Context, workout domain.ValidWorkout) (*domain.ValidWorkout, error)
	RemoveValidWorkout(ctx context.Context, id string) error
	ListValidWorkouts(ctx context.Context) ([]domain.ValidWorkout, error)
	// SeedValidWorkouts adds seeds only while the catalog has never held an entry.
	SeedValidWorkouts(ctx context.Context, seeds []domain.ValidWorkout) (int, error)

	SubmitWorkout(ctx context.Context, userID primitive.ObjectID, workoutID string, durationMin, difficulty int) (*WorkoutResult, error)
	GetLeaderboard(ctx context.Context, limit int) (*Leaderboard, error)
	GetProgress(ctx context.Context, userID primitive.ObjectID) (*Progress, error)
	LinkWallet(ctx context.Context, userID primitive.ObjectID, address string) (*domain.UserProfile, error)
	ListWorkoutHistory(ctx context.Context, userID primitive.ObjectID, limit int) ([]domain.WorkoutLog, error)
}

type coreService struct {
	profileRepo repository.ProfileRepository
	workoutRepo repository.WorkoutRepository
	tokens      TokenService
	oracle      OracleService
	nfts        NFTService
	locks       *KeyedLocker
	publisher   events.Publisher
	log         logrus.FieldLogger
	cfg         CoreConfig
	now         func() time.Time
}

func NewCoreService(
	profileRepo repository.ProfileRepository,
	workoutRepo repository.WorkoutRepository,
	tokens TokenService,
	oracle OracleService,
	nfts NFTService,
	locks *KeyedLocker,
	publisher events.Publisher,
	logger logrus.FieldLogger,
	cfg CoreConfig,
) CoreService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &coreService{
		profileRepo: profileRepo,
		workoutRepo: workoutRepo,
		tokens:      tokens,
		oracle:      oracle,
		nfts:        nfts,
		locks:       locks,
		publisher:   publisher,
		log:         logger.WithField("component", "core"),
		cfg:         cfg,
		now:         time.Now,
	}
}

func validProfileName(s string) bool {
	return s != "" && utf8.RuneCountInString(s) <= domain.MaxProfileNameLength
}

func (s *coreService) RegisterUser(ctx context.Context, userID primitive.ObjectID, name, creatureName string) (*domain.UserProfile, domain.Receipt, error) {
	name = strings.TrimSpace(name)
	creatureName = strings.TrimSpace(creatureName)
	if !validProfileName(name) || !validProfileName(creatureName) {
		return nil, domain.Receipt{}, ErrInvalidProfileName
	}

	unlock := s.locks.Lock(userID.Hex())
	defer unlock()

	profile := &domain.UserProfile{
		UserID:       userID,
		Name:         name,
		CreatureName: creatureName,
		Level:        1,
		IsActive:     true,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.Receipt{}, ErrAlreadyRegistered
		}
		return nil, domain.Receipt{}, fmt.Errorf("create profile: %w", err)
	}

	receipt := domain.NewReceipt(domain.ReceiptRegistration, s.now(), userID.Hex(), name, creatureName)
	s.log.WithFields(logrus.Fields{"user": userID.Hex(), "creature": creatureName}).Info("user registered")
	s.publisher.Publish(ctx, events.New(events.UserRegistered, userID.Hex(), receipt.TxHash, map[string]any{
		"name": name, "creatureName": creatureName,
	}))
	return profile, receipt, nil
}

func (s *coreService) GetUserProfile(ctx context.Context, userID primitive.ObjectID) (*domain.UserProfile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotRegistered
	}
	return profile, err
}

func (s *coreService) AddValidWorkout(ctx context.Context, workout domain.ValidWorkout) (*domain.ValidWorkout, error) {
	workout.ID = strings.TrimSpace(workout.ID)
	workout.Title = strings.TrimSpace(workout.Title)
	if workout.ID == "" || workout.Title == "" ||
		workout.Difficulty < domain.MinDifficulty || workout.Difficulty > domain.MaxDifficulty ||
		workout.Duration < 0 || workout.Points < 0 {
		return nil, ErrInvalidCatalogEntry
	}
	workout.Active = true
	if err := s.workoutRepo.Upsert(ctx, &workout); err != nil {
		return nil, fmt.Errorf("upsert workout: %w", err)
	}
	return &workout, nil
}

// RemoveValidWorkout deactivates the entry; logged workouts keep referring to it.
func (s *coreService) RemoveValidWorkout(ctx context.Context, id string) error {
	if err := s.workoutRepo.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidWorkout
		}
		return err
	}
	return nil
}

func (s *coreService) ListValidWorkouts(ctx context.Context) ([]domain.ValidWorkout, error) {
	return s.workoutRepo.ListActive(ctx)
}

func (s *coreService) SeedValidWorkouts(ctx context.Context, seeds []domain.ValidWorkout) (int, error) {
	n, err := s.workoutRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count workouts: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	for _, w := range seeds {
		if _, err := s.AddValidWorkout(ctx, w); err != nil {
			return 0, fmt.Errorf("seed workout %q: %w", w.ID, err)
		}
	}
	return len(seeds), nil
}

func (s *coreService) SubmitWorkout(ctx context.Context, userID primitive.ObjectID, workoutID string, durationMin, difficulty int) (*WorkoutResult, error) {
	unlock := s.locks.Lock(userID.Hex())
	defer unlock()

	result, err := s.submitWorkout(ctx, userID, workoutID, durationMin, difficulty)
	observability.RecordWorkout(err == nil)
	return result, err
}

func (s *coreService) submitWorkout(ctx context.Context, userID primitive.ObjectID, workoutID string, durationMin, difficulty int) (*WorkoutResult, error) {
	profile, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		return nil, ErrUserInactive
	}

	workout, err := s.workoutRepo.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidWorkout
		}
		return nil, err
	}
	if !workout.Active {
		return nil, ErrInvalidWorkout
	}
	if !domain.ValidWorkoutParams(durationMin, difficulty) {
		return nil, ErrInvalidWorkoutParams
	}

	verified, found, err := s.oracle.ConsumeVerification(ctx, domain.PrincipalCore, userID, workoutID, durationMin, difficulty)
	if err != nil {
		return nil, fmt.Errorf("oracle verification: %w", err)
	}
	if (found && !verified) || (!found && s.cfg.RequireSubmission) {
		return nil, ErrWorkoutNotVerified
	}

	now := s.now().UTC()
	reward, err := s.tokens.RewardWorkout(ctx, domain.PrincipalCore, profile.Address(), now)
	if err != nil {
		return nil, fmt.Errorf("reward workout: %w", err)
	}

	total := profile.TotalWorkouts + 1
	level := s.cfg.Rules.LevelFor(total)
	points := profile.Points + domain.WholeCRUSH(reward.Amount)
	if err := s.profileRepo.UpdateProgress(ctx, userID, total, level, points, now); err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}
	leveledUp := level > profile.Level
	profile.TotalWorkouts, profile.Level, profile.Points = total, level, points
	profile.LastWorkoutAt = &now

	logger := s.log.WithFields(logrus.Fields{"user": userID.Hex(), "workout": workoutID, "total": total})

	minted := s.syncMilestones(ctx, logger, profile, domain.ProgressSnapshot{
		TotalWorkouts: total,
		Level:         level,
		Streak:        reward.Streak,
		TokensEarned:  domain.WholeCRUSH(reward.TotalEarned),
		CreatureName:  profile.CreatureName,
	})

	receipt := domain.NewReceipt(domain.ReceiptWorkout, now, userID.Hex(), workoutID,
		strconv.Itoa(durationMin), strconv.Itoa(difficulty), strconv.Itoa(total))
	entry := &domain.WorkoutLog{
		UserID:         userID,
		WorkoutID:      workoutID,
		DurationMin:    durationMin,
		Difficulty:     difficulty,
		Reward:         domain.FormatCRUSH(reward.Amount),
		OracleVerified: verified,
		WorkoutNumber:  total,
		TxHash:         receipt.TxHash,
		SubmittedAt:    now,
	}
	if minted != nil {
		id := minted.TokenID
		entry.MintedNFTTokenID = &id
	}
	if err := s.workoutRepo.AppendLog(ctx, entry); err != nil {
		logger.WithError(err).Error("append workout log")
	}

	logger.WithFields(logrus.Fields{"streak": reward.Streak, "level": level}).Info("workout rewarded")
	payload := map[string]any{
		"workoutId": workoutID, "durationMin": durationMin, "difficulty": difficulty,
		"reward": domain.FormatCRUSH(reward.Amount), "totalWorkouts": total, "level": level,
		"streak": reward.Streak, "oracleVerified": verified,
	}
	if minted != nil {
		payload["nftTokenId"] = minted.TokenID
	}
	s.publisher.Publish(ctx, events.New(events.WorkoutSubmitted, userID.Hex(), receipt.TxHash, payload))

	return &WorkoutResult{
		Profile:   profile,
		Reward:    domain.FormatCRUSH(reward.Amount),
		Balance:   domain.FormatCRUSH(reward.Balance),
		Streak:    reward.Streak,
		LeveledUp: leveledUp,
		Verified:  verified,
		NFT:       minted,
		Receipt:   receipt,
	}, nil
}

// syncMilestones mints every reached milestone the user does not hold yet and
// republishes metadata that never reached storage, so a failure on one workout
// is repaired by the next. It returns the highest NFT minted by this call.
func (s *coreService) syncMilestones(ctx context.Context, logger logrus.FieldLogger, profile *domain.UserProfile, current domain.ProgressSnapshot) *domain.ProgressNFT {
	interval := s.cfg.Rules.MilestoneInterval
	reached := current.TotalWorkouts / interval * interval
	if reached == 0 {
		return nil
	}
	held, err := s.nfts.GetUserNFTs(ctx, profile.UserID)
	if err != nil {
		logger.WithError(err).Error("list milestone NFTs")
		return nil
	}

	owned := make(map[int]bool, len(held))
	for _, nft := range held {
		owned[nft.WorkoutsMilestone] = true
		if nft.TokenURI != "" {
			continue
		}
		_, err := s.nfts.PublishMetadata(ctx, domain.PrincipalCore, nft.TokenID)
		if err != nil && !errors.Is(err, ErrStorageDisabled) {
			logger.WithError(err).WithField("tokenId", nft.TokenID).Warn("republish NFT metadata")
		}
	}

	var minted *domain.ProgressNFT
	for milestone := interval; milestone <= reached; milestone += interval {
		if owned[milestone] {
			continue
		}
		snapshot := current
		snapshot.TotalWorkouts = milestone
		snapshot.Level = s.cfg.Rules.LevelFor(milestone)
		nft, err := s.nfts.MintMilestone(ctx, domain.PrincipalCore, profile.UserID, snapshot)
		switch {
		case errors.Is(err, ErrMilestoneAlreadyMinted):
			logger.WithField("milestone", milestone).Debug("milestone already minted")
		case err != nil:
			logger.WithError(err).WithField("milestone", milestone).Error("milestone NFT mint failed")
			return minted
		default:
			minted = nft
		}
	}
	return minted
}

func clampLimit(limit, def, upper int) int {
	if limit <= 0 {
		return def
	}
	if limit > upper {
		return upper
	}
	return limit
}

func (s *coreService) GetLeaderboard(ctx context.Context, limit int) (*Leaderboard, error) {
	limit = clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit)
	profiles, err := s.profileRepo.ListTop(ctx, limit)
	if err != nil {
		return nil, err
	}

	board := &Leaderboard{
		Users:    make([]string, 0, len(profiles)),
		Names:    make([]string, 0, len(profiles)),
		Points:   make([]int64, 0, len(profiles)),
		Levels:   make([]int, 0, len(profiles)),
		Workouts: make([]int, 0, len(profiles)),
		Entries:  make([]domain.LeaderboardEntry, 0, len(profiles)),
	}
	for i, p := range profiles {
		board.Users = append(board.Users, p.UserID.Hex())
		board.Names = append(board.Names, p.Name)
		board.Points = append(board.Points, p.Points)
		board.Levels = append(board.Levels, p.Level)
		board.Workouts = append(board.Workouts, p.TotalWorkouts)
		board.Entries = append(board.Entries, domain.LeaderboardEntry{
			Rank:          i + 1,
			UserID:        p.UserID,
			Name:          p.Name,
			CreatureName:  p.CreatureName,
			Points:        p.Points,
			Level:         p.Level,
			TotalWorkouts: p.TotalWorkouts,
		})
	}
	return board, nil
}

func (s *coreService) GetProgress(ctx context.Context, userID primitive.ObjectID) (*Progress, error) {
	profile, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	acc, err := s.tokens.GetAccount(ctx, profile.Address())
	if err != nil {
		return nil, err
	}
	nfts, err := s.nfts.GetUserNFTs(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := s.cfg.Rules.NextMilestone(profile.TotalWorkouts)
	return &Progress{
		WorkoutsCompleted:    profile.TotalWorkouts,
		Level:                profile.Level,
		TokensEarned:         domain.FormatCRUSH(orZero(acc.TotalEarned)),
		Balance:              domain.FormatCRUSH(orZero(acc.Balance)),
		StreakDays:           acc.Streak,
		NFTsOwned:            len(nfts),
		NextMilestone:        next,
		WorkoutsUntilNextNFT: next - profile.TotalWorkouts,
	}, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (s *coreService) LinkWallet(ctx context.Context, userID primitive.ObjectID, address string) (*domain.UserProfile, error) {
	normalized, err := domain.NormalizeWalletAddress(address)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID.Hex())
	defer unlock()

	profile, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.profileRepo.SetWallet(ctx, userID, normalized); err != nil {
		return nil, fmt.Errorf("set wallet: %w", err)
	}
	profile.WalletAddress = normalized
	return profile, nil
}

func (s *coreService) ListWorkoutHistory(ctx context.Context, userID primitive.ObjectID, limit int) ([]domain.WorkoutLog, error) {
	if _, err := s.GetUserProfile(ctx, userID); err != nil {
		return nil, err
	}
	return s.workoutRepo.ListLogs(ctx, userID, clampLimit(limit, DefaultHistoryLimit, MaxLeaderboardLimit))
}
