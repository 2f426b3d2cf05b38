package service

import (
	"context"
	"fmt"
	"time"

	"wodgachi/rewards-api/internal/config"
	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/events"
	"wodgachi/rewards-api/internal/repository"
	"wodgachi/rewards-api/internal/storage"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Repositories groups the persistence ports the services need.
type Repositories struct {
	Users       repository.UserRepository
	Profiles    repository.ProfileRepository
	Ledger      repository.LedgerRepository
	Workouts    repository.WorkoutRepository
	Oracle      repository.OracleRepository
	NFTs        repository.NFTRepository
	Redemptions repository.RedemptionRepository
}

// Services is the wired rules engine.
type Services struct {
	Auth    AuthService
	Tokens  TokenService
	Oracle  OracleService
	NFTs    NFTService
	Core    CoreService
	Rewards RewardsService
}

// Options configures New. Zero values fall back to the game defaults.
type Options struct {
	JWTSecret     string
	JWTExpiration time.Duration
	Token         TokenConfig
	Rules         domain.Rules
	Thresholds    domain.VerificationThresholds
	Catalog       []domain.RewardCatalogEntry

	RequireSubmission bool

	Storage   storage.ObjectStorage
	Publisher events.Publisher
	Logger    logrus.FieldLogger
}

// OptionsFromConfig maps the loaded configuration onto service options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		JWTSecret:     cfg.JWT.Secret,
		JWTExpiration: cfg.JWT.Expiration,
		Token: TokenConfig{
			InitialSupply:    domain.CRUSH(cfg.Game.InitialSupply),
			MaxSupply:        domain.CRUSH(cfg.Game.MaxSupply),
			WorkoutReward:    domain.CRUSH(cfg.Game.WorkoutReward),
			StreakResetAfter: cfg.Game.StreakResetAfter,
		},
		Rules: domain.Rules{
			WorkoutsPerLevel:  cfg.Game.WorkoutsPerLevel,
			MilestoneInterval: cfg.Game.MilestoneInterval,
		},
		Thresholds: domain.VerificationThresholds{
			HeartRateBase:          cfg.Oracle.HeartRateBase,
			HeartRatePerDifficulty: cfg.Oracle.HeartRatePerDifficulty,
			CaloriesPerMinute:      cfg.Oracle.CaloriesPerMinute,
			StepsPerMinute:         cfg.Oracle.StepsPerMinute,
		},
		Catalog:           domain.DefaultRewardCatalog(),
		RequireSubmission: cfg.Oracle.RequireSubmission,
	}
}

// New builds every service and grants the in-process principals their roles:
// core mints rewards and milestone NFTs and consumes oracle verifications,
// rewards redeems NFTs, admin mints CRUSH.
func New(repos Repositories, opts Options) *Services {
	defaults := DefaultTokenConfig()
	if opts.Token.InitialSupply == nil {
		opts.Token.InitialSupply = defaults.InitialSupply
	}
	if opts.Token.MaxSupply == nil {
		opts.Token.MaxSupply = defaults.MaxSupply
	}
	if opts.Token.WorkoutReward == nil {
		opts.Token.WorkoutReward = defaults.WorkoutReward
	}
	if opts.Rules.WorkoutsPerLevel <= 0 || opts.Rules.MilestoneInterval <= 0 {
		opts.Rules = domain.DefaultRules()
	}
	if opts.Thresholds == (domain.VerificationThresholds{}) {
		opts.Thresholds = domain.DefaultVerificationThresholds()
	}
	if opts.Catalog == nil {
		opts.Catalog = domain.DefaultRewardCatalog()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	locks := NewKeyedLocker()
	tokens := NewTokenService(repos.Ledger, opts.Publisher, opts.Logger, opts.Token)
	oracle := NewOracleService(repos.Oracle, repos.Users, opts.Publisher, opts.Logger, opts.Thresholds)
	nfts := NewNFTService(repos.NFTs, opts.Storage, opts.Publisher, opts.Logger, opts.Rules)
	core := NewCoreService(repos.Profiles, repos.Workouts, tokens, oracle, nfts, locks, opts.Publisher, opts.Logger,
		CoreConfig{Rules: opts.Rules, RequireSubmission: opts.RequireSubmission})
	rewards := NewRewardsService(repos.Redemptions, repos.Profiles, tokens, nfts, locks, opts.Publisher, opts.Logger, opts.Catalog)

	tokens.AuthorizeMinter(domain.PrincipalCore)
	tokens.AuthorizeMinter(domain.PrincipalAdmin)
	nfts.AuthorizeMinter(domain.PrincipalCore)
	nfts.AuthorizeRedeemer(domain.PrincipalRewards)
	oracle.AuthorizeCaller(domain.PrincipalCore)

	return &Services{
		Auth:    NewAuthService(repos.Users, opts.JWTSecret, opts.JWTExpiration),
		Tokens:  tokens,
		Oracle:  oracle,
		NFTs:    nfts,
		Core:    core,
		Rewards: rewards,
	}
}

// Bootstrap runs genesis and seeds the workout catalog. Seeds are skipped once
// the catalog holds any entry, active or removed, so restarts do not revive
// removed workouts.
func (s *Services) Bootstrap(ctx context.Context, seeds []config.SeedWorkout) (*domain.Supply, error) {
	supply, err := s.Tokens.Genesis(ctx)
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	workouts := make([]domain.ValidWorkout, 0, len(seeds))
	for _, w := range seeds {
		workouts = append(workouts, domain.ValidWorkout{
			ID:         w.ID,
			Title:      w.Title,
			Duration:   w.Duration,
			Difficulty: w.Difficulty,
			Points:     w.Points,
		})
	}
	if _, err := s.Core.SeedValidWorkouts(ctx, workouts); err != nil {
		return nil, err
	}
	return supply, nil
}

func primitiveID(hex string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(hex)
}
