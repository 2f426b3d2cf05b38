package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/events"
	"wodgachi/rewards-api/internal/observability"
	"wodgachi/rewards-api/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrRewardNotFound         = errors.New("reward not found")
	ErrRewardNotNFTRedeemable = errors.New("reward cannot be redeemed with an NFT")
	ErrMilestoneTooLow        = errors.New("NFT milestone is below the reward's required milestone")
	ErrRewardAlreadyUnlocked  = errors.New("reward is already unlocked for this user")
)

type RewardsService interface {
	Catalog() []domain.RewardCatalogEntry
	GetReward(id string) (*domain.RewardCatalogEntry, error)

	// RedeemWithCRUSH spends the reward cost from the user's allowance to the store.
	RedeemWithCRUSH(ctx context.Context, userID primitive.ObjectID, rewardID string) (*domain.Redemption, error)
	// RedeemWithNFT consumes an unredeemed milestone NFT; no CRUSH moves.
	RedeemWithNFT(ctx context.Context, userID primitive.ObjectID, rewardID string, tokenID uint64) (*domain.Redemption, error)
	ListRedemptions(ctx context.Context, userID primitive.ObjectID) ([]domain.Redemption, error)
	// EligibleNFTs lists the user's NFTs that can pay for rewardID.
	EligibleNFTs(ctx context.Context, userID primitive.ObjectID, rewardID string) ([]domain.ProgressNFT, error)
}

type rewardsService struct {
	redemptionRepo repository.RedemptionRepository
	profileRepo    repository.ProfileRepository
	tokens         TokenService
	nfts           NFTService
	locks          *KeyedLocker
	publisher      events.Publisher
	log            logrus.FieldLogger
	catalog        []domain.RewardCatalogEntry
	byID           map[string]domain.RewardCatalogEntry
	now            func() time.Time
}

func NewRewardsService(
	redemptionRepo repository.RedemptionRepository,
	profileRepo repository.ProfileRepository,
	tokens TokenService,
	nfts NFTService,
	locks *KeyedLocker,
	publisher events.Publisher,
	logger logrus.FieldLogger,
	catalog []domain.RewardCatalogEntry,
) RewardsService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	byID := make(map[string]domain.RewardCatalogEntry, len(catalog))
	for _, r := range catalog {
		byID[r.ID] = r
	}
	return &rewardsService{
		redemptionRepo: redemptionRepo,
		profileRepo:    profileRepo,
		tokens:         tokens,
		nfts:           nfts,
		locks:          locks,
		publisher:      publisher,
		log:            logger.WithField("component", "rewards"),
		catalog:        catalog,
		byID:           byID,
		now:            time.Now,
	}
}

func (s *rewardsService) Catalog() []domain.RewardCatalogEntry {
	return append([]domain.RewardCatalogEntry(nil), s.catalog...)
}

func (s *rewardsService) GetReward(id string) (*domain.RewardCatalogEntry, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, ErrRewardNotFound
	}
	return &r, nil
}

// prepare runs the checks shared by both payment methods.
func (s *rewardsService) prepare(ctx context.Context, userID primitive.ObjectID, rewardID string) (*domain.RewardCatalogEntry, string, error) {
	reward, err := s.GetReward(rewardID)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.profileRepo.GetByUserID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrUserNotRegistered
		}
		return nil, "", err
	}
	if !reward.Unlock() {
		return reward, "", nil
	}
	key := domain.UnlockKeyFor(userID, reward.ID)
	unlocked, err := s.redemptionRepo.HasUnlock(ctx, key)
	if err != nil {
		return nil, "", err
	}
	if unlocked {
		return nil, "", ErrRewardAlreadyUnlocked
	}
	return reward, key, nil
}

func (s *rewardsService) RedeemWithCRUSH(ctx context.Context, userID primitive.ObjectID, rewardID string) (*domain.Redemption, error) {
	unlock := s.locks.Lock(userID.Hex())
	defer unlock()

	reward, unlockKey, err := s.prepare(ctx, userID, rewardID)
	if err != nil {
		return nil, err
	}

	cost := domain.CRUSH(reward.Cost)
	user := domain.AddressOf(userID)
	receipt, err := s.tokens.TransferFrom(ctx, domain.RewardsStoreAddress, user, domain.TreasuryAddress, cost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	red := &domain.Redemption{
		ID:         uuid.NewString(),
		UserID:     userID,
		RewardID:   reward.ID,
		Method:     domain.PaymentCRUSH,
		Cost:       reward.Cost,
		UnlockKey:  unlockKey,
		TxHash:     domain.NewReceipt(domain.ReceiptRedeemCRUSH, now, userID.Hex(), reward.ID, receipt.TxHash).TxHash,
		RedeemedAt: now,
	}
	if err := s.redemptionRepo.Create(ctx, red); err != nil {
		// Refund the payment; the store keeps no CRUSH for a redemption it did not record.
		if _, rerr := s.tokens.Transfer(ctx, domain.TreasuryAddress, user, cost); rerr != nil {
			s.log.WithError(rerr).WithField("user", userID.Hex()).Error("refund failed redemption")
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRewardAlreadyUnlocked
		}
		return nil, fmt.Errorf("store redemption: %w", err)
	}

	s.recorded(ctx, red)
	return red, nil
}

func (s *rewardsService) RedeemWithNFT(ctx context.Context, userID primitive.ObjectID, rewardID string, tokenID uint64) (*domain.Redemption, error) {
	unlock := s.locks.Lock(userID.Hex())
	defer unlock()

	reward, err := s.GetReward(rewardID)
	if err != nil {
		return nil, err
	}
	if !reward.NFTRedeemable {
		return nil, ErrRewardNotNFTRedeemable
	}
	reward, unlockKey, err := s.prepare(ctx, userID, rewardID)
	if err != nil {
		return nil, err
	}

	nft, err := s.nfts.GetNFT(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if nft.Owner != userID {
		return nil, ErrNotNFTOwner
	}
	if nft.IsRedeemed {
		return nil, ErrNFTAlreadyRedeemed
	}
	if nft.WorkoutsMilestone < reward.RequiredMilestone {
		return nil, ErrMilestoneTooLow
	}

	if _, err := s.nfts.MarkRedeemed(ctx, domain.PrincipalRewards, tokenID, userID, reward.ID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	id := tokenID
	red := &domain.Redemption{
		ID:         uuid.NewString(),
		UserID:     userID,
		RewardID:   reward.ID,
		Method:     domain.PaymentNFT,
		NFTTokenID: &id,
		UnlockKey:  unlockKey,
		TxHash:     domain.NewReceipt(domain.ReceiptRedeemNFT, now, userID.Hex(), reward.ID, strconv.FormatUint(tokenID, 10)).TxHash,
		RedeemedAt: now,
	}
	if err := s.redemptionRepo.Create(ctx, red); err != nil {
		// The NFT stays redeemed: redemption is one-way.
		s.log.WithError(err).WithFields(logrus.Fields{"user": userID.Hex(), "tokenId": tokenID}).Error("store NFT redemption")
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRewardAlreadyUnlocked
		}
		return nil, fmt.Errorf("store redemption: %w", err)
	}

	s.recorded(ctx, red)
	return red, nil
}

func (s *rewardsService) recorded(ctx context.Context, red *domain.Redemption) {
	observability.RecordRedemption(red.RewardID, string(red.Method))
	s.log.WithFields(logrus.Fields{"user": red.UserID.Hex(), "reward": red.RewardID, "method": red.Method}).Info("reward redeemed")
	payload := map[string]any{"rewardId": red.RewardID, "method": red.Method, "cost": red.Cost}
	if red.NFTTokenID != nil {
		payload["tokenId"] = *red.NFTTokenID
	}
	s.publisher.Publish(ctx, events.New(events.RewardRedeemed, red.UserID.Hex(), red.TxHash, payload))
}

func (s *rewardsService) ListRedemptions(ctx context.Context, userID primitive.ObjectID) ([]domain.Redemption, error) {
	return s.redemptionRepo.ListByUser(ctx, userID)
}

func (s *rewardsService) EligibleNFTs(ctx context.Context, userID primitive.ObjectID, rewardID string) ([]domain.ProgressNFT, error) {
	reward, err := s.GetReward(rewardID)
	if err != nil {
		return nil, err
	}
	if !reward.NFTRedeemable {
		return []domain.ProgressNFT{}, nil
	}
	return s.nfts.EligibleNFTs(ctx, userID, reward.RequiredMilestone)
}
