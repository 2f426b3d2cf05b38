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
	"wodgachi/rewards-api/internal/storage"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidMilestone       = errors.New("milestone must be a positive multiple of the milestone interval")
	ErrMilestoneAlreadyMinted = errors.New("milestone NFT already minted for this user")
	ErrNFTNotFound            = errors.New("NFT not found")
	ErrNotNFTOwner            = errors.New("NFT is not owned by this user")
	ErrNFTAlreadyRedeemed     = errors.New("NFT has already been redeemed")
	ErrStorageDisabled        = errors.New("object storage is not configured")
	ErrMetadataURLError       = errors.New("failed to generate metadata URL")
	ErrMetadataNotPublished   = errors.New("NFT metadata has not been published yet")
)

type NFTService interface {
	AuthorizeMinter(principal string)
	AuthorizeRedeemer(principal string)

	// MintMilestone mints the NFT for snapshot.TotalWorkouts, which must be a milestone.
	// The NFT is stored before its metadata is uploaded; a failed upload leaves
	// TokenURI empty until PublishMetadata succeeds.
	MintMilestone(ctx context.Context, caller string, owner primitive.ObjectID, snapshot domain.ProgressSnapshot) (*domain.ProgressNFT, error)
	// PublishMetadata uploads the metadata document and records the token URI.
	PublishMetadata(ctx context.Context, caller string, tokenID uint64) (*domain.ProgressNFT, error)
	GetUserNFTs(ctx context.Context, owner primitive.ObjectID) ([]domain.ProgressNFT, error)
	GetNFT(ctx context.Context, tokenID uint64) (*domain.ProgressNFT, error)
	GetProgressMetadata(ctx context.Context, tokenID uint64) (*domain.ProgressMetadata, error)
	MetadataURL(ctx context.Context, tokenID uint64) (string, error)
	// EligibleNFTs returns the owner's unredeemed NFTs with a milestone of at least minMilestone.
	EligibleNFTs(ctx context.Context, owner primitive.ObjectID, minMilestone int) ([]domain.ProgressNFT, error)

	// MarkRedeemed is one-way: a redeemed NFT never becomes redeemable again.
	MarkRedeemed(ctx context.Context, caller string, tokenID uint64, owner primitive.ObjectID, rewardID string) (*domain.ProgressNFT, error)
}

// nftMetadataDocument is the ERC-721 style JSON stored next to each token.
type nftMetadataDocument struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Attributes  []nftMetadataAttribute  `json:"attributes"`
	Properties  domain.ProgressMetadata `json:"properties"`
}

type nftMetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

type nftService struct {
	nftRepo   repository.NFTRepository
	storage   storage.ObjectStorage // nil when S3 is disabled
	publisher events.Publisher
	log       logrus.FieldLogger
	rules     domain.Rules
	minters   *principalSet
	redeemers *principalSet
	now       func() time.Time
}

func NewNFTService(nftRepo repository.NFTRepository, store storage.ObjectStorage, publisher events.Publisher, logger logrus.FieldLogger, rules domain.Rules) NFTService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &nftService{
		nftRepo:   nftRepo,
		storage:   store,
		publisher: publisher,
		log:       logger.WithField("component", "nft"),
		rules:     rules,
		minters:   newPrincipalSet(),
		redeemers: newPrincipalSet(),
		now:       time.Now,
	}
}

func (s *nftService) AuthorizeMinter(principal string)   { s.minters.add(principal) }
func (s *nftService) AuthorizeRedeemer(principal string) { s.redeemers.add(principal) }

func (s *nftService) MintMilestone(ctx context.Context, caller string, owner primitive.ObjectID, snapshot domain.ProgressSnapshot) (*domain.ProgressNFT, error) {
	if !s.minters.has(caller) {
		return nil, ErrNotMinter
	}
	milestone := snapshot.TotalWorkouts
	if !s.rules.IsMilestone(milestone) {
		return nil, ErrInvalidMilestone
	}
	minted, err := s.nftRepo.HasMilestone(ctx, owner, milestone)
	if err != nil {
		return nil, err
	}
	if minted {
		return nil, ErrMilestoneAlreadyMinted
	}

	tokenID, err := s.nftRepo.NextTokenID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate token id: %w", err)
	}
	now := s.now().UTC()
	nft := &domain.ProgressNFT{
		TokenID:           tokenID,
		Owner:             owner,
		WorkoutsMilestone: milestone,
		Metadata: domain.ProgressMetadata{
			TotalWorkouts: snapshot.TotalWorkouts,
			Level:         snapshot.Level,
			Streak:        snapshot.Streak,
			TokensEarned:  snapshot.TokensEarned,
			CreatureName:  snapshot.CreatureName,
			CreatureLevel: s.rules.CreatureLevelFor(snapshot.TotalWorkouts),
			Achievements:  domain.Achievements(snapshot),
		},
		TxHash:   domain.NewReceipt(domain.ReceiptNFTMint, now, owner.Hex(), strconv.FormatUint(tokenID, 10), strconv.Itoa(milestone)).TxHash,
		MintedAt: now,
	}

	if err := s.nftRepo.Create(ctx, nft); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrMilestoneAlreadyMinted
		}
		return nil, fmt.Errorf("store NFT: %w", err)
	}

	logger := s.log.WithFields(logrus.Fields{"user": owner.Hex(), "tokenId": tokenID, "milestone": milestone})
	if s.storage != nil {
		if err := s.publish(ctx, nft); err != nil {
			logger.WithError(err).Warn("metadata upload failed, token URI left empty")
		}
	}

	observability.RecordNFTMinted(milestone)
	logger.Info("milestone NFT minted")
	s.publisher.Publish(ctx, events.New(events.NFTMinted, owner.Hex(), nft.TxHash, map[string]any{
		"tokenId": tokenID, "milestone": milestone, "tokenUri": nft.TokenURI,
	}))
	return nft, nil
}

func (s *nftService) PublishMetadata(ctx context.Context, caller string, tokenID uint64) (*domain.ProgressNFT, error) {
	if !s.minters.has(caller) {
		return nil, ErrNotMinter
	}
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	nft, err := s.GetNFT(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, nft); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"tokenId": tokenID, "tokenUri": nft.TokenURI}).Info("NFT metadata published")
	return nft, nil
}

// publish overwrites the metadata object, so it is safe to repeat.
func (s *nftService) publish(ctx context.Context, nft *domain.ProgressNFT) error {
	key := storage.NFTMetadataKey(nft.TokenID)
	uri, err := s.storage.PutJSON(ctx, key, metadataDocument(nft))
	if err != nil {
		return fmt.Errorf("upload metadata: %w", err)
	}
	if err := s.nftRepo.SetTokenURI(ctx, nft.TokenID, uri); err != nil {
		if derr := s.storage.DeleteObject(ctx, key); derr != nil && !errors.Is(derr, storage.ErrObjectNotFound) {
			s.log.WithError(derr).WithField("tokenId", nft.TokenID).Warn("orphaned metadata object")
		}
		return fmt.Errorf("set token URI: %w", err)
	}
	nft.TokenURI = uri
	return nil
}

func metadataDocument(nft *domain.ProgressNFT) nftMetadataDocument {
	m := nft.Metadata
	return nftMetadataDocument{
		Name:        fmt.Sprintf("WODgachi Progress #%d", nft.TokenID),
		Description: fmt.Sprintf("%s reached %d workouts.", m.CreatureName, nft.WorkoutsMilestone),
		Attributes: []nftMetadataAttribute{
			{TraitType: "Milestone", Value: nft.WorkoutsMilestone},
			{TraitType: "Level", Value: m.Level},
			{TraitType: "Streak", Value: m.Streak},
			{TraitType: "CRUSH Earned", Value: m.TokensEarned},
			{TraitType: "Creature", Value: m.CreatureName},
			{TraitType: "Creature Level", Value: m.CreatureLevel},
		},
		Properties: m,
	}
}

func (s *nftService) GetUserNFTs(ctx context.Context, owner primitive.ObjectID) ([]domain.ProgressNFT, error) {
	return s.nftRepo.ListByOwner(ctx, owner)
}

func (s *nftService) GetNFT(ctx context.Context, tokenID uint64) (*domain.ProgressNFT, error) {
	nft, err := s.nftRepo.GetByTokenID(ctx, tokenID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNFTNotFound
	}
	return nft, err
}

func (s *nftService) GetProgressMetadata(ctx context.Context, tokenID uint64) (*domain.ProgressMetadata, error) {
	nft, err := s.GetNFT(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return &nft.Metadata, nil
}

func (s *nftService) MetadataURL(ctx context.Context, tokenID uint64) (string, error) {
	if s.storage == nil {
		return "", ErrStorageDisabled
	}
	nft, err := s.GetNFT(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if nft.TokenURI == "" {
		return "", ErrMetadataNotPublished
	}
	url, err := s.storage.GeneratePresignedDownloadURL(ctx, storage.NFTMetadataKey(tokenID), storage.DefaultPresignedURLExpiry)
	if err != nil {
		s.log.WithError(err).WithField("tokenId", tokenID).Error("presign metadata")
		return "", ErrMetadataURLError
	}
	return url, nil
}

func (s *nftService) EligibleNFTs(ctx context.Context, owner primitive.ObjectID, minMilestone int) ([]domain.ProgressNFT, error) {
	all, err := s.nftRepo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := []domain.ProgressNFT{}
	for _, nft := range all {
		if !nft.IsRedeemed && nft.WorkoutsMilestone >= minMilestone {
			out = append(out, nft)
		}
	}
	return out, nil
}

func (s *nftService) MarkRedeemed(ctx context.Context, caller string, tokenID uint64, owner primitive.ObjectID, rewardID string) (*domain.ProgressNFT, error) {
	if !s.redeemers.has(caller) {
		return nil, ErrCallerNotAuthorized
	}
	nft, err := s.GetNFT(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if nft.Owner != owner {
		return nil, ErrNotNFTOwner
	}
	if nft.IsRedeemed {
		return nil, ErrNFTAlreadyRedeemed
	}

	now := s.now().UTC()
	if err := s.nftRepo.MarkRedeemed(ctx, tokenID, rewardID, now); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, ErrNFTAlreadyRedeemed
		}
		return nil, fmt.Errorf("mark redeemed: %w", err)
	}
	nft.IsRedeemed = true
	nft.RedeemedFor = rewardID
	nft.RedeemedAt = &now

	s.publisher.Publish(ctx, events.New(events.NFTRedeemed, owner.Hex(), "", map[string]any{
		"tokenId": tokenID, "rewardId": rewardID,
	}))
	return nft, nil
}
