package api

import (
	"fmt"
	"net/http"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RewardsHandler serves the rewards store.
type RewardsHandler struct {
	rewards service.RewardsService
	log     logrus.FieldLogger
}

func NewRewardsHandler(rewards service.RewardsService, logger logrus.FieldLogger) *RewardsHandler {
	return &RewardsHandler{rewards: rewards, log: logger}
}

type RedeemNFTRequest struct {
	TokenID uint64 `json:"tokenId" binding:"required"`
}

// GetCatalog godoc
// @Summary Rewards on offer
// @Tags Rewards
// @Produce json
// @Success 200 {array} domain.RewardCatalogEntry
// @Router /rewards/catalog [get]
func (h *RewardsHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.rewards.Catalog())
}

// RedeemWithCRUSH godoc
// @Summary Buy a reward with CRUSH
// @Description The caller must first approve "rewards" for at least the reward cost.
// @Tags Rewards
// @Produce json
// @Security BearerAuth
// @Param rewardId path string true "Reward ID"
// @Success 201 {object} domain.Redemption
// @Failure 404 {object} gin.H "Unknown reward or not registered"
// @Failure 409 {object} gin.H "Already unlocked"
// @Failure 422 {object} gin.H "Insufficient allowance or balance"
// @Router /rewards/{rewardId}/redeem/crush [post]
func (h *RewardsHandler) RedeemWithCRUSH(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	red, err := h.rewards.RedeemWithCRUSH(c.Request.Context(), userID, c.Param("rewardId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to redeem reward")
		return
	}
	c.JSON(http.StatusCreated, red)
}

// RedeemWithNFT godoc
// @Summary Unlock a reward by consuming a milestone NFT
// @Tags Rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rewardId path string true "Reward ID"
// @Param nft body RedeemNFTRequest true "NFT to consume"
// @Success 201 {object} domain.Redemption
// @Failure 400 {object} gin.H "Reward not redeemable with an NFT"
// @Failure 403 {object} gin.H "NFT not owned by caller"
// @Failure 409 {object} gin.H "NFT already redeemed or reward already unlocked"
// @Failure 422 {object} gin.H "Milestone too low"
// @Router /rewards/{rewardId}/redeem/nft [post]
func (h *RewardsHandler) RedeemWithNFT(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req RedeemNFTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	red, err := h.rewards.RedeemWithNFT(c.Request.Context(), userID, c.Param("rewardId"), req.TokenID)
	if err != nil {
		respondError(c, h.log, err, "Failed to redeem reward")
		return
	}
	c.JSON(http.StatusCreated, red)
}

// GetEligibleNFTs godoc
// @Summary The caller's NFTs that can pay for a reward
// @Tags Rewards
// @Produce json
// @Security BearerAuth
// @Param rewardId path string true "Reward ID"
// @Success 200 {array} domain.ProgressNFT
// @Router /rewards/{rewardId}/eligible-nfts [get]
func (h *RewardsHandler) GetEligibleNFTs(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	nfts, err := h.rewards.EligibleNFTs(c.Request.Context(), userID, c.Param("rewardId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve eligible NFTs")
		return
	}
	c.JSON(http.StatusOK, nfts)
}

// GetRedemptions godoc
// @Summary The caller's redemptions
// @Tags Rewards
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Redemption
// @Router /rewards/redemptions [get]
func (h *RewardsHandler) GetRedemptions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	list, err := h.rewards.ListRedemptions(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve redemptions")
		return
	}
	if list == nil {
		list = []domain.Redemption{}
	}
	c.JSON(http.StatusOK, list)
}
