package api

import (
	"net/http"
	"strconv"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type NFTHandler struct {
	nfts service.NFTService
	log  logrus.FieldLogger
}

func NewNFTHandler(nfts service.NFTService, logger logrus.FieldLogger) *NFTHandler {
	return &NFTHandler{nfts: nfts, log: logger}
}

type MetadataURLResponse struct {
	URL string `json:"url"`
}

func parseTokenID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("tokenId"), 10, 64)
	if err != nil || id == 0 {
		abortWithError(c, http.StatusBadRequest, "Invalid token ID")
		return 0, false
	}
	return id, true
}

// GetMyNFTs godoc
// @Summary The caller's milestone NFTs
// @Tags NFT
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.ProgressNFT
// @Router /nfts [get]
func (h *NFTHandler) GetMyNFTs(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	nfts, err := h.nfts.GetUserNFTs(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve NFTs")
		return
	}
	if nfts == nil {
		nfts = []domain.ProgressNFT{}
	}
	c.JSON(http.StatusOK, nfts)
}

// GetNFT godoc
// @Summary A milestone NFT with its progress metadata
// @Tags NFT
// @Produce json
// @Security BearerAuth
// @Param tokenId path int true "Token ID"
// @Success 200 {object} domain.ProgressNFT
// @Failure 404 {object} gin.H "Unknown token"
// @Router /nfts/{tokenId} [get]
func (h *NFTHandler) GetNFT(c *gin.Context) {
	tokenID, ok := parseTokenID(c)
	if !ok {
		return
	}
	nft, err := h.nfts.GetNFT(c.Request.Context(), tokenID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve NFT")
		return
	}
	c.JSON(http.StatusOK, nft)
}

// GetMetadataURL godoc
// @Summary Presigned download URL of the token metadata JSON
// @Tags NFT
// @Produce json
// @Security BearerAuth
// @Param tokenId path int true "Token ID"
// @Success 200 {object} MetadataURLResponse
// @Failure 404 {object} gin.H "Unknown token"
// @Failure 503 {object} gin.H "Object storage disabled"
// @Router /nfts/{tokenId}/metadata-url [get]
func (h *NFTHandler) GetMetadataURL(c *gin.Context) {
	tokenID, ok := parseTokenID(c)
	if !ok {
		return
	}
	url, err := h.nfts.MetadataURL(c.Request.Context(), tokenID)
	if err != nil {
		respondError(c, h.log, err, "Failed to generate metadata URL")
		return
	}
	c.JSON(http.StatusOK, MetadataURLResponse{URL: url})
}
