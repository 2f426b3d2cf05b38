package api

import (
	"fmt"
	"math/big"
	"net/http"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TokenHandler exposes the CRUSH ledger.
type TokenHandler struct {
	tokens service.TokenService
	log    logrus.FieldLogger
}

func NewTokenHandler(tokens service.TokenService, logger logrus.FieldLogger) *TokenHandler {
	return &TokenHandler{tokens: tokens, log: logger}
}

// --- DTOs ---

// Amounts are decimal CRUSH strings ("150", "0.5").
type TransferRequest struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type ApproveRequest struct {
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

type MintRequest struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type AccountResponse struct {
	Address      domain.Address `json:"address"`
	Balance      string         `json:"balance"`
	TotalEarned  string         `json:"totalEarned"`
	Streak       int            `json:"streak"`
	LastRewardAt *time.Time     `json:"lastRewardAt,omitempty"`
}

type AllowanceResponse struct {
	Owner     domain.Address `json:"owner"`
	Spender   domain.Address `json:"spender"`
	Allowance string         `json:"allowance"`
}

type SupplyResponse struct {
	TotalSupply string `json:"totalSupply"`
	MaxSupply   string `json:"maxSupply"`
}

type ReceiptResponse struct {
	TxHash string `json:"transactionHash"`
}

// parseTransfer resolves the counterparty and amount, aborting on bad input.
func parseTransfer(c *gin.Context, rawAddr, rawAmount string) (domain.Address, *big.Int, bool) {
	addr, err := domain.ParseAddress(rawAddr)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	amount, err := domain.ParseCRUSH(rawAmount)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	return addr, amount, true
}

// GetAccount godoc
// @Summary The caller's CRUSH account
// @Tags Token
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AccountResponse
// @Router /token/balance [get]
func (h *TokenHandler) GetAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	acc, err := h.tokens.GetAccount(c.Request.Context(), domain.AddressOf(userID))
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve balance")
		return
	}
	c.JSON(http.StatusOK, AccountResponse{
		Address:      acc.Address,
		Balance:      domain.FormatCRUSH(acc.Balance),
		TotalEarned:  domain.FormatCRUSH(acc.TotalEarned),
		Streak:       acc.Streak,
		LastRewardAt: acc.LastRewardAt,
	})
}

// GetStreak godoc
// @Summary The caller's workout streak
// @Tags Token
// @Produce json
// @Security BearerAuth
// @Success 200 {object} gin.H
// @Router /token/streak [get]
func (h *TokenHandler) GetStreak(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	streak, err := h.tokens.GetUserStreak(c.Request.Context(), domain.AddressOf(userID))
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve streak")
		return
	}
	c.JSON(http.StatusOK, gin.H{"streak": streak})
}

// Transfer godoc
// @Summary Transfer CRUSH from the caller
// @Tags Token
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param transfer body TransferRequest true "Recipient and amount"
// @Success 200 {object} ReceiptResponse
// @Failure 400 {object} gin.H "Invalid address or amount"
// @Failure 422 {object} gin.H "Insufficient balance"
// @Router /token/transfer [post]
func (h *TokenHandler) Transfer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	to, amount, ok := parseTransfer(c, req.To, req.Amount)
	if !ok {
		return
	}
	receipt, err := h.tokens.Transfer(c.Request.Context(), domain.AddressOf(userID), to, amount)
	if err != nil {
		respondError(c, h.log, err, "Transfer failed")
		return
	}
	c.JSON(http.StatusOK, ReceiptResponse{TxHash: receipt.TxHash})
}

// Approve godoc
// @Summary Set the allowance of a spender over the caller's CRUSH
// @Description Approve "rewards" before paying for rewards with CRUSH.
// @Tags Token
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param approval body ApproveRequest true "Spender and amount"
// @Success 200 {object} ReceiptResponse
// @Failure 400 {object} gin.H "Invalid spender or amount"
// @Router /token/approve [post]
func (h *TokenHandler) Approve(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	spender, amount, ok := parseTransfer(c, req.Spender, req.Amount)
	if !ok {
		return
	}
	receipt, err := h.tokens.Approve(c.Request.Context(), domain.AddressOf(userID), spender, amount)
	if err != nil {
		respondError(c, h.log, err, "Approve failed")
		return
	}
	c.JSON(http.StatusOK, ReceiptResponse{TxHash: receipt.TxHash})
}

// GetAllowance godoc
// @Summary Remaining allowance of a spender over the caller's CRUSH
// @Tags Token
// @Produce json
// @Security BearerAuth
// @Param spender query string true "Spender address"
// @Success 200 {object} AllowanceResponse
// @Router /token/allowance [get]
func (h *TokenHandler) GetAllowance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	spender, err := domain.ParseAddress(c.Query("spender"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	owner := domain.AddressOf(userID)
	allowance, err := h.tokens.Allowance(c.Request.Context(), owner, spender)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve allowance")
		return
	}
	c.JSON(http.StatusOK, AllowanceResponse{Owner: owner, Spender: spender, Allowance: domain.FormatCRUSH(allowance)})
}

// Mint godoc
// @Summary Mint CRUSH (admin)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param mint body MintRequest true "Recipient and amount"
// @Success 200 {object} ReceiptResponse
// @Failure 422 {object} gin.H "Supply cap exceeded"
// @Router /admin/token/mint [post]
func (h *TokenHandler) Mint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	to, amount, ok := parseTransfer(c, req.To, req.Amount)
	if !ok {
		return
	}
	receipt, err := h.tokens.Mint(c.Request.Context(), domain.PrincipalAdmin, to, amount)
	if err != nil {
		respondError(c, h.log, err, "Mint failed")
		return
	}
	c.JSON(http.StatusOK, ReceiptResponse{TxHash: receipt.TxHash})
}

// GetSupply godoc
// @Summary Total and maximum CRUSH supply (admin)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SupplyResponse
// @Router /admin/token/supply [get]
func (h *TokenHandler) GetSupply(c *gin.Context) {
	supply, err := h.tokens.TotalSupply(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve supply")
		return
	}
	c.JSON(http.StatusOK, SupplyResponse{
		TotalSupply: domain.FormatCRUSH(supply.Total),
		MaxSupply:   domain.FormatCRUSH(supply.Cap),
	})
}
