package api

import (
	"fmt"
	"net/http"
	"strconv"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OracleHandler accepts sensor data from oracle nodes and manages the node set.
type OracleHandler struct {
	oracle service.OracleService
	log    logrus.FieldLogger
}

func NewOracleHandler(oracle service.OracleService, logger logrus.FieldLogger) *OracleHandler {
	return &OracleHandler{oracle: oracle, log: logger}
}

type FitnessDataRequest struct {
	UserID    string `json:"userId" binding:"required"`
	WorkoutID string `json:"workoutId" binding:"required"`
	HeartRate int    `json:"heartRate" binding:"required"`
	Calories  int    `json:"calories"`
	Steps     int    `json:"steps"`
}

type OracleNodeRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type VerifyResponse struct {
	Verified bool `json:"verified"`
}

// SubmitFitnessData godoc
// @Summary Report sensor data for a user's workout
// @Description Only oracle nodes may call this. A later submission for the same workout replaces the earlier one.
// @Tags Oracle
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param data body FitnessDataRequest true "Sensor data"
// @Success 201 {object} domain.Receipt
// @Failure 400 {object} gin.H "Invalid data"
// @Failure 403 {object} gin.H "Caller is not an oracle node"
// @Router /oracle/submissions [post]
func (h *OracleHandler) SubmitFitnessData(c *gin.Context) {
	node, ok := currentUserID(c)
	if !ok {
		return
	}
	var req FitnessDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	user, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	receipt, err := h.oracle.SubmitFitnessData(c.Request.Context(), node, user, req.WorkoutID, req.HeartRate, req.Calories, req.Steps)
	if err != nil {
		respondError(c, h.log, err, "Failed to store fitness data")
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// VerifyWorkout godoc
// @Summary Check pending sensor data against a claimed workout
// @Description Read-only: the submission is consumed only when the workout is submitted.
// @Tags Oracle
// @Produce json
// @Param user query string true "User ID"
// @Param workoutId query string true "Workout ID"
// @Param duration query int true "Minutes"
// @Param difficulty query int true "1..3"
// @Success 200 {object} VerifyResponse
// @Failure 400 {object} gin.H "Duration or difficulty out of range"
// @Router /oracle/verify [get]
func (h *OracleHandler) VerifyWorkout(c *gin.Context) {
	user, err := primitive.ObjectIDFromHex(c.Query("user"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	duration, err1 := strconv.Atoi(c.Query("duration"))
	difficulty, err2 := strconv.Atoi(c.Query("difficulty"))
	if err1 != nil || err2 != nil {
		abortWithError(c, http.StatusBadRequest, "duration and difficulty must be integers")
		return
	}
	verified, err := h.oracle.VerifyWorkout(c.Request.Context(), user, c.Query("workoutId"), duration, difficulty)
	if err != nil {
		respondError(c, h.log, err, "Failed to verify workout")
		return
	}
	c.JSON(http.StatusOK, VerifyResponse{Verified: verified})
}

// AddOracleNode godoc
// @Summary Authorize an account as oracle node (admin)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param node body OracleNodeRequest true "Account to authorize"
// @Success 201 {object} domain.OracleNode
// @Failure 404 {object} gin.H "Unknown account"
// @Failure 409 {object} gin.H "Already a node"
// @Router /admin/oracle/nodes [post]
func (h *OracleHandler) AddOracleNode(c *gin.Context) {
	admin, ok := currentUserID(c)
	if !ok {
		return
	}
	var req OracleNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	node, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	entry, err := h.oracle.AddOracleNode(c.Request.Context(), admin, node)
	if err != nil {
		respondError(c, h.log, err, "Failed to add oracle node")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// RemoveOracleNode godoc
// @Summary Revoke an oracle node (admin)
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Node user ID"
// @Success 204
// @Failure 404 {object} gin.H "Not a node"
// @Router /admin/oracle/nodes/{id} [delete]
func (h *OracleHandler) RemoveOracleNode(c *gin.Context) {
	node, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	if err := h.oracle.RemoveOracleNode(c.Request.Context(), node); err != nil {
		respondError(c, h.log, err, "Failed to remove oracle node")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListOracleNodes godoc
// @Summary List oracle nodes (admin)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.OracleNode
// @Router /admin/oracle/nodes [get]
func (h *OracleHandler) ListOracleNodes(c *gin.Context) {
	nodes, err := h.oracle.ListOracleNodes(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Failed to list oracle nodes")
		return
	}
	if nodes == nil {
		nodes = []domain.OracleNode{}
	}
	c.JSON(http.StatusOK, nodes)
}
