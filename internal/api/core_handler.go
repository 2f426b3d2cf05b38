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

// CoreHandler serves profiles, workouts, progress and the leaderboard.
type CoreHandler struct {
	core service.CoreService
	log  logrus.FieldLogger
}

func NewCoreHandler(core service.CoreService, logger logrus.FieldLogger) *CoreHandler {
	return &CoreHandler{core: core, log: logger}
}

// --- DTOs ---

type RegisterProfileRequest struct {
	Name         string `json:"name" binding:"required"`
	CreatureName string `json:"creatureName" binding:"required"`
}

type RegisterProfileResponse struct {
	Profile *domain.UserProfile `json:"profile"`
	Receipt domain.Receipt      `json:"receipt"`
}

type LinkWalletRequest struct {
	Address string `json:"address" binding:"required"`
}

type SubmitWorkoutRequest struct {
	WorkoutID  string `json:"workoutId" binding:"required"`
	Duration   int    `json:"duration" binding:"required"`   // minutes
	Difficulty int    `json:"difficulty" binding:"required"` // 1..3
}

type ValidWorkoutRequest struct {
	ID         string `json:"id" binding:"required"`
	Title      string `json:"title" binding:"required"`
	Duration   int    `json:"duration"`
	Difficulty int    `json:"difficulty" binding:"required"`
	Points     int    `json:"points"`
}

// queryLimit reads ?limit=, returning 0 (the service default) when absent.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		abortWithError(c, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

// RegisterProfile godoc
// @Summary Register the caller in the game registry
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body RegisterProfileRequest true "Player and companion names"
// @Success 201 {object} RegisterProfileResponse
// @Failure 400 {object} gin.H "Invalid names"
// @Failure 409 {object} gin.H "Already registered"
// @Router /profile [post]
func (h *CoreHandler) RegisterProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req RegisterProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	profile, receipt, err := h.core.RegisterUser(c.Request.Context(), userID, req.Name, req.CreatureName)
	if err != nil {
		respondError(c, h.log, err, "Failed to register profile")
		return
	}
	c.JSON(http.StatusCreated, RegisterProfileResponse{Profile: profile, Receipt: receipt})
}

// GetMyProfile godoc
// @Summary The caller's profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.UserProfile
// @Failure 404 {object} gin.H "Not registered"
// @Router /profile [get]
func (h *CoreHandler) GetMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	h.writeProfile(c, userID)
}

// GetProfile godoc
// @Summary A user's profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} domain.UserProfile
// @Failure 400 {object} gin.H "Invalid user ID"
// @Failure 404 {object} gin.H "Not registered"
// @Router /profile/{userId} [get]
func (h *CoreHandler) GetProfile(c *gin.Context) {
	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	h.writeProfile(c, userID)
}

func (h *CoreHandler) writeProfile(c *gin.Context, userID primitive.ObjectID) {
	profile, err := h.core.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// LinkWallet godoc
// @Summary Link an EVM/XDC wallet to the caller's profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param wallet body LinkWalletRequest true "0x or xdc address"
// @Success 200 {object} domain.UserProfile
// @Failure 400 {object} gin.H "Invalid wallet address"
// @Router /profile/wallet [put]
func (h *CoreHandler) LinkWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req LinkWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	profile, err := h.core.LinkWallet(c.Request.Context(), userID, req.Address)
	if err != nil {
		respondError(c, h.log, err, "Failed to link wallet")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetProgress godoc
// @Summary Progress summary for the app sync screen
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Progress
// @Router /progress [get]
func (h *CoreHandler) GetProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	progress, err := h.core.GetProgress(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve progress")
		return
	}
	c.JSON(http.StatusOK, progress)
}

// SubmitWorkout godoc
// @Summary Submit a completed workout
// @Description Rewards the workout with CRUSH, updates level and mints a milestone NFT every 30 workouts.
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workout body SubmitWorkoutRequest true "Workout"
// @Success 200 {object} service.WorkoutResult
// @Failure 400 {object} gin.H "Unknown workout or parameters out of range"
// @Failure 404 {object} gin.H "Not registered"
// @Failure 422 {object} gin.H "Oracle verification failed"
// @Router /workouts/submit [post]
func (h *CoreHandler) SubmitWorkout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req SubmitWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	result, err := h.core.SubmitWorkout(c.Request.Context(), userID, req.WorkoutID, req.Duration, req.Difficulty)
	if err != nil {
		respondError(c, h.log, err, "Failed to submit workout")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetWorkoutHistory godoc
// @Summary The caller's rewarded workouts, newest first
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max entries (default 50)"
// @Success 200 {array} domain.WorkoutLog
// @Router /workouts/history [get]
func (h *CoreHandler) GetWorkoutHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	logs, err := h.core.ListWorkoutHistory(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve workout history")
		return
	}
	if logs == nil {
		logs = []domain.WorkoutLog{}
	}
	c.JSON(http.StatusOK, logs)
}

// ListValidWorkouts godoc
// @Summary Workouts that can be submitted for rewards
// @Tags Workouts
// @Produce json
// @Success 200 {array} domain.ValidWorkout
// @Router /workouts [get]
func (h *CoreHandler) ListValidWorkouts(c *gin.Context) {
	workouts, err := h.core.ListValidWorkouts(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve workouts")
		return
	}
	if workouts == nil {
		workouts = []domain.ValidWorkout{}
	}
	c.JSON(http.StatusOK, workouts)
}

// GetLeaderboard godoc
// @Summary Top players by points
// @Tags Leaderboard
// @Produce json
// @Param limit query int false "Max entries (default 10, max 100)"
// @Success 200 {object} service.Leaderboard
// @Router /leaderboard [get]
func (h *CoreHandler) GetLeaderboard(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	board, err := h.core.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve leaderboard")
		return
	}
	c.JSON(http.StatusOK, board)
}

// AddValidWorkout godoc
// @Summary Add or update a valid workout
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workout body ValidWorkoutRequest true "Catalog entry"
// @Success 201 {object} domain.ValidWorkout
// @Failure 400 {object} gin.H "Invalid entry"
// @Failure 403 {object} gin.H "Not an admin"
// @Router /admin/workouts [post]
func (h *CoreHandler) AddValidWorkout(c *gin.Context) {
	var req ValidWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	workout, err := h.core.AddValidWorkout(c.Request.Context(), domain.ValidWorkout{
		ID:         req.ID,
		Title:      req.Title,
		Duration:   req.Duration,
		Difficulty: req.Difficulty,
		Points:     req.Points,
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to add workout")
		return
	}
	c.JSON(http.StatusCreated, workout)
}

// RemoveValidWorkout godoc
// @Summary Deactivate a valid workout
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Workout ID"
// @Success 204
// @Failure 404 {object} gin.H "Unknown workout"
// @Router /admin/workouts/{id} [delete]
func (h *CoreHandler) RemoveValidWorkout(c *gin.Context) {
	if err := h.core.RemoveValidWorkout(c.Request.Context(), c.Param("id")); err != nil {
		if statusFor(err) == http.StatusBadRequest {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		respondError(c, h.log, err, "Failed to remove workout")
		return
	}
	c.Status(http.StatusNoContent)
}
