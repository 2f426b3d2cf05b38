package api

import (
	"errors"
	"net/http"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// errorStatuses maps service and domain errors to HTTP status codes.
// Anything not listed is an internal error.
var errorStatuses = []struct {
	err  error
	code int
}{
	{service.ErrInvalidCredentials, http.StatusBadRequest},
	{service.ErrInvalidProfileName, http.StatusBadRequest},
	{service.ErrInvalidWorkout, http.StatusBadRequest},
	{service.ErrInvalidWorkoutParams, http.StatusBadRequest},
	{service.ErrInvalidCatalogEntry, http.StatusBadRequest},
	{service.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrInvalidFitnessData, http.StatusBadRequest},
	{service.ErrWorkoutIDRequired, http.StatusBadRequest},
	{service.ErrRewardNotNFTRedeemable, http.StatusBadRequest},
	{domain.ErrInvalidWalletAddress, http.StatusBadRequest},
	{domain.ErrInvalidAddress, http.StatusBadRequest},
	{domain.ErrInvalidAmountFormat, http.StatusBadRequest},

	{service.ErrAuthenticationFailed, http.StatusUnauthorized},
	{service.ErrInvalidToken, http.StatusUnauthorized},

	{service.ErrUserInactive, http.StatusForbidden},
	{service.ErrNotOracleNode, http.StatusForbidden},
	{service.ErrNotNFTOwner, http.StatusForbidden},
	{service.ErrNotMinter, http.StatusForbidden},
	{service.ErrCallerNotAuthorized, http.StatusForbidden},

	{service.ErrUserNotRegistered, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrRewardNotFound, http.StatusNotFound},
	{service.ErrNFTNotFound, http.StatusNotFound},
	{service.ErrOracleNodeNotFound, http.StatusNotFound},

	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrAlreadyRegistered, http.StatusConflict},
	{service.ErrRewardAlreadyUnlocked, http.StatusConflict},
	{service.ErrNFTAlreadyRedeemed, http.StatusConflict},
	{service.ErrMilestoneAlreadyMinted, http.StatusConflict},
	{service.ErrOracleNodeExists, http.StatusConflict},

	{service.ErrWorkoutNotVerified, http.StatusUnprocessableEntity},
	{service.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{service.ErrInsufficientAllowance, http.StatusUnprocessableEntity},
	{service.ErrSupplyCapExceeded, http.StatusUnprocessableEntity},
	{service.ErrMilestoneTooLow, http.StatusUnprocessableEntity},

	{service.ErrStorageDisabled, http.StatusServiceUnavailable},
	{service.ErrMetadataNotPublished, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return http.StatusInternalServerError
}

// respondError writes the mapped status. Internal errors are logged and
// replaced by fallback so storage details never reach the client.
func respondError(c *gin.Context, log logrus.FieldLogger, err error, fallback string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error(fallback)
		_ = c.Error(err)
		abortWithError(c, code, fallback)
		return
	}
	abortWithError(c, code, err.Error())
}
