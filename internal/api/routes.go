package api

import (
	"net/http"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/observability"
	"wodgachi/rewards-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRoutes mounts the HTTP API on router. A nil limiter disables rate limiting.
func SetupRoutes(
	router *gin.Engine,
	svc *service.Services,
	limiter *RateLimiter,
	logger logrus.FieldLogger,
) {
	authHandler := NewAuthHandler(svc.Auth, logger)
	coreHandler := NewCoreHandler(svc.Core, logger)
	tokenHandler := NewTokenHandler(svc.Tokens, logger)
	oracleHandler := NewOracleHandler(svc.Oracle, logger)
	nftHandler := NewNFTHandler(svc.NFTs, logger)
	rewardsHandler := NewRewardsHandler(svc.Rewards, logger)

	throttle := func(c *gin.Context) { c.Next() }
	if limiter != nil {
		throttle = limiter.Handler()
	}

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		authGroup.Use(throttle)
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		apiV1.GET("/rewards/catalog", rewardsHandler.GetCatalog)
		apiV1.GET("/leaderboard", coreHandler.GetLeaderboard)
		apiV1.GET("/workouts", coreHandler.ListValidWorkouts)
		apiV1.GET("/oracle/verify", oracleHandler.VerifyWorkout)
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(svc.Auth), throttle)
	{
		protected.GET("/me", authHandler.Me)

		profileGroup := protected.Group("/profile")
		{
			profileGroup.POST("", coreHandler.RegisterProfile)
			profileGroup.GET("", coreHandler.GetMyProfile)
			profileGroup.PUT("/wallet", coreHandler.LinkWallet)
			profileGroup.GET("/:userId", coreHandler.GetProfile)
		}
		protected.GET("/progress", coreHandler.GetProgress)

		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.POST("/submit", coreHandler.SubmitWorkout)
			workoutGroup.GET("/history", coreHandler.GetWorkoutHistory)
		}

		tokenGroup := protected.Group("/token")
		{
			tokenGroup.GET("/balance", tokenHandler.GetAccount)
			tokenGroup.GET("/streak", tokenHandler.GetStreak)
			tokenGroup.POST("/transfer", tokenHandler.Transfer)
			tokenGroup.POST("/approve", tokenHandler.Approve)
			tokenGroup.GET("/allowance", tokenHandler.GetAllowance)
		}

		nftGroup := protected.Group("/nfts")
		{
			nftGroup.GET("", nftHandler.GetMyNFTs)
			nftGroup.GET("/:tokenId", nftHandler.GetNFT)
			nftGroup.GET("/:tokenId/metadata-url", nftHandler.GetMetadataURL)
		}

		rewardsGroup := protected.Group("/rewards")
		{
			rewardsGroup.GET("/redemptions", rewardsHandler.GetRedemptions)
			rewardsGroup.GET("/:rewardId/eligible-nfts", rewardsHandler.GetEligibleNFTs)
			rewardsGroup.POST("/:rewardId/redeem/crush", rewardsHandler.RedeemWithCRUSH)
			rewardsGroup.POST("/:rewardId/redeem/nft", rewardsHandler.RedeemWithNFT)
		}

		// Node membership is checked by the oracle service.
		protected.POST("/oracle/submissions", oracleHandler.SubmitFitnessData)

		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.POST("/workouts", coreHandler.AddValidWorkout)
			adminGroup.DELETE("/workouts/:id", coreHandler.RemoveValidWorkout)

			adminGroup.GET("/oracle/nodes", oracleHandler.ListOracleNodes)
			adminGroup.POST("/oracle/nodes", oracleHandler.AddOracleNode)
			adminGroup.DELETE("/oracle/nodes/:id", oracleHandler.RemoveOracleNode)

			adminGroup.POST("/token/mint", tokenHandler.Mint)
			adminGroup.GET("/token/supply", tokenHandler.GetSupply)
		}
	}
}
