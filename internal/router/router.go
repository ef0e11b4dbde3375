package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tripline-dev/tripline/internal/handlers"
	"github.com/tripline-dev/tripline/internal/middleware"
	"github.com/tripline-dev/tripline/internal/types"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)

		// The chat session does its own credential extraction; tokens may
		// arrive via query parameters or websocket headers.
		api.GET("/ws/trips/:trip_id", handlers.ChatSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.CreateUser)
			auth.POST("/login", handlers.LoginUser)
			auth.POST("/logout", middleware.AuthMiddleware(), handlers.LogoutUser)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
			auth.PUT("/me", middleware.AuthMiddleware(), handlers.UpdateUser)
			auth.DELETE("/me", middleware.AuthMiddleware(), handlers.DeleteUser)
		}

		trips := api.Group("/trips", middleware.AuthMiddleware())
		{
			trips.POST("", handlers.CreateTrip)
			trips.GET("", handlers.ListTrips)
			trips.GET("/:trip_id", handlers.GetTrip)
			trips.PATCH("/:trip_id", handlers.UpdateTrip)
			trips.DELETE("/:trip_id", handlers.DeleteTrip)

			// Membership
			trips.POST("/:trip_id/join", handlers.JoinTrip)
			trips.DELETE("/:trip_id/membership", handlers.LeaveTrip)
			trips.GET("/:trip_id/members", handlers.ListMembers)

			// Chat history
			trips.GET("/:trip_id/messages", handlers.ListMessages)

			// Reviews
			trips.POST("/:trip_id/reviews", handlers.CreateReview)
			trips.GET("/:trip_id/reviews", handlers.ListReviews)
		}

		members := api.Group("/members", middleware.AuthMiddleware())
		{
			members.PATCH("/:member_id", handlers.UpdateMember)
		}

		notifications := api.Group("/notifications", middleware.AuthMiddleware())
		{
			notifications.GET("", handlers.ListNotifications)
			notifications.POST("/:notification_id/read", handlers.MarkNotificationRead)
		}

		reviews := api.Group("/reviews", middleware.AuthMiddleware())
		{
			reviews.PUT("/:review_id", handlers.UpdateReview)
			reviews.DELETE("/:review_id", handlers.DeleteReview)
		}
	}

	return r
}
