package routes

import (
	"github.com/gin-gonic/gin"

	"rentease/controllers"
	"rentease/middleware"
)

// SetupRoutes configures all application routes
func SetupRoutes(r *gin.Engine, h *controllers.Handler) {
	// Public routes (no authentication required)
	public := r.Group("/api")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/login", h.Login)
			auth.POST("/register", h.Register)
			auth.POST("/forgot-password", h.ForgotPassword)
			auth.POST("/reset-password", h.ResetPassword)
		}

		// Listings are browsable without an account
		public.GET("/properties", h.SearchProperties)
		public.GET("/properties/nearby", h.NearbyProperties)
		public.GET("/properties/slug/:slug", h.GetPropertyBySlug)
		public.GET("/properties/:id", h.GetProperty)
		public.GET("/properties/:id/reviews", h.ListPropertyReviews)
		public.POST("/properties/:id/engagement", h.RecordEngagement)
	}

	// Protected routes (authentication required)
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.POST("/auth/refresh", h.RefreshToken)
		protected.POST("/auth/otp", h.RequestOTP)
		protected.POST("/auth/otp/verify", h.VerifyOTP)

		protected.GET("/profile", h.GetProfile)
		protected.PUT("/profile/avatar", h.UpdateAvatar)
		protected.GET("/profile/bookings", h.BookingHistory)
		protected.GET("/profile/saved", h.SavedProperties)
		protected.POST("/users/:id/deactivate", h.DeactivateUser)

		// Admin routes
		admin := protected.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.GET("/users/:id", h.GetUser)
			admin.PATCH("/properties/:id/verify", h.VerifyProperty)

			admin.POST("/payments/:id/capture", h.CapturePayment)
			admin.POST("/payments/:id/refund/complete", h.CompleteRefund)
			admin.POST("/payments/:id/refund/fail", h.FailRefund)

			admin.POST("/notifications", h.SendNotification)
			admin.GET("/notifications/pending/:channel", h.PendingDeliveries)
			admin.POST("/notifications/:id/delivered", h.MarkDelivered)

			admin.POST("/analytics/rollup", h.RollupAll)
			admin.POST("/analytics/flush", h.FlushAnalytics)
			admin.POST("/properties/:id/analytics/rollup", h.RollupProperty)
		}

		// Properties
		owner := protected.Group("/properties")
		owner.Use(middleware.OwnerAuthMiddleware())
		{
			owner.POST("", h.CreateProperty)
			owner.PUT("/:id", h.UpdateProperty)
			owner.PATCH("/:id/status", h.SetPropertyStatus)
			owner.GET("/:id/bookings", h.ListPropertyBookings)
			owner.GET("/:id/analytics", h.PropertyAnalytics)
		}
		protected.POST("/properties/:id/save", h.SaveProperty)
		protected.DELETE("/properties/:id/save", h.UnsaveProperty)

		// Bookings
		bookings := protected.Group("/bookings")
		{
			bookings.POST("", middleware.TenantAuthMiddleware(), h.CreateBooking)
			bookings.GET("", h.ListMyBookings)
			bookings.GET("/:id", h.GetBooking)
			bookings.PATCH("/:id/confirm", h.ConfirmBooking)
			bookings.PATCH("/:id/check-in", h.CheckInBooking)
			bookings.PATCH("/:id/complete", h.CompleteBooking)
			bookings.PATCH("/:id/cancel", h.CancelBooking)
			bookings.PATCH("/:id/charges", h.UpdateBookingCharges)
			bookings.GET("/:id/payments", h.ListBookingPayments)
			bookings.GET("/:id/messages", h.Conversation)
			bookings.POST("/:id/messages", h.SendMessage)
		}

		// Payments
		payments := protected.Group("/payments")
		{
			payments.POST("", h.CreatePayment)
			payments.POST("/verify", h.VerifyPayment)
			payments.GET("/:id", h.GetPayment)
			payments.POST("/:id/fail", h.FailPayment)
			payments.POST("/:id/retry", h.RetryPayment)
			payments.POST("/:id/refund", middleware.OwnerAuthMiddleware(), h.InitiateRefund)
		}

		// Reviews
		protected.POST("/reviews", middleware.TenantAuthMiddleware(), h.CreateReview)
		protected.POST("/reviews/:id/response", middleware.OwnerAuthMiddleware(), h.RespondToReview)
		protected.POST("/reviews/:id/feedback", h.ReviewFeedback)

		// Messages
		protected.GET("/messages/unread", h.UnreadMessages)
		protected.PATCH("/messages/:id/read", h.MarkMessageRead)

		// Notifications
		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.ListNotifications)
			notifications.PATCH("/read-all", h.MarkAllNotificationsRead)
			notifications.GET("/:id", h.NotificationResource)
			notifications.PATCH("/:id/read", h.MarkNotificationRead)
		}
	}
}
