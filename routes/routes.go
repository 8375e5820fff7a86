package routes

import (
	"intel-review-api/config"
	"intel-review-api/controllers"
	"intel-review-api/middleware"
	"intel-review-api/models"
	"intel-review-api/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	recorder := services.NewAuditRecorder(config.DB)

	// API v1 group
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuditTrail(recorder))
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Intel Review API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)

			// Intel reports and the review state machine
			reports := protected.Group("/intel-reports")
			{
				reports.GET("", controllers.GetIntelReports)
				reports.GET("/:id", controllers.GetIntelReport)
				reports.GET("/:id/reviews", controllers.GetReportReviews)

				// Agents submit; agents (or admins) resubmit via /status
				reports.POST("", middleware.RequireRole(models.RoleAgent, models.RoleAdmin), controllers.CreateIntelReport)

				// Analysts and admins decide; resubmission by the owning
				// agent goes through the same endpoint, so the per-action
				// role checks live in the approval service
				reports.POST("/:id/status", controllers.UpdateReportStatus)

				// Only admin can delete outright
				reports.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), controllers.DeleteIntelReport)
			}

			// Audit trail (read side)
			auditLog := protected.Group("/audit-log")
			auditLog.Use(middleware.RequireRole(models.RoleAdmin))
			{
				auditLog.GET("", controllers.GetAuditLog)
				auditLog.GET("/export", controllers.ExportAuditLog)
			}

			// Retention over ingested posts
			posts := protected.Group("/posts")
			posts.Use(middleware.RequireRole(models.RoleAdmin))
			{
				posts.GET("/retention", controllers.GetRetentionBuckets)
				posts.POST("/:id/retention", controllers.ExtendPostRetention)
				posts.POST("/retention/bulk", controllers.BulkExtendRetention)
			}

			// Purge sweep
			data := protected.Group("/data")
			data.Use(middleware.RequireRole(models.RoleAdmin))
			{
				data.POST("/purge-expired", controllers.PurgeExpired)
			}
		}
	}

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "Endpoint not found"})
	})
}
