package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pageant-backend/internal/shared/middleware"
	"pageant-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", healthCheckHandler(c))

		setupContestantRoutes(v1, c)
		setupPaymentRoutes(v1, c)
		setupAdminPaymentRoutes(v1, c)
	}

	return router
}

// ========================================
// CONTESTANT ROUTES
// ========================================
func setupContestantRoutes(v1 *gin.RouterGroup, c *container.Container) {
	contestants := v1.Group("/contestants")
	{
		contestants.GET("", c.ContestantHandler.List)
		contestants.GET("/:id", c.ContestantHandler.GetByID)
	}
}

// ========================================
// PAYMENT ROUTES
// ========================================
func setupPaymentRoutes(v1 *gin.RouterGroup, c *container.Container) {
	payments := v1.Group("/payments")
	{
		payments.POST("", c.PaymentHandler.CreateSession)

		// FonePay redirects the voter's browser here; some gateway versions
		// use GET with query params, others POST a form.
		payments.GET("/return", c.PaymentHandler.HandleReturn)
		payments.POST("/return", c.PaymentHandler.HandleReturn)

		payments.GET("/prn/:prn", c.PaymentHandler.GetByPRN)
		payments.GET("/:id", c.PaymentHandler.GetByID)
	}
}

// ========================================
// ADMIN PAYMENT ROUTES (operator JWT)
// ========================================
func setupAdminPaymentRoutes(v1 *gin.RouterGroup, c *container.Container) {
	admin := v1.Group("/admin")
	admin.Use(middleware.OperatorAuth(c.JWTManager))
	{
		admin.GET("/payments", c.PaymentHandler.ListSessions)
		admin.GET("/payments/stats", c.PaymentHandler.GetStatistics)
	}
}

// ========================================
// HEALTH CHECK
// ========================================
func healthCheckHandler(c *container.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := c.DB.HealthCheck(checkCtx); err != nil {
			dbStatus = "down"
		}

		redisStatus := "ok"
		if err := c.Redis.HealthCheck(checkCtx); err != nil {
			redisStatus = "down"
		}

		status := http.StatusOK
		overall := "ok"
		if dbStatus != "ok" || redisStatus != "ok" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		ctx.JSON(status, gin.H{
			"status":   overall,
			"database": dbStatus,
			"redis":    redisStatus,
			"version":  c.Config.App.Version,
		})
	}
}
