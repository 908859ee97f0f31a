package main

import (
	"fmt"
	"log"

	"water-quality-api/config"
	"water-quality-api/handlers"
	"water-quality-api/middleware"
	"water-quality-api/models"
	"water-quality-api/services"
	"water-quality-api/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql db handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.WaterPrediction{}); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	// Redis cache: optional, requests work without it
	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, cache disabled: %v", err)
	}

	// Services
	authService := services.NewAuthService(cfg.JWT)
	inferenceClient := services.NewInferenceClient(cfg.ML)
	predictionStore := store.NewGormPredictionStore(db)
	predictionService := services.NewPredictionService(predictionStore)

	// Handlers
	authHandler := handlers.NewAuthHandler(db, authService)
	predictionHandler := handlers.NewPredictionHandler(predictionService, inferenceClient, cache)

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "UP",
			"message": "Water Quality API is running",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
	}

	api := router.Group("/api", middleware.RequireAuth(authService))
	{
		api.POST("/predictions", predictionHandler.Predict)
		api.GET("/predictions", predictionHandler.GetHistory)
		api.GET("/predictions/stats", predictionHandler.GetStats)
		api.GET("/predictions/stats/global", predictionHandler.GetGlobalStats)
		api.GET("/predictions/:id", predictionHandler.GetByID)
		api.PATCH("/predictions/:id", predictionHandler.UpdateMetadata)
		api.DELETE("/predictions/:id", predictionHandler.DeleteByID)
	}

	router.GET("/ws/predictions", handlers.LivePredictions(cache, authService))

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
