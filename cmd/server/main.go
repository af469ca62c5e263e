// @title           Renderiq Backend API
// @version         1.0.0
// @description     Backend API for credit-metered AI image and video generation. Handles project management, render generation with Gemini and Veo models, credit accounting, and the public gallery.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"renderiq-backend/docs"
	"renderiq-backend/internal/billing"
	"renderiq-backend/internal/config"
	"renderiq-backend/internal/database"
	"renderiq-backend/internal/gemini"
	"renderiq-backend/internal/handlers"
	"renderiq-backend/internal/logger"
	"renderiq-backend/internal/middleware"
	"renderiq-backend/internal/services"
	"renderiq-backend/internal/storage"
	"renderiq-backend/internal/supabase"
	"renderiq-backend/internal/veo"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slogger := logger.New(cfg.Environment)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Swagger host tracks the deployed base URL.
	if cfg.BaseURL != "" {
		if baseURL, err := url.Parse(cfg.BaseURL); err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	migrator, err := database.NewMigrator(cfg.DatabaseURL, slogger)
	if err != nil {
		log.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := migrator.Run(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	migrator.Close()

	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ledger := billing.NewLedger(db.DB(), slogger, cfg.DefaultFreeCredits)
	subscriptions := billing.NewSubscriptionService(db.DB(), ledger, slogger, cfg.StripeWebhookSecret)

	geminiClient, err := gemini.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GenerationTimeout, slogger)
	if err != nil {
		log.Fatalf("Failed to initialize gemini client: %v", err)
	}
	defer geminiClient.Close()

	veoClient := veo.NewClient(cfg.VeoAPIBaseURL, cfg.VeoAPIKey, cfg.GenerationTimeout, slogger)

	backend, err := storage.New(cfg.StorageBackend,
		storage.SupabaseConfig{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.SupabaseStorageBucket,
		},
		storage.S3Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
		})
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}

	artifacts := services.NewArtifactStore(backend, db, cfg.SupabaseStorageBucket, slogger)

	var events services.EventPublisher = noopEvents{}
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		supabaseClient, err := supabase.NewClient(cfg)
		if err != nil {
			slogger.Warn("failed to initialize supabase client, realtime events disabled", "error", err)
		} else {
			events = supabase.NewRealtimeClient(supabaseClient.Supabase)
		}
	}

	renderService := services.NewRenderService(
		ledger, geminiClient, veoClient, artifacts, db, subscriptions, events, slogger)

	videoHandler := handlers.NewVideoHandler(renderService)
	rendersHandler := handlers.NewRendersHandler(renderService, db)
	creditsHandler := handlers.NewCreditsHandler(ledger)
	projectsHandler := handlers.NewProjectsHandler(db)
	galleryHandler := handlers.NewGalleryHandler(db)
	webhookHandler := handlers.NewWebhookHandler(subscriptions, slogger)

	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", handlers.HealthCheck)

	// Public gallery (no auth)
	router.GET("/api/v1/gallery", galleryHandler.ListGallery)

	// Stripe webhook (no auth, signature-verified)
	router.POST("/api/v1/webhooks/stripe", webhookHandler.StripeWebhook)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// CRUD routes get a rate limit when Redis is configured.
	// Generation routes are metered by credits instead.
	crud := api
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		crud = api.Group("")
		crud.Use(middleware.RateLimitMiddleware(redisClient, 60, time.Minute, slogger))
	}

	crud.POST("/projects", projectsHandler.CreateProject)
	crud.GET("/projects", projectsHandler.ListProjects)
	crud.GET("/projects/:project_id", projectsHandler.GetProject)
	crud.DELETE("/projects/:project_id", projectsHandler.DeleteProject)

	crud.GET("/renders", rendersHandler.ListRenders)
	crud.GET("/renders/:render_id", rendersHandler.GetRender)
	crud.POST("/chains", rendersHandler.CreateChain)

	crud.GET("/credits", creditsHandler.GetCredits)
	crud.GET("/credits/transactions", creditsHandler.ListTransactions)

	api.POST("/renders", rendersHandler.GenerateImage)
	api.POST("/video", videoHandler.GenerateVideo)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	slogger.Info("server starting", "port", port, "environment", cfg.Environment)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

type noopEvents struct{}

func (noopEvents) PublishRenderEvent(_ uuid.UUID, _ string, _ map[string]interface{}) error {
	return nil
}
