package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"voxpop/internal/cache"
	"voxpop/internal/config"
	"voxpop/internal/repository"
	"voxpop/internal/service"
	"voxpop/internal/transport/rest"
	"voxpop/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	log.Printf("AI Config:")
	log.Printf("  Interviewer: %s", cfg.AI.Models.Interviewer)
	log.Printf("  Summarize:   %s", cfg.AI.Models.Summarize)
	log.Printf("  Coverage:    %s", cfg.AI.Models.Coverage)
	log.Printf("  Quality:     %s", cfg.AI.Models.Quality)
	log.Printf("  Completion:  %s", cfg.AI.Models.Completion)
	if cfg.AI.IsEnabled() {
		log.Println("  API Key:     configured")
	} else {
		log.Println("  API Key:     NOT SET (generation calls will fail)")
	}

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database("voxpop")

	// Redis connection
	redisAddr := strings.TrimPrefix(cfg.RedisURI, "redis://")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize repositories
	surveyRepo := repository.NewSurveyRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	convRepo := repository.NewConversationRepo(db)
	usageRepo := repository.NewUsageRepo(db)

	// Initialize caches
	sessionCache := cache.NewSessionCache(rdb)
	banCache := cache.NewBanCache(rdb)
	counters := cache.NewOriginCounterCache(rdb)

	// Initialize services
	gateway := service.NewModelGateway(&cfg.AI)
	authSvc := service.NewAuthService(&cfg.Auth)
	surveySvc := service.NewSurveyService(surveyRepo)
	sessionSvc := service.NewSessionService(sessionRepo, convRepo, surveyRepo, usageRepo,
		sessionCache, counters, gateway, authSvc, cfg)

	spam := service.NewSpamDetector(counters, cfg)
	quality := service.NewQualityClassifier(gateway, cfg)
	compressor := service.NewCompressor(gateway, cfg)
	coverage := service.NewCoverageTracker(gateway, cfg)
	completion := service.NewCompletionEngine(gateway, cfg)

	orchestrator := service.NewOrchestrator(sessionRepo, convRepo, surveyRepo, usageRepo,
		sessionCache, counters, banCache, gateway, spam, quality, compressor, coverage, completion, cfg)
	orchestrator.SetBroadcaster(wsHub)

	// Create router with container
	container := &rest.Container{
		AuthService:    authSvc,
		SurveyService:  surveySvc,
		SessionService: sessionSvc,
		Orchestrator:   orchestrator,
		BanCache:       banCache,
		WSHub:          wsHub,
	}

	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/login")
		log.Println("  POST/GET /v1/surveys")
		log.Println("  POST /v1/sessions")
		log.Println("  POST /v1/sessions/{token}/messages")
		log.Println("  POST /v1/sessions/{token}/pause")
		log.Println("  POST /v1/sessions/resume")
		log.Println("  WS   /v1/ws/surveys/{surveyId}/monitor")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
