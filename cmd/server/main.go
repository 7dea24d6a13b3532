package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finwise/backend/internal/admin"
	"github.com/finwise/backend/internal/api"
	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/budget"
	"github.com/finwise/backend/internal/cache"
	"github.com/finwise/backend/internal/community"
	"github.com/finwise/backend/internal/config"
	"github.com/finwise/backend/internal/db"
	"github.com/finwise/backend/internal/email"
	"github.com/finwise/backend/internal/expense"
	"github.com/finwise/backend/internal/gamification"
	"github.com/finwise/backend/internal/goal"
	"github.com/finwise/backend/internal/health"
	"github.com/finwise/backend/internal/learning"
	"github.com/finwise/backend/internal/logger"
	"github.com/finwise/backend/internal/middleware"
	"github.com/finwise/backend/internal/simulator"
	"github.com/finwise/backend/internal/storage"
	"github.com/finwise/backend/internal/user"
)

const version = "1.0.0"

// runTokenJanitor removes expired refresh tokens every hour until the
// context is cancelled.
func runTokenJanitor(ctx context.Context, tokens *db.TokenRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := tokens.DeleteExpired(ctx)
			if err != nil {
				logger.Error(ctx, "refresh token cleanup failed", err)
				continue
			}
			if removed > 0 {
				logger.Debug(ctx, "removed expired refresh tokens", map[string]interface{}{
					"count": removed,
				})
			}
		}
	}
}

func main() {
	// Missing .env is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := config.Load()

	logger.SetDefault(logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "server"))

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional; without it the leaderboard and market snapshot
	// fall back to the database and in-memory state.
	var redisCache *cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err = cache.New(cfg.RedisAddr)
		if err != nil {
			log.Printf("Redis unavailable, continuing without cache: %v", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	// Avatar storage is optional in the same way.
	var avatarStore *storage.Client
	if cfg.MinioEndpoint != "" {
		avatarStore, err = storage.New(&storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Printf("MinIO unavailable, continuing without avatar storage: %v", err)
			avatarStore = nil
		} else if err := avatarStore.EnsureBucket(ctx); err != nil {
			log.Printf("Failed to ensure avatar bucket, continuing without avatar storage: %v", err)
			avatarStore = nil
		}
	}

	var emailSender auth.EmailSender
	if cfg.ResendAPIKey != "" {
		emailSender = email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppURL)
	}

	// Repositories
	userRepo := db.NewUserRepository(database)
	tokenRepo := db.NewTokenRepository(database)
	expenseRepo := db.NewExpenseRepository(database)
	budgetRepo := db.NewBudgetRepository(database)
	goalRepo := db.NewGoalRepository(database)
	lessonRepo := db.NewLessonRepository(database)
	progressRepo := db.NewProgressRepository(database)
	portfolioRepo := db.NewPortfolioRepository(database)
	postRepo := db.NewPostRepository(database)
	badgeRepo := db.NewBadgeRepository(database)

	// Services
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	signer := auth.NewTokenSigner(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := auth.NewService(userRepo, tokenRepo, hasher, signer, emailSender, cfg.AutoVerify)

	// Hand the service a nil interface, not a typed nil, when Redis is off.
	var leaderboardCache gamification.LeaderboardCache
	if redisCache != nil {
		leaderboardCache = redisCache
	}
	gamificationService := gamification.NewService(userRepo, badgeRepo, leaderboardCache)

	market := simulator.NewMarket(redisCache)
	hub := simulator.NewHub()
	tradingService := simulator.NewService(portfolioRepo, market)

	// Nil check funcs report the component as degraded rather than failing
	// readiness.
	healthCfg := &health.CheckerConfig{
		DB:      database.DB,
		Version: version,
	}
	if redisCache != nil {
		healthCfg.CacheCheck = redisCache.Ping
	}
	if avatarStore != nil {
		healthCfg.StorageCheck = avatarStore.Healthy
	}
	healthChecker := health.NewChecker(healthCfg)

	// Handlers
	simulatorHandlers := simulator.NewHandlers(market, tradingService, hub)
	handlers := &api.Handlers{
		Auth:         auth.NewHandlers(authService, cfg.IsProduction()),
		AuthService:  authService,
		Expense:      expense.NewHandlers(expenseRepo),
		Budget:       budget.NewHandlers(budgetRepo, expenseRepo),
		Goal:         goal.NewHandlers(goalRepo),
		Learning:     learning.NewHandlers(lessonRepo, progressRepo, gamificationService),
		Simulator:    simulatorHandlers,
		Community:    community.NewHandlers(postRepo),
		Gamification: gamification.NewHandlers(gamificationService),
		User:         user.NewHandlers(userRepo, expenseRepo, goalRepo, progressRepo, gamificationService, avatarStore),
		Admin:        admin.NewHandlers(userRepo, lessonRepo, badgeRepo, redisCache),
		Health:       health.NewHandler(healthChecker),
	}

	go hub.Run(ctx)
	go simulatorHandlers.RunTicker(ctx)
	go runTokenJanitor(ctx, tokenRepo)

	router := api.NewRouter(handlers)
	handler := middleware.Chain(router,
		middleware.RequestID,
		logger.LoggingMiddleware,
		middleware.CORS(cfg.CORSOrigins),
		middleware.Recoverer(logger.Default()),
	)

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
		}
	}()

	log.Printf("Starting server on %s", cfg.ServerAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}
}
