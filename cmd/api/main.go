package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ybq204116/LLM-Chat/internal/config"
	"github.com/ybq204116/LLM-Chat/internal/database"
	"github.com/ybq204116/LLM-Chat/internal/middleware"
	"github.com/ybq204116/LLM-Chat/internal/modules/auth"
	"github.com/ybq204116/LLM-Chat/internal/modules/chat"
	"github.com/ybq204116/LLM-Chat/internal/pkg/token"
	"github.com/ybq204116/LLM-Chat/internal/repository"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	tokens := token.New(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authGate := middleware.Auth(tokens, userRepo)

	authService := auth.NewService(userRepo, tokens, cfg.RefreshRotateWindow)
	authHandler := auth.NewHandler(authService)

	upstream := chat.NewUpstreamClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, nil)
	chatService := chat.NewService(conversationRepo, messageRepo, upstream, cfg.UploadsDir, logger)
	chatHandler := chat.NewHandler(chatService, upstream, cfg.PublicBaseURL, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(corsMiddleware(cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Server is running"})
	})
	router.Static("/uploads", cfg.UploadsDir)

	api := router.Group("/api")
	{
		authHandler.RegisterRoutes(api, authGate)

		chatGroup := api.Group("/chat")
		chatGroup.Use(authGate)
		chatHandler.RegisterRoutes(chatGroup)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("listen error", zap.Error(err))
	}
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	return cors.New(corsConfig)
}
