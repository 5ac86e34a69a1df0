package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mouleshgs/onboardX/config"
	"github.com/mouleshgs/onboardX/handler"
	"github.com/mouleshgs/onboardX/middleware"
	"github.com/mouleshgs/onboardX/pkg/logger"
	"github.com/mouleshgs/onboardX/service"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Blob backends: the cloud store is optional, local storage always
	// works as the fallback.
	objectStore, err := service.NewObjectStore(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize object store", "error", err)
		os.Exit(1)
	}

	var backend service.ObjectBackend
	if objectStore != nil {
		if err := objectStore.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure bucket", "error", err)
			os.Exit(1)
		}
		backend = objectStore
	} else {
		slog.Warn("cloud store unconfigured, using local storage only")
	}

	localStore, err := service.NewLocalStore(cfg.Storage.LocalRoot)
	if err != nil {
		slog.Error("failed to initialize local storage", "error", err)
		os.Exit(1)
	}

	keys := service.NewKeyStore(cfg.Signing.KeysDir)
	if err := keys.Load(); err != nil {
		slog.Error("failed to load signing keys", "error", err)
		os.Exit(1)
	}

	storageTimeout := time.Duration(cfg.Storage.TimeoutSeconds) * time.Second
	registry := service.NewRegistry()
	resolver := service.NewResolver(backend, localStore, storageTimeout)
	writer := service.NewWriter(backend, localStore, storageTimeout)
	signer := service.NewSigner(keys)
	notifier := service.NewNotifier(&cfg.Notify)
	provisioner := service.NewProvisioner(
		registry,
		notifier,
		cfg.Onboarding.CourseURL,
		cfg.Onboarding.DashboardURL,
		time.Duration(cfg.Onboarding.AccessExpireDays)*24*time.Hour,
	)
	lifecycle := service.NewLifecycle(registry, resolver, signer, writer, provisioner)
	notifications := service.NewNotificationStore()
	assistant := service.NewAssistant(&cfg.Assistant)

	authHandler := handler.NewAuthHandler(cfg)
	contractHandler := handler.NewContractHandler(registry, lifecycle, resolver, provisioner, notifications, keys)
	notificationHandler := handler.NewNotificationHandler(notifications)
	assistantHandler := handler.NewAssistantHandler(assistant)

	metrics, err := middleware.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(metrics.Handler())
	router.Use(middleware.RateLimit(100, time.Minute))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/login", authHandler.Login)
		api.GET("/public-key", contractHandler.PublicKey)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/me", authHandler.GetCurrentUser)
		protected.POST("/upload", middleware.RequireRole(middleware.RoleVendor), contractHandler.Upload)
		protected.GET("/contracts", contractHandler.List)
		protected.GET("/contract/:id", contractHandler.Get)
		protected.GET("/contract/:id/file", contractHandler.File)
		protected.POST("/sign", contractHandler.Sign)
		protected.GET("/contract/:id/access", contractHandler.Access)
		protected.POST("/contract/:id/event", contractHandler.PostEvent)
		protected.POST("/contract/:id/nudge", contractHandler.Nudge)
		protected.GET("/notifications", notificationHandler.List)
		protected.POST("/notifications/mark-read", notificationHandler.MarkRead)
		protected.POST("/assistant", assistantHandler.Query)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
}
