package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/config"
	"chemformula/internal/database"
	"chemformula/internal/handler"
	"chemformula/internal/metrics"
	"chemformula/internal/middleware"
	"chemformula/internal/repository"
	"chemformula/internal/service"
	"chemformula/internal/storage"
	"chemformula/internal/websocket"
	"chemformula/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const devJWTSecret = "dev-only-jwt-secret"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.Auth.JWTSecret == "" {
		log.Warn("AUTH_JWT_SECRET is not set, using the development secret")
		cfg.Auth.JWTSecret = devJWTSecret
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.NewConnection(cfg.Database.DSN(), log)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}()
	log.Info("connected to PostgreSQL", "host", cfg.Database.Host, "database", cfg.Database.Name)

	disk, err := storage.NewDisk(cfg.UploadsDir, log)
	if err != nil {
		log.Fatal("uploads directory unavailable", "dir", cfg.UploadsDir, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	wsHub := websocket.NewHub(log, cfg.CORSOrigins)
	go wsHub.Run(ctx)

	policy := auth.PolicyFromNames(cfg.Auth.AdminRoles)
	verifier := auth.NewVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTAudience)

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	formulaRepo := repository.NewFormulaRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	roleService := service.NewRoleService(roleRepo)
	userService := service.NewUserService(txManager, userRepo, roleService, activityRepo, policy, log)
	settingService := service.NewSettingService(txManager, settingRepo, activityRepo)
	activityService := service.NewActivityService(activityRepo)
	statisticsService := service.NewStatisticsService(statsRepo)
	approvalService := service.NewApprovalService(service.ApprovalDeps{
		TxManager: txManager,
		Approvals: approvalRepo,
		Resources: resourceRepo,
		Formulas:  formulaRepo,
		Quotes:    quoteRepo,
		Users:     userRepo,
		Activity:  activityRepo,
		Policy:    policy,
		Notifier:  wsHub,
		Metrics:   m,
		Log:       log,
	})
	resourceService := service.NewResourceService(service.ResourceDeps{
		TxManager: txManager,
		Resources: resourceRepo,
		Activity:  activityRepo,
		Approvals: approvalService,
		Disk:      disk,
		MaxBytes:  cfg.MaxUploadBytes,
		Metrics:   m,
		Log:       log,
	})
	formulaService := service.NewFormulaService(txManager, formulaRepo, quoteRepo, activityRepo, approvalService, log)
	quoteService := service.NewQuoteService(txManager, quoteRepo, formulaRepo, activityRepo, approvalService, settingService, log)

	if cfg.Auth.BootstrapAdmin != "" {
		bootstrapAdmin(ctx, userService, cfg.Auth.BootstrapAdmin, log)
	}

	authenticator := middleware.NewAuthenticator(verifier, userService, log)
	guard := handler.Guard{Auth: authenticator.Authenticate(), Policy: policy}

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(log))
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics(m))
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	root := router.Group("")
	handler.NewHealthHandler(db).RegisterRoutes(root)
	handler.NewUploadHandler(resourceService, log).RegisterRoutes(root)
	handler.NewResourceHandler(resourceService, cfg.MaxUploadBytes, log).RegisterRoutes(root, guard)
	handler.NewApprovalHandler(approvalService, log).RegisterRoutes(root, guard)
	handler.NewFormulaHandler(formulaService, log).RegisterRoutes(root, guard)
	handler.NewQuoteHandler(quoteService, log).RegisterRoutes(root, guard)
	handler.NewUserHandler(userService, log).RegisterRoutes(root, guard)
	handler.NewRoleHandler(roleService, log).RegisterRoutes(root, guard)
	handler.NewSettingHandler(settingService, log).RegisterRoutes(root, guard)
	handler.NewActivityHandler(activityService, log).RegisterRoutes(root, guard)
	handler.NewStatisticsHandler(statisticsService, log).RegisterRoutes(root, guard)

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, authenticator.PrincipalFromToken, policy)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// bootstrapAdmin makes sure the configured administrator account exists.
func bootstrapAdmin(ctx context.Context, users service.UserService, email string, log *logger.Logger) {
	email = strings.ToLower(strings.TrimSpace(email))
	username := strings.SplitN(email, "@", 2)[0]
	_, err := users.CreateUser(ctx, &auth.Principal{}, service.CreateUserRequest{
		Username: username,
		Email:    email,
		Role:     string(auth.RoleSuperAdmin),
	})
	switch {
	case err == nil:
		log.Info("bootstrap administrator created", "email", email)
	case apperr.Is(err, apperr.KindConflict):
		log.Debug("bootstrap administrator already exists", "email", email)
	default:
		log.Error("failed to create bootstrap administrator", "email", email, "error", err)
	}
}
