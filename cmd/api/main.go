package main

import (
	"context"
	"time"

	_ "academy/api/swagger" // swagger docs
	"academy/internal/cache"
	"academy/internal/config"
	"academy/internal/database"
	"academy/internal/handler"
	"academy/internal/middleware"
	"academy/internal/notify"
	"academy/internal/repository"
	"academy/internal/service"
	"academy/internal/storage"
	"academy/internal/websocket"
	"academy/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Aviation Academy API
// @version         1.0
// @description     Document requirement matrices, intake batches and trainee applications.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		panic("invalid configuration: " + err.Error())
	}
	gin.SetMode(cfg.GinMode)

	log := logger.New(cfg.LogLevel, cfg.Release())

	db, err := database.NewConnection(cfg.DSN(), logger.NewGorm(log, 200*time.Millisecond))
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	log.Info("Connected to PostgreSQL successfully.")

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	if rdb == nil {
		log.Warn("REDIS_ADDR not set, idempotency keys are ignored")
	}

	store, err := storage.NewLocal(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		log.WithError(err).Fatal("Upload directory unavailable")
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	notifier := notify.New(cfg.SendGridAPIKey, "Aviation Academy", cfg.MailFrom, log)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	roleRepo := repository.NewRoleRepository(db)
	userRepo := repository.NewUserRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	posRepo := repository.NewPositionRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	matrixRepo := repository.NewMatrixRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	roleService := service.NewRoleService(txManager, roleRepo)
	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := roleService.SeedDefaultRolesAndPermissions(seedCtx); err != nil {
		log.WithError(err).Fatal("Failed to seed roles")
	}
	cancel()

	secret := []byte(cfg.JWTSecret)
	userService := service.NewUserService(userRepo, roleRepo, deptRepo, service.TokenConfig{
		Secret:     secret,
		AccessTTL:  cfg.JWTTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	auditService := service.NewAuditService(auditRepo)
	departmentService := service.NewDepartmentService(txManager, deptRepo, posRepo, matrixRepo, appRepo, userRepo, auditRepo)
	positionService := service.NewPositionService(txManager, deptRepo, posRepo, matrixRepo, appRepo, auditRepo)
	documentService := service.NewDocumentService(txManager, docRepo, matrixRepo, appRepo, auditRepo)
	batchService := service.NewBatchService(txManager, batchRepo, appRepo, auditRepo)
	matrixService := service.NewMatrixService(service.MatrixDeps{
		Tx:        txManager,
		Depts:     deptRepo,
		Positions: posRepo,
		Docs:      docRepo,
		Matrix:    matrixRepo,
		Users:     userRepo,
		Audit:     auditRepo,
		Events:    wsHub,
		Notifier:  notifier,
		Log:       log,
	})
	applicationService := service.NewApplicationService(service.ApplicationDeps{
		Tx:             txManager,
		Apps:           appRepo,
		Batches:        batchRepo,
		Depts:          deptRepo,
		Positions:      posRepo,
		Matrix:         matrixRepo,
		Users:          userRepo,
		Audit:          auditRepo,
		Store:          store,
		MaxUploadBytes: cfg.UploadMaxBytes,
		PublicBaseURL:  cfg.PublicBaseURL,
		Notifier:       notifier,
		Log:            log,
	})

	guard := handler.Guard{
		Auth:        middleware.NewAuth(secret, roleService, cfg.Release(), cfg.JWTTTL, cfg.RefreshTTL),
		Idempotency: middleware.Idempotency(rdb, cfg.IdempotencyTTL, log),
	}

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, guard, !cfg.Release())
	roleHandler := handler.NewRoleHandler(roleService, guard)
	auditHandler := handler.NewAuditHandler(auditService, guard)
	departmentHandler := handler.NewDepartmentHandler(departmentService, guard)
	positionHandler := handler.NewPositionHandler(positionService, guard)
	documentHandler := handler.NewDocumentHandler(documentService, guard)
	batchHandler := handler.NewBatchHandler(batchService, guard)
	matrixHandler := handler.NewMatrixHandler(matrixService, guard)
	applicationHandler := handler.NewApplicationHandler(applicationService, guard)

	// Set up Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))
	router.MaxMultipartMemory = 8 << 20

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.IdempotencyHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", middleware.ReplayedHeader}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	// API Routing
	root := router.Group("")
	userHandler.RegisterRoutes(root)
	roleHandler.RegisterRoutes(root)
	auditHandler.RegisterRoutes(root)
	departmentHandler.RegisterRoutes(root)
	positionHandler.RegisterRoutes(root)
	documentHandler.RegisterRoutes(root)
	batchHandler.RegisterRoutes(root)
	matrixHandler.RegisterRoutes(root)
	applicationHandler.RegisterRoutes(root)

	log.Infof("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}
