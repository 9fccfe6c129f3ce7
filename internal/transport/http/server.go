package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "teamspace/internal/app"
	"teamspace/internal/bootstrap"
	"teamspace/internal/cache"
	"teamspace/internal/platform/rabbitmq"
	"teamspace/internal/repository"
	"teamspace/internal/transport/http/handler"
	"teamspace/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	workspaceRepo := repository.NewWorkspaceRepository(app.MySQL)
	taskRepo := repository.NewTaskRepository(app.MySQL)
	commentRepo := repository.NewCommentRepository(app.MySQL)
	fileRepo := repository.NewFileRepository(app.MySQL)
	eventRepo := repository.NewEventRepository(app.MySQL)

	membershipCache := cache.NewMembershipCache(
		app.Redis,
		time.Duration(app.Config.Redis.MembershipTTLSeconds)*time.Second,
	)
	auditPublisher := rabbitmq.NewEventPublisher(app.MQConn, app.Config.RabbitMQ.EventAuditQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	workspaceService := appsvc.NewWorkspaceService(workspaceRepo, userRepo, membershipCache)
	realtimeService := appsvc.NewRealtimeService(app.Registry, auditPublisher, workspaceService, eventRepo)
	taskService := appsvc.NewTaskService(taskRepo, commentRepo, workspaceService, realtimeService)
	fileService := appsvc.NewFileService(fileRepo, app.Blobs, workspaceService, realtimeService, app.Config.MaxFileSizeBytes())
	uploadService := appsvc.NewUploadService(
		app.Tracker,
		app.Blobs,
		fileRepo,
		workspaceService,
		realtimeService,
		app.Config.MaxFileSizeBytes(),
		app.Config.Upload.TempPrefix,
	)

	authHandler := handler.NewAuthHandler(authService)
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService)
	taskHandler := handler.NewTaskHandler(taskService)
	fileHandler := handler.NewFileHandler(fileService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	eventHandler := handler.NewEventHandler(realtimeService, app.Config.HeartbeatInterval())
	adminHandler := handler.NewAdminHandler(app.Sweeper)

	authJWT := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authJWT, authHandler.Me)

	workspaceGroup := v1.Group("/workspaces", authJWT)
	workspaceGroup.POST("", workspaceHandler.Create)
	workspaceGroup.GET("", workspaceHandler.List)
	workspaceGroup.POST("/:id/members", workspaceHandler.AddMember)
	workspaceGroup.GET("/:id/members", workspaceHandler.ListMembers)

	taskGroup := v1.Group("/tasks", authJWT)
	taskGroup.POST("", taskHandler.Create)
	taskGroup.GET("", taskHandler.List)
	taskGroup.PATCH("/:id", taskHandler.Update)
	taskGroup.DELETE("/:id", taskHandler.Delete)
	taskGroup.POST("/:id/comments", taskHandler.CreateComment)
	taskGroup.GET("/:id/comments", taskHandler.ListComments)

	fileGroup := v1.Group("/files", authJWT)
	fileGroup.POST("", fileHandler.Upload)
	fileGroup.GET("", fileHandler.List)
	fileGroup.GET("/:id/download", fileHandler.Download)
	fileGroup.DELETE("/:id", fileHandler.Delete)

	uploadGroup := v1.Group("/uploads", authJWT)
	uploadGroup.POST("/chunk", uploadHandler.Chunk)
	uploadGroup.POST("/complete", uploadHandler.Complete)
	uploadGroup.POST("/status", uploadHandler.Status)

	eventGroup := v1.Group("/events", authJWT)
	eventGroup.GET("/stream", eventHandler.Stream)
	eventGroup.POST("/publish", eventHandler.Publish)
	eventGroup.GET("", eventHandler.History)

	adminGroup := v1.Group("/admin", middleware.CleanupSecret(app.Config.Cleanup.Secret))
	adminGroup.POST("/cleanup", adminHandler.Cleanup)

	return router
}
