package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

// @title SMA Timetable API
// @version 1.0.0
// @description School timetable management and automatic schedule generation
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional; a failed connection degrades to an uncached API.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	periodRepo := repository.NewPeriodSlotRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ScheduleTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	scheduleCache := service.NewScheduleCache(cacheSvc, cfg.Cache.ScheduleTTL)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
	})
	userSvc := service.NewUserService(userRepo, teacherRepo, nil, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, nil, logr)
	classSvc := service.NewClassService(classRepo, teacherRepo, nil, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, subjectRepo, nil, logr)
	periodSvc := service.NewPeriodService(periodRepo, nil, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, teacherRepo, periodRepo, nil, logr)
	scheduleSvc := service.NewScheduleService(assignmentRepo, classRepo, teacherRepo, periodRepo, scheduleCache, nil, logr)
	schedulingSvc := service.NewSchedulingService(
		classRepo,
		subjectRepo,
		periodRepo,
		teacherRepo,
		availabilityRepo,
		assignmentRepo,
		metricsSvc,
		scheduleCache,
		nil,
		logr,
		service.SchedulingConfig{TrackSubjects: cfg.Scheduler.TrackSubjects},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(scheduleSvc, classRepo, store, signer, service.ExportConfig{
			APIPrefix:         cfg.APIPrefix,
			ResultTTL:         cfg.Exports.SignedURLTTL,
			WorkerConcurrency: cfg.Exports.WorkerConcurrency,
			WorkerRetries:     cfg.Exports.WorkerRetries,
		}, logr, nil, nil)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	classHandler := handler.NewClassHandler(classSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	periodHandler := handler.NewPeriodHandler(periodSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, schedulingSvc, cfg.Scheduler.DefaultSchoolYear)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/change-password", authHandler.ChangePassword)

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	allRoles := middleware.RequireRoles(models.RoleAdmin, models.RoleGuru, models.RoleKepsek)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleGuru)

	authed.GET("/subjects", allRoles, subjectHandler.List)
	authed.GET("/subjects/:id", allRoles, subjectHandler.Get)
	authed.POST("/subjects", adminOnly, subjectHandler.Create)
	authed.PUT("/subjects/:id", adminOnly, subjectHandler.Update)
	authed.DELETE("/subjects/:id", adminOnly, subjectHandler.Delete)

	authed.GET("/classes", allRoles, classHandler.List)
	authed.GET("/classes/:id", allRoles, classHandler.Get)
	authed.POST("/classes", adminOnly, classHandler.Create)
	authed.PUT("/classes/:id", adminOnly, classHandler.Update)
	authed.DELETE("/classes/:id", adminOnly, classHandler.Delete)

	authed.GET("/teachers", allRoles, teacherHandler.List)
	authed.GET("/teachers/:id", allRoles, teacherHandler.Get)
	authed.POST("/teachers", adminOnly, teacherHandler.Create)
	authed.PUT("/teachers/:id", adminOnly, teacherHandler.Update)
	authed.DELETE("/teachers/:id", adminOnly, teacherHandler.Delete)
	authed.GET("/teachers/:id/subjects", allRoles, teacherHandler.GetQualifications)
	authed.PUT("/teachers/:id/subjects", adminOnly, teacherHandler.SetQualifications)

	authed.GET("/teachers/:id/availability", allRoles, availabilityHandler.Get)
	authed.PUT("/teachers/:id/availability", staff, availabilityHandler.Set)
	authed.POST("/teachers/:id/availability/toggle", staff, availabilityHandler.Toggle)
	authed.DELETE("/teachers/:id/availability/:recordId", staff, availabilityHandler.Remove)

	authed.GET("/periods", allRoles, periodHandler.List)
	authed.GET("/periods/:id", allRoles, periodHandler.Get)
	authed.POST("/periods", adminOnly, periodHandler.Create)
	authed.PUT("/periods/:id", adminOnly, periodHandler.Update)
	authed.DELETE("/periods/:id", adminOnly, periodHandler.Delete)

	authed.GET("/schedules", allRoles, scheduleHandler.List)
	authed.POST("/schedules/generate", adminOnly, scheduleHandler.Generate)
	authed.POST("/schedules/clear", adminOnly, scheduleHandler.Clear)
	authed.GET("/schedules/statistics", allRoles, scheduleHandler.Statistics)
	authed.GET("/schedules/class/:id", allRoles, scheduleHandler.ClassWeek)
	authed.GET("/schedules/teacher/:id", allRoles, scheduleHandler.TeacherWeek)
	authed.PUT("/schedules/:id", adminOnly, scheduleHandler.Update)
	authed.DELETE("/schedules/:id", adminOnly, scheduleHandler.Delete)

	authed.GET("/users", adminOnly, userHandler.List)
	authed.GET("/users/:id", adminOnly, userHandler.Get)
	authed.POST("/users", adminOnly, userHandler.Create)
	authed.PUT("/users/:id", adminOnly, userHandler.Update)
	authed.DELETE("/users/:id", adminOnly, userHandler.Delete)

	authed.GET("/system/metrics", adminOnly, metricsHandler.System)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		authed.POST("/exports", allRoles, exportHandler.Enqueue)
		authed.GET("/exports/:jobId", allRoles, exportHandler.Status)
		// Download uses the signed token as its credential.
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
