package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edusys-ar/escuela-api/internal/handler"
	"github.com/edusys-ar/escuela-api/internal/middleware"
	"github.com/edusys-ar/escuela-api/internal/models"
	"github.com/edusys-ar/escuela-api/internal/repository"
	"github.com/edusys-ar/escuela-api/internal/service"
	"github.com/edusys-ar/escuela-api/pkg/cache"
	"github.com/edusys-ar/escuela-api/pkg/config"
	"github.com/edusys-ar/escuela-api/pkg/database"
	"github.com/edusys-ar/escuela-api/pkg/logger"
	corsmiddleware "github.com/edusys-ar/escuela-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edusys-ar/escuela-api/pkg/middleware/requestid"
	"github.com/edusys-ar/escuela-api/pkg/storage"
)

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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Migrations.Enabled {
		if err := database.Migrate(context.Background(), db, cfg.Migrations.Dir); err != nil {
			logr.Sugar().Fatalw("migrations failed", "error", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
			redisClient = nil
		}
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Sugar().Fatalw("uploads directory unavailable", "error", err)
	}

	r := buildRouter(cfg, logr, db, redisClient, store)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func buildRouter(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client, store *storage.LocalStorage) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.CareersTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	historyRepo := repository.NewPriceHistoryRepository(db)
	careerRepo := repository.NewCareerRepository(db, historyRepo)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	newsRepo := repository.NewNewsRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	careerSvc := service.NewCareerService(careerRepo, enrollmentRepo, cacheSvc, validate, logr)
	billingSvc := service.NewBillingService(paymentRepo, historyRepo, enrollmentRepo, careerRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, userRepo, careerRepo, paymentRepo, validate, logr)
	newsSvc := service.NewNewsService(newsRepo, cacheSvc, cfg.Cache.NewsTTL, validate, logr)
	studentSvc := service.NewStudentService(userRepo, enrollmentRepo, paymentRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	careerHandler := handler.NewCareerHandler(careerSvc, billingSvc)
	paymentHandler := handler.NewPaymentHandler(billingSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	newsHandler := handler.NewNewsHandler(newsSvc)
	uploadHandler := handler.NewUploadHandler(store, cfg.Uploads.PublicPath)
	studentHandler := handler.NewStudentHandler(studentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static(cfg.Uploads.PublicPath, store.Dir())

	r.POST("/login", authHandler.Login)

	auth := r.Group("/", middleware.JWT(authSvc))

	admin := auth.Group("/", middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/users", userHandler.Create)
		admin.POST("/users/paginated", userHandler.ListStudents)
		admin.PUT("/users/:id", userHandler.Update)
		admin.DELETE("/users/:id", userHandler.Delete)

		admin.POST("/careers", careerHandler.Create)
		admin.POST("/careers/paginated", careerHandler.List)
		admin.POST("/careers/prices/paginated", careerHandler.PriceHistory)
		admin.PUT("/careers/:id", careerHandler.Update)
		admin.DELETE("/careers/:id", careerHandler.Delete)

		admin.POST("/payments", paymentHandler.Create)
		admin.POST("/payments/paginated", paymentHandler.List)
		admin.POST("/payments/by-enrollment", paymentHandler.ByEnrollment)
		admin.PUT("/payments/:id/cancel", paymentHandler.Cancel)
		admin.DELETE("/payments/:id", paymentHandler.Delete)

		admin.POST("/enrollments", enrollmentHandler.Create)
		admin.POST("/enrollments/by-user", enrollmentHandler.ByUser)
		admin.DELETE("/enrollments/:id", enrollmentHandler.Delete)

		admin.POST("/news", newsHandler.Create)
		admin.PUT("/news/:id", newsHandler.Update)
		admin.DELETE("/news/:id", newsHandler.Delete)

		admin.POST("/upload", uploadHandler.Upload)
	}

	auth.GET("/users/:id", middleware.RBAC(string(models.RoleAdmin), middleware.AllowSelf), userHandler.Get)
	auth.GET("/careers/:id", careerHandler.Get)
	auth.GET("/news/:id", newsHandler.Get)
	auth.POST("/news/paginated", newsHandler.List)

	student := auth.Group("/student", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin))
	{
		student.GET("/profile", studentHandler.Profile)
		student.GET("/careers", studentHandler.Careers)
		student.GET("/payments", studentHandler.Payments)
	}

	return r
}
