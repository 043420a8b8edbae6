package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/acervo-leitor/acervo-api/api/swagger"
	"github.com/acervo-leitor/acervo-api/internal/handler"
	"github.com/acervo-leitor/acervo-api/internal/middleware"
	"github.com/acervo-leitor/acervo-api/internal/repository"
	"github.com/acervo-leitor/acervo-api/internal/service"
	"github.com/acervo-leitor/acervo-api/pkg/cache"
	"github.com/acervo-leitor/acervo-api/pkg/config"
	"github.com/acervo-leitor/acervo-api/pkg/database"
	"github.com/acervo-leitor/acervo-api/pkg/logger"
	corsmiddleware "github.com/acervo-leitor/acervo-api/pkg/middleware/cors"
	reqidmiddleware "github.com/acervo-leitor/acervo-api/pkg/middleware/requestid"
)

// @title Acervo Leitor API
// @version 1.0.0
// @description School library service: students, classes, books and loans
// @BasePath /api/v1
// @schemes http

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	// The API stays up without Redis; caching just turns off.
	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
	}

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	bookRepo := repository.NewBookRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	studentSvc := service.NewStudentService(studentRepo, classRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	bookSvc := service.NewBookService(bookRepo, validate, logr)
	loanSvc := service.NewLoanService(loanRepo, studentRepo, bookRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, logr, cfg.Dashboard.CacheTTL)

	studentHandler := handler.NewStudentHandler(studentSvc)
	classHandler := handler.NewClassHandler(classSvc)
	bookHandler := handler.NewBookHandler(bookSvc, loanSvc)
	loanHandler := handler.NewLoanHandler(loanSvc, dashboardSvc, cfg.Exports)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		students := api.Group("/students")
		students.GET("", studentHandler.List)
		students.POST("", studentHandler.Create)
		students.GET("/:id", studentHandler.Get)
		students.PUT("/:id", studentHandler.Update)
		students.DELETE("/:id", studentHandler.Delete)

		classes := api.Group("/classes")
		classes.GET("", classHandler.List)
		classes.POST("", classHandler.Create)
		classes.GET("/:id", classHandler.Get)
		classes.PUT("/:id", classHandler.Update)
		classes.DELETE("/:id", classHandler.Delete)

		books := api.Group("/books")
		books.GET("", bookHandler.List)
		books.POST("", bookHandler.Create)
		books.GET("/:id", bookHandler.Get)
		books.GET("/:id/availability", bookHandler.Availability)
		books.PUT("/:id", bookHandler.Update)
		books.DELETE("/:id", bookHandler.Delete)

		loans := api.Group("/loans")
		loans.GET("", loanHandler.List)
		loans.POST("", loanHandler.Create)
		loans.GET("/export", loanHandler.Export)
		loans.GET("/:id", loanHandler.Get)
		loans.POST("/:id/return", loanHandler.Close)
		loans.DELETE("/:id", loanHandler.Delete)

		if cfg.Dashboard.Enabled {
			api.GET("/dashboard", dashboardHandler.Summary)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
