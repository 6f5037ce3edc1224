package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-records-api/api/swagger"
	"github.com/noah-isme/academic-records-api/internal/handler"
	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/cache"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
	"github.com/noah-isme/academic-records-api/pkg/logger"
	"github.com/noah-isme/academic-records-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/requestid"
)

// @title Academic Records API
// @version 1.0.0
// @description Approval and gating engine for admissions, grades, back subjects and enrollment.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	location, err := time.LoadLocation(cfg.Admissions.Timezone)
	if err != nil {
		logr.Fatal("invalid admissions timezone", zap.String("timezone", cfg.Admissions.Timezone), zap.Error(err))
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	gateway := database.NewGateway(db, database.WithIsolation(cfg.Database.Isolation), database.WithTxObserver(metrics))
	validate := validator.New()

	applicationRepo := repository.NewApplicationRepository(db)
	requirementRepo := repository.NewRequirementRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	studentNumberRepo := repository.NewStudentNumberRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	editRequestRepo := repository.NewGradeEditRequestRepository(db)
	backSubjectRepo := repository.NewBackSubjectRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditTrail := service.NewAuditTrail(auditRepo, logr)
	eligibility := service.NewEligibilityService(applicationRepo, requirementRepo, paymentRepo, logr)

	var redisClient *redis.Client
	if cfg.Provisioning.Enabled || cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without stream and cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	var periodCache *service.CacheService
	if cfg.Cache.Enabled && redisClient != nil {
		periodCache = service.NewCacheService(repository.NewCacheRepository(redisClient, cfg.Cache.Prefix), metrics, cfg.Cache.TTL, logr)
	}

	var queue *jobs.Queue
	var dispatcher *service.ProvisioningDispatcher
	if cfg.Provisioning.Enabled {
		events := repository.NewEventStreamRepository(redisClient, cfg.Provisioning.StreamKey, logr)
		dispatcher = service.NewProvisioningDispatcher(events, mail.New(cfg.Mail, logr), metrics, logr)
		queue = jobs.NewQueue("provisioning", dispatcher.Handle, jobs.QueueConfig{
			Workers:    cfg.Provisioning.Workers,
			MaxRetries: cfg.Provisioning.MaxRetries,
			RetryDelay: cfg.Provisioning.RetryDelay,
			Logger:     logr,
		})
		dispatcher.Attach(queue)
		queue.Start(ctx)
	}

	admissionDeps := service.AdmissionDeps{
		Tx:           gateway,
		Applications: applicationRepo,
		Sequences:    studentNumberRepo,
		Requirements: requirementRepo,
		Payments:     paymentRepo,
		Eligibility:  eligibility,
		Audit:        auditTrail,
		Metrics:      metrics,
		Validator:    validate,
		Logger:       logr,
		Location:     location,
	}
	gradeOpts := []service.GradeApprovalOption{service.WithGradeMetrics(metrics)}
	enrollmentOpts := []service.EnrollmentGateOption{service.WithEnrollmentMetrics(metrics), service.WithPeriodCache(periodCache)}
	if dispatcher != nil {
		admissionDeps.Provisioner = dispatcher
		enrollmentOpts = append(enrollmentOpts, service.WithEnrollmentProvisioner(dispatcher))
	}

	admissionSvc := service.NewAdmissionService(admissionDeps)
	gradeSvc := service.NewGradeApprovalService(gateway, gradeRepo, editRequestRepo, auditTrail, validate, logr, gradeOpts...)
	backSubjectSvc := service.NewBackSubjectService(gateway, backSubjectRepo, auditTrail, metrics, validate, logr)
	enrollmentSvc := service.NewEnrollmentGateService(gateway, enrollmentRepo, auditTrail, validate, logr, enrollmentOpts...)
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}

	registerRoutes(r, cfg, routeDeps{
		admissions:   handler.NewAdmissionHandler(admissionSvc, eligibility),
		grades:       handler.NewGradeApprovalHandler(gradeSvc),
		backSubjects: handler.NewBackSubjectHandler(backSubjectSvc),
		enrollment:   handler.NewEnrollmentGateHandler(enrollmentSvc),
		audit:        handler.NewAuditHandler(auditTrail),
		ops:          handler.NewMetricsHandler(metrics, db),
		tokens:       tokens,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
		logr.Info("provisioning queue drained", zap.Any("stats", queue.Stats()))
	}
}
