package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/uzcoder03/maktab/api/swagger"
	"github.com/uzcoder03/maktab/internal/handler"
	"github.com/uzcoder03/maktab/internal/middleware"
	"github.com/uzcoder03/maktab/internal/models"
	"github.com/uzcoder03/maktab/internal/repository"
	"github.com/uzcoder03/maktab/internal/service"
	"github.com/uzcoder03/maktab/pkg/cache"
	"github.com/uzcoder03/maktab/pkg/config"
	"github.com/uzcoder03/maktab/pkg/database"
	"github.com/uzcoder03/maktab/pkg/export"
	"github.com/uzcoder03/maktab/pkg/jobs"
	"github.com/uzcoder03/maktab/pkg/logger"
	corsmiddleware "github.com/uzcoder03/maktab/pkg/middleware/cors"
	reqidmiddleware "github.com/uzcoder03/maktab/pkg/middleware/requestid"
	"github.com/uzcoder03/maktab/pkg/storage"
)

// @title Maktab API
// @version 1.0.0
// @description School administration API: student registry, payment ledger, online tests
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, test bank caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	testRepo := repository.NewTestRepository(db)
	resultRepo := repository.NewTestResultRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	homeworkRepo := repository.NewHomeworkRepository(db)
	examRecordRepo := repository.NewExamRecordRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Report artifacts live on local disk behind signed URLs.
	reportStore, err := storage.NewArchive(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	urlSigner := storage.NewDownloadSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "maktab-api",
	})
	pdfExporter := export.NewPDFExporter()
	csvExporter := export.NewCSVExporter()
	studentSvc := service.NewStudentService(studentRepo, csvExporter, validate, logr)
	debtorSvc := service.NewDebtorService(studentRepo, cfg.Billing.PaymentGraceDays, logr)
	ledgerSvc := service.NewLedgerService(paymentRepo, studentRepo, userRepo, pdfExporter, validate, logr)
	billingSvc := service.NewBillingService(studentRepo, paymentRepo, userRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	staffSvc := service.NewStaffService(userRepo, validate, logr)
	testSvc := service.NewTestService(testRepo, cacheRepo, cfg.Tests.CacheTTL, validate, logr)
	examSvc := service.NewExamService(testRepo, resultRepo, gradeRepo, cfg.Exams.MaxWarnings, logr)
	examSvc.SetMetrics(metricsSvc)
	resultSvc := service.NewResultService(resultRepo, userRepo, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, validate, logr)
	homeworkSvc := service.NewHomeworkService(homeworkRepo, validate, logr)
	examRecordSvc := service.NewExamRecordService(examRecordRepo, validate, logr)
	reportSvc := service.NewReportService(reportRepo, debtorSvc, studentRepo, paymentRepo, resultRepo, reportStore, urlSigner, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reportQueue := jobs.NewQueue("reports", reportSvc.Process, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc.SetQueue(reportQueue)
	reportQueue.Start(rootCtx)
	defer reportQueue.Stop()
	reportSvc.RecoverPendingJobs(rootCtx)
	reportSvc.StartCleanup(rootCtx)

	examSvc.StartSweeper(cfg.Exams.SweepInterval)
	defer examSvc.Shutdown()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, debtorSvc)
	paymentHandler := handler.NewPaymentHandler(ledgerSvc, billingSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	classHandler := handler.NewClassHandler(classSvc)
	staffHandler := handler.NewStaffHandler(staffSvc)
	testHandler := handler.NewTestHandler(testSvc)
	examHandler := handler.NewExamHandler(examSvc)
	resultHandler := handler.NewResultHandler(resultSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)
	homeworkHandler := handler.NewHomeworkHandler(homeworkSvc)
	examRecordHandler := handler.NewExamRecordHandler(examRecordSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staffOnly := middleware.RequireRoles(models.StaffRoles...)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	adminOrAcademic := middleware.RequireRoles(models.RoleAdmin, models.RoleAcademic)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	students := protected.Group("/students")
	{
		students.GET("", staffOnly, studentHandler.List)
		students.POST("", adminOrAcademic, studentHandler.Create)
		students.GET("/debtors", staffOnly, studentHandler.Debtors)
		students.GET("/export", staffOnly, studentHandler.Export)
		students.GET("/import/template", adminOrAcademic, studentHandler.Template)
		students.POST("/import", adminOrAcademic, middleware.Audit(userRepo, models.AuditActionStudentImport, "students"), studentHandler.Import)
		students.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), string(models.RoleAcademic), "SELF"), studentHandler.Get)
		students.PUT("/:id", adminOrAcademic, studentHandler.Update)
		students.DELETE("/:id", adminOnly, studentHandler.Delete)

		students.GET("/:id/payments", middleware.RBAC(string(models.RoleAdmin), string(models.RoleAcademic), "SELF"), paymentHandler.History)
		students.GET("/:id/settlements", middleware.RBAC(string(models.RoleAdmin), string(models.RoleAcademic), "SELF"), paymentHandler.Settlements)
		students.GET("/:id/balance/verify", adminOnly, paymentHandler.VerifyBalance)
		students.GET("/:id/payments/:paymentId/receipt", adminOrAcademic, paymentHandler.Receipt)
	}

	payments := protected.Group("/payments")
	{
		payments.POST("", adminOrAcademic, paymentHandler.Record)
		payments.POST("/bulk-charge", adminOnly, paymentHandler.BulkCharge)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", staffOnly, subjectHandler.List)
		subjects.GET("/:id", staffOnly, subjectHandler.Get)
		subjects.POST("", adminOnly, subjectHandler.Create)
		subjects.DELETE("/:id", adminOnly, subjectHandler.Delete)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", staffOnly, classHandler.List)
		classes.POST("", adminOnly, classHandler.Create)
		classes.DELETE("/:id", adminOnly, classHandler.Delete)
	}

	staff := protected.Group("/staff")
	{
		staff.GET("", adminOnly, staffHandler.List)
		staff.POST("", adminOnly, middleware.Audit(userRepo, models.AuditActionStaffCreate, "staff"), staffHandler.Create)
		staff.DELETE("/:id", adminOnly, staffHandler.Delete)
	}

	tests := protected.Group("/tests")
	{
		tests.GET("", testHandler.List)
		tests.POST("", staffOnly, testHandler.Create)
		tests.GET("/import/template", staffOnly, testHandler.Template)
		tests.POST("/import/parse", staffOnly, testHandler.ParseUpload)
		tests.GET("/:id", staffOnly, testHandler.Get)
	}

	exams := protected.Group("/exams", studentOnly)
	{
		exams.POST("/start", examHandler.Start)
		exams.GET("/:id", examHandler.State)
		exams.GET("/:id/questions/:idx", examHandler.Question)
		exams.POST("/:id/answer", examHandler.Answer)
		exams.POST("/:id/navigate", examHandler.Navigate)
		exams.POST("/:id/violation", examHandler.Violation)
		exams.POST("/:id/submit", examHandler.Submit)
	}

	results := protected.Group("/results")
	{
		results.GET("", resultHandler.List)
		results.DELETE("/:id", staffOnly, resultHandler.Reset)
	}

	attendance := protected.Group("/attendance")
	{
		attendance.GET("", staffOnly, attendanceHandler.List)
		attendance.POST("", staffOnly, attendanceHandler.Record)
	}

	grades := protected.Group("/grades")
	{
		grades.GET("", gradeHandler.List)
		grades.POST("", staffOnly, gradeHandler.Record)
	}

	homework := protected.Group("/homework")
	{
		homework.GET("", homeworkHandler.List)
		homework.POST("", staffOnly, homeworkHandler.Record)
	}

	examRecords := protected.Group("/exam-records")
	{
		examRecords.GET("", examRecordHandler.List)
		examRecords.POST("", staffOnly, examRecordHandler.Record)
	}

	reports := protected.Group("/reports")
	{
		reports.POST("", adminOrAcademic, reportHandler.Create)
		reports.GET("/:id", adminOrAcademic, reportHandler.Status)
	}
	// Download authenticates through the signed token itself.
	api.GET("/reports/download", reportHandler.Download)

	api.GET("/metrics/snapshot", middleware.JWT(authSvc), adminOnly, metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
	_ = cacheRepo.Close()
}
