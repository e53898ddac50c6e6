package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-attendance-api/api/swagger"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/pkg/cache"
	"github.com/noah-isme/campus-attendance-api/pkg/config"
	"github.com/noah-isme/campus-attendance-api/pkg/database"
	"github.com/noah-isme/campus-attendance-api/pkg/jobs"
	"github.com/noah-isme/campus-attendance-api/pkg/logger"
	"github.com/noah-isme/campus-attendance-api/pkg/mailer"
	"github.com/noah-isme/campus-attendance-api/pkg/storage"
)

// @title Campus Attendance API
// @version 1.0.0
// @description Lecture scheduling, attendance marking and reporting for university sections.
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, report cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer application.mailQueue.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, application, db, redisClient, logr),
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
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// app holds the wired services the router needs.
type app struct {
	auth           *service.AuthService
	users          *service.UserService
	credentials    *service.CredentialService
	badges         *service.BadgeService
	sections       *service.SectionService
	courses        *service.CourseService
	students       *service.StudentService
	teachers       *service.TeacherService
	teacherCourses *service.TeacherCourseService
	timetable      *service.TimetableService
	lectures       *service.LectureService
	attendance     *service.AttendanceService
	extensions     *service.ExtensionService
	reports        *service.ReportService
	imports        *service.ImportService
	files          *service.FileService
	metrics        *service.MetricsService
	auditLog       *repository.UserRepository
	mailQueue      *jobs.Queue
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*app, error) {
	loc, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Attendance.Timezone, err)
	}
	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	teacherCourseRepo := repository.NewTeacherCourseRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	lectureRepo := repository.NewLectureRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	extensionRepo := repository.NewExtensionRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, redisClient != nil)

	localStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init file storage: %w", err)
	}
	files := service.NewFileService(localStore, storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL), service.FileServiceConfig{
		APIPrefix:       cfg.APIPrefix,
		RetentionTTL:    cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	}, logr)
	files.StartCleanup(ctx)

	credCfg := service.CredentialConfig{
		Institution:    cfg.Mail.FromName,
		LoginURL:       cfg.Mail.LoginURL,
		PasswordLength: cfg.Import.PasswordLength,
	}
	var sender mailer.Sender = mailer.LogSender{Logger: logr}
	if cfg.Mail.Enabled {
		sender = mailer.NewSMTPSender(cfg.Mail)
	}
	mailQueue := jobs.NewQueue("mail", service.NewCredentialMailHandler(sender, credCfg), jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.MaxRetries,
		RetryDelay: cfg.Mail.RetryDelay,
		Logger:     logr,
		OnResult:   metrics.RecordJob,
	})
	mailQueue.Start(ctx)

	credentials := service.NewCredentialService(userRepo, studentRepo, teacherRepo, mailQueue, files, credCfg, logr)
	rules := service.WindowRules{
		MarkWindow:   cfg.Attendance.MarkWindow,
		EditWindow:   cfg.Attendance.EditWindow,
		ExtensionTTL: cfg.Attendance.ExtensionTTL,
	}

	teacherCourses := service.NewTeacherCourseService(teacherCourseRepo, teacherRepo, courseRepo, sectionRepo, validate, logr)
	auth := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	}).WithProfiles(studentRepo, teacherRepo)

	return &app{
		auth:           auth,
		users:          service.NewUserService(userRepo, validate, logr),
		credentials:    credentials,
		badges:         service.NewBadgeService(badgeRepo, validate, logr),
		sections:       service.NewSectionService(sectionRepo, badgeRepo, validate, logr),
		courses:        service.NewCourseService(courseRepo, validate, logr),
		students:       service.NewStudentService(studentRepo, userRepo, sectionRepo, credentials, cfg.Import.PasswordLength, validate, logr),
		teachers:       service.NewTeacherService(teacherRepo, userRepo, credentials, cfg.Import.PasswordLength, validate, logr),
		teacherCourses: teacherCourses,
		timetable:      service.NewTimetableService(timetableRepo, lectureRepo, teacherCourses, loc, validate, logr),
		lectures:       service.NewLectureService(lectureRepo, timetableRepo, teacherCourses, loc, validate, logr),
		attendance:     service.NewAttendanceService(attendanceRepo, lectureRepo, extensionRepo, userRepo, cacheSvc, metrics, rules, validate, logr),
		extensions:     service.NewExtensionService(extensionRepo, lectureRepo, userRepo, rules, validate, logr),
		reports: service.NewReportService(attendanceRepo, studentRepo, cacheSvc, files, metrics, service.ReportServiceConfig{
			DefaulterThreshold: cfg.Reports.DefaulterThreshold,
			CacheTTL:           cfg.Cache.TTL,
			Location:           loc,
		}, validate, logr),
		imports:   service.NewImportService(userRepo, studentRepo, teacherRepo, sectionRepo, credentials, metrics, cfg.Import.PasswordLength, logr),
		files:     files,
		metrics:   metrics,
		auditLog:  userRepo,
		mailQueue: mailQueue,
	}, nil
}
