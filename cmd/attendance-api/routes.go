package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/handler"
	"github.com/noah-isme/campus-attendance-api/internal/middleware"
	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/pkg/config"
	"github.com/noah-isme/campus-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-attendance-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, a *app, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = cfg.Import.MaxUploadBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))

	metricsHandler := handler.NewMetricsHandler(a.metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		checks := gin.H{"status": "ready", "database": "ok"}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
			} else {
				checks["redis"] = "ok"
			}
		}
		c.JSON(http.StatusOK, checks)
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(a.auth)
	userHandler := handler.NewUserHandler(a.users, a.credentials)
	academicHandler := handler.NewAcademicHandler(a.badges, a.sections, a.courses)
	studentHandler := handler.NewStudentHandler(a.students)
	teacherHandler := handler.NewTeacherHandler(a.teachers)
	teacherCourseHandler := handler.NewTeacherCourseHandler(a.teacherCourses)
	importHandler := handler.NewImportHandler(a.imports, cfg.Import.MaxUploadBytes)
	timetableHandler := handler.NewTimetableHandler(a.timetable)
	lectureHandler := handler.NewLectureHandler(a.lectures, cfg.Import.MaxUploadBytes)
	attendanceHandler := handler.NewAttendanceHandler(a.attendance)
	extensionHandler := handler.NewExtensionHandler(a.extensions)
	reportHandler := handler.NewReportHandler(a.reports)
	fileHandler := handler.NewFileHandler(a.files)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.GET("/files/:token", fileHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(a.auth), middleware.RequireProfile())
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	staff := authed.Group("")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	teacher := authed.Group("")
	teacher.Use(middleware.RequireRoles(models.RoleTeacher))
	student := authed.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent))

	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(a.auditLog, logr, action, resource)
	}

	admin.GET("/users", userHandler.List)
	admin.POST("/users", userHandler.Create)
	admin.PUT("/users/:id", userHandler.Update)
	admin.DELETE("/users/:id", userHandler.Deactivate)
	admin.POST("/users/:id/credentials", userHandler.ResendCredentials)
	authed.GET("/users/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)

	admin.GET("/badges", academicHandler.ListBadges)
	admin.POST("/badges", audit(models.AuditActionCatalogCreate, "badges"), academicHandler.CreateBadge)
	admin.PUT("/badges/:id", audit(models.AuditActionCatalogUpdate, "badges"), academicHandler.UpdateBadge)
	admin.DELETE("/badges/:id", audit(models.AuditActionCatalogDelete, "badges"), academicHandler.DeleteBadge)

	staff.GET("/sections", academicHandler.ListSections)
	staff.GET("/sections/:id", academicHandler.GetSection)
	admin.POST("/sections", audit(models.AuditActionCatalogCreate, "sections"), academicHandler.CreateSection)
	admin.PUT("/sections/:id", audit(models.AuditActionCatalogUpdate, "sections"), academicHandler.UpdateSection)
	admin.DELETE("/sections/:id", audit(models.AuditActionCatalogDelete, "sections"), academicHandler.DeleteSection)

	staff.GET("/courses", academicHandler.ListCourses)
	admin.POST("/courses", audit(models.AuditActionCatalogCreate, "courses"), academicHandler.CreateCourse)
	admin.PUT("/courses/:id", audit(models.AuditActionCatalogUpdate, "courses"), academicHandler.UpdateCourse)
	admin.DELETE("/courses/:id", audit(models.AuditActionCatalogDelete, "courses"), academicHandler.DeleteCourse)

	admin.GET("/students", studentHandler.List)
	admin.GET("/students/:id", studentHandler.Get)
	admin.POST("/students", studentHandler.Create)
	admin.PUT("/students/:id", studentHandler.Update)

	admin.GET("/teachers", teacherHandler.List)
	admin.GET("/teachers/:id", teacherHandler.Get)
	admin.POST("/teachers", teacherHandler.Create)
	admin.PUT("/teachers/:id", teacherHandler.Update)

	staff.GET("/teacher-courses", teacherCourseHandler.List)
	staff.GET("/teacher-courses/:id", teacherCourseHandler.Get)
	admin.POST("/teacher-courses", audit(models.AuditActionCourseAssign, "teacher_courses"), teacherCourseHandler.Assign)
	admin.DELETE("/teacher-courses/:id", audit(models.AuditActionCourseUnassign, "teacher_courses"), teacherCourseHandler.Unassign)

	admin.POST("/imports/validate", importHandler.Validate)
	admin.POST("/imports", importHandler.Import)
	admin.POST("/imports/create", importHandler.Create)

	staff.GET("/timetable-rules", timetableHandler.List)
	staff.POST("/timetable-rules", timetableHandler.Create)
	staff.PUT("/timetable-rules/:id", timetableHandler.Update)
	staff.DELETE("/timetable-rules/:id", timetableHandler.Deactivate)
	staff.POST("/timetable-rules/:id/generate", timetableHandler.Generate)

	staff.GET("/lectures", lectureHandler.List)
	staff.GET("/lectures/export", lectureHandler.Export)
	staff.GET("/lectures/template", lectureHandler.Template)
	staff.POST("/lectures/import", lectureHandler.Import)
	staff.POST("/lectures", lectureHandler.Create)
	staff.GET("/lectures/:id", lectureHandler.Get)
	staff.PUT("/lectures/:id", lectureHandler.Reschedule)
	staff.DELETE("/lectures/:id", lectureHandler.Cancel)

	staff.GET("/lectures/:id/window", attendanceHandler.Window)
	staff.GET("/lectures/:id/attendance", attendanceHandler.Sheet)
	teacher.POST("/lectures/:id/attendance", attendanceHandler.Mark)
	teacher.POST("/lectures/:id/extensions", extensionHandler.Request)

	staff.GET("/extensions", extensionHandler.List)
	staff.GET("/extensions/:id", extensionHandler.Get)
	admin.POST("/extensions/:id/decision", extensionHandler.Decide)

	staff.GET("/reports/summary", reportHandler.Summary)
	staff.GET("/reports/defaulters", reportHandler.Defaulters)
	staff.GET("/reports/students/:id", reportHandler.Student)
	staff.POST("/reports/export", reportHandler.Export)
	student.GET("/reports/me", reportHandler.Mine)

	return r
}
