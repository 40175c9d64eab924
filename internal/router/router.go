package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/handler"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Teacher       *handler.TeacherHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/teacher/login", handlers.Auth.TeacherLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/teacher/me", middleware.RequireTeacherJWT(authService), handlers.Auth.GetTeacherProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/dashboard", handlers.StudentPortal.GetDashboard)
		studentAPI.GET("/tests", handlers.StudentPortal.ListTests)
		studentAPI.POST("/tests/:test_id/start", handlers.StudentPortal.StartAttempt)
		studentAPI.GET("/tests/:test_id/attempt", handlers.StudentPortal.GetAttemptState)
		studentAPI.PUT("/tests/:test_id/attempt/answers", handlers.StudentPortal.RecordSelection)
		studentAPI.POST("/tests/:test_id/attempt/submit", handlers.StudentPortal.SubmitAttempt)
		studentAPI.DELETE("/tests/:test_id/attempt", handlers.StudentPortal.AbandonAttempt)
		studentAPI.GET("/results", handlers.StudentPortal.ListResults)
		studentAPI.GET("/results/:test_id", handlers.StudentPortal.GetResult)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/tests/:test_id/attempt", handlers.WS.AttemptStream)
	}

	// ─── 4. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		// Group management
		teacherAPI.GET("/groups", handlers.Teacher.ListGroups)
		teacherAPI.POST("/groups", handlers.Teacher.CreateGroup)
		teacherAPI.PUT("/groups/:id", handlers.Teacher.UpdateGroup)
		teacherAPI.DELETE("/groups/:id", handlers.Teacher.DeleteGroup)
		teacherAPI.GET("/groups/:id/students", handlers.Teacher.ListGroupStudents)

		// Test management
		teacherAPI.GET("/tests", handlers.Teacher.ListTests)
		teacherAPI.POST("/tests", handlers.Teacher.CreateTest)
		teacherAPI.GET("/tests/:id", handlers.Teacher.GetTest)
		teacherAPI.PUT("/tests/:id", handlers.Teacher.UpdateTest)
		teacherAPI.PATCH("/tests/:id/active", handlers.Teacher.SetTestActive)
		teacherAPI.DELETE("/tests/:id", handlers.Teacher.DeleteTest)

		// Result review
		teacherAPI.GET("/tests/:id/results", handlers.Teacher.GetTestResults)
		teacherAPI.GET("/tests/:id/stats", handlers.Teacher.GetTestStats)
		teacherAPI.GET("/stats", handlers.Teacher.GetSummary)
	}

	return router
}
