package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/antichaos/antichaos/internal/api/handler"
	"github.com/antichaos/antichaos/internal/config"
	"github.com/antichaos/antichaos/internal/database"
	"github.com/antichaos/antichaos/internal/engine"
	"github.com/antichaos/antichaos/internal/identity"
	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionName = "antichaos_session"

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	engine    *engine.Engine
	resolver  *identity.Resolver
}

// New creates the API server and registers all routes.
func New(cfg *config.Config, db database.DB, e *engine.Engine, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.SessionKey == "" {
		return nil, fmt.Errorf("session key is required")
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		cfg:       cfg,
		ginEngine: ginEngine,
		engine:    e,
		resolver:  identity.NewResolver(db, cfg.Telegram.SecretKey),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.setupAdminRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	if s.cfg.FrontendURL != "" {
		s.ginEngine.Use(cors.New(cors.Config{
			AllowOrigins:     []string{s.cfg.FrontendURL},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", initDataHeader, guestHeader},
			ExposeHeaders:    []string{guestHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression))
	s.setupSession()
}

func (s *Server) setupSession() {
	// the mini app runs inside telegram on another site, so a secure
	// deployment needs a cross site cookie
	secure := strings.HasPrefix(s.cfg.FrontendURL, "https://")
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}

	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
	s.ginEngine.Use(sessions.Sessions(sessionName, store))
}

func (s *Server) setupRoutes() {
	h := handler.New(s.engine)

	s.ginEngine.GET("/health", h.Health)

	api := s.ginEngine.Group("/api")
	api.Use(s.requireUser())

	users := api.Group("/users")
	users.GET("/me", h.Me)
	users.GET("/is-admin", h.IsAdmin)
	users.PUT("/me/profile", h.UpdateProfile)
	users.GET("/me/export", h.Export)
	users.GET("/onboarding-status", h.OnboardingStatus)
	users.DELETE("/me", h.DeleteAccount)
	users.POST("/me/generate-test-data", h.GenerateTestData)

	questions := api.Group("/questions")
	questions.GET("/daily", h.DailyQuestion)
	questions.GET("/simple", h.SimpleQuestion)
	questions.GET("/spheres-for-rating", h.SpheresForRating)
	questions.GET("/can-change-focus", h.CanChangeFocus)
	questions.GET("/:id", h.GetQuestion)

	answers := api.Group("/answers")
	answers.POST("", h.SubmitAnswer)
	answers.GET("", h.ListAnswers)

	spheres := api.Group("/spheres")
	spheres.GET("", h.GetSpheres)
	spheres.POST("/ratings", h.RateSpheres)
	spheres.GET("/ratings", h.LatestRatings)
	spheres.GET("/focus", h.GetFocusSpheres)
	spheres.PUT("/focus", h.UpdateFocusSpheres)

	progress := api.Group("/progress")
	progress.GET("", h.Progress)
	progress.GET("/weekly", h.WeeklySummary)
	progress.GET("/monthly", h.MonthlyReport)

	settings := api.Group("/settings")
	settings.GET("", h.GetSettings)
	settings.PUT("", h.UpdateSettings)
}

func (s *Server) setupAdminRoutes() {
	h := handler.NewAdmin(s.engine)

	api := s.ginEngine.Group("/api")
	api.Use(s.requireUser(), s.requireAdmin())

	questions := api.Group("/questions/admin")
	questions.GET("/all", h.ListQuestions)
	questions.POST("", h.CreateQuestion)
	questions.PUT("/:id", h.UpdateQuestion)
	questions.DELETE("/:id", h.DeleteQuestion)

	spheres := api.Group("/spheres/admin")
	spheres.POST("", h.CreateSphere)
	spheres.PUT("/:key", h.UpdateSphere)
	spheres.DELETE("/:key", h.DeleteSphere)

	admin := api.Group("/admin")
	admin.GET("/stats", h.Stats)
	admin.GET("/system", h.SystemInfo)
	admin.GET("/reminders/due", h.DueUsers)
	admin.GET("/scheduler/jobs", h.GetSchedulerJobs)
	admin.POST("/scheduler/jobs/:id/run", h.RunSchedulerJob)
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}
