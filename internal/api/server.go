// Package api is the HTTP surface: REST endpoints for users and issues plus
// the /ws upgrade endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"issueInsightsTracker/internal/auth"
	"issueInsightsTracker/internal/issues"
	"issueInsightsTracker/internal/users"
	"issueInsightsTracker/internal/ws"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Users     *users.Service
	Issues    *issues.Service
	Tokens    *auth.Tokens
	UserStore auth.UserLookup
	Hub       *ws.Hub
	Log       *zap.Logger
	Debug     bool
}

type Server struct {
	deps   Deps
	log    *zap.Logger
	router *gin.Engine
	http   *http.Server
}

func New(addr string, deps Deps) *Server {
	if !deps.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	s := &Server{
		deps:   deps,
		log:    deps.Log,
		router: gin.New(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.http = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery(), RequestLogger(s.log), Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	// Authorization must be allowed so browsers can send the bearer token
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	requireUser := auth.RequireUser(s.deps.Tokens, s.deps.UserStore)
	userHandler := &userHandler{svc: s.deps.Users, log: s.log}
	issueHandler := &issueHandler{svc: s.deps.Issues, log: s.log}

	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Issues & Insights Tracker backend is running"})
	})
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	u := s.router.Group("/users")
	{
		u.POST("/register", userHandler.Register)
		u.POST("/token", userHandler.Token)
		u.GET("/me", requireUser, userHandler.Me)
	}

	i := s.router.Group("/issues", requireUser)
	{
		i.POST("/", issueHandler.Create)
		i.GET("/", issueHandler.List)
		i.GET("/dashboard/stats", issueHandler.Dashboard)
		i.GET("/dashboard/history", issueHandler.History)
		i.GET("/:id", issueHandler.Get)
		i.PUT("/:id", issueHandler.Update)
		i.DELETE("/:id", issueHandler.Delete)
	}

	if s.deps.Hub != nil {
		s.router.GET("/ws", auth.OptionalUser(s.deps.Tokens, s.deps.UserStore), ws.NewHandler(s.deps.Hub, s.log).Serve)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Hijacked
// WebSocket connections are not tracked here; close the Hub for those.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
