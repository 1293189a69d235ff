package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/wallie/internal/api/auth"
)

// Server represents the API server
type Server struct {
	echo *echo.Echo
	port int
}

// NewServer creates a new API server. pollRatePerSecond bounds how often a
// single user may open poll requests; it only kicks in on abusive reconnect
// loops, never on the steady-state immediate reconnect.
func NewServer(port int, handler *MessagesHandler, tokenService *auth.TokenService, pollRatePerSecond int) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo: e,
		port: port,
	}

	server.setupRoutes(handler, tokenService, pollRatePerSecond)

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(handler *MessagesHandler, tokenService *auth.TokenService, pollRatePerSecond int) {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// API v1 group, session-authenticated
	v1 := s.echo.Group("/api/v1", auth.RequireAuth(tokenService))

	// Threads
	v1.GET("/threads", handler.ListThreads)
	v1.POST("/threads", handler.ResolveThread)
	v1.GET("/threads/:id/messages", handler.ListMessages)
	v1.POST("/threads/:id/messages", handler.SendMessage)

	// Messages
	v1.GET("/messages/:id", handler.GetMessage)
	v1.PATCH("/messages/:id", handler.EditMessage)
	v1.DELETE("/messages/:id", handler.DeleteMessage)

	// Long-poll bridge, rate limited per user
	v1.GET("/messages/poll", handler.Poll, pollRateLimiter(pollRatePerSecond))
}

// pollRateLimiter keys the limiter on the authenticated user so one client
// hot-looping reconnects cannot starve the listener pool.
func pollRateLimiter(perSecond int) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 5
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     perSecond * 2,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return auth.GetUserID(c), nil
		},
	})
}

// Start begins the API server
func (s *Server) Start() error {
	// Start server in a goroutine
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
