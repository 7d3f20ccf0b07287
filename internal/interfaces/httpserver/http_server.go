// Package httpserver wires the gin engine, middlewares and route groups.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markusbegerow/local-llm-server/internal/config"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/logger"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/handlers/chathandler"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/handlers/confighandler"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/handlers/conversationhandler"
	middleware "github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/middlewares"
)

// HTTPServer owns the gin engine and its lifecycle.
type HTTPServer struct {
	engine *gin.Engine
	config *config.Config
}

// NewHTTPServer builds the engine with middlewares and routes registered.
func NewHTTPServer(
	cfg *config.Config,
	chatHandler *chathandler.ChatHandler,
	configHandler *confighandler.ConfigHandler,
	conversationHandler *conversationhandler.ConversationHandler,
	ready func(ctx context.Context) error,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := &HTTPServer{
		engine: gin.New(),
		config: cfg,
	}
	server.engine.Use(gin.Recovery())
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.LoggingMiddleware(logger.GetLogger()))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.CORSMiddleware())

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	server.engine.GET("/readyz", func(c *gin.Context) {
		if ready != nil {
			if err := ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	server.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := server.engine.Group("/api")
	api.Use(middleware.IdentityMiddleware(cfg.IdentityHeader))

	api.POST("/chat", chatHandler.SendMessage)

	api.GET("/conversations", conversationHandler.List)
	api.GET("/conversations/:id", conversationHandler.Get)
	api.GET("/conversations/:id/messages", conversationHandler.Messages)
	api.PUT("/conversations/:id", conversationHandler.Rename)
	api.POST("/conversations/:id/clear", conversationHandler.Clear)
	api.DELETE("/conversations/:id", conversationHandler.Delete)

	api.GET("/configs", configHandler.List)
	api.POST("/configs", configHandler.Create)
	api.GET("/configs/:id", configHandler.Get)
	api.PUT("/configs/:id", configHandler.Update)
	api.DELETE("/configs/:id", configHandler.Delete)
	api.POST("/configs/:id/default", configHandler.SetDefault)
	api.POST("/configs/:id/test", configHandler.TestConnection)

	return server
}

// Engine exposes the underlying gin engine, used by tests.
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log := logger.GetLogger()
	log.Info().Int("port", s.config.HTTPPort).Msg("HTTP server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
