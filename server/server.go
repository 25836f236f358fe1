package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jupark12/go-print-relay/logger"
	"github.com/jupark12/go-print-relay/models"
	"github.com/jupark12/go-print-relay/queue"
	"go.uber.org/zap"
)

const (
	// DefaultMaxUploadBytes caps the multipart body of /upload
	DefaultMaxUploadBytes = 16 << 20

	shutdownTimeout = 5 * time.Second
)

// HistoryReader returns the journaled status records of a command
type HistoryReader interface {
	History(ctx context.Context, commandID string) ([]models.CommandRecord, error)
}

// Options configures the broker server. Zero values get defaults.
type Options struct {
	Logger         *zap.Logger
	Metrics        *Metrics
	MaxUploadBytes int64
	History        HistoryReader // nil disables /api/commands/:id/history
}

// Server handles HTTP requests from uploaders, agents and the admin view
type Server struct {
	queue          *queue.CommandQueue
	wsManager      *models.WebSocketManager
	upgrader       websocket.Upgrader
	metrics        *Metrics
	history        HistoryReader
	maxUploadBytes int64
	logger         *zap.Logger
	engine         *gin.Engine
}

// NewServer creates a new server instance
func NewServer(q *queue.CommandQueue, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		queue:          q,
		wsManager:      models.NewWebSocketManager(opts.Logger.Named("ws")),
		metrics:        opts.Metrics,
		history:        opts.History,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(logger.GinMiddleware(s.logger), logger.Recovery(s.logger), corsMiddleware())

	r.POST("/upload", s.handleUpload)

	api := r.Group("/api")
	api.POST("/check_commands", s.handleCheckCommands)
	api.POST("/check_commands/report", s.handleReport)
	api.GET("/devices", s.handleDevices)
	api.GET("/commands", s.handleCommands)
	api.GET("/commands/:id", s.handleCommandDetails)
	api.GET("/commands/:id/history", s.handleCommandHistory)
	api.GET("/queues", s.handleQueues)

	r.GET("/ws", s.handleWebSocket)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// corsMiddleware lets the browser upload page and admin view call the API
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// Handler returns the HTTP handler for the broker API
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the websocket manager and forwards command updates to it
// until ctx is cancelled
func (s *Server) Start(ctx context.Context) {
	s.wsManager.Start(ctx)

	go func() {
		updates := s.queue.Updates()
		for {
			select {
			case <-ctx.Done():
				return
			case rec := <-updates:
				s.wsManager.BroadcastCommandUpdate(rec)
			}
		}
	}()
}

// Run serves the broker on addr until ctx is cancelled, then shuts down
// gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	s.Start(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}
