package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"runtime-observer/src/interfaces"
	"runtime-observer/src/logger"
	"runtime-observer/src/models"
	"runtime-observer/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	Sink   interfaces.ISnapshotSink

	// Metrics reports snapshot loop counters on /api/health when set
	Metrics func() models.MProcessingMetrics

	engine *gin.Engine
	http   *http.Server

	// Latest view per strategy, expiring after cache.view_ttl_seconds
	views *cache.Cache

	// WebSocket clients, owned by the hub goroutine
	clients     map[*Client]struct{}
	connections atomic.Int64
	broadcast   chan models.MRuntimeView
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	stopOnce    sync.Once
	lastUpdate  atomic.Int64
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, sink interfaces.ISnapshotSink, logger *logger.Logger) *APIServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	ttl := time.Duration(cfg.Cache.ViewTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}

	s := &APIServer{
		Config:  cfg,
		Logger:  logger,
		Sink:    sink,
		engine:  gin.New(),
		views:   cache.New(ttl, 2*ttl),
		clients: make(map[*Client]struct{}),
		// Buffered so bursts of snapshots do not block the observer loop
		broadcast:  make(chan models.MRuntimeView, utils.SnapshotQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery(), s.requestID(), s.accessLog(), cors())
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.handleWebsockets()
	return s
}

// -----------------------------------------------------------------------------

// cors allows local dashboards served from another port
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/strategies", s.listStrategies)
	api.GET("/strategies/:id", s.getView)
	api.GET("/strategies/:id/channels", s.getChannels)
	api.GET("/strategies/:id/pipeline", s.getPipeline)
	api.POST("/strategies/:id/snapshot", s.postSnapshot)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the routes, e.g. for httptest
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start listens until Stop is called
func (s *APIServer) Start() error {
	s.Logger.Info("Starting server on %s", s.http.Addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		ctx, cancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
		defer cancel()
		err = s.http.Shutdown(ctx)
		s.Logger.Info("Server stopped")
	})
	return err
}
