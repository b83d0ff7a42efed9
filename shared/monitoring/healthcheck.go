package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"motion-trends/shared/logger"
)

const shutdownTimeout = 10 * time.Second

// HealthServer serves /health, /status and /metrics. Agents that expose an
// API mount their routes on the same engine through Router.
type HealthServer struct {
	monitor *Monitor
	router  *gin.Engine
	server  *http.Server
	log     logger.Logger
}

func NewHealthServer(monitor *Monitor, port int, log logger.Logger) *HealthServer {
	if port == 0 {
		port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	h := &HealthServer{
		monitor: monitor,
		router:  router,
		log:     log,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	router.GET("/health", h.healthHandler)
	router.GET("/status", h.statusHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return h
}

// Router returns the engine so agents can register additional routes.
func (h *HealthServer) Router() *gin.Engine {
	return h.router
}

// Start serves in a goroutine. Errors other than a clean shutdown are logged.
func (h *HealthServer) Start() {
	h.log.Info("Health check server starting", logger.String("address", h.server.Addr))
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("Health server error", logger.Error(err))
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

func (h *HealthServer) healthHandler(c *gin.Context) {
	if h.monitor.IsHealthy() {
		c.String(http.StatusOK, "OK - %s", h.monitor.GetStatusSummary())
		return
	}
	c.String(http.StatusServiceUnavailable, "Service unhealthy - %s", h.monitor.GetStatusSummary())
}

func (h *HealthServer) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Status())
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// probes and scrapes are too frequent to log
		switch c.FullPath() {
		case "/health", "/metrics":
			return
		}

		log.Debug("HTTP request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)))
	}
}
