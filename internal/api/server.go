// Package api is the management control plane: status, runtime
// reconfiguration, manual task triggers, and invocation history.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/config"
	"github.com/quantdeck/tradesched/internal/model"
	"github.com/quantdeck/tradesched/internal/monitor"
	"github.com/quantdeck/tradesched/internal/scheduler"
	"github.com/quantdeck/tradesched/internal/storage"
	"github.com/quantdeck/tradesched/internal/task"
)

const defaultHistoryLimit = 50
const maxHistoryLimit = 500

// Server exposes the management HTTP surface. All three operations are
// synchronous from the caller's perspective; a manual trigger returns the
// task's outcome in the response body.
type Server struct {
	logger   *zap.Logger
	store    *config.Store
	engine   *scheduler.Engine
	registry *task.Registry
	journal  *storage.InvocationJournal
	metrics  *monitor.Collector

	router *gin.Engine
	http   *http.Server
}

// NewServer wires the routes. Journal and metrics may be nil.
func NewServer(
	logger *zap.Logger,
	addr string,
	store *config.Store,
	engine *scheduler.Engine,
	registry *task.Registry,
	journal *storage.InvocationJournal,
	metrics *monitor.Collector,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		logger:   logger.Named("api"),
		store:    store,
		engine:   engine,
		registry: registry,
		journal:  journal,
		metrics:  metrics,
		router:   router,
		http: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	router.GET("/status", s.getStatus)
	router.POST("/config", s.postConfig)
	router.POST("/run/:task", s.postRun)
	router.GET("/history", s.getHistory)
	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("Management API listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// getStatus reports the effective config and the active timer set. No
// side effects.
func (s *Server) getStatus(c *gin.Context) {
	resp := gin.H{
		"status": "running",
		"config": s.store.Current(),
		"jobs":   s.engine.Jobs(),
	}
	if s.metrics != nil {
		resp["host"] = s.metrics.Collect()
	}
	c.JSON(http.StatusOK, resp)
}

// postConfig merges a flat partial document into the schedule config.
// The scheduler rebuild runs via the store's on-change hook before the
// merge returns.
func (s *Server) postConfig(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read request body"})
		return
	}

	merged, err := s.store.Merge(body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, config.ErrPersist) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "configuration updated",
		"config":  merged,
	})
}

// postRun invokes one task manually. The timer is bypassed; gating is
// not.
func (s *Server) postRun(c *gin.Context) {
	name := model.TaskName(c.Param("task"))

	inv, err := s.registry.Run(c.Request.Context(), name, model.TriggerManual)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	switch inv.Outcome {
	case model.OutcomeFailure:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": inv.Error})
	case model.OutcomeSkipped:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "skipped: " + inv.SkipReason})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": inv.Message})
	}
}

// getHistory lists recent invocations from the journal.
func (s *Server) getHistory(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "invocation journal disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive integer"})
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	invocations, err := s.journal.List(c.Request.Context(), model.TaskName(c.Query("task")), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if invocations == nil {
		invocations = []*model.Invocation{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invocations": invocations})
}
