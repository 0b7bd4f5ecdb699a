package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"hempies/coasync/internal/config"
	syncsvc "hempies/coasync/internal/sync"
)

// Server exposes the sync control surface and the status feed the
// polling UI consumes.
type Server struct {
	service   *syncsvc.Service
	scheduler *syncsvc.Scheduler
	server    *http.Server
}

func New(cfg config.ServerConfig, service *syncsvc.Service, scheduler *syncsvc.Scheduler) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		service:   service,
		scheduler: scheduler,
	}

	v1 := router.Group("/api/v1")
	{
		sync := v1.Group("/sync")
		{
			sync.GET("/status", s.status)
			sync.POST("/start", s.start)
			sync.POST("/stop", s.stop)
			sync.POST("/drain", s.drain)
		}

		scheduler := v1.Group("/scheduler")
		{
			scheduler.POST("/reset", s.resetScheduler)
			scheduler.POST("/daily", s.rescheduleDaily)
		}
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errC := make(chan error, 1)
	go func() {
		log.Infof("Control API listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errC <- err
		}
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) status(c *gin.Context) {
	status, err := s.service.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read sync status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) start(c *gin.Context) {
	var req struct {
		Test bool `json:"test"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	err := s.service.Start(c.Request.Context(), req.Test)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"data": "sync started"})
	case errors.Is(err, syncsvc.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Sync already in progress"})
	case errors.Is(err, syncsvc.ErrMissingCredentials):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) stop(c *gin.Context) {
	if err := s.service.Stop(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": "sync stopped"})
}

func (s *Server) drain(c *gin.Context) {
	err := s.service.DrainBatch(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"data": "batch processed"})
	case errors.Is(err, syncsvc.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Sync is not running"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) resetScheduler(c *gin.Context) {
	s.scheduler.ResetTicker()
	c.JSON(http.StatusOK, gin.H{"data": "scheduler reset"})
}

func (s *Server) rescheduleDaily(c *gin.Context) {
	s.scheduler.RescheduleDaily()
	c.JSON(http.StatusOK, gin.H{"data": "daily sync rescheduled"})
}
