// Package status serves the local HTTP status surface: backend health,
// generation history, the model catalog and prometheus metrics.
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/kiroshi/internal/backend"
	"github.com/danmuck/kiroshi/internal/catalog"
	"github.com/danmuck/kiroshi/internal/history"
	logs "github.com/danmuck/kiroshi/internal/logging"
	"github.com/danmuck/kiroshi/internal/observability"
)

const Version = "0.1.0"

// BackendStatus is the read side of the supervisor.
type BackendStatus interface {
	State() backend.State
	ContainerID() string
	Uptime() time.Duration
}

// HistoryLister is the read side of the history store.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Options wires optional sources. A nil Backend reports an unmanaged
// backend; nil History and ModelsDir "" disable their routes' data.
type Options struct {
	Backend     BackendStatus
	History     HistoryLister
	ModelsDir   string
	CorsOrigins []string
}

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	opts   Options
	router *gin.Engine
}

func New(id, addr string, opts Options) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(observability.InitLogger(id, "")))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(opts.CorsOrigins),
		AllowMethods:  []string{"GET"},
		AllowHeaders:  []string{"Origin", "Content-Type", observability.RequestIDHeader},
		ExposeHeaders: []string{observability.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		opts:     opts,
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.health())
	})

	s.router.GET("/ready", func(c *gin.Context) {
		h := s.health()
		status := http.StatusOK
		if !h.Ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})

	s.router.GET("/generations", func(c *gin.Context) {
		if s.opts.History == nil {
			c.JSON(http.StatusOK, gin.H{"generations": []history.Entry{}})
			return
		}
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 1000 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be in 1..1000"})
				return
			}
			limit = n
		}
		entries, err := s.opts.History.List(c.Request.Context(), limit)
		if err != nil {
			logs.Errorf("status.generations err=%v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"generations": entries})
	})

	s.router.GET("/models", func(c *gin.Context) {
		if s.opts.ModelsDir == "" {
			c.JSON(http.StatusOK, gin.H{"models": []catalog.Model{}})
			return
		}
		models, err := catalog.ListModels(s.opts.ModelsDir)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"models": models})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Health is the /health payload.
type Health struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Backend     string `json:"backend"`
	ContainerID string `json:"container_id,omitempty"`
	BackendUp   string `json:"backend_uptime,omitempty"`
	Ready       bool   `json:"ready"`
}

func (s *Server) health() Health {
	h := Health{
		Status:  "ok",
		Service: s.ID,
		Version: Version,
		Uptime:  time.Since(s.Appeared).Round(time.Second).String(),
		Backend: "external",
		Ready:   true,
	}
	if b := s.opts.Backend; b != nil {
		state := b.State()
		h.Backend = state.String()
		h.ContainerID = b.ContainerID()
		h.Ready = state == backend.StateRunning
		if h.Ready {
			h.BackendUp = b.Uptime().Round(time.Second).String()
		}
	}
	return h
}

// Serve listens on Addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logs.Infof("status.listen addr=%s", s.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
