package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/plotwatch/plotwatch/internal/api/auth"
	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/status"
	"github.com/plotwatch/plotwatch/internal/summary"
)

type Config struct {
	Enable  bool          `flag:"enable" desc:"serve the status api" default:"false"`
	Addr    string        `flag:"addr" desc:"status api address" default:":8080"`
	Timeout time.Duration `flag:"timeout" desc:"status api graceful shutdown timeout" default:"10s"`
	Cors    Cors          `flag:"cors" desc:"status api cors settings"`
	Auth    auth.Config   `flag:"auth" desc:"status api authentication"`
}

type Cors struct {
	AllowOrigins []string `flag:"allow-origin" desc:"allowed origins, if not provided cors is not enabled"`
}

type Status struct {
	status.Snapshot
	Summary summary.Summary `json:"summary"`
}

type Events struct {
	Events []*notifier.Envelope `json:"events"`
}

// Server exposes the monitor's published state over http.
type Server struct {
	config *Config
	server *http.Server
	logger *slog.Logger
}

func New(config *Config, store *status.Store, accumulator *summary.Accumulator, logger *slog.Logger) (*Server, error) {
	authenticator, err := auth.New(&config.Auth)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())

	if len(config.Cors.AllowOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = config.Cors.AllowOrigins
		cfg.AddAllowHeaders("Authorization")
		r.Use(cors.New(cfg))
	}

	h := &handler{store: store, accumulator: accumulator}

	r.GET("/healthz", h.healthz)

	authorized := r.Group("/", auth.Middleware(authenticator))
	authorized.GET("/status", h.status)
	authorized.GET("/events", h.events)

	return &Server{
		config: config,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: r,
		},
		logger: logger,
	}, nil
}

func (s *Server) String() string {
	return "api"
}

// Handler returns the router, for serving without a listener.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(errors chan<- error) {
	s.logger.Info("starting status api", "addr", s.config.Addr)
	if err := s.server.ListenAndServe(); err != nil && !isClosed(err) {
		errors <- err
	}
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func isClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}

type handler struct {
	store       *status.Store
	accumulator *summary.Accumulator
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) status(c *gin.Context) {
	res := Status{Snapshot: h.store.Snapshot()}
	if h.accumulator != nil {
		res.Summary = h.accumulator.Snapshot()
	}

	c.JSON(http.StatusOK, res)
}

func (h *handler) events(c *gin.Context) {
	limit := 0
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	c.JSON(http.StatusOK, Events{Events: h.store.Recent(limit)})
}
