package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dyike/TickerGo/internal/agents"
	"github.com/dyike/TickerGo/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const rootMessage = "Stock Market AI Agent API is running"

// StockService is the part of the agent the HTTP layer drives.
type StockService interface {
	GetStockPrice(ctx context.Context, ticker string) (*models.PriceResult, error)
	AnalyzeStock(ctx context.Context, ticker string, price *models.PriceResult) (string, error)
	ResetMemory()
}

type StockRequest struct {
	Ticker  string `json:"ticker" binding:"required"`
	Analyze bool   `json:"analyze"`
}

type StockResponse struct {
	Ticker    string  `json:"ticker"`
	PriceData any     `json:"price_data"`
	Analysis  *string `json:"analysis"`
}

// Server exposes a StockService over HTTP. The agent is not safe for
// concurrent use, so requests touching it are serialised.
type Server struct {
	addr    string
	router  *gin.Engine
	service StockService
	logger  *slog.Logger
	mu      sync.Mutex
}

func New(addr string, service StockService, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("http server requires a stock service")
	}
	if addr == "" {
		addr = ":8000"
	}
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	s := &Server{addr: addr, router: router, service: service, logger: logger}

	router.Use(gin.Recovery(), s.requestLogger(), cors())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": rootMessage})
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/stock", s.handleStock)
	router.POST("/memory/reset", s.handleResetMemory)

	return s, nil
}

func (s *Server) Addr() string { return s.addr }

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleStock(c *gin.Context) {
	var req StockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := c.Request.Context()
	price, err := s.service.GetStockPrice(ctx, req.Ticker)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := StockResponse{Ticker: price.Ticker, PriceData: price.PriceData()}
	if req.Analyze {
		text, err := s.service.AnalyzeStock(ctx, req.Ticker, price)
		if err != nil {
			s.writeError(c, err)
			return
		}
		resp.Analysis = &text
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResetMemory(c *gin.Context) {
	s.mu.Lock()
	s.service.ResetMemory()
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, agents.ErrInvalidTicker) {
		status = http.StatusBadRequest
	}
	s.logger.Warn("stock request failed", "status", status, "error", err)
	c.JSON(status, gin.H{"detail": err.Error()})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("http server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
