// Package shell serves the minter and gallery screens over HTTP. Screen
// state is pulled with GET /api/state or pushed over /ws whenever it
// changes.
package shell

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/core/domain"
	"github.com/nftstudio/nft-minter/internal/metrics"
	"github.com/nftstudio/nft-minter/internal/view"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Server exposes a view.Shell over HTTP and websocket.
type Server struct {
	shell   *view.Shell
	metrics *metrics.Metrics
	logger  *zap.Logger

	router   *gin.Engine
	upgrader websocket.Upgrader

	// background mints outlive the request that started them
	mints sync.WaitGroup
}

type errorResponse struct {
	Error string `json:"error"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type fieldRequest struct {
	Value string `json:"value"`
}

// NewServer builds the router. A nil metrics disables /metrics.
func NewServer(sh *view.Shell, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		shell:   sh,
		metrics: m,
		logger:  logger.Named("shell"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	api.GET("/state", s.handleState)
	api.POST("/tab/:name", s.handleSetTab)
	api.POST("/wallet/connect", s.handleConnect)

	minter := api.Group("/minter")
	minter.PUT("/form", s.handleSetForm)
	minter.PUT("/form/:field", s.handleSetField)
	minter.POST("/attributes", s.handleAddAttribute)
	minter.PUT("/attributes/:index/:field", s.handleSetAttribute)
	minter.DELETE("/attributes/:index", s.handleRemoveAttribute)
	minter.POST("/mint", s.handleMint)

	gallery := api.Group("/gallery")
	gallery.PUT("/address", s.handleSetAddress)
	gallery.POST("/fetch", s.handleFetch)

	return r
}

// Run serves on addr until ctx is done, then shuts down and waits for
// in-flight mints.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("UI shell listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.mints.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.shell.Snapshot())
}

func (s *Server) handleSetTab(c *gin.Context) {
	tab, err := view.ParseTab(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	s.shell.SetTab(c.Request.Context(), tab)
	c.JSON(http.StatusOK, s.shell.Snapshot())
}

func (s *Server) handleConnect(c *gin.Context) {
	switch s.shell.Active() {
	case view.TabMinter:
		s.shell.Minter.ConnectWallet(c.Request.Context())
	case view.TabGallery:
		s.shell.Gallery.ConnectWallet(c.Request.Context())
	}
	c.JSON(http.StatusOK, s.shell.Snapshot())
}

func (s *Server) handleSetForm(c *gin.Context) {
	var form domain.MintForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.shell.Minter.SetForm(form)
	c.JSON(http.StatusOK, s.shell.Minter.Snapshot())
}

func (s *Server) handleSetField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.shell.Minter.SetField(c.Param("field"), req.Value); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.shell.Minter.Snapshot())
}

func (s *Server) handleAddAttribute(c *gin.Context) {
	s.shell.Minter.AddAttribute()
	c.JSON(http.StatusOK, s.shell.Minter.Snapshot())
}

func (s *Server) handleSetAttribute(c *gin.Context) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "attribute index must be a number"})
		return
	}
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.shell.Minter.SetAttribute(i, c.Param("field"), req.Value); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.shell.Minter.Snapshot())
}

func (s *Server) handleRemoveAttribute(c *gin.Context) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "attribute index must be a number"})
		return
	}
	if err := s.shell.Minter.RemoveAttribute(i); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.shell.Minter.Snapshot())
}

// handleMint starts a mint and returns at once; progress arrives over /ws
// or through GET /api/state.
func (s *Server) handleMint(c *gin.Context) {
	form, ok := s.shell.Minter.TryStartMint()
	if !ok {
		c.JSON(http.StatusConflict, errorResponse{Error: view.MsgMintInProgress})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	s.mints.Add(1)
	go func() {
		defer s.mints.Done()
		result := s.shell.Minter.RunMint(ctx, form)
		s.logger.Info("mint finished",
			zap.String("state", string(result.State)),
			zap.String("tx", result.TransactionHash))
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) handleSetAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.shell.Gallery.SetAddress(req.Address)
	c.JSON(http.StatusOK, s.shell.Gallery.Snapshot())
}

func (s *Server) handleFetch(c *gin.Context) {
	s.shell.Gallery.Fetch(c.Request.Context())
	c.JSON(http.StatusOK, s.shell.Gallery.Snapshot())
}

// handleWebSocket pushes a snapshot on connect and after every change.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	changes, unsubscribe := s.shell.Notifier().Subscribe()
	defer unsubscribe()

	// The read loop only watches for the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket closed", zap.Error(err))
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	if err := s.push(conn); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := s.push(conn); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) push(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(s.shell.Snapshot()); err != nil {
		s.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			s.logger.Error("HTTP request", fields...)
		case c.Writer.Status() >= 400:
			s.logger.Warn("HTTP request", fields...)
		default:
			s.logger.Debug("HTTP request", fields...)
		}
	}
}
