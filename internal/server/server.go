package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Cyclone1070/sidecar/internal/chat"
	"github.com/Cyclone1070/sidecar/internal/event"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options configures the HTTP server.
type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	Version           string
	Logger            zerolog.Logger
}

// Dependencies are the components served over HTTP. Metrics may be nil.
type Dependencies struct {
	Chat    *chat.Service
	MCP     MCPManager
	Tools   ToolCatalog
	Events  *event.Bus
	Metrics prometheus.Gatherer
}

// Server is the sidecar HTTP API.
type Server struct {
	chat    *chat.Service
	mcp     MCPManager
	tools   ToolCatalog
	events  *event.Bus
	log     zerolog.Logger
	version string
	started time.Time

	engine   *gin.Engine
	http     *http.Server
	upgrader websocket.Upgrader

	done      chan struct{}
	closeOnce sync.Once
}

// New builds the router. Nothing listens until Start or Serve.
func New(opts Options, deps Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		chat:    deps.Chat,
		mcp:     deps.MCP,
		tools:   deps.Tools,
		events:  deps.Events,
		log:     opts.Logger,
		version: opts.Version,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The listener is bound to loopback and the desktop UI runs
			// under its own origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.log))
	s.routes(engine, deps.Metrics)
	s.engine = engine

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) routes(r *gin.Engine, metrics prometheus.Gatherer) {
	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/providers", s.handleProviders)

	r.POST("/chat", s.handleChat)
	r.POST("/chat/direct", s.handleDirect)
	r.PUT("/chat/:id/history", s.handleReplaceHistory)
	r.POST("/chat/:id/clear", s.handleClear)
	r.DELETE("/chat/:id", s.handleDelete)

	r.GET("/mcp/servers", s.handleListServers)
	r.POST("/mcp/servers", s.handleConnect)
	r.DELETE("/mcp/servers/:name", s.handleDisconnect)

	r.GET("/tools", s.handleTools)
	r.POST("/tools/execute", s.handleExecuteTool)

	r.GET("/events", s.handleEvents)

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Str("version", s.version).Msg("http server listening")
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown closes every event stream and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
