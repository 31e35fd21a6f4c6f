package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	lg       *zap.Logger
	engine   *gin.Engine
	mode     string
	port     int64
	handlers []gin.HandlerFunc
	routes   []func(gin.IRouter)

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

type Option func(*Server)

func defaultServer() *Server {
	return &Server{
		mode: gin.ReleaseMode,
		port: 8080,
	}
}

func WithMode(mode string) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

// WithPort sets the listen port. Zero picks a free one.
func WithPort(port int64) Option {
	return func(s *Server) {
		s.port = port
	}
}

func WithCustomHandler(handler gin.HandlerFunc) Option {
	return func(s *Server) {
		s.handlers = append(s.handlers, handler)
	}
}

func WithRoutes(register func(gin.IRouter)) Option {
	return func(s *Server) {
		s.routes = append(s.routes, register)
	}
}

func NewServer(lg *zap.Logger, opts ...Option) *Server {
	s := defaultServer()
	for _, opt := range opts {
		opt(s)
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	s.lg = lg

	gin.SetMode(s.mode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.handlers...)
	s.engine.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	for _, register := range s.routes {
		register(s.engine)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the port and serves in the background. Bind errors are
// returned; later serve errors are logged.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("web server already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("fail to listen: %w", err)
	}
	server := &http.Server{Handler: s.engine}
	s.server, s.listener = server, ln

	s.lg.Info("starting web server ...", zap.String("address", ln.Addr().String()))
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.lg.Error("fail to serve", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}

	s.lg.Info("shutdown web server ...")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("fail to shutdown web server: %w", err)
	}
	s.lg.Info("web server exiting")
	return nil
}
