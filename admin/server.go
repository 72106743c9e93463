package admin

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/justconveyor/component"
	"github.com/kbukum/justconveyor/conveyor"
	"github.com/kbukum/justconveyor/logger"
)

const componentName = "admin-server"

var (
	_ component.Component   = (*Server)(nil)
	_ component.Describable = (*Server)(nil)
)

// Source is the conveyor state the admin endpoints expose.
type Source interface {
	Snapshot() conveyor.Snapshot
	InProgress() []conveyor.ContextInfo
}

// HealthChecker returns the health of the host components.
type HealthChecker func(ctx context.Context) []component.Health

// Server is the admin HTTP server of a conveyor host.
type Server struct {
	config     Config
	service    string
	source     Source
	checker    HealthChecker
	engine     *gin.Engine
	httpServer *http.Server
	log        *logger.Logger

	hub        *hub
	stop       chan struct{}
	publishing sync.WaitGroup

	mu      sync.Mutex
	addr    string
	serving bool
}

// New builds the server and registers its routes. cfg must have its
// defaults applied.
func New(cfg Config, service string, source Source, checker HealthChecker, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent(componentName)

	engine := gin.New()
	engine.Use(recovery(log), requestID(), requestLogger(log))

	s := &Server{
		config:  cfg,
		service: service,
		source:  source,
		checker: checker,
		engine:  engine,
		log:     log,
		hub:     newHub(),
		addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	s.routes()

	s.httpServer = &http.Server{
		Handler:      h2c.NewHandler(engine, &http2.Server{IdleTimeout: cfg.IdleTimeout}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Routes lists the registered routes as method and path pairs.
func (s *Server) Routes() [][2]string {
	var out [][2]string
	for _, r := range s.engine.Routes() {
		out = append(out, [2]string{r.Method, r.Path})
	}
	return out
}

// Name implements component.Component.
func (s *Server) Name() string { return componentName }

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("admin server failed to bind %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.serving = true
	s.mu.Unlock()

	if s.config.StreamInterval > 0 {
		s.stop = make(chan struct{})
		s.publishing.Add(1)
		go s.publish(s.config.StreamInterval, s.stop)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Admin server error", logger.Fields(logger.FieldError, err))
		}
	}()
	s.log.Info("Admin server started", logger.Fields("addr", s.Addr()))
	return nil
}

// Stop disconnects stream clients and shuts the server down, waiting at
// most five seconds for requests.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.mu.Lock()
	s.serving = false
	s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		s.publishing.Wait()
	}
	s.hub.close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	s.log.Info("Admin server stopped")
	return nil
}

// Addr is the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Health implements component.Component.
func (s *Server) Health(_ context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.serving {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not serving"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	return component.Description{Name: componentName, Type: "http", Details: s.Addr()}
}
