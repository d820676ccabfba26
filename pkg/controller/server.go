package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"github.com/gwillem/armlink/pkg/protocol"
	"github.com/gwillem/armlink/pkg/robot"
)

const (
	// DefaultStatusInterval is how often each client receives a status frame.
	DefaultStatusInterval = 100 * time.Millisecond

	writeWait = 2 * time.Second
)

// Server is the controller's WebSocket endpoint.
type Server struct {
	act            Actuator
	statusInterval time.Duration
	clock          clock.Clock
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	router         chi.Router

	mu      sync.Mutex
	clients map[*client]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithStatusInterval overrides DefaultStatusInterval.
func WithStatusInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.statusInterval = d
		}
	}
}

// WithClock injects the time source for status ticks.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server driving act.
func NewServer(act Actuator, opts ...Option) *Server {
	s := &Server{
		act:            act,
		clients:        make(map[*client]struct{}),
		statusInterval: DefaultStatusInterval,
		clock:          clock.New(),
		logger:         slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "controller")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleSocket)
	r.Get("/status", s.handleStatus)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Clients returns the number of connected consoles.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close sends a going-away close frame to every console and drops them.
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close(websocket.CloseGoingAway, "controller shutting down")
	}
}

func (s *Server) add(c *client) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	return len(s.clients)
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr, "status_interval", s.statusInterval)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	// Shutdown does not touch hijacked connections
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusResponse struct {
	Sample
	Clients int `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sample, err := s.act.Sample(r.Context())
	if err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}
	render.JSON(w, r, statusResponse{Sample: sample, Clients: s.Clients()})
}

// client is one console connection.
type client struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
}

func (c *client) send(f protocol.Frame) error {
	data, err := protocol.EncodeFrame(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// reply sends a log frame and reports whether the connection is still
// writable.
func (c *client) reply(sev protocol.Severity, format string, args ...any) bool {
	if err := c.send(protocol.Log{Message: fmt.Sprintf(format, args...), Level: sev}); err != nil {
		c.logger.Warn("reply failed", "err", err)
		return false
	}
	return true
}

func (c *client) close(code int, reason string) {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.ws.Close()
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer ws.Close()

	c := &client{ws: ws, logger: s.logger.With("remote", r.RemoteAddr)}
	n := s.add(c)
	defer s.remove(c)
	c.logger.Info("console connected", "clients", n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.statusLoop(ctx, c)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("read failed", "err", err)
			}
			c.logger.Info("console disconnected")
			return
		}
		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			c.logger.Debug("bad command", "data", string(data), "err", err)
			if !c.reply(protocol.SeverityError, "Invalid command: %v", err) {
				return
			}
			continue
		}
		if err := s.handle(ctx, c, cmd); err != nil {
			c.logger.Error("command failed", "type", cmd.Type(), "err", err)
			if !c.reply(protocol.SeverityError, "Command failed: %v", err) {
				return
			}
		}
	}
}

func (s *Server) handle(ctx context.Context, c *client, cmd protocol.Command) error {
	switch cmd := cmd.(type) {
	case protocol.Move:
		return s.act.MoveTo(ctx, cmd.Joints)
	case protocol.Stop:
		if err := s.act.Stop(ctx); err != nil {
			return err
		}
		c.logger.Warn("emergency stop")
		return c.send(protocol.Log{Message: "Emergency stop: all joints halted", Level: protocol.SeverityWarning})
	case protocol.Settings:
		if err := s.act.Configure(cmd.MaxSpeed, cmd.Acceleration, cmd.EnabledJoints); err != nil {
			return err
		}
		return c.send(protocol.Ack{Command: protocol.TypeSettings})
	case protocol.SetZero:
		if err := s.act.SetZero(ctx, cmd.Joint); err != nil {
			return err
		}
		return c.send(protocol.ZeroConfirmed{Joint: string(cmd.Joint)})
	case protocol.MotionConfig:
		mc := robot.MotionConfig{MaxSpeed: cmd.MaxSpeed, MaxAccel: cmd.MaxAccel}
		if err := s.act.SetMotion(cmd.Joint, mc); err != nil {
			return err
		}
		return c.send(protocol.Ack{Command: protocol.TypeMotionConfig})
	case protocol.InvertJoint:
		if err := s.act.SetInverted(cmd.Joint, cmd.Value); err != nil {
			return err
		}
		return c.send(protocol.Ack{Command: protocol.TypeInvertJoint})
	case protocol.Ping:
		return c.send(protocol.Pong{})
	}
	return fmt.Errorf("%w: %T", protocol.ErrUnknownCommand, cmd)
}

func (s *Server) statusLoop(ctx context.Context, c *client) {
	ticker := s.clock.Ticker(s.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sample, err := s.act.Sample(ctx)
		if err != nil {
			c.logger.Warn("sample failed", "err", err)
			continue
		}
		moving := sample.Moving
		raw := sample.RawEncoders
		if err := c.send(protocol.Status{Encoders: sample.Encoders, RawEncoders: &raw, Moving: &moving}); err != nil {
			return
		}
	}
}
