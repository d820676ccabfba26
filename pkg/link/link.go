// Package link owns the WebSocket connection to the arm controller.
//
// A Manager holds at most one connection. Every Connect starts a new attempt
// identified by an id; events are reported to the Handler together with
// that id so the owner can discard events from attempts it has replaced.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/gwillem/armlink/pkg/protocol"
)

const (
	// DefaultPort is the controller's fixed WebSocket port.
	DefaultPort = 81
	// DefaultProbeInterval is the liveness probe period.
	DefaultProbeInterval = 2 * time.Second

	closeWait = time.Second
	// writeWait bounds a single frame write on a controller that stopped reading.
	writeWait = 2 * time.Second
	sendQueue = 64
)

var (
	// ErrNotConnected is returned by Send when no connection is open.
	ErrNotConnected = errors.New("not connected")
	// ErrSendQueueFull is returned by Send when the controller is not draining
	// frames. The connection is torn down and reported to the Handler.
	ErrSendQueueFull = errors.New("send queue full")
)

// Handler receives connection events. Calls are made from the manager's
// goroutines without any manager lock held.
type Handler interface {
	// LinkOpened reports that attempt id is connected.
	LinkOpened(id uint64)
	// LinkClosed reports that attempt id ended. err is nil for a clean close.
	LinkClosed(id uint64, err error)
	// LinkFrame delivers an inbound frame, in arrival order.
	LinkFrame(id uint64, f protocol.Frame)
	// LinkLatency delivers a measured round trip.
	LinkLatency(id uint64, rtt time.Duration)
}

// Manager dials the controller and keeps the connection alive.
type Manager struct {
	handler       Handler
	dialer        *websocket.Dialer
	port          int
	probeInterval time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	mu     sync.Mutex
	nextID uint64
	cur    *conn
	status Status
}

type conn struct {
	id     uint64
	url    string
	ctx    context.Context
	cancel context.CancelFunc
	ws     *websocket.Conn // set once the dial succeeds
	out    chan outbound

	probe probe
	done  sync.Once
}

type outbound struct {
	name string
	data []byte
	ping bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithPort overrides DefaultPort.
func WithPort(port int) Option {
	return func(m *Manager) { m.port = port }
}

// WithProbeInterval overrides DefaultProbeInterval.
func WithProbeInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.probeInterval = d
		}
	}
}

// WithClock injects the time source used for probing.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager reporting to h.
func NewManager(h Handler, opts ...Option) *Manager {
	m := &Manager{
		handler:       h,
		dialer:        &websocket.Dialer{},
		port:          DefaultPort,
		probeInterval: DefaultProbeInterval,
		clock:         clock.New(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "link")
	return m
}

// URL returns the controller endpoint for host.
func (m *Manager) URL(host string) string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(host, strconv.Itoa(m.port)),
		Path:   "/",
	}
	return u.String()
}

// Status returns the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Open reports whether a connection is established.
func (m *Manager) Open() bool {
	return m.Status() == Connected
}

// Connect replaces any existing connection with a new attempt to host and
// returns immediately. The outcome is reported to the Handler.
func (m *Manager) Connect(host string) uint64 {
	m.mu.Lock()
	m.dropLocked()
	m.nextID++
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		id:     m.nextID,
		url:    m.URL(host),
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan outbound, sendQueue),
	}
	m.cur = c
	m.status = Connecting
	m.mu.Unlock()

	m.logger.Debug("dialing", "url", c.url, "attempt", c.id)
	go m.run(c)
	return c.id
}

// Disconnect closes the connection, if any. It is safe to call at any time
// and reports nothing to the Handler.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.dropLocked()
	m.mu.Unlock()
}

func (m *Manager) dropLocked() {
	c := m.cur
	m.cur = nil
	m.status = Disconnected
	if c == nil {
		return
	}
	c.cancel()
	if c.ws != nil {
		ws := c.ws
		go func() {
			deadline := time.Now().Add(closeWait)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			ws.Close()
		}()
	}
	m.logger.Debug("dropped", "attempt", c.id)
}

// Send queues one command on the open connection and returns without
// waiting for the write. Write failures are reported to the Handler.
func (m *Manager) Send(cmd protocol.Command) error {
	m.mu.Lock()
	c := m.cur
	if c == nil || c.ws == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.mu.Unlock()
	return m.enqueue(c, cmd)
}

func (m *Manager) enqueue(c *conn, cmd protocol.Command) error {
	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	_, ping := cmd.(protocol.Ping)
	select {
	case c.out <- outbound{name: cmdName(cmd), data: data, ping: ping}:
		return nil
	default:
		// the caller may hold locks the Handler needs
		go m.finish(c, ErrSendQueueFull)
		return ErrSendQueueFull
	}
}

// writeLoop is the only writer of data frames on c.
func (m *Manager) writeLoop(c *conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.out:
			if err := m.write(c, msg); err != nil {
				m.finish(c, err)
				return
			}
		}
	}
}

func (m *Manager) write(c *conn, msg outbound) error {
	if msg.ping {
		c.probe.sent(m.clock.Now())
	}
	// socket deadlines are wall-clock
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("write %s: %w", msg.name, err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, msg.data); err != nil {
		return fmt.Errorf("write %s: %w", msg.name, err)
	}
	return nil
}

func (m *Manager) run(c *conn) {
	ws, _, err := m.dialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		m.finish(c, fmt.Errorf("dial %s: %w", c.url, err))
		return
	}

	m.mu.Lock()
	if m.cur != c {
		m.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	m.status = Connected
	m.mu.Unlock()

	m.logger.Debug("connected", "url", c.url, "attempt", c.id)
	go m.writeLoop(c)
	m.handler.LinkOpened(c.id)
	go m.probeLoop(c)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			m.finish(c, err)
			return
		}

		f := protocol.Decode(data)
		if _, ok := f.(protocol.Pong); ok {
			if rtt, ok := c.probe.received(m.clock.Now()); ok {
				m.handler.LinkLatency(c.id, rtt)
			}
			continue
		}
		m.handler.LinkFrame(c.id, f)
	}
}

func (m *Manager) probeLoop(c *conn) {
	ticker := m.clock.Ticker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := m.write(c, protocol.Ping{}); err != nil {
				m.finish(c, err)
				return
			}
		}
	}
}

// finish tears down c once and reports it if it is still the current attempt.
func (m *Manager) finish(c *conn, err error) {
	c.done.Do(func() {
		m.mu.Lock()
		current := m.cur == c
		if current {
			m.cur = nil
			m.status = Disconnected
		}
		m.mu.Unlock()

		c.cancel()
		if c.ws != nil {
			c.ws.Close()
		}
		if !current {
			return
		}
		m.logger.Debug("closed", "attempt", c.id, "error", err)
		m.handler.LinkClosed(c.id, err)
	})
}

func cmdName(cmd protocol.Command) string {
	if t := cmd.Type(); t != "" {
		return t
	}
	return "move"
}
