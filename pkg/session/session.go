// Package session holds the console state shared with the view: connection
// status, target and reported angles, stop latch, latency, settings and the
// operator log.
//
// Every entry point takes the session lock and runs to completion, whether
// it is a user action, a timer or an inbound frame, so handlers never
// interleave. Connection outcomes arrive later through the link.Handler
// methods and are applied the same way.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gwillem/armlink/pkg/link"
	"github.com/gwillem/armlink/pkg/protocol"
	"github.com/gwillem/armlink/pkg/robot"
	"github.com/gwillem/armlink/pkg/telemetry"
	"github.com/gwillem/armlink/pkg/throttle"
)

var (
	// ErrJointDisabled is returned when targeting a joint the settings disable.
	ErrJointDisabled = errors.New("joint disabled")
	// ErrAddressLocked is returned when editing the address while connected.
	ErrAddressLocked = errors.New("address can only be changed while disconnected")
)

// Link is the connection the session drives. *link.Manager implements it.
type Link interface {
	Connect(host string) uint64
	Disconnect()
	Send(cmd protocol.Command) error
	Open() bool
}

// Config holds the session tunables.
type Config struct {
	Address       string
	Settings      robot.RobotSettings
	Port          int
	SendInterval  time.Duration
	ProbeInterval time.Duration
	Deadband      float64
	LogCapacity   int
}

// ConfigFrom derives session tunables from the console configuration.
func ConfigFrom(c *robot.Config) Config {
	return Config{
		Address:       c.Address,
		Settings:      c.Settings,
		Port:          link.DefaultPort,
		SendInterval:  c.Link.SendInterval(),
		ProbeInterval: c.Link.ProbeInterval(),
		Deadband:      c.Link.Deadband,
		LogCapacity:   DefaultLogCapacity,
	}
}

// Snapshot is a copy of the session state for the view.
type Snapshot struct {
	Status      link.Status
	Address     string
	Target      robot.JointAngles
	Encoder     robot.JointAngles
	RawEncoder  robot.JointAngles
	Motion      telemetry.MotionState
	Stopped     bool
	Latency     time.Duration
	HasLatency  bool
	Settings    robot.RobotSettings
	Interacting bool
	ConnectedAt time.Time
	Logs        []LogEntry
}

// Session is the aggregate console state.
type Session struct {
	cfg     Config
	link    Link
	limiter *throttle.Coalescer[robot.JointAngles]
	clock   clock.Clock
	logger  *slog.Logger

	// read by the limiter gate outside mu
	stopped atomic.Bool

	mu          sync.Mutex
	linkID      uint64
	status      link.Status
	address     string
	target      robot.JointAngles
	rec         *telemetry.Reconciler
	latency     time.Duration
	hasLatency  bool
	settings    robot.RobotSettings
	interacting bool
	connectedAt time.Time
	logs        *LogBuffer
	closed      bool

	updates chan Snapshot
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	clock   clock.Clock
	newLink func(link.Handler) Link
}

// WithLogger sets the structured logger operator log entries are mirrored to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLinkFactory replaces the WebSocket link.
func WithLinkFactory(f func(link.Handler) Link) Option {
	return func(o *options) { o.newLink = f }
}

// New creates a disconnected session.
func New(cfg Config, opts ...Option) *Session {
	o := options{logger: slog.Default(), clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Address == "" {
		cfg.Address = robot.DefaultAddress
	}
	if cfg.Port == 0 {
		cfg.Port = link.DefaultPort
	}
	if cfg.Deadband <= 0 {
		cfg.Deadband = telemetry.DefaultDeadband
	}

	s := &Session{
		cfg:      cfg,
		clock:    o.clock,
		logger:   o.logger.With("component", "session"),
		status:   link.Disconnected,
		address:  cfg.Address,
		target:   robot.DefaultJointAngles,
		rec:      telemetry.NewReconciler(cfg.Deadband),
		settings: cfg.Settings,
		logs:     NewLogBuffer(cfg.LogCapacity),
		updates:  make(chan Snapshot, 1),
	}

	if o.newLink == nil {
		o.newLink = func(h link.Handler) Link {
			return link.NewManager(h,
				link.WithPort(cfg.Port),
				link.WithProbeInterval(cfg.ProbeInterval),
				link.WithClock(o.clock),
				link.WithLogger(o.logger),
			)
		}
	}
	s.link = o.newLink(s)
	s.limiter = throttle.New(s.sendMove, s.canMove,
		throttle.WithInterval(cfg.SendInterval),
		throttle.WithClock(o.clock),
	)
	return s
}

func (s *Session) sendMove(a robot.JointAngles) error {
	return s.link.Send(protocol.Move{Joints: a})
}

func (s *Session) canMove() bool {
	return !s.stopped.Load() && s.link.Open()
}

// Updates delivers the latest snapshot after every change. Only the most
// recent snapshot is kept; slow readers skip intermediate ones. The channel
// is closed by Close.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	motion := s.rec.State()
	return Snapshot{
		Status:      s.status,
		Address:     s.address,
		Target:      s.target,
		Encoder:     motion.Encoder,
		RawEncoder:  motion.RawEncoder,
		Motion:      motion.Motion,
		Stopped:     s.stopped.Load(),
		Latency:     s.latency,
		HasLatency:  s.hasLatency,
		Settings:    s.settings,
		Interacting: s.interacting,
		ConnectedAt: s.connectedAt,
		Logs:        s.logs.Entries(),
	}
}

// unlock releases mu after publishing the new state.
func (s *Session) unlock() {
	if !s.closed {
		snap := s.snapshotLocked()
		select {
		case s.updates <- snap:
		default:
			// replace the unread snapshot
			select {
			case <-s.updates:
			default:
			}
			select {
			case s.updates <- snap:
			default:
			}
		}
	}
	s.mu.Unlock()
}

func (s *Session) logLocked(sev protocol.Severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e := s.logs.Append(s.clock.Now(), msg, sev)

	level := slog.LevelInfo
	switch sev {
	case protocol.SeverityWarning:
		level = slog.LevelWarn
	case protocol.SeverityError:
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, msg, "severity", string(sev), "entry", e.ID)
}

// SetTarget changes one joint target, clamped to its limits, and schedules
// transmission.
func (s *Session) SetTarget(joint robot.JointKey, deg float64) error {
	joint, err := robot.ParseJointKey(string(joint))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.unlock()

	if !s.settings.EnabledJoints.Get(joint) {
		return fmt.Errorf("%w: %s", ErrJointDisabled, joint)
	}
	s.target = s.target.Set(joint, s.settings.JointLimits.Get(joint).Clamp(deg))
	s.transmitLocked()
	return nil
}

// SetTargetText parses operator input for one joint. Invalid input leaves
// the target unchanged.
func (s *Session) SetTargetText(joint robot.JointKey, text string) error {
	deg, err := robot.ParseAngle(text)
	if err != nil {
		return err
	}
	return s.SetTarget(joint, deg)
}

// SetTargets changes every enabled joint at once. Disabled joints keep their target.
func (s *Session) SetTargets(a robot.JointAngles) {
	s.mu.Lock()
	defer s.unlock()

	next := s.target
	for _, k := range robot.AllJoints() {
		if s.settings.EnabledJoints.Get(k) {
			next = next.Set(k, a.Get(k))
		}
	}
	s.target = robot.ClampAll(s.settings.JointLimits, next)
	s.transmitLocked()
}

func (s *Session) transmitLocked() {
	if s.status != link.Connected {
		return
	}
	s.limiter.Submit(s.target)
}

// SetInteracting tells the session whether the operator is holding a control.
func (s *Session) SetInteracting(active bool) {
	s.mu.Lock()
	defer s.unlock()
	s.interacting = active
}

// SetAddress changes the controller address. It is refused while connected.
func (s *Session) SetAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	s.mu.Lock()
	defer s.unlock()

	if s.status != link.Disconnected {
		return ErrAddressLocked
	}
	if err := robot.ValidateAddress(addr); err != nil {
		return err
	}
	s.address = addr
	return nil
}

// Connect replaces any connection with a new attempt to the current address.
func (s *Session) Connect() {
	s.mu.Lock()
	defer s.unlock()

	s.limiter.Cancel()
	s.status = link.Connecting
	s.hasLatency = false
	s.latency = 0
	s.logLocked(protocol.SeverityInfo, "Connecting to %s:%d...", s.address, s.cfg.Port)
	s.linkID = s.link.Connect(s.address)
}

// Disconnect closes the connection. Calling it while disconnected is harmless.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.unlock()
	s.disconnectLocked()
	s.logLocked(protocol.SeverityInfo, "Disconnected")
}

func (s *Session) disconnectLocked() {
	s.limiter.Cancel()
	s.link.Disconnect()
	s.linkID = 0
	s.status = link.Disconnected
	s.hasLatency = false
	s.latency = 0
}

// SendStop sends an emergency stop and latches further moves until ResetStop.
func (s *Session) SendStop() {
	s.mu.Lock()
	defer s.unlock()

	if !s.link.Open() {
		return
	}
	s.stopped.Store(true)
	s.limiter.Cancel()
	if err := s.link.Send(protocol.Stop{}); err != nil {
		s.logLocked(protocol.SeverityError, "Emergency stop failed: %v", err)
		return
	}
	s.logLocked(protocol.SeverityWarning, "Emergency stop sent")
}

// ResetStop releases the stop latch.
func (s *Session) ResetStop() {
	s.mu.Lock()
	defer s.unlock()
	s.stopped.Store(false)
	s.logLocked(protocol.SeverityInfo, "Controls resumed")
}

// UpdateSettings replaces the local settings without transmitting them.
// Targets are clamped to the new limits.
func (s *Session) UpdateSettings(settings robot.RobotSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.unlock()
	s.settings = settings
	s.target = robot.ClampAll(settings.JointLimits, s.target)
	return nil
}

// SendSettings pushes the global settings. Dropped while disconnected.
func (s *Session) SendSettings() {
	s.mu.Lock()
	defer s.unlock()
	cmd := protocol.SettingsFrom(s.settings)
	if s.sendLocked(cmd) {
		s.logLocked(protocol.SeveritySent, "Settings updated: speed=%d, accel=%d", cmd.MaxSpeed, cmd.Acceleration)
	}
}

// SendSetZero asks the controller to zero a joint's encoder.
func (s *Session) SendSetZero(joint robot.JointKey) error {
	joint, err := robot.ParseJointKey(string(joint))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.unlock()
	if s.sendLocked(protocol.SetZero{Joint: joint}) {
		s.logLocked(protocol.SeveritySent, "Set zero for %s", joint)
	}
	return nil
}

// SendMotionConfig stores and transmits a joint's speed and acceleration limits.
func (s *Session) SendMotionConfig(joint robot.JointKey, maxSpeed, maxAccel float64) error {
	joint, err := robot.ParseJointKey(string(joint))
	if err != nil {
		return err
	}
	mc := robot.MotionConfig{MaxSpeed: maxSpeed, MaxAccel: maxAccel}
	if err := mc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.unlock()
	s.settings.MotionConfig = s.settings.MotionConfig.Set(joint, mc)
	if s.sendLocked(protocol.MotionConfig{Joint: joint, MaxSpeed: maxSpeed, MaxAccel: maxAccel}) {
		s.logLocked(protocol.SeveritySent, "Motion config for %s: speed=%g, accel=%g", joint, maxSpeed, maxAccel)
	}
	return nil
}

// SendInvertDirection stores and transmits a joint's direction inversion.
func (s *Session) SendInvertDirection(joint robot.JointKey, value bool) error {
	joint, err := robot.ParseJointKey(string(joint))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.unlock()
	s.settings.InvertDirection = s.settings.InvertDirection.Set(joint, value)
	if s.sendLocked(protocol.InvertJoint{Joint: joint, Value: value}) {
		s.logLocked(protocol.SeveritySent, "Invert %s: %t", joint, value)
	}
	return nil
}

// sendLocked transmits a configuration command if connected.
func (s *Session) sendLocked(cmd protocol.Command) bool {
	if !s.link.Open() {
		return false
	}
	if err := s.link.Send(cmd); err != nil {
		s.logLocked(protocol.SeverityError, "Send %s failed: %v", cmd.Type(), err)
		return false
	}
	return true
}

// ClearLogs empties the operator log.
func (s *Session) ClearLogs() {
	s.mu.Lock()
	defer s.unlock()
	s.logs.Clear()
}

// Close disconnects and closes the Updates channel. Later calls are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.disconnectLocked()
	s.closed = true
	close(s.updates)
}

// LinkOpened implements link.Handler.
func (s *Session) LinkOpened(id uint64) {
	s.mu.Lock()
	defer s.unlock()
	if id != s.linkID {
		return
	}
	s.status = link.Connected
	s.stopped.Store(false)
	s.connectedAt = s.clock.Now()
	s.logLocked(protocol.SeverityInfo, "Connected successfully")
}

// LinkClosed implements link.Handler.
func (s *Session) LinkClosed(id uint64, err error) {
	s.mu.Lock()
	defer s.unlock()
	if id != s.linkID {
		return
	}
	s.linkID = 0
	s.limiter.Cancel()
	s.status = link.Disconnected
	s.hasLatency = false
	s.latency = 0
	if err != nil {
		s.logLocked(protocol.SeverityError, "Connection error: %v", err)
		return
	}
	s.logLocked(protocol.SeverityWarning, "Connection closed")
}

// LinkLatency implements link.Handler.
func (s *Session) LinkLatency(id uint64, rtt time.Duration) {
	s.mu.Lock()
	defer s.unlock()
	if id != s.linkID {
		return
	}
	s.latency = rtt
	s.hasLatency = true
}

// LinkFrame implements link.Handler.
func (s *Session) LinkFrame(id uint64, f protocol.Frame) {
	s.mu.Lock()
	defer s.unlock()
	if id != s.linkID {
		return
	}

	switch f := f.(type) {
	case protocol.Status:
		next, resynced := s.rec.Apply(f, s.target, s.interacting)
		if resynced {
			s.target = next
			s.logger.Debug("target resynced", "target", next.String())
		}
	case protocol.Feedback:
		s.logLocked(protocol.SeverityInfo, "Feedback: [%s]", joinFloats(f.Joints))
	case protocol.Log:
		s.logLocked(f.Level, "%s", f.Message)
	case protocol.ZeroConfirmed:
		s.logLocked(protocol.SeverityInfo, "Zero set confirmed for %s", f.Joint)
	case protocol.Ack:
		s.logLocked(protocol.SeverityInfo, "Controller applied %s", f.Command)
	case protocol.Unrecognized:
		if f.Err != nil {
			s.logLocked(protocol.SeverityInfo, "Raw message: %s", f.Raw)
			return
		}
		s.logLocked(protocol.SeverityInfo, "Received: %s", f.Raw)
	}
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', -1, 64)
	}
	return strings.Join(parts, ", ")
}
