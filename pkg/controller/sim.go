package controller

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gwillem/armlink/pkg/robot"
)

// arrivedTolerance is how close, in degrees, a joint must be to its target
// to count as arrived.
const arrivedTolerance = 0.01

// SimArm is a kinematic arm model. Each enabled joint moves toward its
// target at its MaxSpeed scaled by the global speed percentage. Positions
// are integrated lazily whenever the arm is touched.
type SimArm struct {
	clock clock.Clock

	mu       sync.Mutex
	last     time.Time
	pos      robot.JointAngles // physical position
	target   robot.JointAngles // physical target
	zero     robot.JointAngles
	inverted robot.PerJointInversion
	motion   robot.PerJointMotionConfig
	enabled  robot.EnabledJoints
	speedPct int
}

// NewSimArm creates a simulated arm resting at the default pose. A nil
// clock selects the wall clock.
func NewSimArm(c clock.Clock) *SimArm {
	if c == nil {
		c = clock.New()
	}
	settings := robot.DefaultSettings()
	return &SimArm{
		clock:    c,
		last:     c.Now(),
		pos:      robot.DefaultJointAngles,
		target:   robot.DefaultJointAngles,
		motion:   settings.MotionConfig,
		enabled:  settings.EnabledJoints,
		speedPct: settings.MaxSpeed,
	}
}

func (s *SimArm) advanceLocked() {
	now := s.clock.Now()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	if dt <= 0 {
		return
	}

	for _, k := range robot.AllJoints() {
		if !s.enabled.Get(k) {
			continue
		}
		step := s.motion.Get(k).MaxSpeed * float64(s.speedPct) / 100 * dt
		p, t := s.pos.Get(k), s.target.Get(k)
		switch {
		case math.Abs(t-p) <= step:
			p = t
		case t > p:
			p += step
		default:
			p -= step
		}
		s.pos = s.pos.Set(k, p)
	}
}

func (s *SimArm) sign(k robot.JointKey) float64 {
	if s.inverted.Get(k) {
		return -1
	}
	return 1
}

// reported converts a physical position to what the encoder reports.
func (s *SimArm) reported(k robot.JointKey, physical float64) float64 {
	return s.sign(k) * (physical - s.zero.Get(k))
}

func (s *SimArm) physical(k robot.JointKey, reported float64) float64 {
	return s.zero.Get(k) + s.sign(k)*reported
}

// Sample implements Actuator.
func (s *SimArm) Sample(context.Context) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()

	var out Sample
	for _, k := range robot.AllJoints() {
		out.Encoders = out.Encoders.Set(k, s.reported(k, s.pos.Get(k)))
		if s.enabled.Get(k) && math.Abs(s.target.Get(k)-s.pos.Get(k)) > arrivedTolerance {
			out.Moving = true
		}
	}
	out.RawEncoders = s.pos
	return out, nil
}

// MoveTo implements Actuator. Disabled joints keep their target.
func (s *SimArm) MoveTo(_ context.Context, target robot.JointAngles) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	for _, k := range robot.AllJoints() {
		if s.enabled.Get(k) {
			s.target = s.target.Set(k, s.physical(k, target.Get(k)))
		}
	}
	return nil
}

// Stop implements Actuator.
func (s *SimArm) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	s.target = s.pos
	return nil
}

// SetZero implements Actuator.
func (s *SimArm) SetZero(_ context.Context, joint robot.JointKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	s.zero = s.zero.Set(joint, s.pos.Get(joint))
	return nil
}

// SetInverted implements Actuator.
func (s *SimArm) SetInverted(joint robot.JointKey, inverted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inverted = s.inverted.Set(joint, inverted)
	return nil
}

// SetMotion implements Actuator.
func (s *SimArm) SetMotion(joint robot.JointKey, mc robot.MotionConfig) error {
	if err := mc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	s.motion = s.motion.Set(joint, mc)
	return nil
}

// Configure implements Actuator. Acceleration is not modelled.
func (s *SimArm) Configure(speedPct, _ int, enabled robot.EnabledJoints) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	s.speedPct = min(max(speedPct, 0), 100)
	s.enabled = enabled
	return nil
}

// Close implements Actuator.
func (s *SimArm) Close() error { return nil }
