package controller

import (
	"context"
	"sync"

	"github.com/gwillem/armlink/pkg/robot"
)

// servoMovingThreshold is the encoder/target distance, in degrees, above
// which a servo is reported as still travelling.
const servoMovingThreshold = 1.0

// ServoArm drives a physical arm on a Feetech bus.
type ServoArm struct {
	arm *robot.Arm

	mu      sync.Mutex
	target  robot.JointAngles
	hasGoal bool
	enabled robot.EnabledJoints
	motion  robot.PerJointMotionConfig
}

// NewServoArm opens the bus on port and enables torque.
func NewServoArm(ctx context.Context, port string, cal robot.Calibration) (*ServoArm, error) {
	arm, err := robot.NewArm(port, cal)
	if err != nil {
		return nil, err
	}
	if err := arm.Enable(ctx); err != nil {
		arm.Close()
		return nil, err
	}
	settings := robot.DefaultSettings()
	return &ServoArm{arm: arm, enabled: settings.EnabledJoints, motion: settings.MotionConfig}, nil
}

// Sample implements Actuator.
func (s *ServoArm) Sample(ctx context.Context) (Sample, error) {
	angles, raw, err := s.arm.ReadPositions(ctx)
	if err != nil {
		return Sample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	moving := s.hasGoal && s.target.MaxDelta(angles) > servoMovingThreshold
	return Sample{Encoders: angles, RawEncoders: raw, Moving: moving}, nil
}

// MoveTo implements Actuator. Disabled joints hold their current position.
func (s *ServoArm) MoveTo(ctx context.Context, target robot.JointAngles) error {
	current, _, err := s.arm.ReadPositions(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	goal := current
	for _, k := range robot.AllJoints() {
		if s.enabled.Get(k) {
			goal = goal.Set(k, target.Get(k))
		}
	}
	s.target = goal
	s.hasGoal = true
	s.mu.Unlock()

	return s.arm.WritePositions(ctx, goal)
}

// Stop implements Actuator.
func (s *ServoArm) Stop(ctx context.Context) error {
	current, _, err := s.arm.ReadPositions(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.target = current
	s.hasGoal = true
	s.mu.Unlock()
	return s.arm.WritePositions(ctx, current)
}

// SetZero implements Actuator.
func (s *ServoArm) SetZero(ctx context.Context, joint robot.JointKey) error {
	s.mu.Lock()
	s.hasGoal = false
	s.mu.Unlock()
	return s.arm.SetZero(ctx, joint)
}

// SetInverted implements Actuator.
func (s *ServoArm) SetInverted(joint robot.JointKey, inverted bool) error {
	s.mu.Lock()
	s.hasGoal = false
	s.mu.Unlock()
	return s.arm.SetInverted(joint, inverted)
}

// SetMotion implements Actuator. The limits are recorded only; the servos
// run at their firmware speed.
func (s *ServoArm) SetMotion(joint robot.JointKey, mc robot.MotionConfig) error {
	if err := mc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motion = s.motion.Set(joint, mc)
	return nil
}

// Configure implements Actuator. Torque is released when every joint is disabled.
func (s *ServoArm) Configure(_, _ int, enabled robot.EnabledJoints) error {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	anyEnabled := false
	for _, k := range robot.AllJoints() {
		anyEnabled = anyEnabled || enabled.Get(k)
	}
	if anyEnabled {
		return s.arm.Enable(context.Background())
	}
	return s.arm.Disable(context.Background())
}

// Calibration returns the live calibration, including zeroing and
// inversion changes made by the console.
func (s *ServoArm) Calibration() robot.Calibration {
	return s.arm.Calibration()
}

// Close releases torque and closes the bus.
func (s *ServoArm) Close() error {
	_ = s.arm.Disable(context.Background())
	return s.arm.Close()
}
