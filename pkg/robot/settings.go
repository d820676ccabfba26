package robot

import (
	"errors"
	"fmt"
)

// PerJoint holds one value of T for each joint.
type PerJoint[T any] struct {
	Base     T `json:"base" yaml:"base"`
	Shoulder T `json:"shoulder" yaml:"shoulder"`
	Elbow    T `json:"elbow" yaml:"elbow"`
	Wrist    T `json:"wrist" yaml:"wrist"`
}

// Get returns the value for a joint. Unknown keys return the zero value.
func (p PerJoint[T]) Get(k JointKey) T {
	switch k {
	case Base:
		return p.Base
	case Shoulder:
		return p.Shoulder
	case Elbow:
		return p.Elbow
	case Wrist:
		return p.Wrist
	}
	var zero T
	return zero
}

// Set returns a copy with the value for one joint replaced.
func (p PerJoint[T]) Set(k JointKey, v T) PerJoint[T] {
	switch k {
	case Base:
		p.Base = v
	case Shoulder:
		p.Shoulder = v
	case Elbow:
		p.Elbow = v
	case Wrist:
		p.Wrist = v
	}
	return p
}

// JointLimits bounds a joint target, in degrees.
type JointLimits struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Clamp restricts v to [Min, Max].
func (l JointLimits) Clamp(v float64) float64 {
	if v < l.Min {
		return l.Min
	}
	if v > l.Max {
		return l.Max
	}
	return v
}

// Validate checks that Min does not exceed Max.
func (l JointLimits) Validate() error {
	if l.Min > l.Max {
		return fmt.Errorf("min %.1f exceeds max %.1f", l.Min, l.Max)
	}
	return nil
}

// MotionConfig is sent to the controller, which enforces it.
type MotionConfig struct {
	MaxSpeed float64 `json:"maxSpeed" yaml:"maxSpeed"` // deg/s
	MaxAccel float64 `json:"maxAccel" yaml:"maxAccel"` // deg/s²
}

// Validate checks that both limits are positive.
func (m MotionConfig) Validate() error {
	if m.MaxSpeed <= 0 {
		return fmt.Errorf("max speed must be positive, got %.1f", m.MaxSpeed)
	}
	if m.MaxAccel <= 0 {
		return fmt.Errorf("max accel must be positive, got %.1f", m.MaxAccel)
	}
	return nil
}

type (
	PerJointLimits       = PerJoint[JointLimits]
	PerJointMotionConfig = PerJoint[MotionConfig]
	PerJointInversion    = PerJoint[bool]
	EnabledJoints        = PerJoint[bool]
)

// ClampAll clamps every joint of a to its limits.
func ClampAll(limits PerJointLimits, a JointAngles) JointAngles {
	for _, k := range AllJoints() {
		a = a.Set(k, limits.Get(k).Clamp(a.Get(k)))
	}
	return a
}

// DefaultJointLimits returns the limits of JointConfigs.
func DefaultJointLimits() PerJointLimits {
	var l PerJointLimits
	for _, jc := range JointConfigs() {
		l = l.Set(jc.Key, JointLimits{Min: jc.Min, Max: jc.Max})
	}
	return l
}

// DefaultMotionConfig returns conservative per-joint speed and acceleration.
func DefaultMotionConfig() PerJointMotionConfig {
	return PerJointMotionConfig{
		Base:     MotionConfig{MaxSpeed: 60, MaxAccel: 120},
		Shoulder: MotionConfig{MaxSpeed: 45, MaxAccel: 90},
		Elbow:    MotionConfig{MaxSpeed: 60, MaxAccel: 120},
		Wrist:    MotionConfig{MaxSpeed: 90, MaxAccel: 180},
	}
}

// RobotSettings is everything the operator can tune. It is only ever
// transmitted on demand.
type RobotSettings struct {
	MaxSpeed        int                  `json:"maxSpeed" yaml:"maxSpeed"`         // percent
	Acceleration    int                  `json:"acceleration" yaml:"acceleration"` // percent
	EnabledJoints   EnabledJoints        `json:"enabledJoints" yaml:"enabledJoints"`
	JointLimits     PerJointLimits       `json:"jointLimits" yaml:"jointLimits"`
	MotionConfig    PerJointMotionConfig `json:"motionConfig" yaml:"motionConfig"`
	InvertDirection PerJointInversion    `json:"invertDirection" yaml:"invertDirection"`
}

// DefaultSettings returns the factory settings.
func DefaultSettings() RobotSettings {
	return RobotSettings{
		MaxSpeed:      100,
		Acceleration:  50,
		EnabledJoints: EnabledJoints{Base: true, Shoulder: true, Elbow: true, Wrist: true},
		JointLimits:   DefaultJointLimits(),
		MotionConfig:  DefaultMotionConfig(),
	}
}

// Validate checks percentages and every per-joint record.
func (s RobotSettings) Validate() error {
	var errs []error
	if s.MaxSpeed < 0 || s.MaxSpeed > 100 {
		errs = append(errs, fmt.Errorf("max speed %d%% out of range 0-100", s.MaxSpeed))
	}
	if s.Acceleration < 0 || s.Acceleration > 100 {
		errs = append(errs, fmt.Errorf("acceleration %d%% out of range 0-100", s.Acceleration))
	}
	for _, k := range AllJoints() {
		if err := s.JointLimits.Get(k).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s limits: %w", k, err))
		}
		if err := s.MotionConfig.Get(k).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s motion: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
