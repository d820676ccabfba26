// Package robot provides the data model of a 4-DOF arm: joints, limits,
// motion settings, calibration and the servo bus connection.
package robot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// JointKey identifies a joint in the arm.
type JointKey string

// Joint keys, in wire order.
const (
	Base     JointKey = "base"
	Shoulder JointKey = "shoulder"
	Elbow    JointKey = "elbow"
	Wrist    JointKey = "wrist"
)

// NumJoints is the number of joints carried in every angle vector.
const NumJoints = 4

// ErrUnknownJoint is returned for joint names outside AllJoints.
var ErrUnknownJoint = errors.New("unknown joint")

// ErrInvalidAngle is returned when user input is not a finite number.
var ErrInvalidAngle = errors.New("invalid angle")

// AllJoints returns all joint keys in order (matching the wire array order).
func AllJoints() []JointKey {
	return []JointKey{
		Base,
		Shoulder,
		Elbow,
		Wrist,
	}
}

// ParseJointKey validates a joint name.
func ParseJointKey(s string) (JointKey, error) {
	k := JointKey(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case Base, Shoulder, Elbow, Wrist:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJoint, s)
}

// JointConfig describes how a joint is presented to the operator.
type JointConfig struct {
	Name string
	Key  JointKey
	Min  float64
	Max  float64
	Unit string
}

// JointConfigs returns the display configuration for every joint.
func JointConfigs() []JointConfig {
	return []JointConfig{
		{Name: "Base Rotation", Key: Base, Min: -180, Max: 180, Unit: "°"},
		{Name: "Shoulder Pitch", Key: Shoulder, Min: -30, Max: 90, Unit: "°"},
		{Name: "Elbow Pitch", Key: Elbow, Min: 0, Max: 135, Unit: "°"},
		{Name: "Wrist Rotation", Key: Wrist, Min: -180, Max: 180, Unit: "°"},
	}
}

// JointAngles holds one angle per joint, in degrees.
type JointAngles struct {
	Base     float64 `json:"base" yaml:"base"`
	Shoulder float64 `json:"shoulder" yaml:"shoulder"`
	Elbow    float64 `json:"elbow" yaml:"elbow"`
	Wrist    float64 `json:"wrist" yaml:"wrist"`
}

// DefaultJointAngles is the resting pose shown before any feedback arrives.
var DefaultJointAngles = JointAngles{Base: 0, Shoulder: 45, Elbow: 45, Wrist: 0}

// Get returns the angle of a joint. Unknown keys read as zero.
func (a JointAngles) Get(k JointKey) float64 {
	switch k {
	case Base:
		return a.Base
	case Shoulder:
		return a.Shoulder
	case Elbow:
		return a.Elbow
	case Wrist:
		return a.Wrist
	}
	return 0
}

// Set returns a copy with one joint replaced.
func (a JointAngles) Set(k JointKey, v float64) JointAngles {
	switch k {
	case Base:
		a.Base = v
	case Shoulder:
		a.Shoulder = v
	case Elbow:
		a.Elbow = v
	case Wrist:
		a.Wrist = v
	}
	return a
}

// Array returns the angles in wire order.
func (a JointAngles) Array() [NumJoints]float64 {
	return [NumJoints]float64{a.Base, a.Shoulder, a.Elbow, a.Wrist}
}

// JointAnglesFromSlice builds angles from a wire-order slice of exactly four values.
func JointAnglesFromSlice(v []float64) (JointAngles, error) {
	if len(v) != NumJoints {
		return JointAngles{}, fmt.Errorf("expected %d joint values, got %d", NumJoints, len(v))
	}
	return JointAngles{Base: v[0], Shoulder: v[1], Elbow: v[2], Wrist: v[3]}, nil
}

// MaxDelta returns the largest absolute per-joint difference between a and b.
func (a JointAngles) MaxDelta(b JointAngles) float64 {
	x, y := a.Array(), b.Array()
	var d float64
	for i := range x {
		d = math.Max(d, math.Abs(x[i]-y[i]))
	}
	return d
}

// String formats the angles as a wire-order list.
func (a JointAngles) String() string {
	return fmt.Sprintf("[%.1f, %.1f, %.1f, %.1f]", a.Base, a.Shoulder, a.Elbow, a.Wrist)
}

// ParseAngle parses operator input for an angle field.
func ParseAngle(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "°")), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAngle, text)
	}
	return v, nil
}
