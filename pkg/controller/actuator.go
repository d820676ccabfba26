// Package controller is a reference implementation of the arm controller:
// the WebSocket endpoint the console connects to, backed either by a
// kinematic simulator or by the Feetech servo bus.
package controller

import (
	"context"

	"github.com/gwillem/armlink/pkg/robot"
)

// Sample is one reading of the arm.
type Sample struct {
	Encoders    robot.JointAngles `json:"encoders"`
	RawEncoders robot.JointAngles `json:"rawEncoders"`
	Moving      bool              `json:"moving"`
}

// Actuator drives the joints on behalf of the server. Implementations must
// be safe for concurrent use; every connected client shares one actuator.
type Actuator interface {
	Sample(ctx context.Context) (Sample, error)
	MoveTo(ctx context.Context, target robot.JointAngles) error
	// Stop freezes every joint where it is. The next MoveTo resumes motion.
	Stop(ctx context.Context) error
	SetZero(ctx context.Context, joint robot.JointKey) error
	SetInverted(joint robot.JointKey, inverted bool) error
	SetMotion(joint robot.JointKey, mc robot.MotionConfig) error
	// Configure applies the global speed and acceleration percentages and
	// the set of joints that may move.
	Configure(speedPct, accelPct int, enabled robot.EnabledJoints) error
	Close() error
}
