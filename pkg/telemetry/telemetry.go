// Package telemetry merges controller feedback into the actual-position
// state and decides when the operator's targets should follow it.
package telemetry

import (
	"github.com/gwillem/armlink/pkg/protocol"
	"github.com/gwillem/armlink/pkg/robot"
)

// DefaultDeadband is the smallest target/encoder difference, in degrees,
// that triggers a resync.
const DefaultDeadband = 0.5

// MotionState is derived from the most recent status frame.
type MotionState struct {
	IsMoving      bool
	TargetReached bool
}

// State is the controller-reported side of the arm.
type State struct {
	Encoder    robot.JointAngles
	RawEncoder robot.JointAngles
	Motion     MotionState
}

// Reconciler holds the reported state. It is not safe for concurrent use;
// the session serialises access.
type Reconciler struct {
	deadband float64
	state    State
}

// NewReconciler creates a reconciler. A deadband <= 0 selects DefaultDeadband.
func NewReconciler(deadband float64) *Reconciler {
	if deadband <= 0 {
		deadband = DefaultDeadband
	}
	return &Reconciler{
		deadband: deadband,
		state: State{
			Encoder:    robot.DefaultJointAngles,
			RawEncoder: robot.DefaultJointAngles,
			Motion:     MotionState{IsMoving: false, TargetReached: true},
		},
	}
}

// Deadband returns the resync threshold in degrees.
func (r *Reconciler) Deadband() float64 {
	return r.deadband
}

// State returns a copy of the reported state.
func (r *Reconciler) State() State {
	return r.state
}

// Apply merges a status frame and returns the target the operator should see
// next. resynced is true when every joint of the target was replaced by the
// encoder reading.
func (r *Reconciler) Apply(st protocol.Status, target robot.JointAngles, interacting bool) (next robot.JointAngles, resynced bool) {
	r.state.Encoder = st.Encoders
	if st.RawEncoders != nil {
		r.state.RawEncoder = *st.RawEncoders
	}
	if st.Moving != nil {
		r.state.Motion = MotionState{IsMoving: *st.Moving, TargetReached: !*st.Moving}
	}

	if r.shouldResync(target, interacting) {
		return r.state.Encoder, true
	}
	return target, false
}

func (r *Reconciler) shouldResync(target robot.JointAngles, interacting bool) bool {
	m := r.state.Motion
	if m.IsMoving || !m.TargetReached || interacting {
		return false
	}
	return target.MaxDelta(r.state.Encoder) > r.deadband
}
