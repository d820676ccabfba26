package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gwillem/armlink/pkg/protocol"
	"github.com/gwillem/armlink/pkg/robot"
)

func status(enc robot.JointAngles, moving *bool) protocol.Status {
	return protocol.Status{Encoders: enc, Moving: moving}
}

func ptr[T any](v T) *T { return &v }

func TestApply_ResyncWhenStopped(t *testing.T) {
	r := NewReconciler(DefaultDeadband)
	enc := robot.JointAngles{Base: 1, Shoulder: 2, Elbow: 3, Wrist: 4}

	next, resynced := r.Apply(status(enc, ptr(false)), robot.JointAngles{}, false)
	assert.True(t, resynced)
	assert.Equal(t, enc, next)
	assert.Equal(t, enc, r.State().Encoder)
	assert.Equal(t, MotionState{IsMoving: false, TargetReached: true}, r.State().Motion)
}

func TestApply_NoResyncInsideDeadband(t *testing.T) {
	r := NewReconciler(DefaultDeadband)
	target := robot.JointAngles{Base: 10, Shoulder: 20, Elbow: 30, Wrist: 40}
	enc := robot.JointAngles{Base: 10.4, Shoulder: 19.6, Elbow: 30.5, Wrist: 40}

	for i := 0; i < 5; i++ {
		next, resynced := r.Apply(status(enc, ptr(false)), target, false)
		assert.False(t, resynced)
		assert.Equal(t, target, next)
	}
}

func TestApply_AllJointsCopied(t *testing.T) {
	r := NewReconciler(DefaultDeadband)
	target := robot.JointAngles{Base: 10, Shoulder: 20, Elbow: 30, Wrist: 40}
	// only the wrist is outside the deadband
	enc := robot.JointAngles{Base: 10.2, Shoulder: 20.1, Elbow: 29.9, Wrist: 45}

	next, resynced := r.Apply(status(enc, ptr(false)), target, false)
	assert.True(t, resynced)
	assert.Equal(t, enc, next)
}

func TestApply_NoResyncWhileMoving(t *testing.T) {
	r := NewReconciler(DefaultDeadband)
	target := robot.JointAngles{Base: 90}
	enc := robot.JointAngles{Base: 30}

	next, resynced := r.Apply(status(enc, ptr(true)), target, false)
	assert.False(t, resynced)
	assert.Equal(t, target, next)
	assert.Equal(t, MotionState{IsMoving: true, TargetReached: false}, r.State().Motion)

	// moving omitted: the previous motion state still applies
	_, resynced = r.Apply(status(enc, nil), target, false)
	assert.False(t, resynced)
}

func TestApply_NoResyncWhileInteracting(t *testing.T) {
	r := NewReconciler(DefaultDeadband)
	target := robot.JointAngles{Base: 90}
	enc := robot.JointAngles{Base: 30}

	_, resynced := r.Apply(status(enc, ptr(false)), target, true)
	assert.False(t, resynced)

	next, resynced := r.Apply(status(enc, nil), target, false)
	assert.True(t, resynced)
	assert.Equal(t, enc, next)
}

func TestApply_RawEncoders(t *testing.T) {
	r := NewReconciler(DefaultDeadband)
	raw := robot.JointAngles{Base: 2048, Shoulder: 1024, Elbow: 3000, Wrist: 100}

	r.Apply(protocol.Status{Encoders: robot.JointAngles{}, RawEncoders: &raw}, robot.JointAngles{}, false)
	assert.Equal(t, raw, r.State().RawEncoder)

	// absent raw values leave the last reading in place
	r.Apply(protocol.Status{Encoders: robot.JointAngles{Base: 1}}, robot.JointAngles{}, false)
	assert.Equal(t, raw, r.State().RawEncoder)
	assert.Equal(t, robot.JointAngles{Base: 1}, r.State().Encoder)
}

func TestNewReconciler_Defaults(t *testing.T) {
	r := NewReconciler(-1)
	assert.Equal(t, DefaultDeadband, r.Deadband())
	assert.Equal(t, DefaultDeadband, NewReconciler(0).Deadband())
	assert.Equal(t, robot.DefaultJointAngles, r.State().Encoder)
	assert.True(t, r.State().Motion.TargetReached)
	assert.Equal(t, 2.0, NewReconciler(2).Deadband())
}
