package controller

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armlink/pkg/robot"
)

func sample(t *testing.T, a Actuator) Sample {
	t.Helper()
	s, err := a.Sample(context.Background())
	require.NoError(t, err)
	return s
}

func moveBase(t *testing.T, a Actuator, deg float64) {
	t.Helper()
	target := robot.DefaultJointAngles
	target.Base = deg
	require.NoError(t, a.MoveTo(context.Background(), target))
}

func TestSimArm_RestsAtDefaultPose(t *testing.T) {
	sim := NewSimArm(clock.NewMock())
	s := sample(t, sim)
	assert.Equal(t, robot.DefaultJointAngles, s.Encoders)
	assert.Equal(t, robot.DefaultJointAngles, s.RawEncoders)
	assert.False(t, s.Moving)
}

func TestSimArm_MovesAtJointSpeed(t *testing.T) {
	mock := clock.NewMock()
	sim := NewSimArm(mock)
	moveBase(t, sim, 30)

	// base default speed is 60°/s
	mock.Add(250 * time.Millisecond)
	s := sample(t, sim)
	assert.InDelta(t, 15, s.Encoders.Base, 1e-9)
	assert.True(t, s.Moving)

	mock.Add(time.Second)
	s = sample(t, sim)
	assert.Equal(t, 30.0, s.Encoders.Base)
	assert.False(t, s.Moving)
}

func TestSimArm_SpeedPercentage(t *testing.T) {
	mock := clock.NewMock()
	sim := NewSimArm(mock)
	require.NoError(t, sim.Configure(50, 50, robot.DefaultSettings().EnabledJoints))
	moveBase(t, sim, 30)

	mock.Add(500 * time.Millisecond)
	assert.InDelta(t, 15, sample(t, sim).Encoders.Base, 1e-9)
}

func TestSimArm_MotionConfig(t *testing.T) {
	mock := clock.NewMock()
	sim := NewSimArm(mock)
	require.NoError(t, sim.SetMotion(robot.Base, robot.MotionConfig{MaxSpeed: 10, MaxAccel: 20}))
	assert.Error(t, sim.SetMotion(robot.Base, robot.MotionConfig{}))
	moveBase(t, sim, 30)

	mock.Add(time.Second)
	assert.InDelta(t, 10, sample(t, sim).Encoders.Base, 1e-9)
}

func TestSimArm_DisabledJointHolds(t *testing.T) {
	mock := clock.NewMock()
	sim := NewSimArm(mock)
	enabled := robot.DefaultSettings().EnabledJoints.Set(robot.Base, false)
	require.NoError(t, sim.Configure(100, 50, enabled))
	moveBase(t, sim, 30)

	mock.Add(time.Second)
	s := sample(t, sim)
	assert.Equal(t, 0.0, s.Encoders.Base)
	assert.False(t, s.Moving)
}

func TestSimArm_StopFreezes(t *testing.T) {
	mock := clock.NewMock()
	sim := NewSimArm(mock)
	moveBase(t, sim, 30)
	mock.Add(250 * time.Millisecond)

	require.NoError(t, sim.Stop(context.Background()))
	mock.Add(time.Second)
	s := sample(t, sim)
	assert.InDelta(t, 15, s.Encoders.Base, 1e-9)
	assert.False(t, s.Moving)

	// the next move resumes
	moveBase(t, sim, 30)
	mock.Add(time.Second)
	assert.Equal(t, 30.0, sample(t, sim).Encoders.Base)
}

func TestSimArm_SetZero(t *testing.T) {
	mock := clock.NewMock()
	sim := NewSimArm(mock)
	moveBase(t, sim, 30)
	mock.Add(time.Second)

	require.NoError(t, sim.SetZero(context.Background(), robot.Base))
	s := sample(t, sim)
	assert.Equal(t, 0.0, s.Encoders.Base)
	assert.Equal(t, 30.0, s.RawEncoders.Base)

	moveBase(t, sim, 10)
	mock.Add(time.Second)
	s = sample(t, sim)
	assert.Equal(t, 10.0, s.Encoders.Base)
	assert.Equal(t, 40.0, s.RawEncoders.Base)
}

func TestSimArm_Inverted(t *testing.T) {
	mock := clock.NewMock()
	sim := NewSimArm(mock)
	require.NoError(t, sim.SetInverted(robot.Wrist, true))

	target := robot.DefaultJointAngles
	target.Wrist = 20
	require.NoError(t, sim.MoveTo(context.Background(), target))
	mock.Add(time.Second)

	s := sample(t, sim)
	assert.Equal(t, 20.0, s.Encoders.Wrist)
	assert.Equal(t, -20.0, s.RawEncoders.Wrist)
}
