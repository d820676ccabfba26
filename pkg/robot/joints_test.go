package robot

import (
	"errors"
	"testing"
)

func TestJointAngles_GetSet(t *testing.T) {
	var a JointAngles
	for i, k := range AllJoints() {
		a = a.Set(k, float64(i+1))
	}
	if a != (JointAngles{Base: 1, Shoulder: 2, Elbow: 3, Wrist: 4}) {
		t.Fatalf("Set produced %+v", a)
	}
	for i, k := range AllJoints() {
		if got := a.Get(k); got != float64(i+1) {
			t.Errorf("Get(%s) = %f, want %d", k, got, i+1)
		}
	}
}

func TestJointAngles_SetCopies(t *testing.T) {
	a := DefaultJointAngles
	b := a.Set(Base, 90)
	if a.Base != 0 {
		t.Errorf("Set mutated the receiver: %+v", a)
	}
	if b.Base != 90 {
		t.Errorf("Set result = %+v", b)
	}
}

func TestJointAnglesFromSlice(t *testing.T) {
	a, err := JointAnglesFromSlice([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if a.Array() != [NumJoints]float64{1, 2, 3, 4} {
		t.Errorf("Array() = %v", a.Array())
	}
	if _, err := JointAnglesFromSlice([]float64{1, 2, 3}); err == nil {
		t.Error("three values should be rejected")
	}
}

func TestJointAngles_MaxDelta(t *testing.T) {
	a := JointAngles{Base: 1, Shoulder: 2, Elbow: 3, Wrist: 4}
	b := JointAngles{Base: 1, Shoulder: 2.4, Elbow: 0, Wrist: 4}
	if got := a.MaxDelta(b); got != 3 {
		t.Errorf("MaxDelta = %f, want 3", got)
	}
	if got := a.MaxDelta(a); got != 0 {
		t.Errorf("MaxDelta with itself = %f", got)
	}
}

func TestParseAngle(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"12.5", 12.5, false},
		{" -30 ", -30, false},
		{"45°", 45, false},
		{"", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAngle(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidAngle) {
				t.Errorf("ParseAngle(%q) err = %v, want ErrInvalidAngle", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseAngle(%q) = %f, %v", tt.in, got, err)
		}
	}
}

func TestParseJointKey(t *testing.T) {
	k, err := ParseJointKey(" Elbow")
	if err != nil || k != Elbow {
		t.Errorf("ParseJointKey = %q, %v", k, err)
	}
	if _, err := ParseJointKey("gripper"); !errors.Is(err, ErrUnknownJoint) {
		t.Errorf("gripper err = %v", err)
	}
}

func TestClampAll(t *testing.T) {
	limits := DefaultJointLimits()
	got := ClampAll(limits, JointAngles{Base: 200, Shoulder: -45, Elbow: 60, Wrist: -181})
	want := JointAngles{Base: 180, Shoulder: -30, Elbow: 60, Wrist: -180}
	if got != want {
		t.Errorf("ClampAll = %+v, want %+v", got, want)
	}
}

func TestRobotSettings_Validate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}

	s.MaxSpeed = 120
	s.JointLimits = s.JointLimits.Set(Elbow, JointLimits{Min: 10, Max: 0})
	s.MotionConfig = s.MotionConfig.Set(Wrist, MotionConfig{MaxSpeed: 0, MaxAccel: 10})
	if err := s.Validate(); err == nil {
		t.Error("expected validation errors")
	}
}
