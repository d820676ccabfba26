package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/armlink/pkg/robot"
)

func TestCalibrationModel_Calibration(t *testing.T) {
	m := newCalibrationModel(nil)
	for i, k := range robot.AllJoints() {
		m.minPositions[k] = 1000 + i
		m.maxPositions[k] = 3000 + i
	}

	cal := m.calibration()
	if len(cal) != robot.NumJoints {
		t.Fatalf("calibration has %d joints, want %d", len(cal), robot.NumJoints)
	}
	for i, k := range robot.AllJoints() {
		c := cal[k]
		if c.ID != i+1 {
			t.Errorf("%s: ID = %d, want %d", k, c.ID, i+1)
		}
		if c.HomingOffset != 2000+i {
			t.Errorf("%s: HomingOffset = %d, want %d", k, c.HomingOffset, 2000+i)
		}
		if got := c.Degrees(c.HomingOffset); got != 0 {
			t.Errorf("%s: Degrees(offset) = %v, want 0", k, got)
		}
	}
}

func TestIsArm(t *testing.T) {
	tests := []struct {
		name string
		ids  []int
		want bool
	}{
		{"exact", []int{1, 2, 3, 4}, true},
		{"unordered", []int{4, 2, 1, 3}, true},
		{"missing", []int{1, 2, 3}, false},
		{"wrong ids", []int{1, 2, 3, 5}, false},
		{"six servos", []int{1, 2, 3, 4, 5, 6}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			servos := make([]feetech.FoundServo, len(tt.ids))
			for i, id := range tt.ids {
				servos[i] = feetech.FoundServo{ID: id}
			}
			if got := isArm(servos); got != tt.want {
				t.Errorf("isArm(%v) = %v, want %v", tt.ids, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected log output %q", out)
	}

	if _, err := newLogger(&buf, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
