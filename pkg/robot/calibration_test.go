package robot

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMotorCalibration_Degrees(t *testing.T) {
	cal := MotorCalibration{
		HomingOffset: 2048,
		RangeMin:     1000,
		RangeMax:     3000,
	}

	tests := []struct {
		raw      int
		expected float64
	}{
		{2048, 0},    // homing offset -> 0
		{3072, 90},   // quarter turn
		{1024, -90},  // quarter turn back
		{2560, 45},   // eighth turn
		{2047, -360.0 / TicksPerRevolution},
	}

	for _, tt := range tests {
		got := cal.Degrees(tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Degrees(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestMotorCalibration_DegreesInverted(t *testing.T) {
	cal := MotorCalibration{HomingOffset: 2048, DriveMode: 1}
	if got := cal.Degrees(3072); math.Abs(got+90) > 0.001 {
		t.Errorf("Degrees(3072) = %f, want -90", got)
	}
	if got := cal.Raw(-90); got != 3072 {
		t.Errorf("Raw(-90) = %d, want 3072", got)
	}
}

func TestMotorCalibration_Raw(t *testing.T) {
	cal := MotorCalibration{
		HomingOffset: 2048,
		RangeMin:     1000,
		RangeMax:     3000,
	}

	tests := []struct {
		deg      float64
		expected int
	}{
		{0, 2048},
		{45, 2560},
		{-45, 1536},
		{180, 3000},  // clamped to range max
		{-180, 1000}, // clamped to range min
	}

	for _, tt := range tests {
		got := cal.Raw(tt.deg)
		if got != tt.expected {
			t.Errorf("Raw(%f) = %d, want %d", tt.deg, got, tt.expected)
		}
	}
}

func TestMotorCalibration_RoundTrip(t *testing.T) {
	cal := MotorCalibration{
		HomingOffset: 1900,
		RangeMin:     823,
		RangeMax:     3540,
	}

	// raw -> degrees -> raw
	for raw := cal.RangeMin; raw <= cal.RangeMax; raw += 100 {
		deg := cal.Degrees(raw)
		back := cal.Raw(deg)
		if back != raw {
			t.Errorf("Round-trip failed: %d -> %f -> %d", raw, deg, back)
		}
	}
}

func TestCalibration_MotorIDs(t *testing.T) {
	cal := Calibration{
		Wrist:    MotorCalibration{ID: 4},
		Base:     MotorCalibration{ID: 1},
		Elbow:    MotorCalibration{ID: 3},
		Shoulder: MotorCalibration{ID: 2},
	}

	ids := cal.MotorIDs()
	expected := []int{1, 2, 3, 4}

	if len(ids) != len(expected) {
		t.Fatalf("MotorIDs returned %d IDs, want %d", len(ids), len(expected))
	}

	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("MotorIDs()[%d] = %d, want %d", i, id, expected[i])
		}
	}
}

func TestCalibration_ByID(t *testing.T) {
	cal := Calibration{
		Base:  MotorCalibration{ID: 1, RangeMin: 100, RangeMax: 200},
		Wrist: MotorCalibration{ID: 4, RangeMin: 300, RangeMax: 400},
	}

	name, mc, ok := cal.ByID(1)
	if !ok {
		t.Fatal("ByID(1) returned false")
	}
	if name != Base {
		t.Errorf("ByID(1) returned name %s, want base", name)
	}
	if mc.RangeMin != 100 {
		t.Errorf("ByID(1) returned wrong calibration: %+v", mc)
	}

	_, _, ok = cal.ByID(99)
	if ok {
		t.Error("ByID(99) should return false")
	}
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.json")
	data := `{"base": {"id": 1, "homing_offset": 2048}, "elbow": {"id": 3, "drive_mode": 1}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if cal[Base].HomingOffset != 2048 || cal[Elbow].DriveMode != 1 {
		t.Errorf("unexpected calibration: %+v", cal)
	}

	if err := os.WriteFile(path, []byte(`{"gripper": {"id": 6}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCalibration(path); err == nil {
		t.Error("LoadCalibration should reject unknown joints")
	}
}
