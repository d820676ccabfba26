package robot

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// TicksPerRevolution is the resolution of the STS servo position encoder.
const TicksPerRevolution = 4096

// MotorCalibration holds calibration data for a single servo.
type MotorCalibration struct {
	ID           int `json:"id" yaml:"id"`
	DriveMode    int `json:"drive_mode" yaml:"drive_mode"` // 1 inverts the direction
	HomingOffset int `json:"homing_offset" yaml:"homing_offset"`
	RangeMin     int `json:"range_min" yaml:"range_min"`
	RangeMax     int `json:"range_max" yaml:"range_max"`
}

// Calibration holds calibration data for all servos, keyed by joint.
type Calibration map[JointKey]MotorCalibration

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var raw map[string]MotorCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}

	cal := make(Calibration, len(raw))
	for name, mc := range raw {
		key, err := ParseJointKey(name)
		if err != nil {
			return nil, fmt.Errorf("calibration: %w", err)
		}
		cal[key] = mc
	}

	return cal, nil
}

// Degrees converts a raw servo position to joint degrees around the homing offset.
func (c MotorCalibration) Degrees(raw int) float64 {
	deg := float64(raw-c.HomingOffset) * 360 / TicksPerRevolution
	if c.DriveMode == 1 {
		deg = -deg
	}
	return deg
}

// Raw converts joint degrees to a raw servo position, limited to the recorded range.
func (c MotorCalibration) Raw(deg float64) int {
	if c.DriveMode == 1 {
		deg = -deg
	}
	raw := int(math.Round(deg*TicksPerRevolution/360)) + c.HomingOffset
	if c.RangeMax > c.RangeMin {
		raw = max(c.RangeMin, min(c.RangeMax, raw))
	}
	return raw
}

// MotorIDs returns the servo IDs for all joints in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// AllJoints keeps the ordering stable
	for _, name := range AllJoints() {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// ByID returns joint name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (JointKey, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}
