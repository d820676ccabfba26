// Package protocol encodes and decodes the JSON text frames exchanged with
// the arm controller.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gwillem/armlink/pkg/robot"
)

// Wire discriminators.
const (
	TypeStop          = "stop"
	TypeSettings      = "settings"
	TypeSetZero       = "set_zero"
	TypeMotionConfig  = "motion_config"
	TypeInvertJoint   = "invert_joint"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeStatus        = "status"
	TypeLog           = "log"
	TypeZeroConfirmed = "zero_confirmed"
	TypeAck           = "ack"
)

// ErrUnknownCommand is returned by DecodeCommand for frames it cannot map.
var ErrUnknownCommand = errors.New("unknown command")

// Command is an outbound message from the console to the controller.
type Command interface {
	// Type returns the wire discriminator; move commands have none.
	Type() string
}

// Move sets new target angles.
type Move struct {
	Joints robot.JointAngles
}

// Stop halts all motion.
type Stop struct{}

// Settings pushes the global speed and acceleration settings.
type Settings struct {
	MaxSpeed      int
	Acceleration  int
	EnabledJoints robot.EnabledJoints
}

// SetZero makes a joint's current position its encoder reference.
type SetZero struct {
	Joint robot.JointKey
}

// MotionConfig sets a joint's speed and acceleration ceilings.
type MotionConfig struct {
	Joint    robot.JointKey
	MaxSpeed float64
	MaxAccel float64
}

// InvertJoint toggles a joint's direction.
type InvertJoint struct {
	Joint robot.JointKey
	Value bool
}

// Ping is the liveness probe.
type Ping struct{}

func (Move) Type() string         { return "" }
func (Stop) Type() string         { return TypeStop }
func (Settings) Type() string     { return TypeSettings }
func (SetZero) Type() string      { return TypeSetZero }
func (MotionConfig) Type() string { return TypeMotionConfig }
func (InvertJoint) Type() string  { return TypeInvertJoint }
func (Ping) Type() string         { return TypePing }

// SettingsFrom extracts the transmitted part of the robot settings.
func SettingsFrom(s robot.RobotSettings) Settings {
	return Settings{
		MaxSpeed:      s.MaxSpeed,
		Acceleration:  s.Acceleration,
		EnabledJoints: s.EnabledJoints,
	}
}

// commandWire is the union of every outbound field.
type commandWire struct {
	Type          string               `json:"type,omitempty"`
	Joints        []float64            `json:"joints,omitempty"`
	MaxSpeed      *float64             `json:"maxSpeed,omitempty"`
	Acceleration  *int                 `json:"acceleration,omitempty"`
	EnabledJoints *robot.EnabledJoints `json:"enabledJoints,omitempty"`
	Joint         string               `json:"joint,omitempty"`
	MaxAccel      *float64             `json:"maxAccel,omitempty"`
	Value         *bool                `json:"value,omitempty"`
}

// Encode serializes a command into one text frame.
func Encode(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case Move:
		a := c.Joints.Array()
		return json.Marshal(commandWire{Joints: a[:]})
	case Stop:
		return json.Marshal(commandWire{Type: TypeStop})
	case Settings:
		speed := float64(c.MaxSpeed)
		return json.Marshal(commandWire{
			Type:          TypeSettings,
			MaxSpeed:      &speed,
			Acceleration:  &c.Acceleration,
			EnabledJoints: &c.EnabledJoints,
		})
	case SetZero:
		return json.Marshal(commandWire{Type: TypeSetZero, Joint: string(c.Joint)})
	case MotionConfig:
		return json.Marshal(commandWire{
			Type:     TypeMotionConfig,
			Joint:    string(c.Joint),
			MaxSpeed: &c.MaxSpeed,
			MaxAccel: &c.MaxAccel,
		})
	case InvertJoint:
		return json.Marshal(commandWire{Type: TypeInvertJoint, Joint: string(c.Joint), Value: &c.Value})
	case Ping:
		return json.Marshal(commandWire{Type: TypePing})
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
}

// DecodeCommand parses a frame received by the controller.
func DecodeCommand(data []byte) (Command, error) {
	var w commandWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}

	switch w.Type {
	case "", "move":
		joints, err := robot.JointAnglesFromSlice(w.Joints)
		if err != nil {
			return nil, fmt.Errorf("move: %w", err)
		}
		return Move{Joints: joints}, nil
	case TypeStop:
		return Stop{}, nil
	case TypeSettings:
		s := Settings{EnabledJoints: robot.EnabledJoints{Base: true, Shoulder: true, Elbow: true, Wrist: true}}
		if w.MaxSpeed != nil {
			s.MaxSpeed = int(*w.MaxSpeed)
		}
		if w.Acceleration != nil {
			s.Acceleration = *w.Acceleration
		}
		if w.EnabledJoints != nil {
			s.EnabledJoints = *w.EnabledJoints
		}
		return s, nil
	case TypeSetZero:
		joint, err := robot.ParseJointKey(w.Joint)
		if err != nil {
			return nil, err
		}
		return SetZero{Joint: joint}, nil
	case TypeMotionConfig:
		joint, err := robot.ParseJointKey(w.Joint)
		if err != nil {
			return nil, err
		}
		if w.MaxSpeed == nil || w.MaxAccel == nil {
			return nil, fmt.Errorf("motion_config: missing maxSpeed or maxAccel")
		}
		return MotionConfig{Joint: joint, MaxSpeed: *w.MaxSpeed, MaxAccel: *w.MaxAccel}, nil
	case TypeInvertJoint:
		joint, err := robot.ParseJointKey(w.Joint)
		if err != nil {
			return nil, err
		}
		return InvertJoint{Joint: joint, Value: w.Value != nil && *w.Value}, nil
	case TypePing:
		return Ping{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, w.Type)
}
