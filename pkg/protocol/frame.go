package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/gwillem/armlink/pkg/robot"
)

// Severity grades an entry in the console log.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySent    Severity = "sent"
)

// ParseSeverity maps a wire level to a Severity; unknown levels read as info.
func ParseSeverity(level string) Severity {
	switch s := Severity(level); s {
	case SeverityInfo, SeverityWarning, SeverityError, SeveritySent:
		return s
	}
	return SeverityInfo
}

// Frame is an inbound message from the controller. The set of
// implementations is closed.
type Frame interface {
	frame()
}

// Pong answers a Ping.
type Pong struct{}

// Status carries encoder feedback.
type Status struct {
	Encoders    robot.JointAngles
	RawEncoders *robot.JointAngles
	Moving      *bool
}

// Feedback is the legacy joint echo.
type Feedback struct {
	Joints []float64
}

// Log is a message the controller wants shown to the operator.
type Log struct {
	Message string
	Level   Severity
}

// ZeroConfirmed acknowledges a SetZero.
type ZeroConfirmed struct {
	Joint string
}

// Ack acknowledges a configuration command.
type Ack struct {
	Command string
}

// Unrecognized is any frame that matched no other variant. Err is set when
// the payload was not valid JSON.
type Unrecognized struct {
	Raw string
	Err error
}

func (Pong) frame()          {}
func (Status) frame()        {}
func (Feedback) frame()      {}
func (Log) frame()           {}
func (ZeroConfirmed) frame() {}
func (Ack) frame()           {}
func (Unrecognized) frame()  {}

type frameWire struct {
	Type        string    `json:"type,omitempty"`
	Encoders    []float64 `json:"encoders,omitempty"`
	RawEncoders []float64 `json:"rawEncoders,omitempty"`
	Moving      *bool     `json:"moving,omitempty"`
	Joints      []float64 `json:"joints,omitempty"`
	Log         string    `json:"log,omitempty"`
	Level       string    `json:"level,omitempty"`
	Joint       string    `json:"joint,omitempty"`
	Command     string    `json:"command,omitempty"`
}

// Decode classifies one inbound text frame. It never fails: payloads that
// are not JSON objects come back as Unrecognized with Err set.
func Decode(data []byte) Frame {
	var w frameWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Unrecognized{Raw: string(data), Err: err}
	}

	if w.Type == TypePong {
		return Pong{}
	}
	if w.Type == TypeStatus && w.Encoders != nil {
		enc, err := robot.JointAnglesFromSlice(w.Encoders)
		if err != nil {
			return Unrecognized{Raw: string(data), Err: fmt.Errorf("encoders: %w", err)}
		}
		st := Status{Encoders: enc, Moving: w.Moving}
		if raw, err := robot.JointAnglesFromSlice(w.RawEncoders); err == nil {
			st.RawEncoders = &raw
		}
		return st
	}
	if w.Joints != nil {
		return Feedback{Joints: w.Joints}
	}
	if w.Log != "" {
		return Log{Message: w.Log, Level: ParseSeverity(w.Level)}
	}
	if w.Type == TypeZeroConfirmed {
		return ZeroConfirmed{Joint: w.Joint}
	}
	if w.Type == TypeAck {
		return Ack{Command: w.Command}
	}
	return Unrecognized{Raw: string(data)}
}

// EncodeFrame serializes a frame on the controller side.
func EncodeFrame(f Frame) ([]byte, error) {
	switch f := f.(type) {
	case Pong:
		return json.Marshal(frameWire{Type: TypePong})
	case Status:
		enc := f.Encoders.Array()
		w := frameWire{Type: TypeStatus, Encoders: enc[:], Moving: f.Moving}
		if f.RawEncoders != nil {
			raw := f.RawEncoders.Array()
			w.RawEncoders = raw[:]
		}
		return json.Marshal(w)
	case Feedback:
		return json.Marshal(frameWire{Joints: f.Joints})
	case Log:
		return json.Marshal(frameWire{Type: TypeLog, Log: f.Message, Level: string(f.Level)})
	case ZeroConfirmed:
		return json.Marshal(frameWire{Type: TypeZeroConfirmed, Joint: f.Joint})
	case Ack:
		return json.Marshal(frameWire{Type: TypeAck, Command: f.Command})
	case Unrecognized:
		return []byte(f.Raw), nil
	}
	return nil, fmt.Errorf("unknown frame %T", f)
}
