package robot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// Arm represents a 4-DOF arm driven by Feetech STS servos on one bus.
type Arm struct {
	bus   *feetech.Bus
	group *feetech.ServoGroup

	mu          sync.Mutex
	calibration Calibration
}

// NewArm creates and initializes an arm connection.
func NewArm(port string, cal Calibration) (*Arm, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	ids := cal.MotorIDs()
	if len(ids) != NumJoints {
		bus.Close()
		return nil, fmt.Errorf("calibration covers %d of %d joints", len(ids), NumJoints)
	}
	group := feetech.NewServoGroupByIDs(bus, ids...)

	return &Arm{
		bus:         bus,
		group:       group,
		calibration: cal,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// ReadPositions reads current positions from all servos.
// Returns calibrated angles in degrees and the raw tick counts.
func (a *Arm) ReadPositions(ctx context.Context) (angles, raw JointAngles, err error) {
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return angles, raw, fmt.Errorf("read positions: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for id, pos := range rawPositions {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		angles = angles.Set(name, cal.Degrees(pos))
		raw = raw.Set(name, float64(pos))
	}
	return angles, raw, nil
}

// WritePositions writes target angles, in degrees, to all servos.
func (a *Arm) WritePositions(ctx context.Context, angles JointAngles) error {
	a.mu.Lock()
	rawPositions := make(feetech.PositionMap, NumJoints)
	for _, name := range AllJoints() {
		cal, ok := a.calibration[name]
		if !ok {
			continue
		}
		rawPositions[cal.ID] = cal.Raw(angles.Get(name))
	}
	a.mu.Unlock()

	if err := a.group.SetPositions(ctx, rawPositions); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

// SetZero makes the current position of a joint its new zero.
func (a *Arm) SetZero(ctx context.Context, joint JointKey) error {
	_, raw, err := a.ReadPositions(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cal, ok := a.calibration[joint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJoint, joint)
	}
	cal.HomingOffset = int(raw.Get(joint))
	a.calibration[joint] = cal
	return nil
}

// SetInverted flips the direction a joint counts in.
func (a *Arm) SetInverted(joint JointKey, inverted bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cal, ok := a.calibration[joint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJoint, joint)
	}
	cal.DriveMode = 0
	if inverted {
		cal.DriveMode = 1
	}
	a.calibration[joint] = cal
	return nil
}

// Calibration returns a copy of the current calibration.
func (a *Arm) Calibration() Calibration {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(Calibration, len(a.calibration))
	for k, v := range a.calibration {
		out[k] = v
	}
	return out
}
