package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/armlink/pkg/robot"
)

const busBaudRate = 1_000_000

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func openBus(port string) (*feetech.Bus, error) {
	return feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: busBaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
}

// candidatePorts lists serial ports, skipping macOS Bluetooth ports.
func candidatePorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	var out []string
	for _, p := range ports {
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// scanPort opens port and returns the servos answering on IDs 1..NumJoints.
// The bus is left open when err is nil.
func scanPort(port string) (armInfo, error) {
	bus, err := openBus(port)
	if err != nil {
		return armInfo{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	servos, err := bus.Scan(ctx, 1, robot.NumJoints)
	if err != nil {
		bus.Close()
		return armInfo{}, err
	}
	return armInfo{port: port, servos: servos, bus: bus}, nil
}

// isArm reports whether servos are exactly IDs 1..NumJoints.
func isArm(servos []feetech.FoundServo) bool {
	if len(servos) != robot.NumJoints {
		return false
	}
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= robot.NumJoints; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

func connectToArm(port string) (armInfo, error) {
	arm, err := scanPort(port)
	if err != nil {
		return armInfo{}, err
	}
	if !isArm(arm.servos) {
		arm.bus.Close()
		return armInfo{}, fmt.Errorf("no arm on %s (expected %d servos with IDs 1-%d)", port, robot.NumJoints, robot.NumJoints)
	}
	return arm, nil
}

// wiggle moves the base servo a little so the operator can see which arm
// is on which port.
func wiggle(arm armInfo) error {
	ctx := context.Background()

	var servo *feetech.Servo
	for _, s := range arm.servos {
		if s.ID == 1 {
			servo = feetech.NewServo(arm.bus, s.ID, s.Model)
			break
		}
	}
	if servo == nil {
		return errors.New("base servo not found")
	}

	originalPos, err := servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	if err := servo.Enable(ctx); err != nil {
		return fmt.Errorf("enable servo: %w", err)
	}
	defer servo.Disable(ctx)

	wiggleAmount := 30
	moveTimeMs := 500
	for _, pos := range []int{originalPos + wiggleAmount, originalPos - wiggleAmount, originalPos} {
		servo.SetPositionWithTime(ctx, pos, moveTimeMs)
		time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	}
	return nil
}

// choosePort returns preferred if set, otherwise asks the operator.
func choosePort(preferred string) (string, error) {
	if preferred != "" {
		return preferred, nil
	}
	ports, err := candidatePorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("no serial ports found")
	}

	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		options = append(options, huh.NewOption(p, p))
	}
	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which serial port is the arm on?").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return port, nil
}
