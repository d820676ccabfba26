package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/armlink/pkg/robot"
)

// minGoodRange is the tick span below which a joint is flagged as barely moved.
const minGoodRange = 500

type CalibrateCommand struct {
	Port string `short:"p" long:"port" description:"Serial port (overrides the config)"`
}

func (c *CalibrateCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	port := c.Port
	if port == "" {
		port = cfg.Controller.SerialPort
	}
	if port, err = choosePort(port); err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("armlink calibrate"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━"))
	fmt.Printf("Calibrating arm on %s\n\n", port)

	arm, err := connectToArm(port)
	if err != nil {
		return fmt.Errorf("connect to arm: %w", err)
	}
	defer arm.bus.Close()

	servos := make(map[int]*feetech.Servo)
	for _, s := range arm.servos {
		servos[s.ID] = feetech.NewServo(arm.bus, s.ID, s.Model)
	}

	// Release torque so the joints can be moved by hand
	ctx := context.Background()
	for _, servo := range servos {
		servo.Disable(ctx)
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println()

	model := newCalibrationModel(servos)
	model.read()
	for _, k := range robot.AllJoints() {
		model.minPositions[k] = model.curPositions[k]
		model.maxPositions[k] = model.curPositions[k]
	}

	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)
	if cm.aborted {
		fmt.Println("Calibration aborted.")
		return nil
	}

	cfg.Controller.SerialPort = port
	cfg.Controller.Calibration = cm.calibration()
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Calibration complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println("Start the controller with: " + headerStyle.Render("armlink serve"))
	return nil
}

// Calibration TUI model
type calibrationModel struct {
	servos       map[int]*feetech.Servo
	curPositions map[robot.JointKey]int
	minPositions map[robot.JointKey]int
	maxPositions map[robot.JointKey]int
	quitting     bool
	aborted      bool
}

type calibrationTickMsg time.Time

func newCalibrationModel(servos map[int]*feetech.Servo) calibrationModel {
	return calibrationModel{
		servos:       servos,
		curPositions: make(map[robot.JointKey]int),
		minPositions: make(map[robot.JointKey]int),
		maxPositions: make(map[robot.JointKey]int),
	}
}

func calibrationTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return calibrationTickMsg(t)
	})
}

// read samples every servo; joint i is servo ID i+1.
func (m calibrationModel) read() {
	ctx := context.Background()
	for i, k := range robot.AllJoints() {
		servo, ok := m.servos[i+1]
		if !ok {
			continue
		}
		pos, err := servo.Position(ctx)
		if err != nil {
			continue
		}
		m.curPositions[k] = pos
		if pos < m.minPositions[k] {
			m.minPositions[k] = pos
		}
		if pos > m.maxPositions[k] {
			m.maxPositions[k] = pos
		}
	}
}

// calibration centres each joint's zero in its recorded range.
func (m calibrationModel) calibration() robot.Calibration {
	cal := make(robot.Calibration, robot.NumJoints)
	for i, k := range robot.AllJoints() {
		lo, hi := m.minPositions[k], m.maxPositions[k]
		cal[k] = robot.MotorCalibration{
			ID:           i + 1,
			HomingOffset: (lo + hi) / 2,
			RangeMin:     lo,
			RangeMax:     hi,
		}
	}
	return cal
}

func (m calibrationModel) Init() tea.Cmd {
	return calibrationTick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.quitting = true
			return m, tea.Quit
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.aborted = true
			return m, tea.Quit
		}

	case calibrationTickMsg:
		m.read()
		return m, calibrationTick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	joints := robot.JointConfigs()
	rows := make([][]string, 0, len(joints))
	ranges := make([]int, 0, len(joints))
	for _, jc := range joints {
		span := m.maxPositions[jc.Key] - m.minPositions[jc.Key]
		ranges = append(ranges, span)
		rows = append(rows, []string{
			jc.Name,
			fmt.Sprintf("%d", m.curPositions[jc.Key]),
			fmt.Sprintf("%d", m.minPositions[jc.Key]),
			fmt.Sprintf("%d", m.maxPositions[jc.Key]),
			fmt.Sprintf("%d", span),
			fmt.Sprintf("%.0f°", float64(span)*360/robot.TicksPerRevolution),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Current", "Min", "Max", "Range", "Span").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableJointStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > minGoodRange {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Enter to save, q to abort")
}
