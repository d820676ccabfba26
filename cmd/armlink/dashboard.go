package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/armlink/pkg/link"
	"github.com/gwillem/armlink/pkg/protocol"
	"github.com/gwillem/armlink/pkg/robot"
	"github.com/gwillem/armlink/pkg/session"
)

type DashboardCommand struct {
	Address string `short:"a" long:"address" description:"Controller address (overrides the config)"`
	Connect bool   `long:"connect" description:"Connect on start"`
}

const (
	headerHeight = 2 // title + blank line
	tableHeight  = 8 // joint table with border
	legendHeight = 2 // legend row + blank
	footerHeight = 9 // log box + help line
	maxLogs      = 6 // log lines shown
	borderSize   = 2 // chart border

	// interactionHold is how long after the last nudge the operator still
	// counts as holding a control.
	interactionHold = 400 * time.Millisecond
)

var jointColors = map[robot.JointKey]string{
	robot.Base:     "196", // red
	robot.Shoulder: "208", // orange
	robot.Elbow:    "46",  // green
	robot.Wrist:    "51",  // cyan
}

var severityColors = map[protocol.Severity]string{
	protocol.SeverityInfo:    "252",
	protocol.SeverityWarning: "11",
	protocol.SeverityError:   "9",
	protocol.SeveritySent:    "12",
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	stoppedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("160")).Padding(0, 1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	headStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
)

var statusColors = map[link.Status]string{
	link.Disconnected: "9",
	link.Connecting:   "11",
	link.Connected:    "10",
}

type inputMode int

const (
	modeNormal inputMode = iota
	modeAddress
	modeAngle
)

type dashboardModel struct {
	sess     *session.Session
	snap     session.Snapshot
	chart    *streamlinechart.Model
	input    textinput.Model
	mode     inputMode
	selected int
	width    int
	height   int
	err      string
	quitting bool

	holdSeq     int
	lastEncoder robot.JointAngles
	hasEncoder  bool
}

// Messages from the session
type snapshotMsg session.Snapshot
type tickMsg time.Time
type releaseMsg int

func waitForSnapshot(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sess.Updates()
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func initialDashboardModel(sess *session.Session) dashboardModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-180, 180),
	)
	for _, k := range robot.AllJoints() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[k]))
		chart.SetDataSetStyles(string(k), runes.ThinLineStyle, style)
	}

	ti := textinput.New()
	ti.CharLimit = 64
	ti.Width = 24

	return dashboardModel{
		sess:  sess,
		snap:  sess.Snapshot(),
		chart: &chart,
		input: ti,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.sess), tick())
}

func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 12
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-tableHeight-legendHeight-footerHeight-borderSize, 6)
	return width, height
}

func (m *dashboardModel) selectedJoint() robot.JointKey {
	return robot.AllJoints()[m.selected]
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeNormal {
			return m.updateInput(msg)
		}
		return m.handleKey(msg)

	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		// Only push the chart on movement so it freezes when idle
		if !m.hasEncoder || m.snap.Encoder != m.lastEncoder {
			for _, k := range robot.AllJoints() {
				m.chart.PushDataSet(string(k), m.snap.Encoder.Get(k))
			}
			m.chart.DrawAll()
			m.lastEncoder = m.snap.Encoder
			m.hasEncoder = true
		}
		return m, waitForSnapshot(m.sess)

	case tickMsg:
		return m, tick()

	case releaseMsg:
		if int(msg) == m.holdSeq {
			m.sess.SetInteracting(false)
		}
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = ""
	joint := m.selectedJoint()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "c":
		m.sess.Connect()
	case "x":
		m.sess.Disconnect()
	case "a":
		if m.snap.Status != link.Disconnected {
			m.err = session.ErrAddressLocked.Error()
			return m, nil
		}
		return m.startInput(modeAddress, m.snap.Address), nil

	case " ", "s":
		m.sess.SendStop()
	case "r":
		m.sess.ResetStop()

	case "up", "k":
		m.selected = (m.selected + robot.NumJoints - 1) % robot.NumJoints
	case "down", "j":
		m.selected = (m.selected + 1) % robot.NumJoints

	case "left", "h":
		return m.nudge(joint, -1)
	case "right", "l":
		return m.nudge(joint, 1)
	case "shift+left", "H":
		return m.nudge(joint, -10)
	case "shift+right", "L":
		return m.nudge(joint, 10)
	case "enter":
		return m.startInput(modeAngle, fmt.Sprintf("%g", m.snap.Target.Get(joint))), nil
	case "g":
		m.sess.SetTargets(robot.DefaultJointAngles)

	case "z":
		m.setErr(m.sess.SendSetZero(joint))
	case "i":
		m.setErr(m.sess.SendInvertDirection(joint, !m.snap.Settings.InvertDirection.Get(joint)))
	case "e":
		settings := m.snap.Settings
		settings.EnabledJoints = settings.EnabledJoints.Set(joint, !settings.EnabledJoints.Get(joint))
		m.setErr(m.sess.UpdateSettings(settings))
	case "+", "-":
		settings := m.snap.Settings
		step := 10
		if msg.String() == "-" {
			step = -10
		}
		settings.MaxSpeed = min(max(settings.MaxSpeed+step, 10), 100)
		m.setErr(m.sess.UpdateSettings(settings))
	case "p":
		m.sess.SendSettings()
	case "C":
		m.sess.ClearLogs()
	}
	return m, nil
}

// nudge moves the selected joint and marks the operator as interacting
// until the keys go quiet.
func (m dashboardModel) nudge(joint robot.JointKey, delta float64) (tea.Model, tea.Cmd) {
	m.sess.SetInteracting(true)
	m.setErr(m.sess.SetTarget(joint, m.snap.Target.Get(joint)+delta))
	m.snap.Target = m.sess.Snapshot().Target
	m.holdSeq++
	seq := m.holdSeq
	return m, tea.Tick(interactionHold, func(time.Time) tea.Msg { return releaseMsg(seq) })
}

func (m *dashboardModel) setErr(err error) {
	if err != nil {
		m.err = err.Error()
	}
}

func (m dashboardModel) startInput(mode inputMode, value string) dashboardModel {
	m.mode = mode
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	return m
}

func (m dashboardModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	case "enter":
		value := m.input.Value()
		switch m.mode {
		case modeAddress:
			m.setErr(m.sess.SetAddress(value))
		case modeAngle:
			m.setErr(m.sess.SetTargetText(m.selectedJoint(), value))
		}
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Dashboard closed.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("armlink"))
	sb.WriteString(" ")
	sb.WriteString(m.renderStatus())
	if m.snap.Stopped {
		sb.WriteString("  ")
		sb.WriteString(stoppedStyle.Render("STOPPED"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.renderJoints())
	sb.WriteString("\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	sb.WriteString(m.renderLogs())
	sb.WriteString("\n")

	switch {
	case m.mode == modeAddress:
		sb.WriteString("Address: " + m.input.View())
	case m.mode == modeAngle:
		sb.WriteString(fmt.Sprintf("%s angle: %s", m.selectedJoint(), m.input.View()))
	case m.err != "":
		sb.WriteString(errorStyle.Render(m.err))
	default:
		sb.WriteString(statusStyle.Render("c connect  x disconnect  a address  space stop  r resume  ←/→ nudge  enter angle  z zero  i invert  e enable  +/- speed  p push  q quit"))
	}
	return sb.String()
}

func (m dashboardModel) renderStatus() string {
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(statusColors[m.snap.Status]))
	parts := []string{
		style.Render(m.snap.Status.String()),
		fmt.Sprintf("%s:%d", m.snap.Address, link.DefaultPort),
	}
	if m.snap.HasLatency {
		parts = append(parts, fmt.Sprintf("%dms", m.snap.Latency.Milliseconds()))
	}
	if m.snap.Status == link.Connected && !m.snap.ConnectedAt.IsZero() {
		parts = append(parts, "connected "+humanize.Time(m.snap.ConnectedAt))
	}
	motion := "idle"
	if m.snap.Motion.IsMoving {
		motion = "moving"
	}
	parts = append(parts, motion, fmt.Sprintf("speed %d%%", m.snap.Settings.MaxSpeed))
	return statusStyle.Render(strings.Join(parts, " · "))
}

func (m dashboardModel) renderJoints() string {
	joints := robot.JointConfigs()
	rows := make([][]string, 0, len(joints))
	for _, jc := range joints {
		s := m.snap.Settings
		lim := s.JointLimits.Get(jc.Key)
		flags := ""
		if !s.EnabledJoints.Get(jc.Key) {
			flags += "off "
		}
		if s.InvertDirection.Get(jc.Key) {
			flags += "inv"
		}
		rows = append(rows, []string{
			jc.Name,
			fmt.Sprintf("%7.1f%s", m.snap.Target.Get(jc.Key), jc.Unit),
			fmt.Sprintf("%7.1f%s", m.snap.Encoder.Get(jc.Key), jc.Unit),
			fmt.Sprintf("%6.0f", m.snap.RawEncoder.Get(jc.Key)),
			fmt.Sprintf("%g..%g", lim.Min, lim.Max),
			strings.TrimSpace(flags),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Joint", "Target", "Encoder", "Raw", "Limits", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			if row == m.selected {
				return selectedStyle
			}
			return cellStyle
		})
	return t.Render()
}

func (m dashboardModel) renderLogs() string {
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 40))

	logs := m.snap.Logs
	if len(logs) == 0 {
		return logStyle.Render(statusStyle.Render("No messages"))
	}
	if len(logs) > maxLogs {
		logs = logs[len(logs)-maxLogs:]
	}
	lines := make([]string, 0, len(logs))
	for _, e := range logs {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(severityColors[e.Severity]))
		lines = append(lines, statusStyle.Render(e.Time.Format("15:04:05"))+" "+style.Render(e.Message))
	}
	return logStyle.Render(strings.Join(lines, "\n"))
}

func renderLegend() string {
	var items []string
	for _, k := range robot.AllJoints() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[k])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(k))
	}
	return strings.Join(items, "  ")
}

func (c *DashboardCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if c.Address != "" {
		if err := robot.ValidateAddress(c.Address); err != nil {
			return err
		}
		cfg.Address = c.Address
	}

	logger, closeLog, err := fileLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	sess := session.New(session.ConfigFrom(cfg), session.WithLogger(logger))
	defer sess.Close()
	if c.Connect {
		sess.Connect()
	}

	p := tea.NewProgram(initialDashboardModel(sess), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}
